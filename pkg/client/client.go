package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/clusterupgrade/pkg/events"
	"github.com/cuemby/clusterupgrade/pkg/types"
	"github.com/cuemby/clusterupgrade/pkg/upgrade"
	"github.com/go-resty/resty/v2"
)

const upgradePath = "/api/v1/clusters/{cluster_id}/upgrade"

// APIError is a failed API call
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

// IsNotFound reports whether err is an API 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Config represents client configuration
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	RetryCount    int
	RetryWaitTime time.Duration
	Debug         bool
}

// DefaultConfig returns default client configuration
func DefaultConfig(baseURL string) *Config {
	return &Config{
		BaseURL:       baseURL,
		Timeout:       30 * time.Second,
		RetryWaitTime: 1 * time.Second,
	}
}

// Client talks to the cluster upgrade REST API
type Client struct {
	client *resty.Client
}

// NewClient creates a new API client
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig("http://127.0.0.1:8090")
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWaitTime).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetError(&APIError{})

	if cfg.Debug {
		client.SetDebug(true)
	}

	return &Client{client: client}
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.client.R().SetContext(ctx)
}

// check turns a transport failure or an error status into an error
func check(resp *resty.Response, err error, action string) error {
	if err != nil {
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	if !resp.IsError() {
		return nil
	}

	apiErr, ok := resp.Error().(*APIError)
	if !ok || apiErr.Message == "" {
		apiErr = &APIError{Message: resp.String()}
	}
	apiErr.StatusCode = resp.StatusCode()
	return fmt.Errorf("failed to %s: %w", action, apiErr)
}

// Upgrade

// CloneCluster clones a cluster into a seed cluster
func (c *Client) CloneCluster(ctx context.Context, clusterID string, req upgrade.CloneRequest) (*types.Cluster, error) {
	var seed types.Cluster
	resp, err := c.request(ctx).
		SetPathParam("cluster_id", clusterID).
		SetBody(req).
		SetResult(&seed).
		Post(upgradePath + "/clone")
	if err := check(resp, err, "clone cluster"); err != nil {
		return nil, err
	}
	return &seed, nil
}

// AssignNode moves a node to the seed cluster. The provisioning task is
// returned when the node is reprovisioned, nil otherwise.
func (c *Client) AssignNode(ctx context.Context, seedID string, req upgrade.AssignRequest) (*types.Task, error) {
	var task types.Task
	resp, err := c.request(ctx).
		SetPathParam("cluster_id", seedID).
		SetBody(req).
		SetResult(&task).
		Post(upgradePath + "/assign")
	if err := check(resp, err, "assign node"); err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusAccepted {
		return nil, nil
	}
	return &task, nil
}

// CopyVIPs copies the VIPs of the orig cluster to the seed cluster
func (c *Client) CopyVIPs(ctx context.Context, seedID string) error {
	resp, err := c.request(ctx).
		SetPathParam("cluster_id", seedID).
		Post(upgradePath + "/vips")
	return check(resp, err, "copy VIPs")
}

// CloneRelease creates an upgrade release from releaseID for a cluster
func (c *Client) CloneRelease(ctx context.Context, clusterID, releaseID string) (*types.Release, error) {
	var release types.Release
	resp, err := c.request(ctx).
		SetPathParams(map[string]string{"cluster_id": clusterID, "release_id": releaseID}).
		SetResult(&release).
		Post(upgradePath + "/clone_release/{release_id}")
	if err := check(resp, err, "clone release"); err != nil {
		return nil, err
	}
	return &release, nil
}

// DeploymentInfo returns the upgrade relation info of a cluster
func (c *Client) DeploymentInfo(ctx context.Context, clusterID string) (map[string]interface{}, error) {
	info := map[string]interface{}{}
	resp, err := c.request(ctx).
		SetPathParam("cluster_id", clusterID).
		SetResult(&info).
		Get(upgradePath + "/info")
	if err := check(resp, err, "get deployment info"); err != nil {
		return nil, err
	}
	return info, nil
}

// Releases

// CreateRelease creates a release
func (c *Client) CreateRelease(ctx context.Context, release *types.Release) (*types.Release, error) {
	var created types.Release
	resp, err := c.request(ctx).
		SetBody(release).
		SetResult(&created).
		Post("/api/v1/releases")
	if err := check(resp, err, "create release"); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListReleases lists all releases
func (c *Client) ListReleases(ctx context.Context) ([]*types.Release, error) {
	var releases []*types.Release
	resp, err := c.request(ctx).
		SetResult(&releases).
		Get("/api/v1/releases")
	if err := check(resp, err, "list releases"); err != nil {
		return nil, err
	}
	return releases, nil
}

// GetRelease returns a release by id
func (c *Client) GetRelease(ctx context.Context, id string) (*types.Release, error) {
	var release types.Release
	resp, err := c.request(ctx).
		SetPathParam("release_id", id).
		SetResult(&release).
		Get("/api/v1/releases/{release_id}")
	if err := check(resp, err, "get release"); err != nil {
		return nil, err
	}
	return &release, nil
}

// Clusters

// CreateCluster creates a cluster
func (c *Client) CreateCluster(ctx context.Context, data types.ClusterCreateData) (*types.Cluster, error) {
	var cluster types.Cluster
	resp, err := c.request(ctx).
		SetBody(data).
		SetResult(&cluster).
		Post("/api/v1/clusters")
	if err := check(resp, err, "create cluster"); err != nil {
		return nil, err
	}
	return &cluster, nil
}

// ListClusters lists all clusters
func (c *Client) ListClusters(ctx context.Context) ([]*types.Cluster, error) {
	var clusters []*types.Cluster
	resp, err := c.request(ctx).
		SetResult(&clusters).
		Get("/api/v1/clusters")
	if err := check(resp, err, "list clusters"); err != nil {
		return nil, err
	}
	return clusters, nil
}

// GetCluster returns a cluster by id
func (c *Client) GetCluster(ctx context.Context, id string) (*types.Cluster, error) {
	var cluster types.Cluster
	resp, err := c.request(ctx).
		SetPathParam("cluster_id", id).
		SetResult(&cluster).
		Get("/api/v1/clusters/{cluster_id}")
	if err := check(resp, err, "get cluster"); err != nil {
		return nil, err
	}
	return &cluster, nil
}

// DeleteCluster deletes a cluster
func (c *Client) DeleteCluster(ctx context.Context, id string) error {
	resp, err := c.request(ctx).
		SetPathParam("cluster_id", id).
		Delete("/api/v1/clusters/{cluster_id}")
	return check(resp, err, "delete cluster")
}

// CreateNodeGroup adds a node group to a cluster
func (c *Client) CreateNodeGroup(ctx context.Context, clusterID, name string) (*types.NodeGroup, error) {
	var group types.NodeGroup
	resp, err := c.request(ctx).
		SetPathParam("cluster_id", clusterID).
		SetBody(map[string]string{"name": name}).
		SetResult(&group).
		Post("/api/v1/clusters/{cluster_id}/node_groups")
	if err := check(resp, err, "create node group"); err != nil {
		return nil, err
	}
	return &group, nil
}

// ListNodeGroups lists the node groups of a cluster
func (c *Client) ListNodeGroups(ctx context.Context, clusterID string) ([]*types.NodeGroup, error) {
	var groups []*types.NodeGroup
	resp, err := c.request(ctx).
		SetPathParam("cluster_id", clusterID).
		SetResult(&groups).
		Get("/api/v1/clusters/{cluster_id}/node_groups")
	if err := check(resp, err, "list node groups"); err != nil {
		return nil, err
	}
	return groups, nil
}

// NetworkConfiguration returns the serialized network configuration of a
// cluster
func (c *Client) NetworkConfiguration(ctx context.Context, clusterID string) (map[string]interface{}, error) {
	config := map[string]interface{}{}
	resp, err := c.request(ctx).
		SetPathParam("cluster_id", clusterID).
		SetResult(&config).
		Get("/api/v1/clusters/{cluster_id}/network_configuration")
	if err := check(resp, err, "get network configuration"); err != nil {
		return nil, err
	}
	return config, nil
}

// Nodes

// CreateNode registers a node
func (c *Client) CreateNode(ctx context.Context, node *types.Node) (*types.Node, error) {
	var created types.Node
	resp, err := c.request(ctx).
		SetBody(node).
		SetResult(&created).
		Post("/api/v1/nodes")
	if err := check(resp, err, "create node"); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListNodes lists nodes, only those of clusterID when it is not empty
func (c *Client) ListNodes(ctx context.Context, clusterID string) ([]*types.Node, error) {
	var nodes []*types.Node
	req := c.request(ctx).SetResult(&nodes)
	if clusterID != "" {
		req.SetQueryParam("cluster_id", clusterID)
	}
	resp, err := req.Get("/api/v1/nodes")
	if err := check(resp, err, "list nodes"); err != nil {
		return nil, err
	}
	return nodes, nil
}

// GetNode returns a node by id
func (c *Client) GetNode(ctx context.Context, id string) (*types.Node, error) {
	var node types.Node
	resp, err := c.request(ctx).
		SetPathParam("node_id", id).
		SetResult(&node).
		Get("/api/v1/nodes/{node_id}")
	if err := check(resp, err, "get node"); err != nil {
		return nil, err
	}
	return &node, nil
}

// Tasks

// GetTask returns a task by id
func (c *Client) GetTask(ctx context.Context, id string) (*types.Task, error) {
	var task types.Task
	resp, err := c.request(ctx).
		SetPathParam("task_id", id).
		SetResult(&task).
		Get("/api/v1/tasks/{task_id}")
	if err := check(resp, err, "get task"); err != nil {
		return nil, err
	}
	return &task, nil
}

// WaitTask polls a task until it is ready or failed
func (c *Client) WaitTask(ctx context.Context, id string, interval time.Duration) (*types.Task, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		task, err := c.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		switch task.Status {
		case types.TaskStatusReady:
			return task, nil
		case types.TaskStatusError:
			return task, fmt.Errorf("task %s failed: %s", task.ID, task.Message)
		}

		select {
		case <-ctx.Done():
			return task, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Events

// ListEvents returns the recent events the server recorded, oldest first
func (c *Client) ListEvents(ctx context.Context, filter events.Filter) ([]*events.Event, error) {
	var list []*events.Event
	req := c.request(ctx).SetResult(&list)
	if filter.Type != "" {
		req.SetQueryParam("type", string(filter.Type))
	}
	if filter.ClusterID != "" {
		req.SetQueryParam("cluster_id", filter.ClusterID)
	}
	resp, err := req.Get("/api/v1/events")
	if err := check(resp, err, "list events"); err != nil {
		return nil, err
	}
	return list, nil
}
