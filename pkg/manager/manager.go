package manager

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cuemby/clusterupgrade/pkg/events"
	"github.com/cuemby/clusterupgrade/pkg/log"
	"github.com/cuemby/clusterupgrade/pkg/network"
	"github.com/cuemby/clusterupgrade/pkg/storage"
	"github.com/cuemby/clusterupgrade/pkg/types"
	"github.com/google/uuid"
	"github.com/mitchellh/copystructure"
	"github.com/rs/zerolog"
)

// DefaultAdminCIDR is used for the admin network when the release does not
// describe one
const DefaultAdminCIDR = "10.20.0.0/24"

// Manager owns the object store and creates records with their defaults
type Manager struct {
	dataDir     string
	store       storage.Store
	eventBroker *events.Broker
	history     *events.History
	deleteHooks []DeleteHook
	logger      zerolog.Logger
}

// DeleteHook is called with the id of a cluster before the cluster record
// is removed
type DeleteHook func(clusterID string) error

// Config holds configuration for creating a Manager
type Config struct {
	DataDir string
}

// NewManager opens the store in the data directory and starts the event
// broker
func NewManager(cfg *Config) (*Manager, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	eventBroker := events.NewBroker()
	eventBroker.Start()

	m := NewWithStore(store, eventBroker)
	m.dataDir = cfg.DataDir
	return m, nil
}

// NewWithStore creates a Manager over an existing store. The broker may be
// nil, in which case no events are published or recorded.
func NewWithStore(store storage.Store, broker *events.Broker) *Manager {
	m := &Manager{
		store:       store,
		eventBroker: broker,
		logger:      log.WithComponent("manager"),
	}
	if broker != nil {
		m.history = events.NewHistory(broker, events.DefaultHistorySize)
	}
	return m
}

// Store returns the underlying store
func (m *Manager) Store() storage.Store {
	return m.store
}

// GetEventBroker returns the event broker
func (m *Manager) GetEventBroker() *events.Broker {
	return m.eventBroker
}

// Events returns the recent events matching f, oldest first
func (m *Manager) Events(f events.Filter) []*events.Event {
	return m.history.List(f)
}

// PublishEvent publishes an event to all subscribers
func (m *Manager) PublishEvent(event *events.Event) {
	if m.eventBroker != nil {
		m.eventBroker.Publish(event)
	}
}

// OnClusterDelete registers a hook run by DeleteCluster. Hooks must be
// registered before the manager is shared between goroutines.
func (m *Manager) OnClusterDelete(hook DeleteHook) {
	m.deleteHooks = append(m.deleteHooks, hook)
}

// NetworkManager returns the network manager of cluster
func (m *Manager) NetworkManager(cluster *types.Cluster) *network.Manager {
	return network.NewManager(m.store, cluster)
}

// Releases

// CreateRelease stores a release, assigning an id when it has none
func (m *Manager) CreateRelease(release *types.Release) error {
	if release.Name == "" {
		return errors.New("release name is required")
	}
	if release.ID == "" {
		release.ID = uuid.New().String()
	}
	if release.State == "" {
		release.State = types.ReleaseStateAvailable
	}
	if release.CreatedAt.IsZero() {
		release.CreatedAt = time.Now()
	}
	return m.store.CreateRelease(release)
}

// GetRelease returns a release by id
func (m *Manager) GetRelease(id string) (*types.Release, error) {
	return m.store.GetRelease(id)
}

// ListReleases returns all releases
func (m *Manager) ListReleases() ([]*types.Release, error) {
	return m.store.ListReleases()
}

// Clusters

// CreateCluster creates a cluster from its release defaults: attributes,
// a default node group and its network groups
func (m *Manager) CreateCluster(data types.ClusterCreateData) (*types.Cluster, error) {
	if data.Name == "" {
		return nil, errors.New("cluster name is required")
	}
	release, err := m.store.GetRelease(data.ReleaseID)
	if err != nil {
		return nil, err
	}

	editable, err := copyTree(release.Attributes.Editable)
	if err != nil {
		return nil, err
	}
	generated, err := copyTree(release.Attributes.Generated)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	cluster := &types.Cluster{
		ID:                  uuid.New().String(),
		Name:                data.Name,
		ReleaseID:           release.ID,
		Mode:                data.Mode,
		NetProvider:         data.NetProvider,
		NetSegmentationType: data.NetSegmentationType,
		Status:              types.ClusterStatusNew,
		EditableAttrs:       editable,
		GeneratedAttrs:      generated,
		NetworkingParameters: types.ConfigTree{
			"segmentation_type": data.NetSegmentationType,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if cluster.Mode == "" {
		cluster.Mode = "ha_compact"
	}
	if cluster.NetProvider == "" {
		cluster.NetProvider = "neutron"
	}

	if err := m.store.CreateCluster(cluster); err != nil {
		return nil, fmt.Errorf("failed to create cluster: %w", err)
	}
	if err := m.ensureAdminNetwork(release); err != nil {
		return nil, err
	}
	if _, err := m.createNodeGroup(cluster, release, types.DefaultNodeGroupName, true); err != nil {
		return nil, err
	}

	logger := log.WithClusterID(cluster.ID)
	logger.Info().
		Str("name", cluster.Name).
		Str("release_id", release.ID).
		Msg("Cluster created")

	m.PublishEvent(events.NewEvent(events.EventClusterCreated, "cluster created", map[string]string{
		"cluster_id": cluster.ID,
		"release_id": release.ID,
	}))
	return cluster, nil
}

func copyTree(tree types.ConfigTree) (types.ConfigTree, error) {
	if tree == nil {
		return types.ConfigTree{}, nil
	}
	copied, err := copystructure.Copy(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to copy attributes: %w", err)
	}
	return copied.(types.ConfigTree), nil
}

// GetCluster returns a cluster by id
func (m *Manager) GetCluster(id string) (*types.Cluster, error) {
	return m.store.GetCluster(id)
}

// GetClusterByName returns a cluster by name
func (m *Manager) GetClusterByName(name string) (*types.Cluster, error) {
	return m.store.GetClusterByName(name)
}

// ListClusters returns all clusters
func (m *Manager) ListClusters() ([]*types.Cluster, error) {
	return m.store.ListClusters()
}

// UpdateCluster saves a cluster
func (m *Manager) UpdateCluster(cluster *types.Cluster) error {
	cluster.UpdatedAt = time.Now()
	return m.store.UpdateCluster(cluster)
}

// DeleteCluster removes a cluster with its node groups, network groups and
// VIPs after running the delete hooks. Its nodes are released to the
// unallocated pool.
func (m *Manager) DeleteCluster(id string) error {
	cluster, err := m.store.GetCluster(id)
	if err != nil {
		return err
	}

	for _, hook := range m.deleteHooks {
		if err := hook(id); err != nil {
			return fmt.Errorf("cluster delete hook failed: %w", err)
		}
	}

	nodes, err := m.store.ListNodesByCluster(id)
	if err != nil {
		return err
	}
	for _, node := range nodes {
		node.ClusterID = ""
		node.GroupID = ""
		node.Roles = nil
		node.PendingRoles = nil
		node.PendingAddition = false
		node.IPAddrs = nil
		node.UpdatedAt = time.Now()
		if err := m.store.UpdateNode(node); err != nil {
			return fmt.Errorf("failed to release node %s: %w", node.ID, err)
		}
	}

	groups, err := m.store.ListNodeGroupsByCluster(id)
	if err != nil {
		return err
	}
	for _, group := range groups {
		if err := m.deleteNodeGroup(group); err != nil {
			return err
		}
	}

	if err := m.store.DeleteCluster(id); err != nil {
		return err
	}

	logger := log.WithClusterID(id)
	logger.Info().Str("name", cluster.Name).Msg("Cluster deleted")

	m.PublishEvent(events.NewEvent(events.EventClusterDeleted, "cluster deleted", map[string]string{
		"cluster_id": id,
	}))
	return nil
}

// Node groups

// CreateNodeGroup adds a node group with the release networks to a cluster
func (m *Manager) CreateNodeGroup(clusterID, name string) (*types.NodeGroup, error) {
	cluster, err := m.store.GetCluster(clusterID)
	if err != nil {
		return nil, err
	}
	release, err := m.store.GetRelease(cluster.ReleaseID)
	if err != nil {
		return nil, err
	}

	groups, err := m.store.ListNodeGroupsByCluster(clusterID)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.Name == name {
			return nil, fmt.Errorf("node group %q already exists in cluster %s", name, clusterID)
		}
	}

	return m.createNodeGroup(cluster, release, name, false)
}

func (m *Manager) createNodeGroup(cluster *types.Cluster, release *types.Release, name string, isDefault bool) (*types.NodeGroup, error) {
	group := &types.NodeGroup{
		ID:        uuid.New().String(),
		ClusterID: cluster.ID,
		Name:      name,
		IsDefault: isDefault,
	}
	if err := m.store.CreateNodeGroup(group); err != nil {
		return nil, fmt.Errorf("failed to create node group: %w", err)
	}

	for _, meta := range release.NetworksMetadata {
		if meta.Name == types.NetworkAdmin {
			continue
		}
		ng := &types.NetworkGroup{
			ID:        uuid.New().String(),
			Name:      meta.Name,
			GroupID:   group.ID,
			ReleaseID: release.ID,
			CIDR:      meta.CIDR,
			Gateway:   meta.Gateway,
			VLANStart: meta.VLANStart,
			IPRanges:  meta.IPRanges,
			Meta:      meta.Meta,
		}
		if err := m.store.CreateNetworkGroup(ng); err != nil {
			return nil, fmt.Errorf("failed to create network group %s: %w", meta.Name, err)
		}
	}

	return group, nil
}

// ListNodeGroups returns the node groups of a cluster
func (m *Manager) ListNodeGroups(clusterID string) ([]*types.NodeGroup, error) {
	return m.store.ListNodeGroupsByCluster(clusterID)
}

// DefaultNodeGroup returns the default node group of a cluster
func (m *Manager) DefaultNodeGroup(clusterID string) (*types.NodeGroup, error) {
	groups, err := m.store.ListNodeGroupsByCluster(clusterID)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.IsDefault {
			return g, nil
		}
	}
	return nil, fmt.Errorf("default node group of cluster %s: %w", clusterID, storage.ErrNotFound)
}

func (m *Manager) deleteNodeGroup(group *types.NodeGroup) error {
	nets, err := m.store.ListNetworkGroupsByNodeGroup(group.ID)
	if err != nil {
		return err
	}
	for _, ng := range nets {
		vips, err := m.store.ListVIPsByNetworkGroup(ng.ID)
		if err != nil {
			return err
		}
		for _, vip := range vips {
			if err := m.store.DeleteVIP(vip.NetworkGroupID, vip.Name); err != nil {
				return err
			}
		}
		if err := m.store.DeleteNetworkGroup(ng.ID); err != nil {
			return err
		}
	}
	return m.store.DeleteNodeGroup(group.ID)
}

// ensureAdminNetwork creates the shared admin network group on first use
func (m *Manager) ensureAdminNetwork(release *types.Release) error {
	nets, err := m.store.ListNetworkGroupsByNodeGroup("")
	if err != nil {
		return err
	}
	for _, ng := range nets {
		if ng.Name == types.NetworkAdmin {
			return nil
		}
	}

	admin := &types.NetworkGroup{
		ID:   uuid.New().String(),
		Name: types.NetworkAdmin,
		CIDR: DefaultAdminCIDR,
	}
	for _, meta := range release.NetworksMetadata {
		if meta.Name == types.NetworkAdmin {
			admin.CIDR = meta.CIDR
			admin.Gateway = meta.Gateway
			admin.IPRanges = meta.IPRanges
			admin.Meta = meta.Meta
		}
	}
	return m.store.CreateNetworkGroup(admin)
}

// Nodes

// CreateNode stores a node. A node created inside a cluster joins the
// cluster's default node group unless a group is given.
func (m *Manager) CreateNode(node *types.Node) error {
	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	if node.Status == "" {
		node.Status = types.NodeStatusDiscover
	}
	if node.ClusterID != "" {
		if _, err := m.store.GetCluster(node.ClusterID); err != nil {
			return err
		}
		if node.GroupID == "" {
			group, err := m.DefaultNodeGroup(node.ClusterID)
			if err != nil {
				return err
			}
			node.GroupID = group.ID
		}
	}
	now := time.Now()
	node.CreatedAt = now
	node.UpdatedAt = now
	return m.store.CreateNode(node)
}

// GetNode returns a node by id
func (m *Manager) GetNode(id string) (*types.Node, error) {
	return m.store.GetNode(id)
}

// ListNodes returns all nodes
func (m *Manager) ListNodes() ([]*types.Node, error) {
	return m.store.ListNodes()
}

// ListNodesByCluster returns the nodes of a cluster
func (m *Manager) ListNodesByCluster(clusterID string) ([]*types.Node, error) {
	return m.store.ListNodesByCluster(clusterID)
}

// UpdateNode saves a node
func (m *Manager) UpdateNode(node *types.Node) error {
	node.UpdatedAt = time.Now()
	return m.store.UpdateNode(node)
}

// Tasks

// GetTask returns a task by id
func (m *Manager) GetTask(id string) (*types.Task, error) {
	return m.store.GetTask(id)
}

// Shutdown stops the event broker and closes the store
func (m *Manager) Shutdown() error {
	m.history.Stop()
	if m.eventBroker != nil {
		m.eventBroker.Stop()
	}

	if m.store != nil {
		if err := m.store.Close(); err != nil {
			return fmt.Errorf("failed to close store: %w", err)
		}
	}

	return nil
}
