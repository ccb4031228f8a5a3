package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/clusterupgrade/pkg/events"
	"github.com/cuemby/clusterupgrade/pkg/log"
	"github.com/cuemby/clusterupgrade/pkg/storage"
	"github.com/cuemby/clusterupgrade/pkg/types"
	"github.com/google/uuid"
)

// Provisioner installs the operating system on nodes
type Provisioner interface {
	Provision(ctx context.Context, cluster *types.Cluster, nodes []*types.Node) error
}

// ProvisionerFunc adapts a function to Provisioner
type ProvisionerFunc func(ctx context.Context, cluster *types.Cluster, nodes []*types.Node) error

// Provision implements Provisioner
func (f ProvisionerFunc) Provision(ctx context.Context, cluster *types.Cluster, nodes []*types.Node) error {
	return f(ctx, cluster, nodes)
}

// SimulatedProvisioner completes provisioning after a fixed delay
type SimulatedProvisioner struct {
	Delay time.Duration
}

// Provision implements Provisioner
func (p SimulatedProvisioner) Provision(ctx context.Context, cluster *types.Cluster, nodes []*types.Node) error {
	select {
	case <-time.After(p.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Manager runs provisioning tasks in the background
type Manager struct {
	store       storage.Store
	broker      *events.Broker
	provisioner Provisioner
	wg          sync.WaitGroup
}

// NewManager creates a task manager. A nil provisioner completes tasks
// immediately.
func NewManager(store storage.Store, broker *events.Broker, provisioner Provisioner) *Manager {
	if provisioner == nil {
		provisioner = SimulatedProvisioner{}
	}
	return &Manager{
		store:       store,
		broker:      broker,
		provisioner: provisioner,
	}
}

// SubmitProvisioning records a provision task for nodes of a cluster, marks
// the nodes as provisioning and starts the task. It does not wait for the
// task to finish; its outcome is stored on the task and the nodes.
func (m *Manager) SubmitProvisioning(ctx context.Context, clusterID string, nodes []*types.Node) (*types.Task, error) {
	cluster, err := m.store.GetCluster(clusterID)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no nodes to provision in cluster %s", clusterID)
	}

	task := &types.Task{
		ID:        uuid.New().String(),
		Name:      types.TaskProvision,
		ClusterID: clusterID,
		Status:    types.TaskStatusPending,
		CreatedAt: time.Now(),
	}
	for _, node := range nodes {
		task.NodeIDs = append(task.NodeIDs, node.ID)
	}
	if err := m.store.CreateTask(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	for _, node := range nodes {
		node.Status = types.NodeStatusProvisioning
		node.ErrorType = ""
		node.UpdatedAt = time.Now()
		if err := m.store.UpdateNode(node); err != nil {
			return nil, fmt.Errorf("failed to update node %s: %w", node.ID, err)
		}
	}

	logger := log.WithTaskID(task.ID)
	logger.Info().
		Str("cluster_id", clusterID).
		Strs("node_ids", task.NodeIDs).
		Msg("Provisioning task submitted")
	m.broker.Publish(events.NewEvent(events.EventTaskCreated, "provisioning started", map[string]string{
		"task_id":    task.ID,
		"cluster_id": clusterID,
	}))

	submitted := *task
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(context.WithoutCancel(ctx), cluster, task)
	}()

	return &submitted, nil
}

// Wait blocks until all submitted tasks have finished
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, cluster *types.Cluster, task *types.Task) {
	logger := log.WithTaskID(task.ID)

	task.Status = types.TaskStatusRunning
	if err := m.store.UpdateTask(task); err != nil {
		logger.Error().Err(err).Msg("Failed to update task")
	}

	nodes := make([]*types.Node, 0, len(task.NodeIDs))
	for _, id := range task.NodeIDs {
		node, err := m.store.GetNode(id)
		if err != nil {
			m.finish(task, nil, err)
			return
		}
		nodes = append(nodes, node)
	}

	err := m.provisioner.Provision(ctx, cluster, nodes)
	m.finish(task, nodes, err)
}

func (m *Manager) finish(task *types.Task, nodes []*types.Node, err error) {
	logger := log.WithTaskID(task.ID)

	nodeStatus := types.NodeStatusProvisioned
	errorType := ""
	eventType := events.EventTaskCompleted
	task.Status = types.TaskStatusReady
	task.Progress = 100
	if err != nil {
		nodeStatus = types.NodeStatusError
		errorType = types.NodeErrorProvision
		eventType = events.EventTaskFailed
		task.Status = types.TaskStatusError
		task.Message = err.Error()
	}
	task.FinishedAt = time.Now()

	for _, node := range nodes {
		node.Status = nodeStatus
		node.ErrorType = errorType
		node.UpdatedAt = time.Now()
		if uerr := m.store.UpdateNode(node); uerr != nil {
			logger.Error().Err(uerr).Str("node_id", node.ID).Msg("Failed to update node")
		}
	}
	if uerr := m.store.UpdateTask(task); uerr != nil {
		logger.Error().Err(uerr).Msg("Failed to update task")
	}

	if err != nil {
		logger.Error().Err(err).Msg("Provisioning failed")
	} else {
		logger.Info().Msg("Provisioning finished")
	}
	m.broker.Publish(events.NewEvent(eventType, string(task.Status), map[string]string{
		"task_id":    task.ID,
		"cluster_id": task.ClusterID,
	}))
}
