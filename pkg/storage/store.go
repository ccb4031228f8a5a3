package storage

import (
	"errors"

	"github.com/cuemby/clusterupgrade/pkg/types"
)

var (
	// ErrNotFound is returned (wrapped with the record kind and id) when a
	// record does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicateRelation is returned when a cluster already takes part in
	// an upgrade relation
	ErrDuplicateRelation = errors.New("cluster already takes part in an upgrade relation")
)

// Store defines the interface for upgrade state storage
type Store interface {
	// Releases
	CreateRelease(release *types.Release) error
	GetRelease(id string) (*types.Release, error)
	ListReleases() ([]*types.Release, error)
	UpdateRelease(release *types.Release) error

	// Clusters
	CreateCluster(cluster *types.Cluster) error
	GetCluster(id string) (*types.Cluster, error)
	GetClusterByName(name string) (*types.Cluster, error)
	ListClusters() ([]*types.Cluster, error)
	UpdateCluster(cluster *types.Cluster) error
	DeleteCluster(id string) error

	// Node groups
	CreateNodeGroup(group *types.NodeGroup) error
	GetNodeGroup(id string) (*types.NodeGroup, error)
	ListNodeGroupsByCluster(clusterID string) ([]*types.NodeGroup, error)
	DeleteNodeGroup(id string) error

	// Network groups
	CreateNetworkGroup(group *types.NetworkGroup) error
	GetNetworkGroup(id string) (*types.NetworkGroup, error)
	ListNetworkGroups() ([]*types.NetworkGroup, error)
	ListNetworkGroupsByNodeGroup(groupID string) ([]*types.NetworkGroup, error)
	UpdateNetworkGroup(group *types.NetworkGroup) error
	DeleteNetworkGroup(id string) error

	// Nodes
	CreateNode(node *types.Node) error
	GetNode(id string) (*types.Node, error)
	ListNodes() ([]*types.Node, error)
	ListNodesByCluster(clusterID string) ([]*types.Node, error)
	UpdateNode(node *types.Node) error
	DeleteNode(id string) error

	// VIPs, keyed by network group id and name
	PutVIP(vip *types.VIP) error
	GetVIP(networkGroupID, name string) (*types.VIP, error)
	ListVIPsByNetworkGroup(networkGroupID string) ([]*types.VIP, error)
	DeleteVIP(networkGroupID, name string) error

	// Upgrade relations
	CreateRelation(relation *types.UpgradeRelation) error
	GetRelation(clusterID string) (*types.UpgradeRelation, error)
	ListRelations() ([]*types.UpgradeRelation, error)
	DeleteRelation(clusterID string) error

	// Tasks
	CreateTask(task *types.Task) error
	GetTask(id string) (*types.Task, error)
	ListTasksByCluster(clusterID string) ([]*types.Task, error)
	UpdateTask(task *types.Task) error

	// Utility
	Close() error
}
