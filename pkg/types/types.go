package types

import (
	"time"
)

// ConfigTree is an untyped JSON-like configuration tree (cluster attributes,
// network settings, VIP maps). Transformations interpret only the subtree
// they own.
type ConfigTree = map[string]interface{}

// Well-known network group names
const (
	NetworkAdmin      = "fuelweb_admin"
	NetworkPublic     = "public"
	NetworkManagement = "management"
	NetworkStorage    = "storage"
	NetworkPrivate    = "private"
)

// DefaultNodeGroupName is the name of the node group every cluster gets on creation
const DefaultNodeGroupName = "default"

// Release is a deployable product release. Clusters are created from the
// release attribute and network defaults.
type Release struct {
	ID                   string        `json:"id"`
	Name                 string        `json:"name"`
	Version              string        `json:"version"`
	OperatingSystem      string        `json:"operating_system"`
	EnvironmentVersion   string        `json:"environment_version"`
	State                ReleaseState  `json:"state"`
	Roles                []string      `json:"roles"`
	Attributes           ReleaseAttrs  `json:"attributes_metadata"`
	NetworksMetadata     []NetworkMeta `json:"networks_metadata"`
	NetworkRolesMetadata []NetworkRole `json:"network_roles_metadata"`
	CreatedAt            time.Time     `json:"created_at"`
}

// ReleaseState represents the availability of a release
type ReleaseState string

const (
	ReleaseStateAvailable   ReleaseState = "available"
	ReleaseStateUnavailable ReleaseState = "unavailable"
	ReleaseStateManaged     ReleaseState = "manageonly"
)

// ReleaseAttrs holds the default editable and generated attributes of a release
type ReleaseAttrs struct {
	Editable  ConfigTree `json:"editable"`
	Generated ConfigTree `json:"generated"`
}

// NetworkMeta describes a network every node group of a cluster gets
type NetworkMeta struct {
	Name      string     `json:"name"`
	CIDR      string     `json:"cidr"`
	Gateway   string     `json:"gateway,omitempty"`
	VLANStart int        `json:"vlan_start,omitempty"`
	IPRanges  [][]string `json:"ip_ranges,omitempty"`
	Meta      ConfigTree `json:"meta,omitempty"`
}

// NetworkRole maps a network role to a network and lists the VIPs it needs
type NetworkRole struct {
	ID             string           `json:"id"`
	DefaultMapping string           `json:"default_mapping"`
	VIPs           []NetworkRoleVIP `json:"vips,omitempty"`
}

// NetworkRoleVIP is a VIP requested by a network role
type NetworkRoleVIP struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace,omitempty"`
}

// Cluster is a deployed environment bound to a release
type Cluster struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	ReleaseID            string          `json:"release_id"`
	Mode                 string          `json:"mode"`
	NetProvider          string          `json:"net_provider"`
	NetSegmentationType  string          `json:"net_segment_type"`
	Status               ClusterStatus   `json:"status"`
	EditableAttrs        ConfigTree      `json:"editable_attrs,omitempty"`
	GeneratedAttrs       ConfigTree      `json:"generated_attrs,omitempty"`
	NetworkingParameters ConfigTree      `json:"networking_parameters,omitempty"`
	NetworkTemplate      ConfigTree      `json:"network_template,omitempty"`
	PendingChanges       []ClusterChange `json:"changes,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// ClusterStatus represents the deployment status of a cluster
type ClusterStatus string

const (
	ClusterStatusNew         ClusterStatus = "new"
	ClusterStatusDeployment  ClusterStatus = "deployment"
	ClusterStatusOperational ClusterStatus = "operational"
	ClusterStatusError       ClusterStatus = "error"
)

// Cluster change names
const (
	ChangeAttributes = "attributes"
	ChangeNetworks   = "networks"
	ChangeInterfaces = "interfaces"
	ChangeDisks      = "disks"
)

// ClusterChange is a pending change of a cluster, optionally bound to a node
type ClusterChange struct {
	Name   string `json:"name"`
	NodeID string `json:"node_id,omitempty"`
}

// ClusterCreateData holds the parameters a cluster was created with
type ClusterCreateData struct {
	Name                string `json:"name"`
	ReleaseID           string `json:"release_id"`
	Mode                string `json:"mode,omitempty"`
	NetProvider         string `json:"net_provider,omitempty"`
	NetSegmentationType string `json:"net_segment_type,omitempty"`
}

// CreateData returns the parameters needed to create a copy of the cluster
func (c *Cluster) CreateData() ClusterCreateData {
	return ClusterCreateData{
		Name:                c.Name,
		ReleaseID:           c.ReleaseID,
		Mode:                c.Mode,
		NetProvider:         c.NetProvider,
		NetSegmentationType: c.NetSegmentationType,
	}
}

// AddPendingChange records a change unless the same change is already pending
func (c *Cluster) AddPendingChange(name, nodeID string) {
	for _, ch := range c.PendingChanges {
		if ch.Name == name && ch.NodeID == nodeID {
			return
		}
	}
	c.PendingChanges = append(c.PendingChanges, ClusterChange{Name: name, NodeID: nodeID})
}

// NodeGroup groups nodes of a cluster that share network settings
type NodeGroup struct {
	ID        string `json:"id"`
	ClusterID string `json:"cluster_id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

// NetworkGroup is a network instance of a node group. The admin network
// is shared by all clusters and has an empty GroupID.
type NetworkGroup struct {
	ID        string     `json:"id" mapstructure:"id"`
	Name      string     `json:"name" mapstructure:"name"`
	GroupID   string     `json:"group_id" mapstructure:"group_id"`
	ReleaseID string     `json:"release" mapstructure:"release"`
	CIDR      string     `json:"cidr" mapstructure:"cidr"`
	Gateway   string     `json:"gateway" mapstructure:"gateway"`
	VLANStart int        `json:"vlan_start" mapstructure:"vlan_start"`
	IPRanges  [][]string `json:"ip_ranges" mapstructure:"ip_ranges"`
	Meta      ConfigTree `json:"meta" mapstructure:"meta"`
}

// Node is a physical server managed by a cluster
type Node struct {
	ID              string        `json:"id"`
	Hostname        string        `json:"hostname"`
	ClusterID       string        `json:"cluster_id"`
	GroupID         string        `json:"group_id"`
	Status          NodeStatus    `json:"status"`
	ErrorType       string        `json:"error_type,omitempty"`
	Roles           []string      `json:"roles"`
	PendingRoles    []string      `json:"pending_roles"`
	PendingAddition bool          `json:"pending_addition"`
	Volumes         []interface{} `json:"volumes,omitempty"`
	Interfaces      []NIC         `json:"interfaces,omitempty"`
	Bonds           []Bond        `json:"bonds,omitempty"`
	IPAddrs         []IPAddr      `json:"ip_addrs,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// NodeStatus represents the lifecycle state of a node
type NodeStatus string

const (
	NodeStatusDiscover     NodeStatus = "discover"
	NodeStatusProvisioning NodeStatus = "provisioning"
	NodeStatusProvisioned  NodeStatus = "provisioned"
	NodeStatusDeploying    NodeStatus = "deploying"
	NodeStatusReady        NodeStatus = "ready"
	NodeStatusError        NodeStatus = "error"
)

// Node error types
const (
	NodeErrorProvision = "provision"
	NodeErrorDeploy    = "deploy"
)

// NIC is a physical interface of a node
type NIC struct {
	Name             string   `json:"name"`
	MAC              string   `json:"mac"`
	AssignedNetworks []string `json:"assigned_networks"` // network group ids
}

// Bond is a bonded interface of a node
type Bond struct {
	Name             string   `json:"name"`
	Mode             string   `json:"mode"`
	Slaves           []string `json:"slaves"`
	AssignedNetworks []string `json:"assigned_networks"` // network group ids
}

// IPAddr is an address a node holds in a network group
type IPAddr struct {
	NetworkGroupID string `json:"network"`
	Address        string `json:"ip_addr"`
}

// VIP is a virtual IP owned by a network group
type VIP struct {
	NetworkGroupID string `json:"network"`
	Name           string `json:"vip_name"`
	Address        string `json:"ip_addr"`
	Namespace      string `json:"vip_namespace,omitempty"`
	UserDefined    bool   `json:"is_user_defined"`
}

// UpgradeRelation links an orig cluster to the seed cluster it is upgraded into
type UpgradeRelation struct {
	OrigClusterID string    `json:"orig_cluster_id"`
	SeedClusterID string    `json:"seed_cluster_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Task is an asynchronous operation on a cluster, such as provisioning
type Task struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	ClusterID  string     `json:"cluster_id"`
	NodeIDs    []string   `json:"node_ids"`
	Status     TaskStatus `json:"status"`
	Progress   int        `json:"progress"`
	Message    string     `json:"message,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt time.Time  `json:"finished_at,omitempty"`
}

// TaskStatus represents the state of a task
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusReady   TaskStatus = "ready"
	TaskStatusError   TaskStatus = "error"
)

// Task names
const (
	TaskProvision = "provision"
)
