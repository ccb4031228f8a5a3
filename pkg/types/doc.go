/*
Package types defines the core data structures of the cluster upgrade service.

These types describe the environment being upgraded: releases, clusters, node
groups, networks and nodes, plus the upgrade relation that links an original
cluster to its seed and the tasks that track node provisioning. They are
stored as JSON by pkg/storage and served as JSON by pkg/api.

# Core Types

Releases:
  - Release: a deployable version with default attributes and network metadata
  - ReleaseState: available, unavailable or manageonly
  - NetworkMeta, NetworkRole: per network defaults and the VIPs roles need

Clusters:
  - Cluster: a deployed environment with editable and generated attributes
  - ClusterStatus: new, deployment, operational, error
  - ClusterChange: pending changes recorded against a cluster or node
  - ClusterCreateData: input of cluster creation

Topology:
  - NodeGroup: a rack of nodes; every cluster has one default group
  - NetworkGroup: a network instance of a node group (the admin network is
    global and has no group)
  - Node, NIC, Bond, IPAddr: hardware and addressing of a node
  - VIP: a virtual IP allocated on a network group

Upgrade:
  - UpgradeRelation: the orig/seed pair of an upgrade in progress
  - Task: an asynchronous provisioning job and its TaskStatus

Attribute trees (editable, generated, networking parameters) are ConfigTree
values: plain map[string]interface{} trees that the transformation pipelines
rewrite in place.

# Node Lifecycle

	discover -> provisioning -> provisioned -> deploying -> ready
	                 |                              |
	                 +----------> error <-----------+

A node reassigned to a seed cluster with reprovisioning goes back to
provisioning and records NodeErrorProvision when the provisioning task fails.

# Usage

	release := &types.Release{
		Name:               "Mitaka on Ubuntu 14.04",
		EnvironmentVersion: "9.0",
		NetworksMetadata: []types.NetworkMeta{
			{Name: types.NetworkPublic, CIDR: "172.16.0.0/24", Gateway: "172.16.0.1"},
		},
	}

	cluster, err := objects.CreateCluster(types.ClusterCreateData{
		Name:      "prod",
		ReleaseID: release.ID,
	})

# Thread Safety

Types carry no locks. Callers own the values they load from storage and
write them back through the manager.
*/
package types
