/*
Package upgrade moves a cluster to a newer release by cloning it into a seed
cluster and then moving its nodes and VIPs over.

# Cloning

CloneCluster runs a fixed sequence of steps:

 1. create the seed cluster with the creation parameters of the orig
    cluster and the requested name and release
 2. carry the orig attributes forward with the cluster transformations
    and merge them onto the seed defaults (MergeAttributes, DictMerge)
 3. create the non-default node groups of orig in the seed
 4. copy the network settings of orig onto the seed networks (MergeNets)
 5. record the upgrade relation; a cluster takes part in at most one
 6. switch the seed to image based provisioning

The sequence is not transactional. A failing step leaves the seed cluster
in place; the error is logged with the seed cluster id and the operator
deletes the seed before retrying. Deleting either cluster of a relation
removes the relation.

# Moving nodes and VIPs

Network groups of the two clusters are matched by network name and node
group name (NetworkGroupIDMapping). ReassignNode validates the request,
resolves the node roles (GetNodeRoles), moves the node with
AssignNodeToCluster and submits a provisioning task unless reprovisioning
is disabled. CopyVIPs moves the public and management VIPs, renamed by the
VIP transformations, and lets the seed allocate the VIPs it still lacks.

Transformations are looked up per domain on first use, with the
configured settings replacing the default transformer lists per version:

	helper := upgrade.NewHelper(upgrade.Config{
		Objects:  mgr,
		Settings: cfg.Transformations,
	})
	seed, err := helper.CloneCluster(orig, upgrade.CloneRequest{
		Name:      "prod-9.0",
		ReleaseID: release.ID,
	})
*/
package upgrade
