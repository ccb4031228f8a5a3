/*
Package storage persists upgrade state in BoltDB.

BoltStore keeps every record kind in its own bucket of
<dataDir>/clusterupgrade.db, serialized as JSON:

	releases         release id
	clusters         cluster id
	node_groups      node group id
	network_groups   network group id
	nodes            node id
	vips             <network group id>/<vip name>
	relations        orig cluster id
	tasks            task id

Lookups of a missing record return an error wrapping ErrNotFound:

	cluster, err := store.GetCluster(id)
	if errors.Is(err, storage.ErrNotFound) {
		...
	}

# Upgrade relations

A cluster takes part in at most one upgrade relation, either as the orig
or as the seed cluster. CreateRelation checks and writes in one
transaction and fails with ErrDuplicateRelation when the orig cluster is
already related. GetRelation and DeleteRelation accept either side of a
relation.

Updates are upserts. Multi-record operations such as cascading deletes are
performed by the callers and are not atomic.
*/
package storage
