/*
Package manager owns the object store of the upgrade service.

The Manager is a facade over storage.Store that creates records with the
defaults the rest of the service relies on:

  - CreateCluster copies the editable and generated attributes of the
    release, creates the shared admin network on first use and a default
    node group with one network group per release network.
  - CreateNodeGroup adds a named node group with its own network groups.
  - DeleteCluster runs the registered delete hooks, releases the nodes of
    the cluster and removes its node groups, network groups and VIPs.

Each change publishes an event on the broker so that subscribers (the CLI
watch loop, tests) can follow what happened:

	mgr, err := manager.NewManager(&manager.Config{DataDir: dataDir})
	if err != nil {
		return err
	}
	defer mgr.Shutdown()

	cluster, err := mgr.CreateCluster(types.ClusterCreateData{
		Name:      "prod",
		ReleaseID: release.ID,
	})

NetworkManager hands out a network.Manager bound to one cluster.
*/
package manager
