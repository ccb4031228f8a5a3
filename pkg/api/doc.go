/*
Package api implements the REST API of the cluster upgrade service.

The server is a gorilla/mux router in front of the object manager and the
upgrade helper. Every endpoint speaks JSON; failures are returned as
{"message": "..."} with a status derived from the error:

	upgrade.ValidationError         its Status (400, 404 or 409)
	upgrade.DuplicateRelationError  400
	upgrade.UnmatchedNetworkGroupError 400
	storage.ErrNotFound             404
	anything else                   500

# Endpoints

Upgrade operations, all under /api/v1/clusters/{cluster_id}/upgrade:

	POST clone                        clone the cluster, returns the seed cluster
	POST assign                       move a node to the seed cluster, 202 with
	                                  the provisioning task when reprovisioning
	POST vips                         copy VIPs from the orig cluster to the seed
	POST clone_release/{release_id}   create an upgrade release
	GET  info                         upgrade relation of the cluster

Objects used by the CLI: /api/v1/releases, /api/v1/clusters (with
node_groups and network_configuration), /api/v1/nodes and
/api/v1/tasks/{task_id}. GET /api/v1/events returns the recent events
recorded by the manager, filtered by the type and cluster_id query
parameters.

Service endpoints: /health, /ready, /livez and /metrics. /health and /ready
probe storage and the transformation registries on every call.

# Middleware

Requests under /api/v1 are logged and counted per route name in
clusterupgrade_api_requests_total. A server created with ReadOnly rejects
everything but GET with 403. A known path requested with the wrong method is
answered with 405. Request bodies are capped at MaxBodyBytes.

# Usage

	server := api.NewServer(api.Config{
		Objects: objects,
		Helper:  upgrade.NewHelper(upgrade.Config{Objects: objects}),
	})
	go func() {
		if err := server.Start(":8090"); err != nil {
			logger.Fatal().Err(err).Msg("API server failed")
		}
	}()
	defer server.Stop(context.Background())
*/
package api
