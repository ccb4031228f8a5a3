/*
Package client is a Go client for the cluster upgrade REST API.

It wraps a resty client and mirrors the endpoints of pkg/api one method per
call. Failed calls return an error wrapping *APIError, which carries the
HTTP status and the server message:

	c := client.NewClient(client.DefaultConfig("http://127.0.0.1:8090"))

	seed, err := c.CloneCluster(ctx, origID, upgrade.CloneRequest{
		Name:      "prod-upgrade",
		ReleaseID: releaseID,
	})
	if client.IsNotFound(err) {
		// orig cluster or release does not exist
	}

	task, err := c.AssignNode(ctx, seed.ID, upgrade.AssignRequest{NodeID: nodeID})
	if err == nil && task != nil {
		task, err = c.WaitTask(ctx, task.ID, time.Second)
	}

Retries are off by default since the upgrade calls are not idempotent;
set Config.RetryCount to retry on transport errors.
*/
package client
