/*
Package tasks runs provisioning of nodes as background tasks.

SubmitProvisioning stores a "provision" task, moves the nodes to the
provisioning status and hands them to a Provisioner in a goroutine. The
caller gets the pending task back immediately. When the provisioner
returns, the nodes become provisioned (or error with error_type
"provision") and the task becomes ready (or error). Task progress is read
back from the store by id.

The task outlives the request that submitted it: cancelling the submitting
context does not cancel provisioning.
*/
package tasks
