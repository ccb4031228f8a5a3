/*
Package events distributes upgrade events to in-process subscribers.

The Broker fans out published events to every subscriber channel. Both the
broker queue and the subscriber channels are buffered; when a buffer is
full the event is dropped for that consumer instead of blocking the
publisher, so upgrade operations never wait on slow consumers.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(events.NewEvent(events.EventClusterCloned, "cloned", map[string]string{
		"orig_cluster_id": origID,
		"seed_cluster_id": seedID,
	}))

Event types cover cluster creation, cloning and deletion, node
reassignment, VIP copies, upgrade releases and provisioning tasks.
*/
package events
