package events

import "sync"

// DefaultHistorySize is the number of events a History keeps by default
const DefaultHistorySize = 256

// Filter selects events from a History. Empty fields match everything.
type Filter struct {
	Type      EventType
	ClusterID string
}

// clusterKeys are the metadata keys that name a cluster
var clusterKeys = []string{"cluster_id", "orig_cluster_id", "seed_cluster_id"}

func (f Filter) matches(event *Event) bool {
	if f.Type != "" && event.Type != f.Type {
		return false
	}
	if f.ClusterID == "" {
		return true
	}
	for _, key := range clusterKeys {
		if event.Metadata[key] == f.ClusterID {
			return true
		}
	}
	return false
}

// History subscribes to a broker and keeps the most recent events
type History struct {
	broker *Broker
	sub    Subscriber
	limit  int
	done   chan struct{}

	mu     sync.RWMutex
	events []*Event
}

// NewHistory starts recording the events published on broker, keeping at
// most limit of them
func NewHistory(broker *Broker, limit int) *History {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	h := &History{
		broker: broker,
		sub:    broker.Subscribe(),
		limit:  limit,
		done:   make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *History) run() {
	defer close(h.done)
	for event := range h.sub {
		h.record(event)
	}
}

func (h *History) record(event *Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, event)
	if over := len(h.events) - h.limit; over > 0 {
		h.events = append([]*Event(nil), h.events[over:]...)
	}
}

// List returns the recorded events matching f, oldest first
func (h *History) List(f Filter) []*Event {
	out := []*Event{}
	if h == nil {
		return out
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, event := range h.events {
		if f.matches(event) {
			out = append(out, event)
		}
	}
	return out
}

// Stop unsubscribes from the broker and waits for pending events to be
// recorded. It is safe to call more than once.
func (h *History) Stop() {
	if h == nil {
		return
	}
	h.broker.Unsubscribe(h.sub)
	<-h.done
}
