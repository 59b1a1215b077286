package notify

import (
	"sync"
)

// EventKind names the broadcast event types.
type EventKind string

const (
	EventJobStatusChanged EventKind = "job-status-changed"
	EventJobDeleted       EventKind = "job-deleted"
)

// Event is the observational payload broadcast to connected observers. It is
// never used for control decisions inside the pipeline.
type Event struct {
	Kind      EventKind `json:"event"`
	JobID     string    `json:"id"`
	Status    string    `json:"status,omitempty"`
	RemoteURL string    `json:"remoteUrl,omitempty"`
}

// subscriberBuffer bounds each subscriber channel; a full channel drops the
// event rather than blocking the publisher.
const subscriberBuffer = 16

// Hub fans job events out to subscribers. Delivery is fire-and-forget: no
// ordering or delivery guarantee, and absent observers silently miss events.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe registers an observer. The returned cancel function must be called
// to release the subscription; it closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber without blocking.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// StatusChanged publishes a job-status-changed event.
func (h *Hub) StatusChanged(jobID, status, remoteURL string) {
	h.Publish(Event{Kind: EventJobStatusChanged, JobID: jobID, Status: status, RemoteURL: remoteURL})
}

// Deleted publishes a job-deleted event.
func (h *Hub) Deleted(jobID string) {
	h.Publish(Event{Kind: EventJobDeleted, JobID: jobID})
}
