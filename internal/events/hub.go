// Package events fans audit status updates out to subscribers. Delivery is
// fire-and-forget: a subscriber that stops draining its channel loses
// events instead of blocking the pipeline.
package events

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jonathan/site-auditor/internal/types"
)

const subscriberBuffer = 10

// Hub routes status events to the subscribers of each job.
type Hub struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]map[chan types.StatusEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{jobs: make(map[uuid.UUID]map[chan types.StatusEvent]struct{})}
}

// Subscribe registers a listener for one job's events.
func (h *Hub) Subscribe(jobID uuid.UUID) chan types.StatusEvent {
	ch := make(chan types.StatusEvent, subscriberBuffer)
	h.mu.Lock()
	subs, ok := h.jobs[jobID]
	if !ok {
		subs = make(map[chan types.StatusEvent]struct{})
		h.jobs[jobID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes the listener and closes its channel. Unsubscribing a
// channel twice is a no-op.
func (h *Hub) Unsubscribe(jobID uuid.UUID, ch chan types.StatusEvent) {
	h.mu.Lock()
	if subs, ok := h.jobs[jobID]; ok {
		if _, exists := subs[ch]; exists {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(h.jobs, jobID)
			}
		}
	}
	h.mu.Unlock()
}

// Publish sends the event to every subscriber of the job.
func (h *Hub) Publish(jobID uuid.UUID, evt types.StatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.jobs[jobID] {
		select {
		case ch <- evt:
		default:
			// drop if slow
		}
	}
}

// SubscriberCount reports how many listeners a job currently has.
func (h *Hub) SubscriberCount(jobID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.jobs[jobID])
}
