package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Hub is an in-process per-job pub/sub. Slow subscribers lose events
// instead of stalling the publisher.
type Hub struct {
	mu      sync.Mutex
	subs    map[uuid.UUID]map[chan Event]struct{}
	buffer  int
	logger  *slog.Logger
	dropped atomic.Int64
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: make(map[uuid.UUID]map[chan Event]struct{}), buffer: buffer, logger: logger}
}

// Subscribe returns a channel of events for jobID and a func that ends the
// subscription. The channel is closed after a terminal event or on cancel.
func (h *Hub) Subscribe(jobID uuid.UUID) (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	set, ok := h.subs[jobID]
	if !ok {
		set = make(map[chan Event]struct{})
		h.subs[jobID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subs[jobID]; ok {
				if _, live := set[ch]; live {
					delete(set, ch)
					close(ch)
				}
				if len(set) == 0 {
					delete(h.subs, jobID)
				}
			}
		})
	}
}

func (h *Hub) Publish(_ context.Context, e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[e.JobID]
	for ch := range set {
		select {
		case ch <- e:
		default:
			h.dropped.Add(1)
			h.logger.Debug("events.hub.dropped", "job_id", e.JobID, "kind", e.Kind)
		}
		if e.Terminal() {
			close(ch)
		}
	}
	if e.Terminal() {
		delete(h.subs, e.JobID)
	}
}

// Subscribers returns the number of live subscriptions for jobID.
func (h *Hub) Subscribers(jobID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[jobID])
}

func (h *Hub) Dropped() int64 { return h.dropped.Load() }
