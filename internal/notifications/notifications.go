// Package notifications fans pipeline progress events out to subscribers.
// The daemon's event stream endpoint and the CLI both consume the same hub.
package notifications

import (
	"sync"
	"time"
)

// Event types, in the order a run emits them.
const (
	EventRunStarted  = "run_started"
	EventStage       = "stage_changed"
	EventSource      = "source_result"
	EventRunComplete = "run_complete"
	EventRunFailed   = "run_failed"
)

// Event is one progress update from a pipeline run.
type Event struct {
	Seq       int       `json:"seq"`
	RunID     string    `json:"run_id"`
	Type      string    `json:"type"`
	Stage     string    `json:"stage,omitempty"`
	Source    string    `json:"source,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Terminal reports whether the event ends its run's stream.
func (e Event) Terminal() bool {
	return e.Type == EventRunComplete || e.Type == EventRunFailed
}

// Publisher is the write side of the hub.
type Publisher interface {
	Publish(event Event)
}

const (
	subscriberBuffer = 64
	maxRunHistory    = 32
)

type subscriber struct {
	runID string
	ch    chan Event
}

// Hub is an in-process event broker. Events for a run are delivered to
// subscribers in publish order, and a bounded per-run backlog lets late
// subscribers replay a run from the start.
type Hub struct {
	mu      sync.Mutex
	seq     int
	subs    map[int]*subscriber
	nextSub int
	backlog map[string][]Event
	order   []string
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs:    make(map[int]*subscriber),
		backlog: make(map[string][]Event),
	}
}

// Publish stamps the event with a sequence number and timestamp, appends it
// to the run's backlog, and delivers it to matching subscribers. Slow
// subscribers lose events rather than block the pipeline.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	event.Seq = h.seq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if _, seen := h.backlog[event.RunID]; !seen {
		h.order = append(h.order, event.RunID)
		if len(h.order) > maxRunHistory {
			evicted := h.order[0]
			h.order = h.order[1:]
			delete(h.backlog, evicted)
		}
	}
	h.backlog[event.RunID] = append(h.backlog[event.RunID], event)

	for _, sub := range h.subs {
		if sub.runID != "" && sub.runID != event.RunID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
}

// Subscribe registers a listener. An empty runID receives events for all
// runs. The returned replay holds the backlog of the requested run so a
// subscriber that arrives mid-run still sees the full ordered stream. The
// cancel function must be called to release the subscription.
func (h *Hub) Subscribe(runID string) (replay []Event, ch <-chan Event, cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if runID != "" {
		replay = append(replay, h.backlog[runID]...)
	}

	h.nextSub++
	id := h.nextSub
	sub := &subscriber{runID: runID, ch: make(chan Event, subscriberBuffer)}
	h.subs[id] = sub

	return replay, sub.ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if existing, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(existing.ch)
		}
	}
}

// Backlog returns the recorded events of a run in publish order.
func (h *Hub) Backlog(runID string) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Event(nil), h.backlog[runID]...)
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
