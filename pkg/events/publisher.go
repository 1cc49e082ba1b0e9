package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Publisher accepts events for asynchronous delivery. Implementations must
// not block and must be safe for concurrent use.
type Publisher interface {
	Publish(evt LogEvent)
}

// Log publishes a complete log line. A nil publisher is a no-op.
func Log(p Publisher, sessionID string, src Source, message, summary string) {
	if p == nil {
		return
	}
	p.Publish(LogEvent{
		Kind:      KindLog,
		Type:      src,
		Message:   message,
		Summary:   summary,
		SessionID: sessionID,
	})
}

// StreamLog publishes one streamed content delta. A nil publisher is a no-op.
func StreamLog(p Publisher, sessionID string, src Source, delta, summary string, isFirst bool) {
	if p == nil {
		return
	}
	p.Publish(LogEvent{
		Kind:      KindStreamLog,
		Type:      src,
		Message:   delta,
		Summary:   summary,
		IsFirst:   isFirst,
		SessionID: sessionID,
	})
}

// Sink receives events from the hub's delivery goroutine.
type Sink interface {
	Deliver(evt LogEvent)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(evt LogEvent)

// Deliver calls f(evt).
func (f SinkFunc) Deliver(evt LogEvent) { f(evt) }

// Hub is the process-wide Publisher. Publish enqueues into a bounded
// buffer and returns immediately; a single goroutine started by Start
// hands events to the registered sinks in publish order. When the buffer
// is full the event is dropped.
type Hub struct {
	queue chan LogEvent
	done  chan struct{}

	sinksMu sync.RWMutex
	sinks   []Sink

	history *history

	nextID  uint64 // owned by the delivery goroutine
	dropped atomic.Uint64
	started atomic.Bool
	stopped chan struct{}
	once    sync.Once

	now func() time.Time
}

// NewHub creates a hub with the given queue capacity and catch-up history
// size. Non-positive values fall back to 256 and 0 (no history).
func NewHub(bufferSize, historySize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Hub{
		queue:   make(chan LogEvent, bufferSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		history: newHistory(historySize),
		now:     time.Now,
	}
}

// AddSink registers a sink. Sinks added after Start only see later events.
func (h *Hub) AddSink(s Sink) {
	h.sinksMu.Lock()
	defer h.sinksMu.Unlock()
	h.sinks = append(h.sinks, s)
}

// Publish timestamps the event and enqueues it. The ID is assigned on
// delivery, so IDs follow delivery order even with concurrent publishers.
func (h *Hub) Publish(evt LogEvent) {
	evt.stamp(h.now())

	select {
	case <-h.done:
		h.dropped.Add(1)
		return
	default:
	}

	select {
	case h.queue <- evt:
	default:
		if n := h.dropped.Add(1); n == 1 || n%100 == 0 {
			slog.Warn("Event queue full, dropping log events", "dropped_total", n)
		}
	}
}

// Dropped returns the number of events that could not be queued.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Start launches the delivery goroutine. It stops when ctx is cancelled or
// Stop is called, after delivering what is already queued.
func (h *Hub) Start(ctx context.Context) {
	if !h.started.CompareAndSwap(false, true) {
		return
	}
	go h.run(ctx)
}

// Stop signals the delivery goroutine to drain and exit, and waits for it.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
	if h.started.Load() {
		<-h.stopped
	}
}

// Since returns up to limit events on channel with an ID greater than
// sinceID, oldest first.
func (h *Hub) Since(channel string, sinceID uint64, limit int) []LogEvent {
	return h.history.since(channel, sinceID, limit)
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			h.drain()
			return
		case <-h.done:
			h.drain()
			return
		case evt := <-h.queue:
			h.deliver(evt)
		}
	}
}

func (h *Hub) drain() {
	for {
		select {
		case evt := <-h.queue:
			h.deliver(evt)
		default:
			return
		}
	}
}

func (h *Hub) deliver(evt LogEvent) {
	h.nextID++
	evt.ID = h.nextID
	h.history.add(evt)

	h.sinksMu.RLock()
	sinks := h.sinks
	h.sinksMu.RUnlock()

	for _, s := range sinks {
		s.Deliver(evt)
	}
}

// SlogSink writes events to the process log at debug level.
func SlogSink() Sink {
	return SinkFunc(func(evt LogEvent) {
		if evt.Kind == KindStreamLog {
			return
		}
		slog.Debug("Agent log",
			"session_id", evt.SessionID,
			"type", evt.Type,
			"summary", evt.Summary,
			"message_len", len(evt.Message))
	})
}

// history is a fixed-size ring of recently delivered events.
type history struct {
	mu     sync.RWMutex
	events []LogEvent
	next   int
	full   bool
}

func newHistory(size int) *history {
	if size < 0 {
		size = 0
	}
	return &history{events: make([]LogEvent, size)}
}

func (r *history) add(evt LogEvent) {
	if len(r.events) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[r.next] = evt
	r.next = (r.next + 1) % len(r.events)
	if r.next == 0 {
		r.full = true
	}
}

func (r *history) since(channel string, sinceID uint64, limit int) []LogEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ordered []LogEvent
	if r.full {
		ordered = append(ordered, r.events[r.next:]...)
	}
	ordered = append(ordered, r.events[:r.next]...)

	var out []LogEvent
	for _, evt := range ordered {
		if evt.ID <= sinceID || !onChannel(evt, channel) {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func onChannel(evt LogEvent, channel string) bool {
	if channel == GlobalChannel {
		return true
	}
	return evt.SessionID != "" && channel == SessionChannel(evt.SessionID)
}
