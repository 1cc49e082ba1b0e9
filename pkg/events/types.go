// Package events provides best-effort, real-time delivery of agent progress
// logs to WebSocket clients.
//
// Two event kinds are published:
//
//	log         a complete message (request start, full assistant response,
//	            tool call, tool result)
//	stream_log  one content delta of a streamed assistant response; the
//	            first delta of a turn carries is_first=true so clients can
//	            open a new bubble and append the rest
//
// Delivery never blocks the publisher. Events that cannot be queued are
// dropped and counted.
package events

import "time"

// Kind discriminates complete log messages from streamed deltas.
type Kind string

const (
	KindLog       Kind = "log"
	KindStreamLog Kind = "stream_log"
)

// Source identifies who produced a log line.
type Source string

const (
	SourceSystem Source = "system"
	SourceAI     Source = "ai"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceSystem || s == SourceAI
}

// TimestampLayout is the wire format of LogEvent.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// LogEvent is the payload delivered to clients.
type LogEvent struct {
	ID        uint64 `json:"id"`
	Kind      Kind   `json:"event"`
	Type      Source `json:"type"`
	Message   string `json:"message"`
	Summary   string `json:"summary"`
	Timestamp string `json:"timestamp"`
	IsFirst   bool   `json:"is_first,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

func (e *LogEvent) stamp(now time.Time) {
	if e.Timestamp == "" {
		e.Timestamp = now.Format(TimestampLayout)
	}
	if e.Kind == "" {
		e.Kind = KindLog
	}
}

// GlobalChannel receives every event. New connections are subscribed to it.
const GlobalChannel = "logs"

// SessionChannel returns the channel name for a specific session's events.
// Format: "session:{session_id}"
func SessionChannel(sessionID string) string {
	return "session:" + sessionID
}

// ClientMessage is the JSON structure for client → server WebSocket messages.
type ClientMessage struct {
	Action      string  `json:"action"`                  // "subscribe", "unsubscribe", "catchup", "ping"
	Channel     string  `json:"channel,omitempty"`       // Channel name (e.g., "session:abc-123")
	LastEventID *uint64 `json:"last_event_id,omitempty"` // For catchup
}
