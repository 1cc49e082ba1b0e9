package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// WSEvent represents a received WebSocket message.
type WSEvent struct {
	Type     string                 // "type" field: log source or control message type
	Event    string                 // "event" field: log or stream_log
	Raw      json.RawMessage        // Original JSON
	Parsed   map[string]interface{} // Parsed for assertions
	Received time.Time              // When we received it
}

// Summary returns the summary of a log event.
func (e WSEvent) Summary() string {
	s, _ := e.Parsed["summary"].(string)
	return s
}

// Message returns the message of a log event.
func (e WSEvent) Message() string {
	s, _ := e.Parsed["message"].(string)
	return s
}

// WSClient connects to the live log WebSocket endpoint and collects events.
type WSClient struct {
	conn   *websocket.Conn
	events []WSEvent
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	doneCh chan struct{}
}

// WSConnect establishes a WebSocket connection to the test server and starts
// collecting events in a background goroutine.
func WSConnect(ctx context.Context, wsURL string) (*WSClient, error) {
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{})
	if err != nil {
		return nil, fmt.Errorf("WebSocket dial: %w", err)
	}

	clientCtx, cancel := context.WithCancel(ctx)
	c := &WSClient{
		conn:   conn,
		ctx:    clientCtx,
		cancel: cancel,
		doneCh: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Subscribe sends a subscribe action for the given channel.
func (c *WSClient) Subscribe(channel string) error {
	data, _ := json.Marshal(map[string]string{
		"action":  "subscribe",
		"channel": channel,
	})
	return c.conn.Write(c.ctx, websocket.MessageText, data)
}

// Ping sends a ping action.
func (c *WSClient) Ping() error {
	return c.conn.Write(c.ctx, websocket.MessageText, []byte(`{"action":"ping"}`))
}

// WaitForEvent waits until an event matching the predicate is received, or timeout.
func (c *WSClient) WaitForEvent(predicate func(WSEvent) bool, timeout time.Duration) (*WSEvent, error) {
	deadline := time.After(timeout)
	tick := time.NewTicker(25 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-deadline:
			return nil, fmt.Errorf("timeout waiting for event (collected %d events)", len(c.Events()))
		case <-tick.C:
			for _, evt := range c.Events() {
				if predicate(evt) {
					return &evt, nil
				}
			}
		}
	}
}

// WaitForSummary waits for a log event with the given summary.
func (c *WSClient) WaitForSummary(summary string, timeout time.Duration) (*WSEvent, error) {
	return c.WaitForEvent(func(e WSEvent) bool {
		return e.Event != "" && e.Summary() == summary
	}, timeout)
}

// Events returns a snapshot of all collected events.
func (c *WSClient) Events() []WSEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]WSEvent, len(c.events))
	copy(result, c.events)
	return result
}

// EventsByKind returns log events of the given kind (log or stream_log).
func (c *WSClient) EventsByKind(kind string) []WSEvent {
	var result []WSEvent
	for _, e := range c.Events() {
		if e.Event == kind {
			result = append(result, e)
		}
	}
	return result
}

// Close closes the WebSocket connection and waits for the read loop to exit.
func (c *WSClient) Close() error {
	c.cancel()
	_ = c.conn.CloseNow()
	<-c.doneCh
	return nil
}

func (c *WSClient) readLoop() {
	defer close(c.doneCh)
	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			return // Connection closed or context cancelled.
		}

		var parsed map[string]interface{}
		if err := json.Unmarshal(data, &parsed); err != nil {
			continue
		}

		evt := WSEvent{
			Raw:      json.RawMessage(data),
			Parsed:   parsed,
			Received: time.Now(),
		}
		evt.Type, _ = parsed["type"].(string)
		evt.Event, _ = parsed["event"].(string)

		c.mu.Lock()
		c.events = append(c.events, evt)
		c.mu.Unlock()
	}
}
