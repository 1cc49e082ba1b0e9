package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// ScriptedToolCall is one tool call in a scripted assistant reply.
type ScriptedToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ScriptedReply is one assistant reply served by MockLLMServer.
type ScriptedReply struct {
	Content   string
	ToolCalls []ScriptedToolCall
	// Status, when non-zero, fails the call with this HTTP status.
	Status int
}

// RecordedRequest is a chat completion request received by the mock.
type RecordedRequest struct {
	Model    string            `json:"model"`
	Stream   bool              `json:"stream"`
	Messages []json.RawMessage `json:"messages"`
	Tools    []struct {
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	} `json:"tools"`
}

// ToolNames returns the names of the tools advertised in the request.
func (r RecordedRequest) ToolNames() []string {
	out := make([]string, len(r.Tools))
	for i, t := range r.Tools {
		out[i] = t.Function.Name
	}
	return out
}

// MockLLMServer is an OpenAI-compatible chat completions endpoint that
// replays scripted replies in order. Streamed requests are answered with
// server-sent events, splitting content and tool arguments across chunks.
type MockLLMServer struct {
	*httptest.Server

	mu       sync.Mutex
	replies  []ScriptedReply
	requests []RecordedRequest
}

// NewMockLLMServer starts the mock. It is closed when the test completes.
func NewMockLLMServer(t *testing.T) *MockLLMServer {
	t.Helper()
	m := &MockLLMServer{}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.Close)
	return m
}

// BaseURL is the API root to configure on the client.
func (m *MockLLMServer) BaseURL() string {
	return m.URL + "/v1"
}

// Script appends replies to the queue.
func (m *MockLLMServer) Script(replies ...ScriptedReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, replies...)
}

// Requests returns a snapshot of the received requests.
func (m *MockLLMServer) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockLLMServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/chat/completions" {
		http.NotFound(w, r)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req RecordedRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var reply ScriptedReply
	ok := len(m.replies) > 0
	if ok {
		reply = m.replies[0]
		m.replies = m.replies[1:]
	}
	m.mu.Unlock()

	if !ok {
		writeAPIError(w, http.StatusInternalServerError, "no scripted reply left")
		return
	}
	if reply.Status != 0 {
		writeAPIError(w, reply.Status, "scripted failure")
		return
	}
	if req.Stream {
		writeStream(w, req.Model, reply)
		return
	}
	writeCompletion(w, req.Model, reply)
}

func writeAPIError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": msg, "type": "server_error"},
	})
}

func wireToolCalls(calls []ScriptedToolCall) []map[string]any {
	out := make([]map[string]any, len(calls))
	for i, tc := range calls {
		out[i] = map[string]any{
			"index": i,
			"id":    tc.ID,
			"type":  "function",
			"function": map[string]any{
				"name":      tc.Name,
				"arguments": tc.Arguments,
			},
		}
	}
	return out
}

var mockUsage = map[string]any{"prompt_tokens": 11, "completion_tokens": 7, "total_tokens": 18}

func writeCompletion(w http.ResponseWriter, model string, reply ScriptedReply) {
	msg := map[string]any{"role": "assistant", "content": reply.Content}
	finish := "stop"
	if len(reply.ToolCalls) > 0 {
		msg["tool_calls"] = wireToolCalls(reply.ToolCalls)
		finish = "tool_calls"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-mock",
		"object":  "chat.completion",
		"created": 0,
		"model":   model,
		"choices": []map[string]any{{"index": 0, "message": msg, "finish_reason": finish}},
		"usage":   mockUsage,
	})
}

func writeStream(w http.ResponseWriter, model string, reply ScriptedReply) {
	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)

	send := func(delta map[string]any, usage map[string]any) {
		chunk := map[string]any{
			"id":      "chatcmpl-mock",
			"object":  "chat.completion.chunk",
			"created": 0,
			"model":   model,
			"choices": []map[string]any{},
		}
		if delta != nil {
			chunk["choices"] = []map[string]any{{"index": 0, "delta": delta}}
		}
		if usage != nil {
			chunk["usage"] = usage
		}
		data, _ := json.Marshal(chunk)
		_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}

	send(map[string]any{"role": "assistant"}, nil)
	half := len(reply.Content) / 2
	for _, part := range []string{reply.Content[:half], reply.Content[half:]} {
		if part != "" {
			send(map[string]any{"content": part}, nil)
		}
	}
	for i, tc := range reply.ToolCalls {
		cut := len(tc.Arguments) / 2
		send(map[string]any{"tool_calls": []map[string]any{{
			"index": i, "id": tc.ID, "type": "function",
			"function": map[string]any{"name": tc.Name, "arguments": tc.Arguments[:cut]},
		}}}, nil)
		send(map[string]any{"tool_calls": []map[string]any{{
			"index":    i,
			"function": map[string]any{"arguments": tc.Arguments[cut:]},
		}}}, nil)
	}
	send(nil, mockUsage)
	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}
