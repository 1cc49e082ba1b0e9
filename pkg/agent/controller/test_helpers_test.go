package controller

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yuy4o/ChatBI/pkg/agent"
	"github.com/yuy4o/ChatBI/pkg/events"
	"github.com/yuy4o/ChatBI/pkg/metrics"
	"github.com/yuy4o/ChatBI/pkg/tools"
)

type mockResponse struct {
	chunks []agent.Chunk
	err    error
	// block makes the call wait for context cancellation.
	block bool
}

// mockCompletionClient is a test mock for agent.CompletionClient. Complete
// returns the message the chunks reconstruct to, so the same scripted
// responses work in both modes.
// NOTE: Not safe for concurrent use; controllers call it sequentially.
type mockCompletionClient struct {
	responses []mockResponse
	requests  []*agent.CompletionRequest

	// onCall is called before processing the response, allowing tests to
	// perform side-effects (e.g. cancel a context) at call time.
	onCall func(callIndex int)
}

func (m *mockCompletionClient) next(req *agent.CompletionRequest) (mockResponse, error) {
	idx := len(m.requests)
	m.requests = append(m.requests, req)
	if m.onCall != nil {
		m.onCall(idx)
	}
	if idx >= len(m.responses) {
		return mockResponse{}, fmt.Errorf("no more mock responses (call %d)", idx+1)
	}
	return m.responses[idx], nil
}

func (m *mockCompletionClient) Stream(ctx context.Context, req *agent.CompletionRequest) (<-chan agent.Chunk, error) {
	r, err := m.next(req)
	if err != nil {
		return nil, err
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.block {
		return make(chan agent.Chunk), nil
	}
	ch := make(chan agent.Chunk, len(r.chunks))
	for _, c := range r.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (m *mockCompletionClient) Complete(ctx context.Context, req *agent.CompletionRequest) (*agent.Completion, error) {
	r, err := m.next(req)
	if err != nil {
		return nil, err
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	rec := agent.NewReconstructor()
	out := &agent.Completion{}
	for _, c := range r.chunks {
		switch c := c.(type) {
		case *agent.DeltaFragment:
			rec.Add(c)
		case *agent.UsageChunk:
			out.Usage = &agent.TokenUsage{PromptTokens: c.PromptTokens, CompletionTokens: c.CompletionTokens, TotalTokens: c.TotalTokens}
		}
	}
	out.Message = rec.Message()
	return out, nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.LogEvent
}

func (p *recordingPublisher) Publish(evt events.LogEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) snapshot() []events.LogEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.LogEvent(nil), p.events...)
}

func textResponse(text string) mockResponse {
	return mockResponse{chunks: []agent.Chunk{
		&agent.DeltaFragment{Role: agent.RoleAssistant},
		agent.ContentFragment(text),
		&agent.UsageChunk{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}}
}

func toolCallResponse(calls ...agent.ToolCall) mockResponse {
	f := &agent.DeltaFragment{Role: agent.RoleAssistant}
	for i, c := range calls {
		f.ToolCalls = append(f.ToolCalls, agent.ToolCallDelta{Index: i, ID: c.ID, Name: c.Name, Arguments: c.Arguments})
	}
	return mockResponse{chunks: []agent.Chunk{f}}
}

func newTestExecCtx(client agent.CompletionClient, pub events.Publisher) *agent.ExecutionContext {
	return &agent.ExecutionContext{
		AgentName: "SQLAgent",
		Config:    &agent.ResolvedAgentConfig{MaxTurns: 10},
		Client:    client,
		Publisher: pub,
		Metrics:   metrics.New(),
	}
}

func newToolset(t *testing.T, defs ...*tools.Definition) *tools.Toolset {
	t.Helper()
	reg := tools.NewRegistry()
	for _, d := range defs {
		require.NoError(t, reg.Register(d))
	}
	reg.Freeze()
	ts, err := reg.Toolset()
	require.NoError(t, err)
	return ts
}

func echoTool(name string, calls *[]string) *tools.Definition {
	return &tools.Definition{
		Name:        name,
		Description: "Echo the input",
		Parameters: []tools.Parameter{
			{Name: "input", Type: tools.TypeString, Required: true},
		},
		Invoke: func(_ context.Context, args tools.Arguments) (string, error) {
			if calls != nil {
				*calls = append(*calls, name+":"+args.String("input"))
			}
			return fmt.Sprintf(`{"success":true,"echo":%q}`, args.String("input")), nil
		},
	}
}
