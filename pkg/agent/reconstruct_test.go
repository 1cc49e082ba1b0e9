package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func content(s string) *string { return &s }

func TestReconstructor_ContentOnly(t *testing.T) {
	r := NewReconstructor()
	r.Add(&DeltaFragment{Role: RoleAssistant})
	r.Add(ContentFragment("SELECT "))
	r.Add(ContentFragment(""))
	r.Add(ContentFragment("1"))

	msg := r.Message()
	assert.Equal(t, RoleAssistant, msg.Role)
	assert.Equal(t, "SELECT 1", msg.Content)
	assert.False(t, msg.HasToolCalls())
}

func TestReconstructor_DefaultRoleAndFirstMarkerWins(t *testing.T) {
	r := NewReconstructor()
	r.Add(ContentFragment("x"))
	assert.Equal(t, RoleAssistant, r.Message().Role)

	r = NewReconstructor()
	r.Add(&DeltaFragment{Role: RoleAssistant})
	r.Add(&DeltaFragment{Role: RoleUser})
	assert.Equal(t, RoleAssistant, r.Message().Role)
}

func TestReconstructor_ToolCallsByIndex(t *testing.T) {
	r := NewReconstructor()
	r.Add(&DeltaFragment{Content: content("Let me check."), ToolCalls: []ToolCallDelta{
		{Index: 1, ID: "call_b", Name: "tool_get_all_tables"},
	}})
	r.Add(&DeltaFragment{ToolCalls: []ToolCallDelta{
		{Index: 0, ID: "call_a", Name: "tool_get_table_schema", Arguments: `{"table_`},
	}})
	r.Add(&DeltaFragment{ToolCalls: []ToolCallDelta{
		{Index: 0, Arguments: `name":"orders"}`},
		{Index: 1, Arguments: `{}`},
	}})

	msg := r.Message()
	assert.Equal(t, "Let me check.", msg.Content)
	require.Len(t, msg.ToolCalls, 2)
	assert.Equal(t, ToolCall{ID: "call_a", Index: 0, Name: "tool_get_table_schema", Arguments: `{"table_name":"orders"}`}, msg.ToolCalls[0])
	assert.Equal(t, ToolCall{ID: "call_b", Index: 1, Name: "tool_get_all_tables", Arguments: `{}`}, msg.ToolCalls[1])
}

func TestReconstructor_InterleavedIndexesStayIsolated(t *testing.T) {
	r := NewReconstructor()
	r.Add(&DeltaFragment{Role: RoleAssistant, ToolCalls: []ToolCallDelta{
		{Index: 0, ID: "call_a", Name: "tool_execute_sql_and_fetch_top_10", Arguments: `{"sql":`},
	}})
	r.Add(&DeltaFragment{ToolCalls: []ToolCallDelta{
		{Index: 1, ID: "call_b", Name: "tool_get_table_schema", Arguments: `{"table`},
	}})
	r.Add(&DeltaFragment{ToolCalls: []ToolCallDelta{{Index: 0, Arguments: `"SELECT 1`}}})
	r.Add(&DeltaFragment{ToolCalls: []ToolCallDelta{{Index: 1, Arguments: `_name":`}}})
	r.Add(&DeltaFragment{ToolCalls: []ToolCallDelta{{Index: 0, Arguments: `"}`}}})
	r.Add(&DeltaFragment{ToolCalls: []ToolCallDelta{{Index: 1, Arguments: `"orders"}`}}})

	msg := r.Message()
	require.Len(t, msg.ToolCalls, 2)
	assert.Equal(t, ToolCall{ID: "call_a", Index: 0, Name: "tool_execute_sql_and_fetch_top_10", Arguments: `{"sql":"SELECT 1"}`}, msg.ToolCalls[0])
	assert.Equal(t, ToolCall{ID: "call_b", Index: 1, Name: "tool_get_table_schema", Arguments: `{"table_name":"orders"}`}, msg.ToolCalls[1])
}

func TestReconstructor_LateIdentity(t *testing.T) {
	r := NewReconstructor()
	r.Add(&DeltaFragment{ToolCalls: []ToolCallDelta{{Index: 0, Arguments: `{"a":`}}})
	r.Add(&DeltaFragment{ToolCalls: []ToolCallDelta{{Index: 0, ID: "late", Name: "t", Arguments: `1}`}}})
	r.Add(&DeltaFragment{ToolCalls: []ToolCallDelta{{Index: 0, ID: "ignored", Name: "other"}}})

	msg := r.Message()
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "late", msg.ToolCalls[0].ID)
	assert.Equal(t, "t", msg.ToolCalls[0].Name)
	assert.Equal(t, `{"a":1}`, msg.ToolCalls[0].Arguments)
}

// Splitting the same payload at different boundaries yields the same message.
func TestReconstructor_ChunkingInvariant(t *testing.T) {
	text := "Total revenue is 42."
	args := `{"sql":"SELECT SUM(amount) FROM orders"}`

	build := func(size int) Message {
		r := NewReconstructor()
		for i := 0; i < len(text); i += size {
			r.Add(ContentFragment(text[i:min(i+size, len(text))]))
		}
		r.Add(&DeltaFragment{ToolCalls: []ToolCallDelta{{Index: 0, ID: "c", Name: "tool_execute_sql_and_fetch_top_10"}}})
		for i := 0; i < len(args); i += size {
			r.Add(&DeltaFragment{ToolCalls: []ToolCallDelta{{Index: 0, Arguments: args[i:min(i+size, len(args))]}}})
		}
		return r.Message()
	}

	want := build(len(args))
	for _, size := range []int{1, 2, 3, 7, 16} {
		assert.Equal(t, want, build(size), "chunk size %d", size)
	}
}

func TestFragmentFromMessage(t *testing.T) {
	in := Message{
		Role:    RoleAssistant,
		Content: "calling",
		ToolCalls: []ToolCall{
			{ID: "a", Index: 5, Name: "x", Arguments: "{}"},
			{ID: "b", Index: 9, Name: "y", Arguments: `{"k":1}`},
		},
	}
	r := NewReconstructor()
	r.Add(FragmentFromMessage(in))
	out := r.Message()

	assert.Equal(t, "calling", out.Content)
	require.Len(t, out.ToolCalls, 2)
	assert.Equal(t, "a", out.ToolCalls[0].ID)
	assert.Equal(t, 0, out.ToolCalls[0].Index)
	assert.Equal(t, "y", out.ToolCalls[1].Name)
}

func feed(chunks ...Chunk) <-chan Chunk {
	ch := make(chan Chunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}

func TestReconstruct(t *testing.T) {
	t.Run("drains stream with usage and callback", func(t *testing.T) {
		var seen []string
		resp, err := Reconstruct(context.Background(), feed(
			&DeltaFragment{Role: RoleAssistant},
			ContentFragment("Hel"),
			ContentFragment(""),
			ContentFragment("lo"),
			&UsageChunk{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12},
		), func(d string) { seen = append(seen, d) })
		require.NoError(t, err)
		assert.Equal(t, "Hello", resp.Message.Content)
		assert.Equal(t, []string{"Hel", "lo"}, seen)
		require.NotNil(t, resp.Usage)
		assert.Equal(t, 12, resp.Usage.TotalTokens)
	})

	t.Run("error chunk becomes upstream error", func(t *testing.T) {
		boom := errors.New("connection reset")
		_, err := Reconstruct(context.Background(), feed(
			ContentFragment("partial"),
			&ErrorChunk{Message: "stream failed", Err: boom},
		), nil)
		require.Error(t, err)
		assert.True(t, IsUpstreamError(err))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("error chunk without cause uses message", func(t *testing.T) {
		_, err := Reconstruct(context.Background(), feed(&ErrorChunk{Message: "rate limited"}), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate limited")
	})

	t.Run("cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		stream := make(chan Chunk) // never closed
		_, err := Reconstruct(ctx, stream, nil)
		require.Error(t, err)
		assert.True(t, IsUpstreamError(err))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTokenUsage_Add(t *testing.T) {
	var total TokenUsage
	total.Add(&TokenUsage{PromptTokens: 3, CompletionTokens: 1, TotalTokens: 4})
	total.Add(nil)
	total.Add(&TokenUsage{PromptTokens: 2, CompletionTokens: 2, TotalTokens: 4})
	assert.Equal(t, TokenUsage{PromptTokens: 5, CompletionTokens: 3, TotalTokens: 8}, total)
}
