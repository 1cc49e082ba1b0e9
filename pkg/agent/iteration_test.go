package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTurnState_Terminal(t *testing.T) {
	tests := []struct {
		state TurnState
		want  bool
	}{
		{StateInit, false},
		{StateAwaitingResponse, false},
		{StateDispatching, false},
		{StateFinished, true},
		{StateBudgetExhausted, true},
		{StateUpstreamFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Terminal())
		})
	}
}

func TestConversation(t *testing.T) {
	conv := NewConversation("s1", "SQLAgent", 3,
		Message{Role: RoleSystem, Content: "sys"},
		Message{Role: RoleUser, Content: "hi"},
		Message{Role: RoleAssistant, Content: "answer from an earlier exchange"},
		Message{Role: RoleUser, Content: "and now?"},
	)
	assert.Equal(t, StateInit, conv.State)
	assert.Equal(t, 4, conv.Len())
	assert.Empty(t, conv.LastAssistantContent(), "seeded history is not this run's output")

	conv.Append(Message{Role: RoleAssistant, Content: "first"})
	conv.Append(Message{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "x"}}})
	conv.Append(Message{Role: RoleTool, Content: "{}", ToolCallID: "c1"})
	assert.Equal(t, "first", conv.LastAssistantContent())

	msgs := conv.Messages()
	msgs[0].Content = "mutated"
	assert.Equal(t, "sys", conv.Messages()[0].Content, "Messages must return a copy")
}

func TestErrors(t *testing.T) {
	ue := &UpstreamError{Turn: 2, Err: assert.AnError}
	assert.Contains(t, ue.Error(), "turn 2")
	assert.ErrorIs(t, ue, assert.AnError)
	assert.True(t, IsUpstreamError(ue))
	assert.False(t, IsUpstreamError(assert.AnError))

	ae := &ToolArgumentError{Tool: "t", Err: ErrUnknownTool}
	assert.ErrorIs(t, ae, ErrUnknownTool)
	assert.Contains(t, ae.Error(), `"t"`)

	ee := &ToolExecutionError{Tool: "t", Err: assert.AnError}
	assert.ErrorIs(t, ee, assert.AnError)
}
