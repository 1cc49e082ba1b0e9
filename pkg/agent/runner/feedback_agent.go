package runner

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/yuy4o/ChatBI/pkg/agent/controller"
	"github.com/yuy4o/ChatBI/pkg/tools/sqltools"
)

// Update records one change the feedback agent applied. Metadata updates
// fill the table/column/enum fields; like updates fill the term fields.
type Update struct {
	TableName   string `json:"table_name,omitempty"`
	ColumnName  string `json:"column_name,omitempty"`
	EnumValue   string `json:"enum_value,omitempty"`
	Description string `json:"description,omitempty"`
	TermType    string `json:"term_type,omitempty"`
	TermName    string `json:"term_name,omitempty"`
	Message     string `json:"message"`
}

// FeedbackAgentResponse is the result of the feedback agent.
type FeedbackAgentResponse struct {
	Content string   `json:"content"`
	Updates []Update `json:"updates"`
	Error   string   `json:"error,omitempty"`
}

type updateAccumulator struct {
	updates []Update
}

func (a *updateAccumulator) observe(res controller.ToolResult) {
	if res.Err != nil {
		return
	}
	outcome, ok := sqltools.ParseOutcome(res.Output)
	if !ok || !outcome.Success {
		return
	}

	var u Update
	switch res.Call.Name {
	case sqltools.UpdateMetadata, sqltools.UpdateBusinessTerm:
		if err := decodeArgs(res.Call.Arguments, &u); err != nil {
			return
		}
	default:
		return
	}
	u.Message = outcome.Message
	a.updates = append(a.updates, u)
}

// RunFeedbackAgent processes a liked answer: the model reviews the
// conversation and updates metadata descriptions, terms and examples.
func (r *Runner) RunFeedbackAgent(ctx context.Context, req Request) (*FeedbackAgentResponse, error) {
	conv := newConversation(req, r.feedback, r.prompts.BuildFeedbackAgentPrompt(req.Metadata))
	acc := &updateAccumulator{}

	result, err := r.run(ctx, r.feedback, conv, &controller.Hooks{OnToolResult: acc.observe})
	if err != nil {
		return nil, err
	}

	resp := &FeedbackAgentResponse{Updates: acc.updates}
	if resp.Updates == nil {
		resp.Updates = []Update{}
	}
	if result.Err == nil && strings.TrimSpace(result.Content) == "" {
		resp.Content = DefaultFeedbackContent
		return resp, nil
	}
	resp.Content, resp.Error = outcome(result)
	return resp, nil
}

// decodeArgs decodes tool call arguments. Empty text decodes as {}.
func decodeArgs(raw string, v any) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}
