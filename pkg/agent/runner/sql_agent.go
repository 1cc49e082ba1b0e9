package runner

import (
	"context"

	"github.com/yuy4o/ChatBI/pkg/agent/controller"
	"github.com/yuy4o/ChatBI/pkg/tools/sqltools"
)

// SQLAgentResponse is the result of the SQL agent. SQL and Result come
// from the last successfully dispatched query; Result is the raw JSON
// payload returned by the query tool.
type SQLAgentResponse struct {
	Content string  `json:"content"`
	SQL     string  `json:"sql"`
	Result  *string `json:"result"`
	Error   string  `json:"error,omitempty"`
}

// sqlAccumulator keeps the last query the model ran.
type sqlAccumulator struct {
	sql    string
	result *string
}

func (a *sqlAccumulator) observe(res controller.ToolResult) {
	if res.Call.Name != sqltools.ExecuteSQL || res.Err != nil {
		return
	}
	var args struct {
		SQL string `json:"sql"`
	}
	_ = decodeArgs(res.Call.Arguments, &args)
	output := res.Output
	a.sql = args.SQL
	a.result = &output
}

// RunSQLAgent answers the user's data request: the model writes SQL, runs
// it through the query tool, fixes errors and explains the result.
func (r *Runner) RunSQLAgent(ctx context.Context, req Request) (*SQLAgentResponse, error) {
	conv := newConversation(req, r.sql, r.prompts.BuildSQLAgentPrompt(req.Metadata))
	acc := &sqlAccumulator{}

	result, err := r.run(ctx, r.sql, conv, &controller.Hooks{OnToolResult: acc.observe})
	if err != nil {
		return nil, err
	}

	resp := &SQLAgentResponse{SQL: acc.sql, Result: acc.result}
	resp.Content, resp.Error = outcome(result)
	return resp, nil
}
