package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuy4o/ChatBI/pkg/agent"
	"github.com/yuy4o/ChatBI/pkg/agent/prompt"
	"github.com/yuy4o/ChatBI/pkg/tools"
	"github.com/yuy4o/ChatBI/pkg/tools/sqltools"
	"github.com/yuy4o/ChatBI/test/util"
)

// scriptedClient replays whole messages in both completion modes.
type scriptedClient struct {
	replies  []agent.Message
	errAt    int // 1-based call that fails; 0 = never
	requests []*agent.CompletionRequest
}

func (c *scriptedClient) reply(req *agent.CompletionRequest) (agent.Message, error) {
	c.requests = append(c.requests, req)
	n := len(c.requests)
	if n == c.errAt {
		return agent.Message{}, errors.New("upstream unavailable")
	}
	if n > len(c.replies) {
		return agent.Message{}, fmt.Errorf("no scripted reply for call %d", n)
	}
	return c.replies[n-1], nil
}

func (c *scriptedClient) Complete(_ context.Context, req *agent.CompletionRequest) (*agent.Completion, error) {
	msg, err := c.reply(req)
	if err != nil {
		return nil, err
	}
	return &agent.Completion{Message: msg}, nil
}

func (c *scriptedClient) Stream(_ context.Context, req *agent.CompletionRequest) (<-chan agent.Chunk, error) {
	msg, err := c.reply(req)
	if err != nil {
		return nil, err
	}
	// Split content in two to exercise reconstruction.
	half := len(msg.Content) / 2
	f := agent.FragmentFromMessage(msg)
	first := msg.Content[:half]
	f.Content = &first
	ch := make(chan agent.Chunk, 2)
	ch <- f
	ch <- agent.ContentFragment(msg.Content[half:])
	close(ch)
	return ch, nil
}

func toolCall(id, name, args string) agent.Message {
	return agent.Message{Role: agent.RoleAssistant, ToolCalls: []agent.ToolCall{{ID: id, Name: name, Arguments: args}}}
}

func text(s string) agent.Message {
	return agent.Message{Role: agent.RoleAssistant, Content: s}
}

func newTestRunner(t *testing.T, sqlClient, feedbackClient agent.CompletionClient) *Runner {
	t.Helper()
	client := util.NewSQLiteClient(t, util.SampleSeed(), util.SampleDataDDL...)
	reg := tools.NewRegistry()
	require.NoError(t, sqltools.New(client).Register(reg))
	reg.Freeze()

	sqlTools, err := reg.Toolset(sqltools.ExecuteSQL, sqltools.GetTableSchema, sqltools.GetAllTables, sqltools.UpdateMetadata)
	require.NoError(t, err)
	feedbackTools, err := reg.Toolset(sqltools.UpdateMetadata, sqltools.UpdateBusinessTerm)
	require.NoError(t, err)

	clock := func() time.Time { return time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC) }
	return New(
		Agent{
			Exec: &agent.ExecutionContext{
				AgentName: SQLAgentName,
				Config:    &agent.ResolvedAgentConfig{MaxTurns: 10},
				Client:    sqlClient,
			},
			Toolset: sqlTools,
		},
		Agent{
			Exec: &agent.ExecutionContext{
				AgentName: FeedbackAgentName,
				Config:    &agent.ResolvedAgentConfig{MaxTurns: 5, Stream: true},
				Client:    feedbackClient,
			},
			Toolset: feedbackTools,
		},
		prompt.NewPromptBuilder("SQLite").WithClock(clock),
	)
}

func TestRunSQLAgent_ExecutesAndAnswers(t *testing.T) {
	const query = "SELECT COUNT(*) AS n FROM orders"
	client := &scriptedClient{replies: []agent.Message{
		toolCall("c1", sqltools.ExecuteSQL, `{"sql":"`+query+`"}`),
		text("Here are the results: 3 orders."),
	}}
	r := newTestRunner(t, client, nil)

	resp, err := r.RunSQLAgent(context.Background(), Request{
		Metadata: prompt.Metadata{Term: []prompt.MetadataItem{{Name: "GMV", Content: "sum of amounts"}}},
		Messages: []agent.Message{{Role: agent.RoleUser, Content: "most recent 3 days of play count"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Here are the results: 3 orders.", resp.Content)
	assert.Equal(t, query, resp.SQL)
	require.NotNil(t, resp.Result)
	assert.JSONEq(t, `{"success":true,"columns":[{"name":"n","type":"INTEGER","nullable":true}],"data":[[3]],"totalRows":1}`, *resp.Result)
	assert.Empty(t, resp.Error)

	require.Len(t, client.requests, 2)
	first := client.requests[0]
	require.Len(t, first.Messages, 2)
	assert.Equal(t, agent.RoleSystem, first.Messages[0].Role)
	assert.Contains(t, first.Messages[0].Content, "GMV: sum of amounts")
	assert.Equal(t, "most recent 3 days of play count", first.Messages[1].Content)
	assert.Len(t, first.Tools, 4)
}

func TestRunSQLAgent_KeepsLastQuery(t *testing.T) {
	client := &scriptedClient{replies: []agent.Message{
		toolCall("c1", sqltools.ExecuteSQL, `{"sql":"SELECT id FROM orders WHERE id = 1"}`),
		toolCall("c2", sqltools.ExecuteSQL, `{"sql":"SELECT id FROM orders WHERE id = 2"}`),
		toolCall("c3", sqltools.ExecuteSQL, `{"query":"missing required sql"}`),
		text("done"),
	}}
	r := newTestRunner(t, client, nil)

	resp, err := r.RunSQLAgent(context.Background(), Request{Messages: []agent.Message{{Role: agent.RoleUser, Content: "q"}}})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM orders WHERE id = 2", resp.SQL, "invalid calls do not replace the last query")
}

func TestRunSQLAgent_UpstreamFailureKeepsEarlierState(t *testing.T) {
	client := &scriptedClient{
		replies: []agent.Message{toolCall("c1", sqltools.ExecuteSQL, `{"sql":"SELECT 1 AS one"}`)},
		errAt:   2,
	}
	r := newTestRunner(t, client, nil)

	resp, err := r.RunSQLAgent(context.Background(), Request{Messages: []agent.Message{{Role: agent.RoleUser, Content: "q"}}})
	require.NoError(t, err)
	assert.Contains(t, resp.Error, "upstream unavailable")
	assert.Contains(t, resp.Content, "An error occurred during execution")
	assert.Equal(t, "SELECT 1 AS one", resp.SQL)
	assert.NotNil(t, resp.Result)
}

func TestRunSQLAgent_UpstreamFailureKeepsModelText(t *testing.T) {
	first := toolCall("c1", sqltools.GetAllTables, `{}`)
	first.Content = "Let me look at the tables first."
	client := &scriptedClient{replies: []agent.Message{first}, errAt: 2}
	r := newTestRunner(t, client, nil)

	resp, err := r.RunSQLAgent(context.Background(), Request{Messages: []agent.Message{
		{Role: agent.RoleUser, Content: "GMV yesterday?"},
		{Role: agent.RoleAssistant, Content: "answer to an earlier question"},
		{Role: agent.RoleUser, Content: "and per customer?"},
	}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Content, "Let me look at the tables first.\n\n"), resp.Content)
	assert.Contains(t, resp.Content, "An error occurred during execution")
	assert.NotContains(t, resp.Content, "earlier question")
	assert.Contains(t, resp.Error, "upstream unavailable")
}

func TestRunSQLAgent_UpstreamFailureIgnoresRequestHistory(t *testing.T) {
	client := &scriptedClient{errAt: 1}
	r := newTestRunner(t, client, nil)

	resp, err := r.RunSQLAgent(context.Background(), Request{Messages: []agent.Message{
		{Role: agent.RoleUser, Content: "GMV yesterday?"},
		{Role: agent.RoleAssistant, Content: "answer to an earlier question"},
		{Role: agent.RoleUser, Content: "and per customer?"},
	}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Content, "An error occurred during execution"), resp.Content)
}

func TestRunSQLAgent_NoQuery(t *testing.T) {
	client := &scriptedClient{replies: []agent.Message{text("Which table do you mean?")}}
	r := newTestRunner(t, client, nil)

	resp, err := r.RunSQLAgent(context.Background(), Request{Messages: []agent.Message{{Role: agent.RoleUser, Content: "q"}}})
	require.NoError(t, err)
	assert.Equal(t, "Which table do you mean?", resp.Content)
	assert.Empty(t, resp.SQL)
	assert.Nil(t, resp.Result)
}

func TestRunFeedbackAgent_RecordsSuccessfulUpdates(t *testing.T) {
	client := &scriptedClient{replies: []agent.Message{
		{Role: agent.RoleAssistant, ToolCalls: []agent.ToolCall{
			{ID: "u1", Name: sqltools.UpdateMetadata, Arguments: `{"table_name":"orders","column_name":"amount","description":"Order total in EUR"}`},
			{ID: "u2", Name: sqltools.UpdateBusinessTerm, Arguments: `{"term_type":"term","term_name":"ARPU"}`},
			{ID: "u3", Name: sqltools.UpdateBusinessTerm, Arguments: `{"term_type":"term","term_name":"GMV"}`},
			{ID: "u4", Name: sqltools.ExecuteSQL, Arguments: `{"sql":"SELECT 1"}`},
		}},
		text(""),
	}}
	r := newTestRunner(t, nil, client)

	resp, err := r.RunFeedbackAgent(context.Background(), Request{Messages: []agent.Message{
		{Role: agent.RoleUser, Content: "total order amount"},
		{Role: agent.RoleAssistant, Content: "SELECT SUM(amount) FROM orders"},
	}})
	require.NoError(t, err)

	assert.Equal(t, DefaultFeedbackContent, resp.Content)
	assert.Empty(t, resp.Error)
	assert.Equal(t, []Update{
		{TableName: "orders", ColumnName: "amount", Description: "Order total in EUR",
			Message: "updated the description of column amount of table orders"},
		{TermType: "term", TermName: "GMV", Message: "updated the likes of business term GMV to 1"},
	}, resp.Updates)

	// The query tool is outside the feedback toolset.
	last := client.requests[1].Messages
	assert.Contains(t, last[len(last)-1].Content, "unknown tool")
}

func TestRunFeedbackAgent_BudgetExhausted(t *testing.T) {
	loop := toolCall("u", sqltools.UpdateBusinessTerm, `{"term_type":"freeshot","term_name":"orders per customer"}`)
	client := &scriptedClient{replies: []agent.Message{loop, loop, loop, loop, loop, loop}}
	r := newTestRunner(t, nil, client)

	resp, err := r.RunFeedbackAgent(context.Background(), Request{Messages: []agent.Message{{Role: agent.RoleUser, Content: "q"}}})
	require.NoError(t, err)
	assert.Len(t, client.requests, 5)
	assert.Len(t, resp.Updates, 5)
	assert.Contains(t, resp.Error, agent.ErrTurnBudgetExceeded.Error())
	assert.Contains(t, resp.Content, "stopped before reaching an answer")
	assert.Equal(t, "updated the likes of query example orders per customer to 5", resp.Updates[4].Message)
}

func TestRunFeedbackAgent_EmptyUpdatesEncodeAsArray(t *testing.T) {
	client := &scriptedClient{replies: []agent.Message{text("Nothing to update.")}}
	r := newTestRunner(t, nil, client)

	resp, err := r.RunFeedbackAgent(context.Background(), Request{Messages: []agent.Message{{Role: agent.RoleUser, Content: "q"}}})
	require.NoError(t, err)
	assert.Equal(t, "Nothing to update.", resp.Content)
	assert.NotNil(t, resp.Updates)
	assert.Empty(t, resp.Updates)
}
