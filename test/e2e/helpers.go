package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yuy4o/ChatBI/pkg/database"
)

// ────────────────────────────────────────────────────────────
// HTTP Client Helpers
// ────────────────────────────────────────────────────────────

// AskSQLAgent posts a single-question conversation to /sql-agent and
// returns the decoded body and the assigned session ID.
func (app *TestApp) AskSQLAgent(t *testing.T, question string, expectedStatus int) (map[string]interface{}, string) {
	t.Helper()
	return app.postJSON(t, "/sql-agent", conversation(question), expectedStatus)
}

// SendFeedback posts a liked conversation to /feedback_good.
func (app *TestApp) SendFeedback(t *testing.T, body map[string]interface{}, expectedStatus int) (map[string]interface{}, string) {
	t.Helper()
	return app.postJSON(t, "/feedback_good", body, expectedStatus)
}

// PostLog posts an external log line to /api/log.
func (app *TestApp) PostLog(t *testing.T, body map[string]interface{}, expectedStatus int) map[string]interface{} {
	t.Helper()
	out, _ := app.postJSON(t, "/api/log", body, expectedStatus)
	return out
}

// GetHealth returns the decoded /health body.
func (app *TestApp) GetHealth(t *testing.T) map[string]interface{} {
	t.Helper()
	resp, err := http.Get(app.BaseURL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// GetMetrics returns the Prometheus exposition text.
func (app *TestApp) GetMetrics(t *testing.T) string {
	t.Helper()
	resp, err := http.Get(app.BaseURL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

// getJSON fetches path and decodes the body into out.
func (app *TestApp) getJSON(t *testing.T, path string, expectedStatus int, out interface{}) {
	t.Helper()
	resp, err := http.Get(app.BaseURL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, expectedStatus, resp.StatusCode, "unexpected status for GET %s: %s", path, raw)
	require.NoError(t, json.Unmarshal(raw, out))
}

func (app *TestApp) postJSON(t *testing.T, path string, body interface{}, expectedStatus int) (map[string]interface{}, string) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(app.BaseURL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, expectedStatus, resp.StatusCode, "unexpected status for POST %s: %s", path, raw)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out, resp.Header.Get("X-Session-ID")
}

func conversation(question string) map[string]interface{} {
	return map[string]interface{}{
		"metadata": map[string]interface{}{
			"term": []map[string]string{{"name": "GMV", "content": "Sum of order amounts"}},
		},
		"messages": []map[string]string{{"role": "user", "content": question}},
	}
}

// ────────────────────────────────────────────────────────────
// Store Helpers
// ────────────────────────────────────────────────────────────

// Likes returns the like count of a freeshot or term.
func (app *TestApp) Likes(t *testing.T, kind database.TermKind, name string) int {
	t.Helper()
	table := "terms"
	if kind == database.TermKindFreeshot {
		table = "freeshots"
	}
	var likes int
	err := app.DBClient.Metadata().QueryRowContext(context.Background(),
		`SELECT likes FROM `+table+` WHERE name = ?`, name).Scan(&likes)
	require.NoError(t, err)
	return likes
}

// ColumnDescription returns the effective description of a column.
func (app *TestApp) ColumnDescription(t *testing.T, table, column string) string {
	t.Helper()
	store := database.NewMetadataStore(app.DBClient.Metadata())
	meta, found, err := store.Table(context.Background(), table)
	require.NoError(t, err)
	require.True(t, found, "table %s not documented", table)
	cols, err := store.Columns(context.Background(), meta.ID)
	require.NoError(t, err)
	return cols[column].Description
}
