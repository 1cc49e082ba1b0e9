package prompt

import (
	"strings"
	"time"
)

// MetadataItem is one named piece of retrieved context: a table DDL, a
// query example or a business term.
type MetadataItem struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Metadata is the context retrieved for a request.
type Metadata struct {
	DDL      []MetadataItem `json:"ddl"`
	Freeshot []MetadataItem `json:"freeshot"`
	Term     []MetadataItem `json:"term"`
}

// PromptBuilder builds the agents' system prompts. Stateless apart from
// its configuration; safe for concurrent use.
type PromptBuilder struct {
	sqlDialect string
	now        func() time.Time
}

// NewPromptBuilder creates a builder. sqlDialect names the SQL syntax the
// model must follow, e.g. "SQLite".
func NewPromptBuilder(sqlDialect string) *PromptBuilder {
	return &PromptBuilder{sqlDialect: sqlDialect, now: time.Now}
}

// WithClock returns a copy of the builder that reads the current time from now.
func (b *PromptBuilder) WithClock(now func() time.Time) *PromptBuilder {
	cp := *b
	cp.now = now
	return &cp
}

// BuildSQLAgentPrompt builds the system prompt of the SQL agent.
func (b *PromptBuilder) BuildSQLAgentPrompt(meta Metadata) string {
	return b.compose(sqlAgentRole,
		"## Metadata (partial: only some columns of some tables, and only some of their enum values)",
		meta, strings.Replace(sqlAgentTask, "%s", b.sqlDialect, 1))
}

// BuildFeedbackAgentPrompt builds the system prompt of the feedback agent.
func (b *PromptBuilder) BuildFeedbackAgentPrompt(meta Metadata) string {
	return b.compose(feedbackAgentRole,
		"## Metadata (partial: only some columns of some tables)",
		meta, feedbackAgentTask)
}

func (b *PromptBuilder) compose(role, metadataHeading string, meta Metadata, task string) string {
	now := b.now()
	parts := []string{
		"## System role\n" + role + "\n",
		"## Additional information\nToday is " + now.Format("2006-01-02 Monday") +
			", the current time is " + now.Format("15:04") + "\n",
		metadataHeading + "\n" + FormatMetadata(meta) + "\n",
		task,
	}
	return strings.Join(parts, "\n\n")
}

// FormatMetadata renders the retrieved context as markdown sections.
// Empty sections are omitted; with no context the result is "".
func FormatMetadata(meta Metadata) string {
	var sections []string

	if len(meta.DDL) > 0 {
		items := make([]string, len(meta.DDL))
		for i, it := range meta.DDL {
			items[i] = "Table: " + it.Name + "\n" + it.Content
		}
		sections = append(sections, "## Database definitions\n"+strings.Join(items, "\n\n")+"\n")
	}
	if len(meta.Freeshot) > 0 {
		items := make([]string, len(meta.Freeshot))
		for i, it := range meta.Freeshot {
			items[i] = "Query: " + it.Name + "\nSQL: " + it.Content
		}
		sections = append(sections, "## Similar query examples\n"+strings.Join(items, "\n\n")+"\n")
	}
	if len(meta.Term) > 0 {
		items := make([]string, len(meta.Term))
		for i, it := range meta.Term {
			items[i] = it.Name + ": " + it.Content
		}
		sections = append(sections, "## Terms\n"+strings.Join(items, "\n")+"\n")
	}

	if len(sections) == 0 {
		return ""
	}
	return "\n\n" + strings.Join(sections, "\n\n")
}
