// Package sqltools implements the tools the agents call against the data
// source and the metadata store.
package sqltools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yuy4o/ChatBI/pkg/database"
	"github.com/yuy4o/ChatBI/pkg/tools"
)

// Tool names as advertised to the completion service.
const (
	ExecuteSQL         = "tool_execute_sql_and_fetch_top_10"
	GetTableSchema     = "tool_get_table_schema"
	GetAllTables       = "tool_get_all_tables"
	UpdateMetadata     = "tool_update_metadata_description"
	UpdateBusinessTerm = "tool_update_business_term"
)

const defaultFetchLimit = 10

// Tools binds the tool bodies to the stores they work on.
type Tools struct {
	client     *database.Client
	store      *database.MetadataStore
	fetchLimit int
}

// New creates the tool set over an opened database client.
func New(client *database.Client) *Tools {
	return &Tools{
		client:     client,
		store:      database.NewMetadataStore(client.Metadata()),
		fetchLimit: defaultFetchLimit,
	}
}

// Definitions returns the tool definitions in registration order.
func (t *Tools) Definitions() []*tools.Definition {
	return []*tools.Definition{
		{
			Name: ExecuteSQL,
			Description: "Execute a SQL query and return at most the first 10 rows. Use it to verify " +
				"generated SQL: check the syntax is valid and that the query returns data. If it " +
				"returns nothing, confirm the requirement with the user.",
			Parameters: []tools.Parameter{
				{Name: "sql", Type: tools.TypeString, Description: "The SQL query to execute", Required: true},
			},
			Invoke: t.executeSQL,
		},
		{
			Name:        GetTableSchema,
			Description: "Get the structure of a table as DDL, including column types and descriptions.",
			Parameters: []tools.Parameter{
				{Name: "table_name", Type: tools.TypeString, Description: "Table name", Required: true},
			},
			Invoke: t.getTableSchema,
		},
		{
			Name:        GetAllTables,
			Description: "List all tables with their descriptions.",
			Invoke:      t.getAllTables,
		},
		{
			Name: UpdateMetadata,
			Description: "Update metadata descriptions from user feedback: the description of a table, " +
				"of a column (column_name set) or of an enum value (column_name and enum_value set).",
			Parameters: []tools.Parameter{
				{Name: "table_name", Type: tools.TypeString, Description: "Table name", Required: true},
				{Name: "column_name", Type: tools.TypeString, Description: "Column name, empty to update the table"},
				{Name: "enum_value", Type: tools.TypeString, Description: "Enum value, only when updating an enum value description"},
				{Name: "description", Type: tools.TypeString, Description: "The new description", Required: true},
			},
			Invoke: t.updateMetadataDescription,
		},
		{
			Name:        UpdateBusinessTerm,
			Description: "Add a like to a query example (freeshot) or a business term when the user liked an answer that used it.",
			Parameters: []tools.Parameter{
				{Name: "term_type", Type: tools.TypeString, Description: "Kind of item", Required: true,
					Enum: []string{string(database.TermKindFreeshot), string(database.TermKindTerm)}},
				{Name: "term_name", Type: tools.TypeString, Description: "Name of the query example or term", Required: true},
			},
			Invoke: t.updateBusinessTerm,
		},
	}
}

// Register adds every tool to reg.
func (t *Tools) Register(reg *tools.Registry) error {
	for _, def := range t.Definitions() {
		if err := reg.Register(def); err != nil {
			return fmt.Errorf("register %s: %w", def.Name, err)
		}
	}
	return nil
}

// Outcome is the JSON envelope of the update tools.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ParseOutcome decodes a tool result. ok is false when the text is not an
// outcome envelope.
func ParseOutcome(text string) (out Outcome, ok bool) {
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return Outcome{}, false
	}
	return out, true
}

// encode renders v as compact JSON without HTML escaping, so SQL
// comparison operators stay readable for the model.
func encode(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf(`{"success":false,"error":%q}`, err.Error())
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func failure(err error) string {
	return encode(Outcome{Success: false, Error: err.Error()})
}
