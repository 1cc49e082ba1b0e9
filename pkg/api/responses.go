package api

import "github.com/yuy4o/ChatBI/pkg/database"

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string                 `json:"status"`
	Version       string                 `json:"version"`
	Checks        map[string]HealthCheck `json:"checks"`
	Database      *database.ClientHealth `json:"database,omitempty"`
	Tools         int                    `json:"tools"`
	DroppedEvents uint64                 `json:"dropped_events"`
}

// HealthCheck is the status of one component.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// LogResponse is returned by POST /api/log.
type LogResponse struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Summary   string `json:"summary"`
	Timestamp string `json:"timestamp"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DatabaseResponse is one entry of GET /metadata/dbs.
type DatabaseResponse struct {
	ID          string          `json:"id"`
	DB          string          `json:"db"`
	Description string          `json:"description"`
	Tables      []TableResponse `json:"tables"`
}

// TableResponse is one entry of GET /metadata/tables.
type TableResponse struct {
	ID          string `json:"id"`
	Table       string `json:"table"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// ColumnResponse is one entry of GET /metadata/columns.
type ColumnResponse struct {
	ID          string               `json:"id"`
	Column      string               `json:"column"`
	Type        string               `json:"type"`
	Description string               `json:"description"`
	IsPrimary   bool                 `json:"is_primary"`
	Values      []database.EnumValue `json:"values,omitempty"`
}

// TablePageResponse is returned by GET /data/tables/:name.
type TablePageResponse struct {
	Data   []map[string]any `json:"data"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}
