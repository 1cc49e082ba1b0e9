package database

import (
	"context"
	"database/sql"
	"time"
)

// HealthStatus represents database health and connection pool statistics
type HealthStatus struct {
	Status          string `json:"status"`
	ResponseTime    int64  `json:"response_time_ms"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
	WaitCount       int64  `json:"wait_count"`
	WaitDuration    int64  `json:"wait_duration_ms"`
	MaxOpenConns    int    `json:"max_open_conns"`
}

// Health checks database connectivity and returns connection pool statistics
func Health(ctx context.Context, db *sql.DB) (*HealthStatus, error) {
	start := time.Now()

	if err := db.PingContext(ctx); err != nil {
		return &HealthStatus{
			Status:       "unhealthy",
			ResponseTime: time.Since(start).Milliseconds(),
		}, err
	}

	stats := db.Stats()

	return &HealthStatus{
		Status:          "healthy",
		ResponseTime:    time.Since(start).Milliseconds(),
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		WaitCount:       stats.WaitCount,
		WaitDuration:    stats.WaitDuration.Milliseconds(),
		MaxOpenConns:    stats.MaxOpenConnections,
	}, nil
}

// ClientHealth reports the health of both stores.
type ClientHealth struct {
	Status   string        `json:"status"`
	Driver   Driver        `json:"driver"`
	Data     *HealthStatus `json:"data"`
	Metadata *HealthStatus `json:"metadata"`
}

// Health checks both stores. The overall status is "healthy" only when both
// respond; the first error is returned.
func (c *Client) Health(ctx context.Context) (*ClientHealth, error) {
	h := &ClientHealth{Status: "healthy", Driver: c.dialect.Name()}

	data, dataErr := Health(ctx, c.data)
	meta, metaErr := Health(ctx, c.metadata)
	h.Data, h.Metadata = data, meta

	if dataErr != nil || metaErr != nil {
		h.Status = "unhealthy"
	}
	if dataErr != nil {
		return h, dataErr
	}
	return h, metaErr
}
