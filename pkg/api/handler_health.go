package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yuy4o/ChatBI/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// healthHandler handles GET /health.
// Only ChatBI's own components (stores, tool registry) are checked; the
// completion service is excluded so an outage there does not get the
// process restarted.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp := &HealthResponse{
		Status:  healthStatusHealthy,
		Version: version.GitCommit,
		Checks:  make(map[string]HealthCheck),
		Tools:   s.toolCount,
	}

	if s.dbClient != nil {
		dbHealth, err := s.dbClient.Health(reqCtx)
		resp.Database = dbHealth
		if err != nil {
			resp.Status = healthStatusUnhealthy
			resp.Checks["database"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
		} else {
			resp.Checks["database"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	if s.toolCount == 0 {
		if resp.Status == healthStatusHealthy {
			resp.Status = healthStatusDegraded
		}
		resp.Checks["tools"] = HealthCheck{Status: healthStatusDegraded, Message: "no tools registered"}
	} else {
		resp.Checks["tools"] = HealthCheck{Status: healthStatusHealthy}
	}

	if s.droppedEvents != nil {
		resp.DroppedEvents = s.droppedEvents()
	}

	httpStatus := http.StatusOK
	if resp.Status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, resp)
}
