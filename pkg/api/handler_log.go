package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yuy4o/ChatBI/pkg/events"
)

// logHandler handles POST /api/log: clients push their own log lines into
// the live log stream.
func (s *Server) logHandler(c *gin.Context) {
	var req LogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badJSON(err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(c, err)
		return
	}

	evt := events.LogEvent{
		Kind:      events.KindLog,
		Type:      req.Type,
		Message:   *req.Message,
		Summary:   req.Summary,
		Timestamp: time.Now().Format(events.TimestampLayout),
	}
	if s.publisher != nil {
		s.publisher.Publish(evt)
	}

	c.JSON(http.StatusOK, LogResponse{
		Type:      string(evt.Type),
		Message:   evt.Message,
		Summary:   evt.Summary,
		Timestamp: evt.Timestamp,
	})
}
