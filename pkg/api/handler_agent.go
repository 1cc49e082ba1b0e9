package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yuy4o/ChatBI/pkg/agent"
	"github.com/yuy4o/ChatBI/pkg/agent/runner"
	"github.com/yuy4o/ChatBI/pkg/events"
)

// sessionHeader carries the session ID assigned to an agent request so
// clients can subscribe to its live log channel.
const sessionHeader = "X-Session-ID"

// sqlAgentHandler handles POST /sql-agent.
func (s *Server) sqlAgentHandler(c *gin.Context) {
	req, ok := s.bindAgentRequest(c, runner.SQLAgentName+"-start")
	if !ok {
		return
	}

	resp, err := s.runner.RunSQLAgent(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// feedbackGoodHandler handles POST /feedback_good.
func (s *Server) feedbackGoodHandler(c *gin.Context) {
	req, ok := s.bindAgentRequest(c, runner.FeedbackAgentName+"-start")
	if !ok {
		return
	}

	resp, err := s.runner.RunFeedbackAgent(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// bindAgentRequest decodes and validates the body, assigns a session ID
// and broadcasts the incoming conversation.
func (s *Server) bindAgentRequest(c *gin.Context, summary string) (runner.Request, bool) {
	var body AgentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, badJSON(err))
		return runner.Request{}, false
	}
	if err := body.validate(); err != nil {
		writeError(c, err)
		return runner.Request{}, false
	}

	sessionID := uuid.New().String()
	c.Header(sessionHeader, sessionID)
	events.Log(s.publisher, sessionID, events.SourceSystem, formatMessages(body.Messages), summary)

	return runner.Request{
		SessionID: sessionID,
		Metadata:  body.Metadata,
		Messages:  body.Messages,
	}, true
}

// formatMessages renders the conversation as indented JSON for the live log.
func formatMessages(msgs []agent.Message) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(msgs); err != nil {
		slog.Warn("Failed to format request messages", "error", err)
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func writeError(c *gin.Context, err error) {
	code, msg := mapServiceError(err)
	c.AbortWithStatusJSON(code, ErrorResponse{Error: msg})
}
