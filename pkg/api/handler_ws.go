package api

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

// wsHandler upgrades HTTP connections to WebSocket and delegates to
// ConnectionManager.
func (s *Server) wsHandler(c *gin.Context) {
	if s.connManager == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{Error: "WebSocket not available"})
		return
	}

	opts := &websocket.AcceptOptions{OriginPatterns: s.allowedWSOrigins}
	if len(s.allowedWSOrigins) == 0 {
		// No allowlist configured: accept any origin.
		opts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(c.Writer, c.Request, opts)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	// Blocks until the WebSocket closes.
	s.connManager.HandleConnection(c.Request.Context(), conn)
}
