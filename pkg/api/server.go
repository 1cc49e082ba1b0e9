// Package api exposes the agents over HTTP and streams live logs over
// WebSocket.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yuy4o/ChatBI/pkg/agent/runner"
	"github.com/yuy4o/ChatBI/pkg/database"
	"github.com/yuy4o/ChatBI/pkg/events"
	"github.com/yuy4o/ChatBI/pkg/metrics"
)

// AgentRunner runs the specialized agents. Implemented by *runner.Runner.
type AgentRunner interface {
	RunSQLAgent(ctx context.Context, req runner.Request) (*runner.SQLAgentResponse, error)
	RunFeedbackAgent(ctx context.Context, req runner.Request) (*runner.FeedbackAgentResponse, error)
}

// HealthChecker reports store health. Implemented by *database.Client.
type HealthChecker interface {
	Health(ctx context.Context) (*database.ClientHealth, error)
}

// MetadataCatalog lists the documented databases, tables, columns and enum
// values. Implemented by *database.MetadataStore.
type MetadataCatalog interface {
	ListDatabases(ctx context.Context) ([]database.DatabaseMeta, error)
	ListTables(ctx context.Context, dbID string) ([]database.TableMeta, error)
	ListColumns(ctx context.Context, tableID string) ([]database.ColumnMeta, error)
	EnumValues(ctx context.Context, columnID string) ([]database.EnumValue, error)
}

// DataBrowser pages through data source tables. Implemented by *database.Client.
type DataBrowser interface {
	DataTables(ctx context.Context) ([]string, error)
	ReadTablePage(ctx context.Context, table string, limit, offset int, filters map[string]any) (*database.TablePage, error)
}

// Server is the HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	runner      AgentRunner
	dbClient    HealthChecker
	publisher   events.Publisher
	connManager *events.ConnectionManager
	metrics     *metrics.Metrics
	catalog     MetadataCatalog
	data        DataBrowser

	toolCount        int
	allowedWSOrigins []string
	droppedEvents    func() uint64
}

// NewServer creates the server and registers its routes. publisher and m
// may be nil.
func NewServer(agents AgentRunner, dbClient HealthChecker, publisher events.Publisher, m *metrics.Metrics) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		router:    gin.New(),
		runner:    agents,
		dbClient:  dbClient,
		publisher: publisher,
		metrics:   m,
	}
	s.router.Use(gin.Recovery(), securityHeaders(), requestLogger(), httpMetrics(m))
	s.setupRoutes()
	return s
}

// SetConnManager enables the /ws endpoint.
func (s *Server) SetConnManager(cm *events.ConnectionManager, allowedOrigins []string) {
	s.connManager = cm
	s.allowedWSOrigins = allowedOrigins
}

// SetCatalog enables the read-only /metadata and /data browsing endpoints.
func (s *Server) SetCatalog(catalog MetadataCatalog, data DataBrowser) {
	s.catalog = catalog
	s.data = data
}

// SetToolCount records the registry size reported by /health.
func (s *Server) SetToolCount(n int) {
	s.toolCount = n
}

// SetDroppedEvents sets the source of the dropped live log counter
// reported by /health.
func (s *Server) SetDroppedEvents(fn func() uint64) {
	s.droppedEvents = fn
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.POST("/sql-agent", s.sqlAgentHandler)
	s.router.POST("/feedback_good", s.feedbackGoodHandler)
	s.router.POST("/api/log", s.logHandler)
	s.router.GET("/ws", s.wsHandler)

	meta := s.router.Group("/metadata")
	meta.GET("/dbs", s.listDatabasesHandler)
	meta.GET("/tables", s.listTablesHandler)
	meta.GET("/columns", s.listColumnsHandler)
	meta.GET("/values", s.listEnumValuesHandler)

	data := s.router.Group("/data")
	data.GET("/tables", s.listDataTablesHandler)
	data.GET("/tables/:name", s.tablePageHandler)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

// Handler returns the HTTP handler, for tests and custom servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP server listening", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
