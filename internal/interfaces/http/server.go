// Package http provides the HTTP server adapter for the application layer.
// It is a thin layer translating requests into workflow and service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gathara/procure-to-pay/internal/service"
	"github.com/gathara/procure-to-pay/internal/workflow"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// FileDir, when set, is served read-only under /files for locally
	// stored document blobs.
	FileDir string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config         ServerConfig
	httpServer     *http.Server
	router         *gin.Engine
	requestService *service.RequestService
	engine         *workflow.Engine
	logger         Logger
}

// NewServer creates a new HTTP server wired to the application services
func NewServer(
	config ServerConfig,
	requestService *service.RequestService,
	engine *workflow.Engine,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:         config,
		router:         gin.New(),
		requestService: requestService,
		engine:         engine,
		logger:         logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.requestService, s.engine, s.logger)

	s.router.GET("/health", handlers.HealthCheck)

	if s.config.FileDir != "" {
		s.router.Static("/files", s.config.FileDir)
	}

	api := s.router.Group("/api")
	{
		requests := api.Group("/requests")
		{
			requests.POST("", handlers.CreateRequest)
			requests.POST("/bulk-approve", handlers.BulkApprove)
			requests.GET("/:id", handlers.GetRequest)
			requests.PATCH("/:id/approve", handlers.Approve)
			requests.PATCH("/:id/reject", handlers.Reject)
			requests.POST("/:id/documents/:docType", handlers.IngestDocument)
			requests.POST("/:id/receipt", handlers.SubmitReceipt)
			requests.POST("/:id/validate", handlers.ValidateReceipt)
			requests.GET("/:id/validation", handlers.GetValidation)
			requests.GET("/:id/extractions/:docType", handlers.GetExtraction)
			requests.POST("/:id/purchase-order", handlers.EnsurePurchaseOrder)
		}
	}
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the underlying router, used by tests
func (s *Server) Router() *gin.Engine {
	return s.router
}
