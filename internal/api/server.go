package api

import (
	"net/http"

	"tomoseq/app"
	"tomoseq/domain/peaks"
	"tomoseq/internal"
	"tomoseq/ports"

	"github.com/gin-gonic/gin"
)

// Server exposes the peak service over HTTP.
type Server struct {
	router     *gin.Engine
	service    *app.PeakService
	repository ports.PeakRunRepository
	events     *EventHub
	defaults   peaks.Params
	maxBody    int64
	logger     *internal.Logger
}

// Options configures a Server.
type Options struct {
	// Defaults fill every parameter a request leaves out.
	Defaults peaks.Params
	// MaxBodySize caps request bodies in bytes; 0 means no cap.
	MaxBodySize int64
	// Events, when set, is served at /api/v1/events. The service should
	// report to the same hub.
	Events *EventHub
	Logger *internal.Logger
}

// NewServer creates the router. repository may be nil, in which case the run
// endpoints answer 503.
func NewServer(service *app.PeakService, repository ports.PeakRunRepository, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = internal.DefaultLogger
	}
	s := &Server{
		router:     gin.New(),
		service:    service,
		repository: repository,
		events:     opts.Events,
		defaults:   opts.Defaults,
		maxBody:    opts.MaxBodySize,
		logger:     logger,
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	peakHandler := NewPeakHandler(s.service, s.defaults, s.logger)
	runHandler := NewRunHandler(s.repository)

	api := s.router.Group("/api/v1")
	{
		api.POST("/peaks", s.limitBody(), peakHandler.HandleFindPeaks)
		api.GET("/runs", runHandler.HandleListRuns)
		api.GET("/runs/:id", runHandler.HandleGetRun)
		api.GET("/runs/:id/report", runHandler.HandleRunReport)
		if s.events != nil {
			api.GET("/events", s.events.HandleSSE)
		}
	}
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr until the server fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("[API] listening on %s", addr)
	return s.router.Run(addr)
}

func (s *Server) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.maxBody > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody)
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": s.repository != nil,
	})
}
