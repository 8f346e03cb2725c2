package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/aiforce-discovery-agent/clients/scan-console/internal/controller"
	"github.com/aiforce-discovery-agent/clients/scan-console/internal/history"
	"github.com/aiforce-discovery-agent/clients/scan-console/internal/scan"
	"github.com/aiforce-discovery-agent/clients/scan-console/internal/view"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Controller is the part of the scan controller the console drives.
type Controller interface {
	StartScan(ctx context.Context, form scan.Form) error
	Stop()
	State() controller.State
	ScanID() (scan.ID, bool)
	ActivePolls() int
}

// HistoryReader lists past scans.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// Server represents the HTTP console server.
type Server struct {
	controller Controller
	board      *view.Board
	history    HistoryReader
	logger     *zap.SugaredLogger
	router     *gin.Engine
}

// New creates a new console server. hist may be nil when history is disabled.
func New(ctrl Controller, board *view.Board, hist HistoryReader, logger *zap.SugaredLogger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		controller: ctrl,
		board:      board,
		history:    hist,
		logger:     logger,
		router:     gin.New(),
	}

	s.setupRoutes()
	return s
}

// Router returns the gin router.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	// Health endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/ready", s.readyHandler)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/scan/start", s.startScanHandler)
		v1.POST("/scan/stop", s.stopScanHandler)
		v1.GET("/scan/status", s.scanStatusHandler)

		v1.GET("/history", s.historyHandler)
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		c.Next()

		s.logger.Debugw("Request completed",
			"path", path,
			"status", c.Writer.Status(),
			"method", c.Request.Method,
		)
	}
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "scan-console",
	})
}

func (s *Server) readyHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"service": "scan-console",
		"state":   s.controller.State(),
	})
}

// startScanHandler submits a scan. The view regions are returned in every
// case so callers see the same message a user would.
func (s *Server) startScanHandler(c *gin.Context) {
	var req StartScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	err := s.controller.StartScan(c.Request.Context(), req.form())
	if err != nil {
		state := s.board.Snapshot()
		c.JSON(statusForError(err), ErrorResponse{
			Error: err.Error(),
			State: s.controller.State(),
			View:  &state,
		})
		return
	}

	c.JSON(http.StatusAccepted, s.statusResponse())
}

func (s *Server) stopScanHandler(c *gin.Context) {
	s.controller.Stop()
	c.JSON(http.StatusOK, s.statusResponse())
}

func (s *Server) scanStatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.statusResponse())
}

func (s *Server) historyHandler(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "history is disabled"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(c.Request.Context(), limit)
	if err != nil {
		s.logger.Errorw("Failed to read history", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to read history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scans": entries,
		"count": len(entries),
	})
}

func (s *Server) statusResponse() ScanStatusResponse {
	id, _ := s.controller.ScanID()
	return ScanStatusResponse{
		State:       s.controller.State(),
		ScanID:      id,
		ActivePolls: s.controller.ActivePolls(),
		View:        s.board.Snapshot(),
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, scan.ErrMissingIPRange),
		errors.Is(err, scan.ErrInvalidIPRange),
		errors.Is(err, scan.ErrGatewayOutsideRange):
		return http.StatusBadRequest
	case errors.Is(err, controller.ErrStopped):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
