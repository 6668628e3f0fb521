// Package server exposes the matching engine over HTTP and serves gRPC health.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"

	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/export"
	"github.com/joseph-ayodele/boq-matcher/internal/services/matching"
)

const maxUploadBytes = 32 << 20

// Pinger reports store readiness. *repository.DB satisfies it.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration, logger *slog.Logger) error
}

// Server holds the HTTP handlers.
type Server struct {
	engine   *matching.Engine
	exporter *export.Service
	db       Pinger
	logger   *slog.Logger
}

func NewServer(engine *matching.Engine, db Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:   engine,
		exporter: export.NewService(engine, logger),
		db:       db,
		logger:   logger,
	}
}

// Router builds the gin engine with every /v1 route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = maxUploadBytes
	r.Use(requestID(), s.accessLog(), gin.Recovery())

	r.GET("/healthz", s.healthz)

	v1 := r.Group("/v1")
	v1.POST("/jobs", s.submitJob)
	v1.POST("/jobs/upload", s.uploadJob)
	v1.POST("/jobs/cancel-all", s.cancelAll)
	v1.GET("/jobs/:id", s.getJob)
	v1.GET("/jobs/:id/events", s.jobEvents)
	v1.GET("/jobs/:id/results", s.jobResults)
	v1.GET("/jobs/:id/export", s.exportJob)
	v1.DELETE("/jobs/:id", s.cancelJob)
	v1.GET("/queue", s.queueStatus)
	v1.POST("/match", s.matchSingle)
	return r
}

// NewHTTPServer wraps the router in an http.Server listening on addr.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), id))
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.InfoContext(c.Request.Context(), "http.request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// httpStatus maps the error taxonomy onto HTTP statuses.
func httpStatus(err error) int {
	switch common.CodeOf(err) {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := httpStatus(err)
	resp := errorResponse{
		Error:     err.Error(),
		Code:      common.CodeOf(err).String(),
		RequestID: common.RequestIDFromContext(c.Request.Context()),
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		resp.Error = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(c.Request.Context(), "http.request.failed", "path", c.FullPath(), "error", err)
		if appErr == nil {
			resp.Error = "internal error"
		}
	}
	c.AbortWithStatusJSON(status, resp)
}

func (s *Server) jobID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.Param("id")
	if err := common.ValidateAndReturnError(common.NewValidator().Field("id", raw, common.UUID)); err != nil {
		s.writeError(c, err)
		return uuid.Nil, false
	}
	return uuid.MustParse(raw), true
}
