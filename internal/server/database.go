package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func (s *Server) healthz(c *gin.Context) {
	if s.db != nil {
		if err := s.db.HealthCheck(c.Request.Context(), 2*time.Second, s.logger); err != nil {
			s.logger.Error("database ping failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "queue": s.engine.GetQueueStatus(c.Request.Context())})
}

// NewHealthServer returns a gRPC server carrying the standard health service
// and reflection, reporting SERVING.
func NewHealthServer(logger *slog.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(srv)
	logger.Debug("grpc health server ready")
	return srv, hs
}
