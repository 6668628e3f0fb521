package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
	"github.com/joseph-ayodele/boq-matcher/internal/ingest"
	"github.com/joseph-ayodele/boq-matcher/internal/server"
	"github.com/joseph-ayodele/boq-matcher/internal/services/matching"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := matching.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start runtime", "error", err)
		os.Exit(1)
	}

	var pinger server.Pinger
	if db := rt.DB(); db != nil {
		if err := db.HealthCheck(ctx, 3*time.Second, logger); err != nil {
			logger.Error("DB health failed", "error", err)
			os.Exit(1)
		}
		logger.Info("DB health OK")
		pinger = db
	}

	// gRPC health
	grpcServer, hs := server.NewHealthServer(logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("listen", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("gRPC health serving", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc serve", "error", err)
		}
	}()

	// HTTP API
	httpServer := server.NewServer(rt.Engine, pinger, logger).NewHTTPServer(cfg.Server.HTTPAddr)
	go func() {
		logger.Info("HTTP serving", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	// Drop directory
	if cfg.Intake.WatchDir != "" {
		intake := ingest.NewIntake(ingest.IntakeConfig{
			Dir:      cfg.Intake.WatchDir,
			OwnerID:  cfg.Intake.OwnerID,
			Strategy: cfg.Intake.Strategy,
			Debounce: cfg.Intake.Debounce,
		}, func(ctx context.Context, ownerID, name, strategy string, items []entity.WorkItem) (uuid.UUID, error) {
			return rt.Engine.SubmitJob(ctx, matching.SubmitRequest{
				OwnerID:  ownerID,
				Name:     name,
				Strategy: strategy,
				Items:    items,
			})
		}, logger)
		go func() {
			if err := intake.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("intake stopped", "dir", cfg.Intake.WatchDir, "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down...")
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	rt.Close(shutdownCtx)
	logger.Info("stopped")
}
