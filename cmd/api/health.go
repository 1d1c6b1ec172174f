package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// healthServiceName is reported alongside the overall ("") status.
const healthServiceName = "finchat.v1.API"

const healthCheckTimeout = 5 * time.Second

// handleHealth reports API and database status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"api": "ok"}
	status, code := "healthy", http.StatusOK

	if err := s.ping(r.Context()); err != nil {
		s.log.Error("health check failed", zap.Error(err))
		checks["database"] = "unreachable"
		status, code = "degraded", http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}

func (s *Server) ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return s.db.Ping(ctx)
}

// updateHealth sets the gRPC serving status from a database ping.
func (s *Server) updateHealth(ctx context.Context, hs *health.Server) {
	st := healthpb.HealthCheckResponse_SERVING
	if err := s.ping(ctx); err != nil {
		s.log.Warn("database unreachable", zap.Error(err))
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", st)
	hs.SetServingStatus(healthServiceName, st)
}

// watchHealth refreshes the gRPC health status until ctx is done.
func (s *Server) watchHealth(ctx context.Context, hs *health.Server, interval time.Duration) {
	s.updateHealth(ctx, hs)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.updateHealth(ctx, hs)
		}
	}
}
