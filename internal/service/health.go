// Package service exposes the gRPC side of the arena: a health endpoint that
// follows the shared store.
package service

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/lijuuu/CTFArenaService/internal/logging"
	"github.com/lijuuu/CTFArenaService/internal/store"
)

// ServiceName is the health service key reported alongside the overall "".
const ServiceName = "ctf.arena"

type HealthService struct {
	server   *health.Server
	pinger   store.Pinger
	interval time.Duration
	log      logging.Logger
}

func NewHealthService(pinger store.Pinger, interval time.Duration, log logging.Logger) *HealthService {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &HealthService{
		server:   health.NewServer(),
		pinger:   pinger,
		interval: interval,
		log:      log.With("component", "health"),
	}
}

// Register attaches the health service to s.
func (h *HealthService) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

func (h *HealthService) Server() healthpb.HealthServer {
	return h.server
}

// Probe pings the store once and publishes the result.
func (h *HealthService) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := h.pinger.Ping(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		h.log.Warn(ctx, "store ping failed", "error", err)
	}
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)
	return status
}

// Run probes until ctx is done, then marks everything as not serving.
func (h *HealthService) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.Probe(ctx)
		}
	}
}

// NewGRPCServer builds the gRPC server with the health service registered.
func NewGRPCServer(h *HealthService) *grpc.Server {
	s := grpc.NewServer()
	h.Register(s)
	return s
}
