// Package server provides gRPC and metrics server lifecycle management.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/solatis/waveplanner/internal/core/api"
	"github.com/solatis/waveplanner/internal/core/config"
	"github.com/solatis/waveplanner/internal/core/metrics"
)

// shutdownTimeout bounds GracefulStop before the server is forced down.
const shutdownTimeout = 30 * time.Second

// GRPCServer manages gRPC server lifecycle.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	config   *config.PlannerConfig
	logger   *slog.Logger
}

// NewGRPCServer creates the gRPC server with the interceptor chain and
// service registration. m may be nil to disable RPC metrics.
// Interceptor order: metrics, logging, rate limit, request timeout.
func NewGRPCServer(cfg *config.PlannerConfig, service api.PlannerServer, logger *slog.Logger, m *metrics.Metrics) (*GRPCServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	var chain []grpc.UnaryServerInterceptor
	if m != nil {
		chain = append(chain, MetricsInterceptor(m))
	}
	chain = append(chain, LoggingInterceptor(logger))
	if cfg.RateLimitRPS > 0 {
		chain = append(chain, NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m).UnaryInterceptor())
	}
	chain = append(chain, TimeoutInterceptor(cfg.RequestTimeout))

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(chain...))
	api.RegisterPlannerServer(server, service)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(api.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &GRPCServer{
		server: server,
		health: healthServer,
		config: cfg,
		logger: logger,
	}, nil
}

// Start binds listener and serves gRPC requests.
// Context is provided for API consistency but Serve blocks until Shutdown is called.
func (s *GRPCServer) Start(ctx context.Context) error {
	addr := s.config.Addr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve serves gRPC requests on an existing listener.
func (s *GRPCServer) Serve(listener net.Listener) error {
	s.listener = listener
	s.logger.Info("grpc server listening", "addr", listener.Addr().String())
	return s.server.Serve(listener)
}

// Shutdown marks the service not serving, then stops gracefully with a
// 30-second timeout.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(shutdownTimeout):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}
