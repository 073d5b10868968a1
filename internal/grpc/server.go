package grpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-check name reported for the session service.
const ServiceName = "alex.session"

// Server exposes gRPC health and token-gated reflection. Serving status
// follows the database health check.
type Server struct {
	server *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// NewServer builds the gRPC server. A non-empty serviceToken is required on
// every call except health checks, unary or streaming.
func NewServer(logger *slog.Logger, serviceToken string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	unary := []grpc.UnaryServerInterceptor{loggingUnaryInterceptor(logger)}
	stream := []grpc.StreamServerInterceptor{loggingStreamInterceptor(logger)}
	if serviceToken != "" {
		guard := newServiceGuard(serviceToken)
		unary = append(unary, guard.unary())
		stream = append(stream, guard.stream())
	}
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(unary...), grpc.ChainStreamInterceptor(stream...))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	reflection.Register(server)

	s := &Server{server: server, health: healthServer, logger: logger}
	s.SetServing(false)
	return s
}

// SetServing updates the health status of the whole server and of
// ServiceName.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *Server) Serve(listener net.Listener) error {
	return s.server.Serve(listener)
}

// Stop drains in-flight calls, forcing a stop after timeout.
func (s *Server) Stop(timeout time.Duration) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		s.server.Stop()
	}
}

func loggingUnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			logger.WarnContext(ctx, "grpc call failed",
				slog.String("method", info.FullMethod),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)
			return resp, err
		}
		logger.DebugContext(ctx, "grpc call",
			slog.String("method", info.FullMethod),
			slog.Duration("duration", time.Since(start)),
		)
		return resp, nil
	}
}

func loggingStreamInterceptor(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		if err != nil {
			logger.WarnContext(ss.Context(), "grpc stream failed",
				slog.String("method", info.FullMethod),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)
			return err
		}
		logger.DebugContext(ss.Context(), "grpc stream",
			slog.String("method", info.FullMethod),
			slog.Duration("duration", time.Since(start)),
		)
		return nil
	}
}
