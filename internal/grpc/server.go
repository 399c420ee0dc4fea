// Package grpcserver exposes the standard gRPC health protocol so
// orchestrators can probe the gateway without going through HTTP auth.
package grpcserver

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthv1pb "google.golang.org/grpc/health/grpc_health_v1"

	"hopperGateway/internal/config"
	"hopperGateway/internal/logger"
)

// ServiceName is the name reported as SERVING next to the overall "" entry.
const ServiceName = "hopper.Gateway"

// StartGRPC listens on cfg.Address and serves the health service. It returns a
// shutdown function that flips every status to NOT_SERVING before stopping.
func StartGRPC(cfg config.GRPCConfig, log logger.Logger) (func(context.Context) error, error) {
	addr := cfg.Address
	if addr == "" {
		addr = ":50051"
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return Serve(lis, log), nil
}

// Serve runs the health service on lis in the background.
func Serve(lis net.Listener, log logger.Logger) func(context.Context) error {
	hs := health.NewServer()
	hs.SetServingStatus("", healthv1pb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthv1pb.HealthCheckResponse_SERVING)

	srv := grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor(log)))
	healthv1pb.RegisterHealthServer(srv, hs)

	go func() {
		if err := srv.Serve(lis); err != nil {
			log.Error("grpc server stopped", zap.Error(err))
		}
	}()

	return func(ctx context.Context) error {
		hs.Shutdown()
		done := make(chan struct{})
		go func() { srv.GracefulStop(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			srv.Stop()
			return ctx.Err()
		}
	}
}

func loggingInterceptor(log logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			log.Warn("grpc call failed", append(fields, zap.Error(err))...)
		} else {
			log.Debug("grpc call", fields...)
		}
		return resp, err
	}
}
