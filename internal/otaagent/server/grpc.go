package server

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcmw "github.com/autopeer-io/ota-agent/internal/pkg/middleware/grpc"
	"github.com/autopeer-io/ota-agent/pkg/log"
	"github.com/autopeer-io/ota-agent/pkg/options"
)

// ServiceName is the health service name reported for the update loop.
const ServiceName = "cpeer.ota.Agent"

// GRPCServer serves the standard gRPC health service.
type GRPCServer struct {
	server  *grpc.Server
	health  *health.Server
	options *options.GrpcOptions
}

func NewGRPCServer(opts *options.GrpcOptions) *GRPCServer {
	s := grpc.NewServer(grpc.UnaryInterceptor(grpcmw.UnaryTimeoutInterceptor(opts.Timeout)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s) // Enable grpc_cli support

	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &GRPCServer{
		server:  s,
		health:  hs,
		options: opts,
	}
}

// SetServing flips the health of the update loop service.
func (s *GRPCServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
}

func (s *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen(s.options.Network, s.options.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is canceled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	log.Info("Starting gRPC Server", "addr", lis.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.health.Shutdown()
		s.server.GracefulStop()
		return nil
	}
}
