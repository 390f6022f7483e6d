package health

import (
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// GRPCServer serves grpc.health.v1.Health for the whole server and for service.
type GRPCServer struct {
	service  string
	server   *grpc.Server
	health   *grpchealth.Server
	listener net.Listener
	logger   *zap.Logger
}

func NewGRPCServer(service string, logger *zap.Logger) *GRPCServer {
	if logger == nil {
		logger = zap.NewNop()
	}

	server := grpc.NewServer()
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	// grpcurl and friends
	reflection.Register(server)

	g := &GRPCServer{
		service: service,
		server:  server,
		health:  hs,
		logger:  logger,
	}
	g.SetServing(false)
	return g
}

// Listen binds addr; Serve must be called afterwards.
func (g *GRPCServer) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	g.listener = listener
	return nil
}

func (g *GRPCServer) Addr() string {
	if g.listener == nil {
		return ""
	}
	return g.listener.Addr().String()
}

// Serve blocks until Stop.
func (g *GRPCServer) Serve() error {
	if g.listener == nil {
		return fmt.Errorf("gRPC health server: Listen not called")
	}
	g.logger.Info("gRPC health server listening", zap.String("addr", g.Addr()))
	return g.server.Serve(g.listener)
}

func (g *GRPCServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(g.service, status)
}

func (g *GRPCServer) Stop() {
	g.health.Shutdown()
	g.server.GracefulStop()
	if g.listener != nil {
		g.listener.Close()
	}
}
