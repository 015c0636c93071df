package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	grpclogs "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ChatServiceName is the service name health checks ask about.
const ChatServiceName = "fitpulse.chat.v1.Chat"

// AdminServer exposes the standard gRPC health service on the admin port.
type AdminServer struct {
	log    *slog.Logger
	server *grpc.Server
	health *health.Server
}

func NewAdminServer(log *slog.Logger) *AdminServer {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(grpclogs.UnaryLoggingInterceptor(log)))
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)
	h.SetServingStatus(ChatServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &AdminServer{log: log, server: s, health: h}
}

// SetServing flips the overall and the chat service status together.
func (a *AdminServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	a.health.SetServingStatus("", status)
	a.health.SetServingStatus(ChatServiceName, status)
}

// Serve blocks until the listener fails or Stop is called.
func (a *AdminServer) Serve(listener net.Listener) error {
	a.log.Info("Starting gRPC admin server", "address", listener.Addr().String(), "at", time.Now().UTC())
	for serviceName := range a.server.GetServiceInfo() {
		a.log.Debug("gRPC exposed services", "name", serviceName)
	}
	if err := a.server.Serve(listener); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("gRPC server error: %w", err)
	}
	return nil
}

// Stop marks everything as not serving so load balancers drain traffic, then stops gracefully.
func (a *AdminServer) Stop() {
	a.health.Shutdown()
	a.server.GracefulStop()
}

// Check asks a health server for the status of service.
func Check(ctx context.Context, conn grpc.ClientConnInterface, service string) (*healthpb.HealthCheckResponse, error) {
	return healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
}
