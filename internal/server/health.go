package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Service names reported by the health endpoint. The empty name is the
// overall status.
const (
	ServiceInbox  = "invoicehelper.Inbox"
	ServiceRunLog = "invoicehelper.RunLog"
)

// HealthServer exposes the gRPC health protocol for the daemon.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

func NewHealthServer(logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	// Reflection for grpcurl
	reflection.Register(gs)

	s := &HealthServer{grpc: gs, health: hs, logger: logger}
	s.SetServing("", false)
	s.SetServing(ServiceInbox, false)
	return s
}

// SetServing updates the status of one service.
func (s *HealthServer) SetServing(service string, serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, st)
	s.logger.Debug("health.status", "service", service, "status", st.String())
}

// Serve serves on lis until ctx is done, then stops gracefully.
func (s *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gRPC health serving", "addr", lis.Addr().String())
		errCh <- s.grpc.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// Pinger is anything that can report its own health.
type Pinger func(ctx context.Context) error

// Watch runs ping every interval and mirrors the outcome in service's status
// until ctx is done.
func (s *HealthServer) Watch(ctx context.Context, service string, interval time.Duration, ping Pinger) {
	check := func() {
		err := ping(ctx)
		if err != nil && ctx.Err() == nil {
			s.logger.Warn("health.check.failed", "service", service, "error", err)
		}
		s.SetServing(service, err == nil)
	}
	check()

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			check()
		}
	}
}
