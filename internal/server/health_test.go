package server

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func startServer(t *testing.T) (*HealthServer, healthpb.HealthClient) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := NewHealthServer(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Serve: %v", err)
		}
	})

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return s, healthpb.NewHealthClient(conn)
}

func status(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func TestHealthServerStatus(t *testing.T) {
	s, c := startServer(t)

	if got := status(t, c, ServiceInbox); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("inbox before start = %s", got)
	}
	s.SetServing("", true)
	s.SetServing(ServiceInbox, true)
	if got := status(t, c, ServiceInbox); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("inbox = %s", got)
	}
	if got := status(t, c, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("overall = %s", got)
	}
}

func TestHealthServerWatch(t *testing.T) {
	s, c := startServer(t)

	var fail atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Watch(ctx, ServiceRunLog, 10*time.Millisecond, func(context.Context) error {
		if fail.Load() {
			return errors.New("db down")
		}
		return nil
	})

	waitFor := func(want healthpb.HealthCheckResponse_ServingStatus) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceRunLog})
			cancel()
			if err == nil && resp.GetStatus() == want {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		t.Fatalf("run log never reached %s", want)
	}

	waitFor(healthpb.HealthCheckResponse_SERVING)
	fail.Store(true)
	waitFor(healthpb.HealthCheckResponse_NOT_SERVING)
}
