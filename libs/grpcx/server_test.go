package grpcx

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/tenant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
)

func TestHealthCheckFollowsServingStatus(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv, hs := NewServer(slog.New(slog.DiscardHandler))
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	conn, err := Dial("passthrough:///bufnet", DialOptions{
		TransportCredentials: grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	check := HealthCheck(conn, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := check(ctx); err != nil {
		t.Fatalf("expected SERVING, got %v", err)
	}

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	if err := check(ctx); err == nil {
		t.Fatal("expected error once NOT_SERVING")
	}
}

func TestServerInterceptorRestoresTenant(t *testing.T) {
	interceptor := UnaryServerRequestIDInterceptor()
	const biz = "3a9e3c6b-7f21-4d0e-8b5f-2c4d6e8fa0b1"
	md := metadata.Pairs(TenantMetadataKey, biz, RequestIDMetadataKey, "req-1")
	ctx := metadata.NewIncomingContext(context.Background(), md)

	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/test/Method"}, func(ctx context.Context, _ any) (any, error) {
		if id, _ := tenant.FromContext(ctx); id != biz {
			t.Fatalf("expected tenant %s, got %q", biz, id)
		}
		if RequestIDFromContext(ctx) != "req-1" {
			t.Fatalf("expected request id req-1, got %q", RequestIDFromContext(ctx))
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor failed: %v", err)
	}
}

func TestServerInterceptorIgnoresMalformedTenant(t *testing.T) {
	interceptor := UnaryServerRequestIDInterceptor()
	md := metadata.Pairs(TenantMetadataKey, "biz-4")
	ctx := metadata.NewIncomingContext(context.Background(), md)

	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/test/Method"}, func(ctx context.Context, _ any) (any, error) {
		if id, ok := tenant.FromContext(ctx); ok {
			t.Fatalf("expected no tenant, got %q", id)
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor failed: %v", err)
	}
}
