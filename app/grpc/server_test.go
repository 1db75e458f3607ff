package grpc

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-plans/app/cache"
	"github.com/vibast-solutions/ms-go-plans/app/mapper"
	"github.com/vibast-solutions/ms-go-plans/app/service"
	"github.com/vibast-solutions/ms-go-plans/config"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type grpcFetcher struct {
	records []map[string]any
	err     error
	calls   atomic.Int32
}

func (f *grpcFetcher) Configured() bool { return true }

func (f *grpcFetcher) FetchPlans(context.Context) ([]map[string]any, error) {
	f.calls.Add(1)
	return f.records, f.err
}

func startTestServer(t *testing.T, fetcher *grpcFetcher, secret string) *grpc.ClientConn {
	t.Helper()

	plansSvc := service.NewPlansService(
		fetcher,
		mapper.NewPlanNormalizer(true),
		cache.NewPlansCache(),
		nil,
		config.PlansConfig{CacheTTL: time.Minute},
	)

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer(UnaryInterceptors())
	RegisterPlansServiceServer(server, NewServer(plansSvc, service.NewWebhookService(secret, plansSvc)))
	healthpb.RegisterHealthServer(server, health.NewServer())

	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGetPlansOverGRPC(t *testing.T) {
	fetcher := &grpcFetcher{records: []map[string]any{
		{"_id": "p1", "name": "Standard", "price": 31.99, "features": "customers,bills"},
	}}
	client := NewPlansServiceClient(startTestServer(t, fetcher, "s3cret"))

	var header metadata.MD
	list, err := client.GetPlans(context.Background(), false, grpc.Header(&header))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := header.Get(sourceMetadataKey); len(got) != 1 || got[0] != "erp" {
		t.Fatalf("expected erp source header, got %v", got)
	}
	if got := header.Get(requestIDHeader); len(got) != 1 {
		t.Fatalf("expected request id header, got %v", got)
	}

	values := list.GetValues()
	if len(values) != 1 {
		t.Fatalf("expected 1 plan, got %d", len(values))
	}
	plan := values[0].GetStructValue().GetFields()
	if plan["id"].GetStringValue() != "p1" || plan["price"].GetNumberValue() != 31.99 {
		t.Fatalf("unexpected plan: %v", plan)
	}
	features := plan["features"].GetListValue().GetValues()
	if len(features) != 2 || features[0].GetStringValue() != "Customer Management" {
		t.Fatalf("unexpected features: %v", features)
	}
}

func TestGetPlansOverGRPCFallback(t *testing.T) {
	client := NewPlansServiceClient(startTestServer(t, &grpcFetcher{err: errors.New("down")}, "s3cret"))

	list, err := client.GetPlans(context.Background(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	values := list.GetValues()
	if len(values) != 3 {
		t.Fatalf("expected fallback plans, got %d", len(values))
	}
	if got := values[2].GetStructValue().GetFields()["maxProducts"].GetStringValue(); got != "Unlimited" {
		t.Fatalf("expected Unlimited maxProducts, got %q", got)
	}
}

func TestInvalidatePlansOverGRPC(t *testing.T) {
	fetcher := &grpcFetcher{records: []map[string]any{{"_id": "p1", "price": 1}}}
	client := NewPlansServiceClient(startTestServer(t, fetcher, "s3cret"))
	ctx := context.Background()

	if _, err := client.GetPlans(ctx, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := client.InvalidatePlans(ctx, "wrong")
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}

	ts, err := client.InvalidatePlans(ctx, "s3cret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.AsTime().IsZero() {
		t.Fatalf("expected invalidation timestamp")
	}

	if _, err := client.GetPlans(ctx, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.calls.Load() != 2 {
		t.Fatalf("expected refetch after invalidation, got %d calls", fetcher.calls.Load())
	}
}

func TestInvalidatePlansSignatureFromMetadata(t *testing.T) {
	client := NewPlansServiceClient(startTestServer(t, &grpcFetcher{}, "s3cret"))
	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-webhook-signature", "s3cret")

	if _, err := client.InvalidatePlans(ctx, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHealthOverGRPC(t *testing.T) {
	conn := startTestServer(t, &grpcFetcher{}, "")

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", resp.GetStatus())
	}
}
