//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const (
	defaultPlansERPAPIKey = "plans-erp-api-key"
	defaultWebhookSecret  = "plans-webhook-secret"
	plansERPMockAddr      = "127.0.0.1:38083"
)

func plansERPAPIKey() string {
	if value := strings.TrimSpace(os.Getenv("PLANS_ERP_API_KEY")); value != "" {
		return value
	}
	return defaultPlansERPAPIKey
}

func plansWebhookSecret() string {
	if value := strings.TrimSpace(os.Getenv("PLANS_WEBHOOK_SECRET")); value != "" {
		return value
	}
	return defaultWebhookSecret
}

// erpMock serves /api/public/plans the way the ERP does. The version counter
// changes the Standard plan price so tests can tell fresh data from cached.
type erpMock struct {
	failing atomic.Bool
	version atomic.Int64
	calls   atomic.Int64
}

var mockERP = &erpMock{}

func (m *erpMock) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/public/plans" {
		http.NotFound(w, r)
		return
	}
	m.calls.Add(1)

	if r.Header.Get("x-api-key") != plansERPAPIKey() {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"error":"invalid api key"}`))
		return
	}
	if m.failing.Load() {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"success":true,"data":[
		{"_id":"e2e-pro","name":"E2E Pro","price":79.99,"maxProducts":2000,"features":"multistore,analytics","sortOrder":2},
		{"_id":"e2e-standard","name":"E2E Standard","price":%d,"maxProducts":-1,"features":"customersBills","sortOrder":1},
		{"_id":"e2e-hidden","name":"Hidden","price":1,"isActive":false},
		{"name":"no id"}
	]}`, 30+m.version.Load())
}

func TestMain(m *testing.M) {
	if os.Getenv("PLANS_ERP_API_KEY") == "" {
		_ = os.Setenv("PLANS_ERP_API_KEY", defaultPlansERPAPIKey)
	}
	if os.Getenv("PLANS_WEBHOOK_SECRET") == "" {
		_ = os.Setenv("PLANS_WEBHOOK_SECRET", defaultWebhookSecret)
	}

	listener, err := net.Listen("tcp", plansERPMockAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start erp mock: %v\n", err)
		os.Exit(1)
	}

	server := &http.Server{Handler: mockERP, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.Serve(listener)
	}()

	exitCode := m.Run()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = server.Shutdown(ctx)
	cancel()

	os.Exit(exitCode)
}
