package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-plans/app/dto"
	"github.com/vibast-solutions/ms-go-plans/app/types"
)

func TestNotifyPlansUpdatedSuccess(t *testing.T) {
	var gotSignature string
	var gotBody dto.WebhookRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get(types.WebhookSignatureHeader)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := NewHTTPService("s3cret", time.Second)
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	result := svc.NotifyPlansUpdated(context.Background(), srv.URL+"/webhooks/plans")
	if result.Type != ResultTypeSuccess || result.StatusCode != http.StatusOK {
		t.Fatalf("unexpected result: %+v", result)
	}
	if gotSignature != "s3cret" {
		t.Fatalf("expected signature header, got %q", gotSignature)
	}
	if gotBody.Event != DefaultEvent || gotBody.Timestamp != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected body: %+v", gotBody)
	}
}

func TestNotifyPlansUpdatedRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := NewHTTPService("wrong", time.Second).NotifyPlansUpdated(context.Background(), srv.URL)
	if result.Type != ResultTypeFailure || result.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestNotifyPlansUpdatedUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	result := NewHTTPService("s3cret", time.Second).WithEvent("plans_deleted").NotifyPlansUpdated(context.Background(), url)
	if result.Type != ResultTypeFailure || result.Error == "" {
		t.Fatalf("unexpected result: %+v", result)
	}
}
