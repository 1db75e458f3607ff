package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-plans/app/dto"
	"github.com/vibast-solutions/ms-go-plans/app/factory"
	"github.com/vibast-solutions/ms-go-plans/app/types"
)

// HTTPService posts {event, timestamp} with the shared secret in the
// x-webhook-signature header.
type HTTPService struct {
	secret     string
	event      string
	httpClient *http.Client
	now        func() time.Time
	logger     logrus.FieldLogger
}

func NewHTTPService(secret string, timeout time.Duration) *HTTPService {
	return &HTTPService{
		secret:     secret,
		event:      DefaultEvent,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
		logger:     factory.NewModuleLogger("plans-notify"),
	}
}

func (s *HTTPService) WithEvent(event string) *HTTPService {
	if event != "" {
		s.event = event
	}
	return s
}

func (s *HTTPService) NotifyPlansUpdated(ctx context.Context, url string) Result {
	body, err := json.Marshal(dto.WebhookRequest{
		Event:     s.event,
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return s.failure(url, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return s.failure(url, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(types.WebhookSignatureHeader, s.secret)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return s.failure(url, 0, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return s.failure(url, resp.StatusCode, fmt.Errorf("webhook returned status: %d", resp.StatusCode))
	}

	s.logger.WithField("url", url).Info("Site notified of plan changes")
	return Result{Type: ResultTypeSuccess, URL: url, StatusCode: resp.StatusCode}
}

func (s *HTTPService) failure(url string, status int, err error) Result {
	s.logger.WithError(err).WithField("url", url).Warn("Webhook failed")
	return Result{Type: ResultTypeFailure, URL: url, StatusCode: status, Error: err.Error()}
}
