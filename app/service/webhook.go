package service

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-plans/app/factory"
)

const WebhookSuccessMessage = "Plans cache invalidated"

type plansInvalidator interface {
	Invalidate(ctx context.Context, reason string)
}

type WebhookEvent struct {
	Event     string
	Timestamp string
}

type WebhookResult struct {
	Message   string
	Timestamp time.Time
}

// WebhookService authenticates ERP change notifications by shared secret.
type WebhookService struct {
	secret string
	plans  plansInvalidator
	now    func() time.Time
	logger logrus.FieldLogger
}

func NewWebhookService(secret string, plans plansInvalidator) *WebhookService {
	return &WebhookService{
		secret: secret,
		plans:  plans,
		now:    time.Now,
		logger: factory.NewModuleLogger("plans-webhook"),
	}
}

func (s *WebhookService) Authorize(signature string) error {
	if s.secret == "" || signature == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(signature), []byte(s.secret)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Handle invalidates the plans cache when signature matches the shared secret.
// It does not refetch; the next read repopulates the cache.
func (s *WebhookService) Handle(ctx context.Context, signature string, event WebhookEvent) (*WebhookResult, error) {
	if err := s.Authorize(signature); err != nil {
		s.logger.WithField("event", event.Event).Warn("Rejected plans webhook")
		return nil, err
	}

	reason := strings.TrimSpace(event.Event)
	if reason == "" {
		reason = "webhook"
	}
	s.plans.Invalidate(ctx, reason)

	s.logger.WithFields(logrus.Fields{
		"event":           event.Event,
		"event_timestamp": event.Timestamp,
	}).Info("Received plans webhook")

	return &WebhookResult{Message: WebhookSuccessMessage, Timestamp: s.now().UTC()}, nil
}
