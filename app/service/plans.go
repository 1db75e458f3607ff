package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-plans/app/cache"
	"github.com/vibast-solutions/ms-go-plans/app/entity"
	"github.com/vibast-solutions/ms-go-plans/app/erp"
	"github.com/vibast-solutions/ms-go-plans/app/factory"
	"github.com/vibast-solutions/ms-go-plans/app/mapper"
	"github.com/vibast-solutions/ms-go-plans/config"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "plans"

type planFetcher interface {
	Configured() bool
	FetchPlans(ctx context.Context) ([]map[string]any, error)
}

type invalidationPublisher interface {
	Publish(ctx context.Context, reason string) error
}

type PlansResult struct {
	Plans     []entity.Plan
	Source    entity.PlanSource
	FetchedAt time.Time
}

type lastAttempt struct {
	at     time.Time
	source entity.PlanSource
	err    error
}

// PlansService serves the plan list from the cache, the ERP, the last good
// cache entry, or the bundled fallback, in that order. It never fails.
type PlansService struct {
	fetcher    planFetcher
	normalizer *mapper.PlanNormalizer
	cache      *cache.PlansCache
	fallback   []entity.Plan
	ttl        time.Duration
	publisher  invalidationPublisher
	group      singleflight.Group
	now        func() time.Time
	logger     logrus.FieldLogger

	mu      sync.Mutex
	attempt lastAttempt
}

func NewPlansService(
	fetcher planFetcher,
	normalizer *mapper.PlanNormalizer,
	plansCache *cache.PlansCache,
	fallback []entity.Plan,
	cfg config.PlansConfig,
) *PlansService {
	if len(fallback) == 0 {
		fallback = DefaultFallbackPlans()
	}

	return &PlansService{
		fetcher:    fetcher,
		normalizer: normalizer,
		cache:      plansCache,
		fallback:   mapper.ActiveSorted(entity.ClonePlans(fallback)),
		ttl:        cfg.CacheTTL,
		now:        time.Now,
		logger:     factory.NewModuleLogger("plans-service"),
	}
}

// SetInvalidationPublisher makes Invalidate fan out to other instances.
func (s *PlansService) SetInvalidationPublisher(publisher invalidationPublisher) {
	s.publisher = publisher
}

func (s *PlansService) GetPlans(ctx context.Context, forceRefresh bool) []entity.Plan {
	return s.GetPlansResult(ctx, forceRefresh).Plans
}

func (s *PlansService) GetPlansResult(ctx context.Context, forceRefresh bool) PlansResult {
	if forceRefresh {
		return s.refresh(ctx)
	}

	if entry := s.cache.Read(); entry != nil && !cache.IsStale(entry, s.now(), s.ttl) {
		return PlansResult{
			Plans:     entity.ClonePlans(entry.Plans),
			Source:    entity.PlanSourceCache,
			FetchedAt: entry.FetchedAt,
		}
	}

	shared := context.WithoutCancel(ctx)
	value, _, _ := s.group.Do(refreshKey, func() (interface{}, error) {
		return s.refresh(shared), nil
	})
	result := value.(PlansResult)
	result.Plans = entity.ClonePlans(result.Plans)
	return result
}

func (s *PlansService) Refresh(ctx context.Context) PlansResult {
	return s.refresh(ctx)
}

func (s *PlansService) refresh(ctx context.Context) PlansResult {
	now := s.now()

	records, err := s.fetcher.FetchPlans(ctx)
	if err != nil {
		return s.fallbackResult(now, err)
	}

	plans, recordErrs := s.normalizer.NormalizeAll(records)
	for _, recordErr := range recordErrs {
		s.logger.WithError(recordErr).Warn("Skipping malformed plan record")
	}
	if len(records) > 0 && len(recordErrs) == len(records) {
		return s.fallbackResult(now, ErrNoUsableRecords)
	}

	s.cache.Store(plans, now)
	s.recordAttempt(now, entity.PlanSourceERP, nil)
	s.logger.WithFields(logrus.Fields{
		"plans":   len(plans),
		"skipped": len(recordErrs),
	}).Info("Fetched plans from ERP")

	return PlansResult{Plans: entity.ClonePlans(plans), Source: entity.PlanSourceERP, FetchedAt: now}
}

func (s *PlansService) fallbackResult(now time.Time, cause error) PlansResult {
	entry := s.cache.Read()
	if entry != nil {
		s.recordAttempt(now, entity.PlanSourceStaleCache, cause)
		s.logger.WithError(cause).Warn("Returning cached plans due to ERP error")
		return PlansResult{
			Plans:     entity.ClonePlans(entry.Plans),
			Source:    entity.PlanSourceStaleCache,
			FetchedAt: entry.FetchedAt,
		}
	}

	s.recordAttempt(now, entity.PlanSourceFallback, cause)
	if errors.Is(cause, erp.ErrNotConfigured) {
		s.logger.Debug("ERP not configured, using fallback plans")
	} else {
		s.logger.WithError(cause).Warn("Using fallback plans")
	}
	return PlansResult{Plans: entity.ClonePlans(s.fallback), Source: entity.PlanSourceFallback}
}

// Invalidate clears the local cache and notifies other instances when a
// publisher is configured. The next read fetches from the ERP.
func (s *PlansService) Invalidate(ctx context.Context, reason string) {
	s.InvalidateLocal(reason)
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, reason); err != nil {
		s.logger.WithError(err).Warn("Failed to broadcast plans invalidation")
	}
}

func (s *PlansService) InvalidateLocal(reason string) {
	s.cache.Invalidate()
	s.logger.WithField("reason", reason).Info("Plans cache cleared")
}

func (s *PlansService) Status() entity.SyncStatus {
	status := entity.SyncStatus{Configured: s.fetcher.Configured()}

	if entry := s.cache.Read(); entry != nil {
		status.Cached = true
		status.FetchedAt = entry.FetchedAt
		status.Stale = cache.IsStale(entry, s.now(), s.ttl)
		status.PlanCount = len(entry.Plans)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	status.LastAttemptAt = s.attempt.at
	status.LastSource = s.attempt.source
	if s.attempt.err != nil {
		status.LastError = statusErrorMessage(s.attempt.err)
	}
	return status
}

// statusErrorMessage keeps internal addresses out of the status view.
func statusErrorMessage(err error) string {
	if msg := erp.Describe(err); msg != "" {
		return msg
	}
	if errors.Is(err, ErrNoUsableRecords) {
		return ErrNoUsableRecords.Error()
	}
	return "erp request failed"
}

func (s *PlansService) recordAttempt(at time.Time, source entity.PlanSource, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt = lastAttempt{at: at, source: source, err: err}
}
