package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/SscSPs/currency_exchanger/internal/apperrors"
	"github.com/SscSPs/currency_exchanger/internal/core/domain"
	"github.com/SscSPs/currency_exchanger/internal/core/ports/providers"
	portsrepo "github.com/SscSPs/currency_exchanger/internal/core/ports/repositories"
	"github.com/SscSPs/currency_exchanger/internal/metrics"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// IngestionActor is recorded in the audit fields of rows written by ingestion.
const IngestionActor = "rates-ingestion"

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = 30 * time.Second
)

// IngestionService fetches the latest provider rate table and upserts it into the store.
// Runs are serialized: a second caller waits until the running cycle finishes.
type IngestionService struct {
	BaseService
	rateRepo       portsrepo.ExchangeRateWriter
	provider       providers.RatesProvider
	baseCurrency   string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	running        *semaphore.Weighted
	metrics        *metrics.Metrics
	now            func() time.Time
}

// IngestionOption configures an IngestionService.
type IngestionOption func(*IngestionService)

// WithRetryPolicy sets the number of provider attempts per cycle and the first backoff interval.
func WithRetryPolicy(maxAttempts int, initialBackoff time.Duration) IngestionOption {
	return func(s *IngestionService) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if initialBackoff > 0 {
			s.initialBackoff = initialBackoff
		}
	}
}

// WithIngestionMetrics records ingestion outcomes in m.
func WithIngestionMetrics(m *metrics.Metrics) IngestionOption {
	return func(s *IngestionService) { s.metrics = m }
}

// WithClock overrides the clock used for audit timestamps.
func WithClock(now func() time.Time) IngestionOption {
	return func(s *IngestionService) { s.now = now }
}

// NewIngestionService creates a new IngestionService anchored at baseCurrency.
func NewIngestionService(rateRepo portsrepo.ExchangeRateWriter, provider providers.RatesProvider, baseCurrency string, opts ...IngestionOption) *IngestionService {
	s := &IngestionService{
		rateRepo:       rateRepo,
		provider:       provider,
		baseCurrency:   strings.ToUpper(baseCurrency),
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		running:        semaphore.NewWeighted(1),
		now:            time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// FetchAndStore runs one ingestion cycle. Every failure is reported wrapping
// apperrors.ErrFetchFailed; a failed fetch or validation writes nothing.
func (s *IngestionService) FetchAndStore(ctx context.Context) error {
	if err := s.running.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: waiting for running ingestion: %w", apperrors.ErrFetchFailed, err)
	}
	defer s.running.Release(1)

	start := time.Now()
	upserted, err := s.fetchAndStore(ctx)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		s.LogError(ctx, err, "Failed to refresh exchange rates", slog.String("base", s.baseCurrency))
		s.metrics.ObserveIngestion(metrics.ResultError, elapsed, 0)
		return fmt.Errorf("%w: %w", apperrors.ErrFetchFailed, err)
	}

	s.LogInfo(ctx, "Exchange rates refreshed", slog.String("base", s.baseCurrency), slog.Int("rates", upserted))
	s.metrics.ObserveIngestion(metrics.ResultSuccess, elapsed, upserted)
	return nil
}

func (s *IngestionService) fetchAndStore(ctx context.Context) (int, error) {
	s.LogInfo(ctx, "Fetching exchange rates", slog.String("base", s.baseCurrency))
	rates, err := s.fetchWithRetry(ctx)
	if err != nil {
		return 0, err
	}
	if err := validateProviderRates(rates); err != nil {
		return 0, err
	}

	records := s.toRecords(rates)
	s.LogInfo(ctx, "Storing exchange rates",
		slog.String("base", rates.Base),
		slog.String("date", rates.Date.Format(domain.DateLayout)),
		slog.Int("count", len(records)),
	)
	if err := s.rateRepo.UpsertExchangeRates(ctx, records); err != nil {
		return 0, fmt.Errorf("failed to store exchange rates: %w", err)
	}
	return len(records), nil
}

// fetchWithRetry calls the provider until it succeeds, fails permanently, the attempts run
// out or ctx is done. Only errors wrapping providers.ErrTransient are retried.
func (s *IngestionService) fetchWithRetry(ctx context.Context) (*domain.ProviderRates, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.initialBackoff
	policy.MaxInterval = s.maxBackoff
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.maxAttempts-1)), ctx)

	attempt := 0
	operation := func() (*domain.ProviderRates, error) {
		attempt++
		rates, err := s.provider.FetchLatestRates(ctx, s.baseCurrency)
		if err != nil {
			s.metrics.ObserveProviderAttempt(metrics.ResultError)
			if errors.Is(err, providers.ErrTransient) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		s.metrics.ObserveProviderAttempt(metrics.ResultSuccess)
		return rates, nil
	}
	notify := func(err error, wait time.Duration) {
		s.LogWarn(ctx, "Exchange rates fetch failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", s.maxAttempts),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()),
		)
	}

	rates, err := backoff.RetryNotifyWithData(operation, b, notify)
	if err != nil {
		return nil, fmt.Errorf("fetch latest rates after %d attempt(s): %w", attempt, err)
	}
	return rates, nil
}

// validateProviderRates rejects a response that must not reach the store.
func validateProviderRates(rates *domain.ProviderRates) error {
	if rates == nil {
		return errors.New("provider returned an empty response")
	}
	if !rates.Success {
		if rates.ErrorInfo != "" {
			return fmt.Errorf("provider reported failure: %s", rates.ErrorInfo)
		}
		return errors.New("provider reported failure")
	}
	if rates.Base == "" {
		return errors.New("provider response has no base currency")
	}
	if rates.Date.IsZero() {
		return errors.New("provider response has no date")
	}
	if len(rates.Rates) == 0 {
		return errors.New("provider response has no rates")
	}
	for code, rate := range rates.Rates {
		if code == "" {
			return errors.New("provider response has an empty currency code")
		}
		if !rate.IsPositive() {
			return fmt.Errorf("provider rate for %s is not positive: %s", code, rate)
		}
	}
	return nil
}

// toRecords turns a validated table into fresh records, sorted by quote currency.
func (s *IngestionService) toRecords(rates *domain.ProviderRates) []domain.ExchangeRate {
	now := s.now().UTC()
	base := strings.ToUpper(rates.Base)
	date := domain.TruncateToDate(rates.Date)

	records := make([]domain.ExchangeRate, 0, len(rates.Rates))
	for _, code := range slices.Sorted(maps.Keys(rates.Rates)) {
		records = append(records, domain.ExchangeRate{
			ExchangeRateID:   uuid.NewString(),
			FromCurrencyCode: base,
			ToCurrencyCode:   strings.ToUpper(code),
			Rate:             rates.Rates[code],
			DateEffective:    date,
			UsageCounter:     0,
			AuditFields: domain.AuditFields{
				CreatedAt:     now,
				CreatedBy:     IngestionActor,
				LastUpdatedAt: now,
				LastUpdatedBy: IngestionActor,
			},
		})
	}
	return records
}
