package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/SscSPs/currency_exchanger/internal/apperrors"
	"github.com/SscSPs/currency_exchanger/internal/core/domain"
	portsrepo "github.com/SscSPs/currency_exchanger/internal/core/ports/repositories"
	"github.com/SscSPs/currency_exchanger/internal/metrics"
	"github.com/shopspring/decimal"
)

const (
	// crossRatePrecision is the number of significant digits kept when dividing two base-relative rates.
	crossRatePrecision = 20

	defaultPageSize = 50
	maxPageSize     = 500
)

// ExchangeService computes spread-adjusted cross rates from stored base-relative rates.
type ExchangeService struct {
	BaseService
	rateRepo portsrepo.ExchangeRateRepositoryFacade
	policy   domain.SpreadPolicy
	metrics  *metrics.Metrics
}

// ExchangeServiceOption configures an ExchangeService.
type ExchangeServiceOption func(*ExchangeService)

// WithExchangeMetrics records calculation outcomes in m.
func WithExchangeMetrics(m *metrics.Metrics) ExchangeServiceOption {
	return func(s *ExchangeService) { s.metrics = m }
}

// NewExchangeService creates a new ExchangeService.
func NewExchangeService(rateRepo portsrepo.ExchangeRateRepositoryFacade, policy domain.SpreadPolicy, opts ...ExchangeServiceOption) *ExchangeService {
	s := &ExchangeService{
		rateRepo: rateRepo,
		policy:   policy,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CalculateExchangeRate returns the spread-adjusted rate for source -> target.
//
// Both legs are looked up independently against the base currency and every record found
// has its usage counter incremented, even when the other leg is missing.
func (s *ExchangeService) CalculateExchangeRate(ctx context.Context, source, target string, asOf *time.Time) (*domain.ExchangeQuote, error) {
	source = strings.ToUpper(source)
	target = strings.ToUpper(target)
	logger := s.GetLogger(ctx).With(slog.String("source", source), slog.String("target", target), slog.String("date", describeDate(asOf)))

	baseToSource, errSource := s.lookupRate(ctx, source, asOf)
	baseToTarget, errTarget := s.lookupRate(ctx, target, asOf)

	for _, err := range []error{errSource, errTarget} {
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			s.metrics.ObserveCalculation(metrics.ResultError)
			return nil, fmt.Errorf("failed to look up exchange rate: %w", err)
		}
	}
	if errSource != nil || errTarget != nil {
		logger.Warn("One of currencies without exchange rates from base currency",
			slog.Bool("source_found", errSource == nil),
			slog.Bool("target_found", errTarget == nil),
		)
		s.metrics.ObserveCalculation(metrics.ResultNotFound)
		return nil, fmt.Errorf("%w: no exchange rate from %s for %s and %s", apperrors.ErrNotFound, s.policy.BaseCurrency(), source, target)
	}

	// Stored rates are strictly positive; a zero divisor means the store holds corrupt data.
	if !baseToSource.Rate.IsPositive() {
		s.metrics.ObserveCalculation(metrics.ResultError)
		return nil, apperrors.NewAppError(http.StatusInternalServerError,
			fmt.Sprintf("stored rate %s->%s on %s is not positive", baseToSource.FromCurrencyCode, baseToSource.ToCurrencyCode, baseToSource.DateEffective.Format(domain.DateLayout)), nil)
	}

	crossRate := divideSignificant(baseToTarget.Rate, baseToSource.Rate, crossRatePrecision)
	spread := s.policy.SpreadFor(source, target)
	rate := crossRate.Mul(decimal.NewFromInt(1).Sub(spread.Shift(-2)))

	logger.Info("Calculated exchange rate", slog.String("spread", spread.String()), slog.String("rate", rate.String()))
	s.metrics.ObserveCalculation(metrics.ResultSuccess)

	return &domain.ExchangeQuote{From: source, To: target, Rate: rate}, nil
}

// ListExchangeRates returns a page of stored records, newest first.
func (s *ExchangeService) ListExchangeRates(ctx context.Context, filter portsrepo.ExchangeRateFilter) ([]domain.ExchangeRate, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}
	if filter.FromCurrencyCode != nil {
		code := strings.ToUpper(*filter.FromCurrencyCode)
		filter.FromCurrencyCode = &code
	}
	if filter.ToCurrencyCode != nil {
		code := strings.ToUpper(*filter.ToCurrencyCode)
		filter.ToCurrencyCode = &code
	}
	if filter.DateEffective != nil {
		date := domain.TruncateToDate(*filter.DateEffective)
		filter.DateEffective = &date
	}

	rates, total, err := s.rateRepo.ListExchangeRates(ctx, filter)
	if err != nil {
		s.LogError(ctx, err, "Failed to list exchange rates")
		return nil, 0, fmt.Errorf("failed to list exchange rates in service: %w", err)
	}
	return rates, total, nil
}

// lookupRate finds the base -> currency record for asOf (latest when nil) and counts its use.
func (s *ExchangeService) lookupRate(ctx context.Context, currency string, asOf *time.Time) (*domain.ExchangeRate, error) {
	base := s.policy.BaseCurrency()

	var (
		rate *domain.ExchangeRate
		err  error
	)
	if asOf == nil {
		s.LogDebug(ctx, "Retrieving latest exchange rate", slog.String("from", base), slog.String("to", currency))
		rate, err = s.rateRepo.FindLatestExchangeRate(ctx, base, currency)
	} else {
		date := domain.TruncateToDate(*asOf)
		s.LogDebug(ctx, "Retrieving exchange rate", slog.String("from", base), slog.String("to", currency), slog.Time("date", date))
		rate, err = s.rateRepo.FindExchangeRateByDate(ctx, base, currency, date)
	}
	if err != nil {
		return nil, err
	}

	if err := s.rateRepo.IncrementUsage(ctx, *rate); err != nil {
		return nil, fmt.Errorf("failed to increment usage counter of %s->%s: %w", base, currency, err)
	}
	rate.UsageCounter++
	return rate, nil
}

// divideSignificant divides a by b and rounds half away from zero to the given number of
// significant digits.
func divideSignificant(a, b decimal.Decimal, digits int32) decimal.Decimal {
	q := a.DivRound(b, 2*digits+8)
	if q.IsZero() {
		return q
	}
	coefficient := q.Coefficient()
	coefficientDigits := int32(len(coefficient.Abs(coefficient).String()))
	return q.Round(digits - coefficientDigits - q.Exponent())
}

func describeDate(asOf *time.Time) string {
	if asOf == nil {
		return "latest"
	}
	return asOf.Format(domain.DateLayout)
}
