package services

import (
	"context"
	"time"

	"github.com/SscSPs/currency_exchanger/internal/core/domain"
	portsrepo "github.com/SscSPs/currency_exchanger/internal/core/ports/repositories"
)

// ExchangeCalculatorSvc computes spread-adjusted cross rates.
type ExchangeCalculatorSvc interface {
	// CalculateExchangeRate returns the quote for source -> target, using rates stored for asOf
	// or, when asOf is nil, the latest stored rates. Returns apperrors.ErrNotFound when either
	// leg has no stored rate.
	CalculateExchangeRate(ctx context.Context, source, target string, asOf *time.Time) (*domain.ExchangeQuote, error)
}

// ExchangeRateReaderSvc exposes stored rate records.
type ExchangeRateReaderSvc interface {
	// ListExchangeRates returns a page of stored records and the total count.
	ListExchangeRates(ctx context.Context, filter portsrepo.ExchangeRateFilter) ([]domain.ExchangeRate, int, error)
}

// ExchangeSvcFacade combines the calculator and read-only record access.
type ExchangeSvcFacade interface {
	ExchangeCalculatorSvc
	ExchangeRateReaderSvc
}

// RateIngestionSvc refreshes stored rates from the external provider.
type RateIngestionSvc interface {
	// FetchAndStore fetches the latest table and upserts it. Any failure is reported
	// as apperrors.ErrFetchFailed and leaves previously stored data untouched.
	FetchAndStore(ctx context.Context) error
}
