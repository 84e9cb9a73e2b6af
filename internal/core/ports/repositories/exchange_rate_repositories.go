package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/currency_exchanger/internal/core/domain"
)

// ExchangeRateReader defines read operations for exchange rate data.
// Lookups return apperrors.ErrNotFound when no record matches; they never change the record.
type ExchangeRateReader interface {
	// FindExchangeRateByDate retrieves the record for the exact (from, to, date) triple.
	FindExchangeRateByDate(ctx context.Context, fromCurrencyCode, toCurrencyCode string, date time.Time) (*domain.ExchangeRate, error)

	// FindLatestExchangeRate retrieves the record with the most recent date for the pair.
	FindLatestExchangeRate(ctx context.Context, fromCurrencyCode, toCurrencyCode string) (*domain.ExchangeRate, error)

	// ListExchangeRates lists stored records, newest first, with optional filters.
	ListExchangeRates(ctx context.Context, filter ExchangeRateFilter) ([]domain.ExchangeRate, int, error)
}

// ExchangeRateWriter defines write operations for exchange rate data
type ExchangeRateWriter interface {
	// UpsertExchangeRate inserts the record with a zero usage counter, or overwrites the rate
	// of the record already stored for the same triple, keeping its usage counter.
	UpsertExchangeRate(ctx context.Context, rate domain.ExchangeRate) error

	// UpsertExchangeRates applies UpsertExchangeRate to every record as one unit of work.
	UpsertExchangeRates(ctx context.Context, rates []domain.ExchangeRate) error

	// IncrementUsage atomically adds one to the usage counter of the stored record.
	// Callers pair it with a successful Find* call.
	IncrementUsage(ctx context.Context, rate domain.ExchangeRate) error
}

// ExchangeRateRepositoryFacade combines all exchange rate-related repository interfaces
// This is a facade for clients that need access to all operations
type ExchangeRateRepositoryFacade interface {
	ExchangeRateReader
	ExchangeRateWriter
}

// ExchangeRateFilter narrows ListExchangeRates. Nil fields are not filtered on.
type ExchangeRateFilter struct {
	FromCurrencyCode *string
	ToCurrencyCode   *string
	DateEffective    *time.Time
	Page             int
	PageSize         int
}
