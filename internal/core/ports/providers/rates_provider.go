package providers

import (
	"context"
	"errors"

	"github.com/SscSPs/currency_exchanger/internal/core/domain"
)

// RatesProvider fetches the latest rate table from an external source.
type RatesProvider interface {
	// FetchLatestRates returns the provider's latest table anchored at baseCurrency.
	// Errors wrapping ErrTransient are worth retrying; anything else is not.
	FetchLatestRates(ctx context.Context, baseCurrency string) (*domain.ProviderRates, error)
}

// ErrTransient marks a provider failure that may succeed on another attempt
// (network errors, timeouts, throttling and 5xx responses).
var ErrTransient = errors.New("transient provider failure")
