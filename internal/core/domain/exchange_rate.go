package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate is a stored base-relative rate for one calendar date.
// (FromCurrencyCode, ToCurrencyCode, DateEffective) identifies a record; stores keep at most one per triple.
type ExchangeRate struct {
	ExchangeRateID   string          `json:"exchangeRateID"`
	FromCurrencyCode string          `json:"fromCurrencyCode"` // base side
	ToCurrencyCode   string          `json:"toCurrencyCode"`   // quote side
	Rate             decimal.Decimal `json:"rate"`             // strictly positive
	DateEffective    time.Time       `json:"dateEffective"`
	UsageCounter     int64           `json:"usageCounter"` // times this record answered a calculation
	AuditFields
}

// ExchangeQuote is the spread-adjusted cross rate returned for a single calculation.
type ExchangeQuote struct {
	From string          `json:"from"`
	To   string          `json:"to"`
	Rate decimal.Decimal `json:"rate"`
}

// ProviderRates is the latest rate table reported by the external provider.
// ErrorInfo carries the provider's own description of a failure, if any.
type ProviderRates struct {
	Success   bool
	Base      string
	Date      time.Time
	Rates     map[string]decimal.Decimal
	ErrorInfo string
}
