package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate is the persisted row of the exchange_rates table.
// (FromCurrencyCode, ToCurrencyCode, DateEffective) is unique.
type ExchangeRate struct {
	ExchangeRateID   string          `json:"exchangeRateID"`   // Primary Key (UUID)
	FromCurrencyCode string          `json:"fromCurrencyCode"` // base currency
	ToCurrencyCode   string          `json:"toCurrencyCode"`
	Rate             decimal.Decimal `json:"rate"` // Precise decimal type
	DateEffective    time.Time       `json:"dateEffective"`
	UsageCounter     int64           `json:"usageCounter"`
	AuditFields
}
