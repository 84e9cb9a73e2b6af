package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// SpreadPolicy decides the percentage margin taken off a cross rate.
// It is immutable once built; use NewSpreadPolicy.
type SpreadPolicy struct {
	baseCurrency  string
	defaultSpread decimal.Decimal
	overrides     map[string]decimal.Decimal
}

// NewSpreadPolicy builds a SpreadPolicy. Currency codes are normalized to upper case.
func NewSpreadPolicy(baseCurrency string, defaultSpread decimal.Decimal, overrides map[string]decimal.Decimal) SpreadPolicy {
	copied := make(map[string]decimal.Decimal, len(overrides))
	for code, spread := range overrides {
		copied[strings.ToUpper(code)] = spread
	}
	return SpreadPolicy{
		baseCurrency:  strings.ToUpper(baseCurrency),
		defaultSpread: defaultSpread,
		overrides:     copied,
	}
}

// BaseCurrency returns the reference currency all stored rates are relative to.
func (p SpreadPolicy) BaseCurrency() string { return p.baseCurrency }

// SpreadOf returns the spread percentage for a single currency code.
// The base currency always carries zero spread.
func (p SpreadPolicy) SpreadOf(currencyCode string) decimal.Decimal {
	if currencyCode == p.baseCurrency {
		return decimal.Zero
	}
	if spread, ok := p.overrides[currencyCode]; ok {
		return spread
	}
	return p.defaultSpread
}

// SpreadFor returns the spread applied to a pair: the wider of the two sides wins.
func (p SpreadPolicy) SpreadFor(source, target string) decimal.Decimal {
	return decimal.Max(p.SpreadOf(source), p.SpreadOf(target))
}
