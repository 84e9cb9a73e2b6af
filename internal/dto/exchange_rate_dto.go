package dto

import (
	"time"

	"github.com/SscSPs/currency_exchanger/internal/core/domain"
	portsrepo "github.com/SscSPs/currency_exchanger/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
)

// CalculateExchangeRateQuery holds the query parameters of a calculation request.
// Currency codes must be upper-case ISO 4217 codes.
type CalculateExchangeRateQuery struct {
	From string     `form:"from" binding:"required,iso4217" example:"EUR"`
	To   string     `form:"to" binding:"required,iso4217" example:"PLN"`
	Date *time.Time `form:"date" time_format:"2006-01-02" time_utc:"1" example:"2023-10-01"`
}

// ExchangeQuoteResponse is the body of a successful calculation.
type ExchangeQuoteResponse struct {
	From string          `json:"from" example:"EUR"`
	To   string          `json:"to" example:"PLN"`
	Rate decimal.Decimal `json:"rate" swaggertype:"string" example:"4.0094275"`
}

// ToExchangeQuoteResponse converts a domain.ExchangeQuote to its response DTO.
func ToExchangeQuoteResponse(q *domain.ExchangeQuote) ExchangeQuoteResponse {
	return ExchangeQuoteResponse{From: q.From, To: q.To, Rate: q.Rate}
}

// ListExchangeRatesQuery holds the filters and paging of a stored rate listing.
type ListExchangeRatesQuery struct {
	From     *string    `form:"from" binding:"omitempty,iso4217"`
	To       *string    `form:"to" binding:"omitempty,iso4217"`
	Date     *time.Time `form:"date" time_format:"2006-01-02" time_utc:"1"`
	Page     int        `form:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"pageSize" binding:"omitempty,min=1,max=500"`
}

// DefaultPageSize is used when a listing does not ask for a page size.
const DefaultPageSize = 50

// ToFilter converts the query to a repository filter, filling in paging defaults.
func (q ListExchangeRatesQuery) ToFilter() portsrepo.ExchangeRateFilter {
	filter := portsrepo.ExchangeRateFilter{
		FromCurrencyCode: q.From,
		ToCurrencyCode:   q.To,
		DateEffective:    q.Date,
		Page:             q.Page,
		PageSize:         q.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = DefaultPageSize
	}
	return filter
}

// ExchangeRateResponse defines the structure for API responses containing exchange rate details.
type ExchangeRateResponse struct {
	ExchangeRateID   string          `json:"exchangeRateID"`
	FromCurrencyCode string          `json:"fromCurrencyCode"`
	ToCurrencyCode   string          `json:"toCurrencyCode"`
	Rate             decimal.Decimal `json:"rate" swaggertype:"string"`
	DateEffective    string          `json:"dateEffective" example:"2023-01-01"`
	UsageCounter     int64           `json:"usageCounter"`
	CreatedAt        time.Time       `json:"createdAt"`
	CreatedBy        string          `json:"createdBy"`
	LastUpdatedAt    time.Time       `json:"lastUpdatedAt"`
	LastUpdatedBy    string          `json:"lastUpdatedBy"`
}

// ToExchangeRateResponse converts a domain.ExchangeRate to ExchangeRateResponse DTO
func ToExchangeRateResponse(rate domain.ExchangeRate) ExchangeRateResponse {
	return ExchangeRateResponse{
		ExchangeRateID:   rate.ExchangeRateID,
		FromCurrencyCode: rate.FromCurrencyCode,
		ToCurrencyCode:   rate.ToCurrencyCode,
		Rate:             rate.Rate,
		DateEffective:    rate.DateEffective.Format(domain.DateLayout),
		UsageCounter:     rate.UsageCounter,
		CreatedAt:        rate.CreatedAt,
		CreatedBy:        rate.CreatedBy,
		LastUpdatedAt:    rate.LastUpdatedAt,
		LastUpdatedBy:    rate.LastUpdatedBy,
	}
}

// ListExchangeRatesResponse is one page of stored rates.
type ListExchangeRatesResponse struct {
	Rates    []ExchangeRateResponse `json:"rates"`
	Total    int                    `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"pageSize"`
}

// ToListExchangeRatesResponse converts a page of domain rates to its response DTO.
func ToListExchangeRatesResponse(rates []domain.ExchangeRate, total, page, pageSize int) ListExchangeRatesResponse {
	responses := make([]ExchangeRateResponse, len(rates))
	for i, rate := range rates {
		responses[i] = ToExchangeRateResponse(rate)
	}
	return ListExchangeRatesResponse{Rates: responses, Total: total, Page: page, PageSize: pageSize}
}
