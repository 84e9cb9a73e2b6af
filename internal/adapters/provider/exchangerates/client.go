// Package exchangerates implements providers.RatesProvider against an exchangeratesapi.io style
// HTTP API: GET {baseURL}/latest?access_key=KEY[&base=CODE].
package exchangerates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SscSPs/currency_exchanger/internal/core/domain"
	"github.com/SscSPs/currency_exchanger/internal/core/ports/providers"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// DefaultBase is the base the provider uses when none is requested. It is not sent
// explicitly because free plans reject the base parameter.
const DefaultBase = "EUR"

const maxResponseBytes = 4 << 20

type latestResponse struct {
	Success   bool                       `json:"success"`
	Timestamp int64                      `json:"timestamp"`
	Base      string                     `json:"base" validate:"required,len=3"`
	Date      string                     `json:"date" validate:"required,datetime=2006-01-02"`
	Rates     map[string]decimal.Decimal `json:"rates" validate:"required,min=1"`
	Error     *apiError                  `json:"error,omitempty"`
}

type apiError struct {
	Code int    `json:"code"`
	Type string `json:"type"`
	Info string `json:"info"`
}

func (e *apiError) String() string {
	if e == nil {
		return ""
	}
	parts := []string{}
	if e.Code != 0 {
		parts = append(parts, fmt.Sprintf("code %d", e.Code))
	}
	if e.Type != "" {
		parts = append(parts, e.Type)
	}
	if e.Info != "" {
		parts = append(parts, e.Info)
	}
	return strings.Join(parts, ": ")
}

// Client fetches the latest rate table over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	validate   *validator.Validate
}

// NewClient creates a Client. timeout bounds each request.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		validate: validator.New(),
	}
}

var _ providers.RatesProvider = (*Client)(nil)

// FetchLatestRates requests the latest table anchored at baseCurrency.
//
// A provider-reported failure (success=false) is returned as a ProviderRates with Success unset and
// a nil error. Network errors, timeouts, 429 and 5xx responses wrap providers.ErrTransient.
func (c *Client) FetchLatestRates(ctx context.Context, baseCurrency string) (*domain.ProviderRates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.latestURL(baseCurrency), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("failed to send request: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: failed to send request: %s", providers.ErrTransient, redact(err.Error(), c.apiKey))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", providers.ErrTransient, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: API returned status %d", providers.ErrTransient, resp.StatusCode)
	}

	var payload latestResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || !payload.Success {
		return &domain.ProviderRates{
			Success:   false,
			ErrorInfo: describeFailure(resp.StatusCode, payload.Error),
		}, nil
	}

	if err := c.validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("malformed provider response: %w", err)
	}
	date, err := time.Parse(domain.DateLayout, payload.Date)
	if err != nil {
		return nil, fmt.Errorf("malformed provider date %q: %w", payload.Date, err)
	}

	rates := make(map[string]decimal.Decimal, len(payload.Rates))
	for code, rate := range payload.Rates {
		rates[strings.ToUpper(code)] = rate
	}
	return &domain.ProviderRates{
		Success: true,
		Base:    strings.ToUpper(payload.Base),
		Date:    date,
		Rates:   rates,
	}, nil
}

func (c *Client) latestURL(baseCurrency string) string {
	q := url.Values{}
	q.Set("access_key", c.apiKey)
	if base := strings.ToUpper(baseCurrency); base != "" && base != DefaultBase {
		q.Set("base", base)
	}
	return c.baseURL + "/latest?" + q.Encode()
}

func describeFailure(status int, apiErr *apiError) string {
	info := apiErr.String()
	if status == http.StatusOK {
		return info
	}
	if info == "" {
		return fmt.Sprintf("status %d", status)
	}
	return fmt.Sprintf("status %d: %s", status, info)
}

// redact keeps the access key out of error messages; url.Error includes the full request URL.
func redact(msg, secret string) string {
	if secret == "" {
		return msg
	}
	return strings.ReplaceAll(msg, url.QueryEscape(secret), "REDACTED")
}
