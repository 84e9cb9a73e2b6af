package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SscSPs/currency_exchanger/internal/apperrors"
	"github.com/SscSPs/currency_exchanger/internal/core/domain"
	portsrepo "github.com/SscSPs/currency_exchanger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/currency_exchanger/internal/core/ports/services"
	"github.com/SscSPs/currency_exchanger/internal/dto"
	"github.com/SscSPs/currency_exchanger/internal/handlers"
	"github.com/SscSPs/currency_exchanger/internal/middleware"
	"github.com/SscSPs/currency_exchanger/internal/platform/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// --- Mock ExchangeService ---
type MockExchangeService struct {
	mock.Mock
}

func (m *MockExchangeService) CalculateExchangeRate(ctx context.Context, source, target string, asOf *time.Time) (*domain.ExchangeQuote, error) {
	args := m.Called(ctx, source, target, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExchangeQuote), args.Error(1)
}

func (m *MockExchangeService) ListExchangeRates(ctx context.Context, filter portsrepo.ExchangeRateFilter) ([]domain.ExchangeRate, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.ExchangeRate), args.Int(1), args.Error(2)
}

// Ensure mock implements the interface
var _ portssvc.ExchangeSvcFacade = (*MockExchangeService)(nil)

// --- Mock IngestionService ---
type MockIngestionService struct {
	mock.Mock
}

func (m *MockIngestionService) FetchAndStore(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Ensure mock implements the interface
var _ portssvc.RateIngestionSvc = (*MockIngestionService)(nil)

// --- Test Suite ---
type ExchangeHandlerTestSuite struct {
	suite.Suite
	router               *gin.Engine
	mockExchangeService  *MockExchangeService
	mockIngestionService *MockIngestionService
}

func (suite *ExchangeHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.router = gin.New()
	suite.router.Use(middleware.StructuredLoggingMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil))))

	suite.mockExchangeService = new(MockExchangeService)
	suite.mockIngestionService = new(MockIngestionService)

	v1 := suite.router.Group("/api/v1")
	handlers.RegisterExchangeRoutes(v1, suite.mockExchangeService, suite.mockIngestionService)
}

func (suite *ExchangeHandlerTestSuite) TearDownTest() {
	suite.mockExchangeService.AssertExpectations(suite.T())
	suite.mockIngestionService.AssertExpectations(suite.T())
}

func (suite *ExchangeHandlerTestSuite) serve(method, url string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, url, nil)
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

// --- Test Cases ---

func (suite *ExchangeHandlerTestSuite) TestCalculateExchangeRate_Latest() {
	suite.mockExchangeService.On("CalculateExchangeRate", mock.Anything, "EUR", "PLN", (*time.Time)(nil)).
		Return(&domain.ExchangeQuote{From: "EUR", To: "PLN", Rate: decimal.RequireFromString("4.0094275")}, nil).Once()

	w := suite.serve(http.MethodGet, "/api/v1/exchange?from=EUR&to=PLN")

	suite.Equal(http.StatusOK, w.Code)
	var body map[string]string
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	suite.Equal(map[string]string{"from": "EUR", "to": "PLN", "rate": "4.0094275"}, body)
	suite.NotEmpty(w.Header().Get("X-Request-ID"))
}

func (suite *ExchangeHandlerTestSuite) TestCalculateExchangeRate_OnDate() {
	expectedDate := time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)
	suite.mockExchangeService.On("CalculateExchangeRate", mock.Anything, "USD", "PLN",
		mock.MatchedBy(func(d *time.Time) bool { return d != nil && d.Equal(expectedDate) }),
	).Return(&domain.ExchangeQuote{From: "USD", To: "PLN", Rate: decimal.RequireFromString("3.7")}, nil).Once()

	w := suite.serve(http.MethodGet, "/api/v1/exchange?from=USD&to=PLN&date=2023-10-01")

	suite.Equal(http.StatusOK, w.Code)
}

func (suite *ExchangeHandlerTestSuite) TestCalculateExchangeRate_InvalidInput() {
	cases := map[string]string{
		"unknown currency":   "/api/v1/exchange?from=EUR&to=XXY",
		"lower case code":    "/api/v1/exchange?from=eur&to=PLN",
		"four letter code":   "/api/v1/exchange?from=EURO&to=PLN",
		"missing target":     "/api/v1/exchange?from=EUR",
		"malformed date":     "/api/v1/exchange?from=EUR&to=PLN&date=01-10-2023",
		"date with time":     "/api/v1/exchange?from=EUR&to=PLN&date=2023-10-01T10:00:00Z",
		"missing everything": "/api/v1/exchange",
	}
	for name, url := range cases {
		suite.Run(name, func() {
			w := suite.serve(http.MethodGet, url)
			suite.Equal(http.StatusBadRequest, w.Code)
		})
	}
	suite.mockExchangeService.AssertNotCalled(suite.T(), "CalculateExchangeRate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *ExchangeHandlerTestSuite) TestCalculateExchangeRate_NotFound() {
	suite.mockExchangeService.On("CalculateExchangeRate", mock.Anything, "EUR", "JPY", (*time.Time)(nil)).
		Return(nil, apperrors.NewNotFoundError("no exchange rate from EUR for EUR and JPY")).Once()

	w := suite.serve(http.MethodGet, "/api/v1/exchange?from=EUR&to=JPY")

	suite.Equal(http.StatusNotFound, w.Code)
	suite.JSONEq(`{}`, w.Body.String())
}

func (suite *ExchangeHandlerTestSuite) TestCalculateExchangeRate_InternalError() {
	suite.mockExchangeService.On("CalculateExchangeRate", mock.Anything, "EUR", "PLN", (*time.Time)(nil)).
		Return(nil, errors.New("connection reset")).Once()

	w := suite.serve(http.MethodGet, "/api/v1/exchange?from=EUR&to=PLN")

	suite.Equal(http.StatusInternalServerError, w.Code)
	suite.NotContains(w.Body.String(), "connection reset")
}

func (suite *ExchangeHandlerTestSuite) TestUpdateExchangeRates_Success() {
	suite.mockIngestionService.On("FetchAndStore", mock.Anything).Return(nil).Once()

	w := suite.serve(http.MethodPut, "/api/v1/exchange")

	suite.Equal(http.StatusOK, w.Code)
	suite.Equal("Exchange rates updated", w.Body.String())
}

func (suite *ExchangeHandlerTestSuite) TestUpdateExchangeRates_FetchFailed() {
	suite.mockIngestionService.On("FetchAndStore", mock.Anything).
		Return(errors.Join(apperrors.ErrFetchFailed, errors.New("provider reported failure"))).Once()

	w := suite.serve(http.MethodPut, "/api/v1/exchange")

	suite.Equal(http.StatusInternalServerError, w.Code)
}

func (suite *ExchangeHandlerTestSuite) TestListExchangeRates_Defaults() {
	rates := []domain.ExchangeRate{{
		ExchangeRateID:   "id-1",
		FromCurrencyCode: "EUR",
		ToCurrencyCode:   "PLN",
		Rate:             decimal.RequireFromString("4.22045"),
		DateEffective:    time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		UsageCounter:     7,
	}}
	suite.mockExchangeService.On("ListExchangeRates", mock.Anything, mock.MatchedBy(func(f portsrepo.ExchangeRateFilter) bool {
		return f.Page == 1 && f.PageSize == dto.DefaultPageSize && f.FromCurrencyCode == nil && *f.ToCurrencyCode == "PLN"
	})).Return(rates, 1, nil).Once()

	w := suite.serve(http.MethodGet, "/api/v1/exchange/rates?to=PLN")

	suite.Require().Equal(http.StatusOK, w.Code)
	var body dto.ListExchangeRatesResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	suite.Equal(1, body.Total)
	suite.Equal(1, body.Page)
	suite.Equal(dto.DefaultPageSize, body.PageSize)
	suite.Require().Len(body.Rates, 1)
	suite.Equal("2023-01-01", body.Rates[0].DateEffective)
	suite.Equal(int64(7), body.Rates[0].UsageCounter)
	suite.True(decimal.RequireFromString("4.22045").Equal(body.Rates[0].Rate))
}

func (suite *ExchangeHandlerTestSuite) TestListExchangeRates_InvalidPaging() {
	w := suite.serve(http.MethodGet, "/api/v1/exchange/rates?pageSize=1000")
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *ExchangeHandlerTestSuite) TestListExchangeRates_ServiceError() {
	suite.mockExchangeService.On("ListExchangeRates", mock.Anything, mock.Anything).Return(nil, 0, errors.New("boom")).Once()

	w := suite.serve(http.MethodGet, "/api/v1/exchange/rates")

	suite.Equal(http.StatusInternalServerError, w.Code)
}

// --- Run Test Suite ---
func TestExchangeHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(ExchangeHandlerTestSuite))
}

func TestRegisterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ingestion := new(MockIngestionService)
	ingestion.On("FetchAndStore", mock.Anything).Return(nil)
	services := &portssvc.ServiceContainer{Exchange: new(MockExchangeService), Ingestion: ingestion}
	cfg := &config.Config{IsProduction: true, RateLimit: "2-M"}

	err := handlers.RegisterRoutes(r, cfg, services, promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}))
	if err != nil {
		t.Fatalf("register routes: %v", err)
	}

	serve := func(method, url string) int {
		req := httptest.NewRequest(method, url, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := serve(http.MethodGet, "/health"); code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", code)
	}
	if code := serve(http.MethodGet, "/metrics"); code != http.StatusOK {
		t.Errorf("metrics: expected 200, got %d", code)
	}
	if code := serve(http.MethodGet, "/swagger/index.html"); code != http.StatusNotFound {
		t.Errorf("swagger in production: expected 404, got %d", code)
	}

	codes := []int{
		serve(http.MethodPut, "/api/v1/exchange"),
		serve(http.MethodPut, "/api/v1/exchange"),
		serve(http.MethodPut, "/api/v1/exchange"),
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("rate limit: expected [200 200 429], got %v", codes)
	}
}

func TestRegisterRoutes_InvalidRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{IsProduction: true, RateLimit: "lots"}

	err := handlers.RegisterRoutes(gin.New(), cfg, &portssvc.ServiceContainer{}, nil)
	if err == nil {
		t.Fatal("expected an error for an invalid rate limit")
	}
}
