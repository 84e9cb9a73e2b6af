package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/SscSPs/currency_exchanger/internal/apperrors"
	"github.com/SscSPs/currency_exchanger/internal/core/domain"
	portssvc "github.com/SscSPs/currency_exchanger/internal/core/ports/services"
	"github.com/SscSPs/currency_exchanger/internal/dto"
	"github.com/SscSPs/currency_exchanger/internal/middleware"
	"github.com/gin-gonic/gin"
)

// exchangeHandler handles HTTP requests related to exchange rate calculation and refresh.
type exchangeHandler struct {
	exchangeService  portssvc.ExchangeSvcFacade
	ingestionService portssvc.RateIngestionSvc
}

// newExchangeHandler creates a new exchangeHandler.
func newExchangeHandler(es portssvc.ExchangeSvcFacade, is portssvc.RateIngestionSvc) *exchangeHandler {
	return &exchangeHandler{
		exchangeService:  es,
		ingestionService: is,
	}
}

// RegisterExchangeRoutes registers routes related to exchange rates.
func RegisterExchangeRoutes(rg *gin.RouterGroup, exchangeService portssvc.ExchangeSvcFacade, ingestionService portssvc.RateIngestionSvc) {
	h := newExchangeHandler(exchangeService, ingestionService)

	exchange := rg.Group("/exchange")
	{
		exchange.GET("", h.calculateExchangeRate)
		exchange.PUT("", h.updateExchangeRates)
		exchange.GET("/rates", h.listExchangeRates)
	}
}

// calculateExchangeRate godoc
// @Summary Calculate exchange rate between currencies
// @Description Returns the spread-adjusted rate for converting one currency into another, using the latest stored rates or the rates of a given date
// @Tags exchange
// @Produce  json
// @Param   from query string true  "Currency code to exchange from (ISO 4217)" example(EUR)
// @Param   to   query string true  "Currency code to exchange to (ISO 4217)" example(PLN)
// @Param   date query string false "Date of the exchange rates (YYYY-MM-DD)" example(2023-10-01)
// @Success 200 {object} dto.ExchangeQuoteResponse "Calculation done"
// @Failure 400 {object} map[string]string "Invalid currency code or date"
// @Failure 404 {object} map[string]string "Exchange rate cannot be retrieved"
// @Failure 500 {object} map[string]string "Failed to calculate exchange rate"
// @Router /exchange [get]
func (h *exchangeHandler) calculateExchangeRate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var query dto.CalculateExchangeRateQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		logger.Warn("Failed to bind query for CalculateExchangeRate", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	date := "latest"
	if query.Date != nil {
		date = query.Date.Format(domain.DateLayout)
	}
	logger = logger.With(slog.String("from", query.From), slog.String("to", query.To), slog.String("date", date))
	logger.Info("Calculate exchange rate")

	quote, err := h.exchangeService.CalculateExchangeRate(c.Request.Context(), query.From, query.To, query.Date)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.Warn("Exchange rate cannot be retrieved", slog.String("error", err.Error()))
			c.JSON(http.StatusNotFound, gin.H{})
		} else {
			logger.Error("Failed to calculate exchange rate in service", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to calculate exchange rate"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.ToExchangeQuoteResponse(quote))
}

// updateExchangeRates godoc
// @Summary Update exchange rates
// @Description Fetches the latest rates from the provider and stores them
// @Tags exchange
// @Produce  plain
// @Success 200 {string} string "Exchange rates updated"
// @Failure 500 {object} map[string]string "Failed to update exchange rates"
// @Router /exchange [put]
func (h *exchangeHandler) updateExchangeRates(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	logger.Info("Updating exchange rates")

	if err := h.ingestionService.FetchAndStore(c.Request.Context()); err != nil {
		logger.Error("Failed to update exchange rates", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update exchange rates"})
		return
	}

	c.String(http.StatusOK, "Exchange rates updated")
}

// listExchangeRates godoc
// @Summary List stored exchange rates
// @Description Lists stored base-relative rates with their usage counters, newest first
// @Tags exchange
// @Produce  json
// @Param   from     query string false "Base currency code (ISO 4217)"
// @Param   to       query string false "Quote currency code (ISO 4217)"
// @Param   date     query string false "Only rates effective on or before this date (YYYY-MM-DD)"
// @Param   page     query int    false "Page number, starting at 1" minimum(1)
// @Param   pageSize query int    false "Page size" minimum(1) maximum(500)
// @Success 200 {object} dto.ListExchangeRatesResponse
// @Failure 400 {object} map[string]string "Invalid query parameters"
// @Failure 500 {object} map[string]string "Failed to list exchange rates"
// @Router /exchange/rates [get]
func (h *exchangeHandler) listExchangeRates(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var query dto.ListExchangeRatesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		logger.Warn("Failed to bind query for ListExchangeRates", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	filter := query.ToFilter()
	rates, total, err := h.exchangeService.ListExchangeRates(c.Request.Context(), filter)
	if err != nil {
		logger.Error("Failed to list exchange rates in service", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list exchange rates"})
		return
	}

	c.JSON(http.StatusOK, dto.ToListExchangeRatesResponse(rates, total, filter.Page, filter.PageSize))
}
