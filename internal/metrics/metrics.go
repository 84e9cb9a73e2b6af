package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by the calculation and ingestion metrics.
const (
	ResultSuccess  = "success"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Metrics holds the Prometheus collectors of the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	CalculationsTotal     *prometheus.CounterVec
	IngestionRunsTotal    *prometheus.CounterVec
	IngestionDuration     prometheus.Histogram
	RatesUpsertedTotal    prometheus.Counter
	ProviderAttemptsTotal *prometheus.CounterVec
}

// NewMetrics registers all collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),

		CalculationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exchange_calculations_total",
				Help: "Total number of exchange rate calculations by result",
			},
			[]string{"result"},
		),

		IngestionRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rates_ingestion_runs_total",
				Help: "Total number of rate ingestion cycles by result",
			},
			[]string{"result"},
		),

		IngestionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rates_ingestion_duration_seconds",
				Help:    "Duration of rate ingestion cycles in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		RatesUpsertedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rates_upserted_total",
				Help: "Total number of rate records written by ingestion",
			},
		),

		ProviderAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rates_provider_attempts_total",
				Help: "Total number of calls to the rates provider by result",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) ObserveCalculation(result string) {
	if m == nil {
		return
	}
	m.CalculationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveIngestion(result string, seconds float64, upserted int) {
	if m == nil {
		return
	}
	m.IngestionRunsTotal.WithLabelValues(result).Inc()
	m.IngestionDuration.Observe(seconds)
	m.RatesUpsertedTotal.Add(float64(upserted))
}

func (m *Metrics) ObserveProviderAttempt(result string) {
	if m == nil {
		return
	}
	m.ProviderAttemptsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveHTTPRequest(path, method string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(path, method).Observe(seconds)
}
