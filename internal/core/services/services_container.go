package services

import (
	"github.com/SscSPs/currency_exchanger/internal/core/ports/providers"
	portsrepo "github.com/SscSPs/currency_exchanger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/currency_exchanger/internal/core/ports/services"
	"github.com/SscSPs/currency_exchanger/internal/metrics"
	"github.com/SscSPs/currency_exchanger/internal/platform/config"
)

// NewServiceContainer creates a new service container with properly initialized dependencies.
// m may be nil when metrics are disabled.
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, provider providers.RatesProvider, m *metrics.Metrics) *portssvc.ServiceContainer {
	return &portssvc.ServiceContainer{
		Exchange: NewExchangeService(
			repos.ExchangeRateRepo,
			cfg.SpreadPolicy(),
			WithExchangeMetrics(m),
		),
		Ingestion: NewIngestionService(
			repos.ExchangeRateRepo,
			provider,
			cfg.BaseCurrency,
			WithRetryPolicy(cfg.FetchMaxAttempts, cfg.FetchInitialBackoff),
			WithIngestionMetrics(m),
		),
	}
}

// Helper to check interface implementations at compile time
var (
	_ portssvc.ExchangeSvcFacade = (*ExchangeService)(nil)
	_ portssvc.RateIngestionSvc  = (*IngestionService)(nil)
)
