package sqlite

import (
	"database/sql"

	portsrepo "github.com/SscSPs/currency_exchanger/internal/core/ports/repositories"
)

// NewRepositoryProvider builds every SQLite-backed repository over db.
func NewRepositoryProvider(db *sql.DB) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		ExchangeRateRepo: NewExchangeRateRepository(db),
	}
}
