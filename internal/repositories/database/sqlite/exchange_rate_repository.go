package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SscSPs/currency_exchanger/internal/apperrors"
	"github.com/SscSPs/currency_exchanger/internal/core/domain"
	portsrepo "github.com/SscSPs/currency_exchanger/internal/core/ports/repositories"
	"github.com/SscSPs/currency_exchanger/internal/models"
	"github.com/SscSPs/currency_exchanger/internal/utils/mapping"
)

const exchangeRateColumns = `exchange_rate_id, from_currency_code, to_currency_code, rate, date_effective, usage_counter,
	created_at, created_by, last_updated_at, last_updated_by`

const upsertExchangeRateQuery = `INSERT INTO exchange_rates (` + exchangeRateColumns + `)
	VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?)
	ON CONFLICT (from_currency_code, to_currency_code, date_effective) DO UPDATE
	SET rate = excluded.rate,
		last_updated_at = excluded.last_updated_at,
		last_updated_by = excluded.last_updated_by`

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ExchangeRateRepository stores exchange rates in an embedded SQLite database.
// Dates are kept as YYYY-MM-DD text so they sort and compare lexically.
type ExchangeRateRepository struct {
	db *sql.DB
}

// NewExchangeRateRepository creates a repository over a database opened by database.OpenSQLite.
func NewExchangeRateRepository(db *sql.DB) *ExchangeRateRepository {
	return &ExchangeRateRepository{db: db}
}

var _ portsrepo.ExchangeRateRepositoryFacade = (*ExchangeRateRepository)(nil)

// FindExchangeRateByDate retrieves the record for the exact (from, to, date) triple.
func (r *ExchangeRateRepository) FindExchangeRateByDate(ctx context.Context, fromCurrencyCode, toCurrencyCode string, date time.Time) (*domain.ExchangeRate, error) {
	query := `SELECT ` + exchangeRateColumns + `
		FROM exchange_rates
		WHERE from_currency_code = ? AND to_currency_code = ? AND date_effective = ?`

	rate, err := r.queryOne(ctx, query, fromCurrencyCode, toCurrencyCode, formatDate(date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("exchange rate %s->%s on %s not found",
			fromCurrencyCode, toCurrencyCode, formatDate(date)))
	}
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to find exchange rate", err)
	}
	return rate, nil
}

// FindLatestExchangeRate retrieves the record with the most recent date for the pair.
func (r *ExchangeRateRepository) FindLatestExchangeRate(ctx context.Context, fromCurrencyCode, toCurrencyCode string) (*domain.ExchangeRate, error) {
	query := `SELECT ` + exchangeRateColumns + `
		FROM exchange_rates
		WHERE from_currency_code = ? AND to_currency_code = ?
		ORDER BY date_effective DESC
		LIMIT 1`

	rate, err := r.queryOne(ctx, query, fromCurrencyCode, toCurrencyCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("exchange rate " + fromCurrencyCode + "->" + toCurrencyCode + " not found")
	}
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to find latest exchange rate", err)
	}
	return rate, nil
}

func (r *ExchangeRateRepository) queryOne(ctx context.Context, query string, args ...any) (*domain.ExchangeRate, error) {
	modelRate, err := scanExchangeRate(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	domainRate := mapping.ToDomainExchangeRate(modelRate)
	return &domainRate, nil
}

// UpsertExchangeRate inserts the record or overwrites the rate of the stored one.
func (r *ExchangeRateRepository) UpsertExchangeRate(ctx context.Context, rate domain.ExchangeRate) error {
	if err := upsert(ctx, r.db, rate); err != nil {
		return apperrors.NewAppError(500, "failed to upsert exchange rate", err)
	}
	return nil
}

// UpsertExchangeRates upserts all records in a single transaction.
func (r *ExchangeRateRepository) UpsertExchangeRates(ctx context.Context, rates []domain.ExchangeRate) error {
	if len(rates) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewAppError(500, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, rate := range rates {
		if err := upsert(ctx, tx, rate); err != nil {
			return apperrors.NewAppError(500,
				fmt.Sprintf("failed to upsert exchange rate %s->%s", rate.FromCurrencyCode, rate.ToCurrencyCode), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewAppError(500, "failed to commit transaction", err)
	}
	return nil
}

// IncrementUsage atomically adds one to the usage counter of the stored record.
func (r *ExchangeRateRepository) IncrementUsage(ctx context.Context, rate domain.ExchangeRate) error {
	res, err := r.db.ExecContext(ctx, `UPDATE exchange_rates
		SET usage_counter = usage_counter + 1
		WHERE from_currency_code = ? AND to_currency_code = ? AND date_effective = ?`,
		rate.FromCurrencyCode, rate.ToCurrencyCode, formatDate(rate.DateEffective),
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to increment exchange rate usage", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewNotFoundError("exchange rate " + rate.FromCurrencyCode + "->" + rate.ToCurrencyCode + " not found")
	}
	return nil
}

// ListExchangeRates retrieves stored records with optional filtering, newest first.
// A date filter matches records effective on or before that date.
func (r *ExchangeRateRepository) ListExchangeRates(ctx context.Context, filter portsrepo.ExchangeRateFilter) ([]domain.ExchangeRate, int, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.FromCurrencyCode != nil {
		conditions = append(conditions, "from_currency_code = ?")
		args = append(args, *filter.FromCurrencyCode)
	}
	if filter.ToCurrencyCode != nil {
		conditions = append(conditions, "to_currency_code = ?")
		args = append(args, *filter.ToCurrencyCode)
	}
	if filter.DateEffective != nil {
		conditions = append(conditions, "date_effective <= ?")
		args = append(args, formatDate(*filter.DateEffective))
	}

	baseQuery := ` FROM exchange_rates`
	if len(conditions) > 0 {
		baseQuery += " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperrors.NewAppError(500, "failed to count exchange rates", err)
	}
	if total == 0 {
		return []domain.ExchangeRate{}, 0, nil
	}

	baseQuery += " ORDER BY date_effective DESC, from_currency_code, to_currency_code"
	if filter.PageSize > 0 {
		baseQuery += " LIMIT ? OFFSET ?"
		args = append(args, filter.PageSize, (max(filter.Page, 1)-1)*filter.PageSize)
	}

	rows, err := r.db.QueryContext(ctx, "SELECT "+exchangeRateColumns+baseQuery, args...)
	if err != nil {
		return nil, 0, apperrors.NewAppError(500, "failed to list exchange rates", err)
	}
	defer func() { _ = rows.Close() }()

	var modelRates []models.ExchangeRate
	for rows.Next() {
		modelRate, err := scanExchangeRate(rows)
		if err != nil {
			return nil, 0, apperrors.NewAppError(500, "failed to scan exchange rate", err)
		}
		modelRates = append(modelRates, modelRate)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.NewAppError(500, "error iterating exchange rates", err)
	}

	return mapping.ToDomainExchangeRates(modelRates), total, nil
}

func upsert(ctx context.Context, db execer, rate domain.ExchangeRate) error {
	m := mapping.ToModelExchangeRate(rate)
	_, err := db.ExecContext(ctx, upsertExchangeRateQuery,
		m.ExchangeRateID, m.FromCurrencyCode, m.ToCurrencyCode, m.Rate.String(), formatDate(m.DateEffective),
		formatTimestamp(m.CreatedAt), m.CreatedBy, formatTimestamp(m.LastUpdatedAt), m.LastUpdatedBy,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExchangeRate(row rowScanner) (models.ExchangeRate, error) {
	var (
		m                               models.ExchangeRate
		date, createdAt, lastUpdatedAt string
	)
	err := row.Scan(
		&m.ExchangeRateID, &m.FromCurrencyCode, &m.ToCurrencyCode, &m.Rate, &date, &m.UsageCounter,
		&createdAt, &m.CreatedBy, &lastUpdatedAt, &m.LastUpdatedBy,
	)
	if err != nil {
		return m, err
	}
	if m.DateEffective, err = time.Parse(domain.DateLayout, date); err != nil {
		return m, fmt.Errorf("parse date_effective %q: %w", date, err)
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	m.LastUpdatedAt, _ = time.Parse(time.RFC3339Nano, lastUpdatedAt)
	return m, nil
}

func formatDate(t time.Time) string {
	return domain.TruncateToDate(t).Format(domain.DateLayout)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
