package pgsql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SscSPs/currency_exchanger/internal/apperrors"
	"github.com/SscSPs/currency_exchanger/internal/core/domain"
	portsrepo "github.com/SscSPs/currency_exchanger/internal/core/ports/repositories"
	"github.com/SscSPs/currency_exchanger/internal/models"
	"github.com/SscSPs/currency_exchanger/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const exchangeRateColumns = `
	exchange_rate_id, from_currency_code, to_currency_code, rate, date_effective, usage_counter,
	created_at, created_by, last_updated_at, last_updated_by`

// upsertExchangeRateQuery keeps usage_counter and the creation audit of an existing row.
const upsertExchangeRateQuery = `
	INSERT INTO exchange_rates (` + exchangeRateColumns + `)
	VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9)
	ON CONFLICT (from_currency_code, to_currency_code, date_effective) DO UPDATE
	SET rate = EXCLUDED.rate,
		last_updated_at = EXCLUDED.last_updated_at,
		last_updated_by = EXCLUDED.last_updated_by`

// PgxExchangeRateRepository implements the ports.ExchangeRateRepositoryFacade interface using pgxpool.
type PgxExchangeRateRepository struct {
	BaseRepository
}

// NewPgxExchangeRateRepository creates a new PgxExchangeRateRepository.
func NewPgxExchangeRateRepository(db *pgxpool.Pool) *PgxExchangeRateRepository {
	return &PgxExchangeRateRepository{
		BaseRepository: BaseRepository{Pool: db},
	}
}

var _ portsrepo.ExchangeRateRepositoryFacade = (*PgxExchangeRateRepository)(nil)

// FindExchangeRateByDate retrieves the record for the exact (from, to, date) triple.
func (r *PgxExchangeRateRepository) FindExchangeRateByDate(ctx context.Context, fromCurrencyCode, toCurrencyCode string, date time.Time) (*domain.ExchangeRate, error) {
	query := `SELECT ` + exchangeRateColumns + `
		FROM exchange_rates
		WHERE from_currency_code = $1 AND to_currency_code = $2 AND date_effective = $3;`

	rate, err := r.queryOne(ctx, query, fromCurrencyCode, toCurrencyCode, domain.TruncateToDate(date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("exchange rate %s->%s on %s not found",
			fromCurrencyCode, toCurrencyCode, date.Format(domain.DateLayout)))
	}
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to find exchange rate", err)
	}
	return rate, nil
}

// FindLatestExchangeRate retrieves the record with the most recent date for the pair.
func (r *PgxExchangeRateRepository) FindLatestExchangeRate(ctx context.Context, fromCurrencyCode, toCurrencyCode string) (*domain.ExchangeRate, error) {
	query := `SELECT ` + exchangeRateColumns + `
		FROM exchange_rates
		WHERE from_currency_code = $1 AND to_currency_code = $2
		ORDER BY date_effective DESC
		LIMIT 1;`

	rate, err := r.queryOne(ctx, query, fromCurrencyCode, toCurrencyCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("exchange rate " + fromCurrencyCode + "->" + toCurrencyCode + " not found")
	}
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to find latest exchange rate", err)
	}
	return rate, nil
}

func (r *PgxExchangeRateRepository) queryOne(ctx context.Context, query string, args ...any) (*domain.ExchangeRate, error) {
	modelRate, err := scanExchangeRate(r.Pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	domainRate := mapping.ToDomainExchangeRate(modelRate)
	return &domainRate, nil
}

// UpsertExchangeRate inserts the record or overwrites the rate of the stored one.
func (r *PgxExchangeRateRepository) UpsertExchangeRate(ctx context.Context, rate domain.ExchangeRate) error {
	if _, err := r.Pool.Exec(ctx, upsertExchangeRateQuery, upsertArgs(rate)...); err != nil {
		return apperrors.NewAppError(500, "failed to upsert exchange rate", err)
	}
	return nil
}

// UpsertExchangeRates upserts all records in a single transaction.
func (r *PgxExchangeRateRepository) UpsertExchangeRates(ctx context.Context, rates []domain.ExchangeRate) error {
	if len(rates) == 0 {
		return nil
	}

	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = r.Rollback(ctx, tx) }()

	batch := &pgx.Batch{}
	for _, rate := range rates {
		batch.Queue(upsertExchangeRateQuery, upsertArgs(rate)...)
	}
	results := tx.SendBatch(ctx, batch)
	for _, rate := range rates {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return apperrors.NewAppError(500,
				fmt.Sprintf("failed to upsert exchange rate %s->%s", rate.FromCurrencyCode, rate.ToCurrencyCode), err)
		}
	}
	if err := results.Close(); err != nil {
		return apperrors.NewAppError(500, "failed to upsert exchange rates", err)
	}

	return r.Commit(ctx, tx)
}

// IncrementUsage atomically adds one to the usage counter of the stored record.
func (r *PgxExchangeRateRepository) IncrementUsage(ctx context.Context, rate domain.ExchangeRate) error {
	tag, err := r.Pool.Exec(ctx, `
		UPDATE exchange_rates
		SET usage_counter = usage_counter + 1
		WHERE from_currency_code = $1 AND to_currency_code = $2 AND date_effective = $3`,
		rate.FromCurrencyCode, rate.ToCurrencyCode, domain.TruncateToDate(rate.DateEffective),
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to increment exchange rate usage", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("exchange rate " + rate.FromCurrencyCode + "->" + rate.ToCurrencyCode + " not found")
	}
	return nil
}

// ListExchangeRates retrieves stored records with optional filtering, newest first.
// A date filter matches records effective on or before that date.
func (r *PgxExchangeRateRepository) ListExchangeRates(ctx context.Context, filter portsrepo.ExchangeRateFilter) ([]domain.ExchangeRate, int, error) {
	baseQuery := ` FROM exchange_rates WHERE 1=1`
	args := []any{}
	argNum := 1

	if filter.FromCurrencyCode != nil {
		baseQuery += fmt.Sprintf(" AND from_currency_code = $%d", argNum)
		args = append(args, *filter.FromCurrencyCode)
		argNum++
	}
	if filter.ToCurrencyCode != nil {
		baseQuery += fmt.Sprintf(" AND to_currency_code = $%d", argNum)
		args = append(args, *filter.ToCurrencyCode)
		argNum++
	}
	if filter.DateEffective != nil {
		baseQuery += fmt.Sprintf(" AND date_effective <= $%d", argNum)
		args = append(args, domain.TruncateToDate(*filter.DateEffective))
		argNum++
	}

	var total int
	if err := r.Pool.QueryRow(ctx, "SELECT COUNT(*)"+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperrors.NewAppError(500, "failed to count exchange rates", err)
	}
	if total == 0 {
		return []domain.ExchangeRate{}, 0, nil
	}

	baseQuery += " ORDER BY date_effective DESC, from_currency_code, to_currency_code"
	if filter.PageSize > 0 {
		baseQuery += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
		args = append(args, filter.PageSize, (max(filter.Page, 1)-1)*filter.PageSize)
	}

	rows, err := r.Pool.Query(ctx, "SELECT "+exchangeRateColumns+baseQuery, args...)
	if err != nil {
		return nil, 0, apperrors.NewAppError(500, "failed to list exchange rates", err)
	}
	defer rows.Close()

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

func scanExchangeRate(row pgx.Row) (models.ExchangeRate, error) {
	var m models.ExchangeRate
	err := row.Scan(
		&m.ExchangeRateID, &m.FromCurrencyCode, &m.ToCurrencyCode, &m.Rate, &m.DateEffective, &m.UsageCounter,
		&m.CreatedAt, &m.CreatedBy, &m.LastUpdatedAt, &m.LastUpdatedBy,
	)
	return m, err
}

func upsertArgs(rate domain.ExchangeRate) []any {
	m := mapping.ToModelExchangeRate(rate)
	return []any{
		m.ExchangeRateID, m.FromCurrencyCode, m.ToCurrencyCode, m.Rate, m.DateEffective,
		m.CreatedAt, m.CreatedBy, m.LastUpdatedAt, m.LastUpdatedBy,
	}
}
