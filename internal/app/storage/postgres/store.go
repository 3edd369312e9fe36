// Package postgres implements the CountryStore backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/worldfacts/countryd/internal/app/domain/country"
	"github.com/worldfacts/countryd/internal/app/storage"
)

// Store implements storage.CountryStore using database/sql.
type Store struct {
	db *sql.DB
}

var _ storage.CountryStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const countryColumns = `id, name, capital, region, population, currency_code, exchange_rate, estimated_gdp, flag_url, last_refreshed_at`

func (s *Store) RefreshCountries(ctx context.Context, records []country.Country, refreshedAt time.Time) (country.AppStatus, []country.Country, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return country.AppStatus{}, nil, err
	}
	defer tx.Rollback()

	for _, rec := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO countries (name, capital, region, population, currency_code, exchange_rate, estimated_gdp, flag_url, last_refreshed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (name) DO UPDATE SET
				capital = EXCLUDED.capital,
				region = EXCLUDED.region,
				population = EXCLUDED.population,
				currency_code = EXCLUDED.currency_code,
				exchange_rate = EXCLUDED.exchange_rate,
				estimated_gdp = EXCLUDED.estimated_gdp,
				flag_url = EXCLUDED.flag_url,
				last_refreshed_at = EXCLUDED.last_refreshed_at
		`, rec.Name, rec.Capital, rec.Region, rec.Population, rec.CurrencyCode, rec.ExchangeRate, rec.EstimatedGDP, rec.FlagURL, refreshedAt)
		if err != nil {
			return country.AppStatus{}, nil, fmt.Errorf("upsert country %q: %w", rec.Name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE app_status
		SET total_countries = $1, last_refreshed_at = $2
		WHERE id = 1
	`, len(records), refreshedAt); err != nil {
		return country.AppStatus{}, nil, fmt.Errorf("update app status: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT `+countryColumns+`
		FROM countries
		WHERE estimated_gdp IS NOT NULL
		ORDER BY estimated_gdp DESC
		LIMIT 5
	`)
	if err != nil {
		return country.AppStatus{}, nil, fmt.Errorf("select top countries: %w", err)
	}
	top, err := collectCountries(rows)
	if err != nil {
		return country.AppStatus{}, nil, err
	}

	if err := tx.Commit(); err != nil {
		return country.AppStatus{}, nil, err
	}

	ts := refreshedAt
	status := country.AppStatus{
		TotalCountries: int64(len(records)),
		LastRefreshed:  &ts,
	}
	return status, top, nil
}

func (s *Store) ListCountries(ctx context.Context, filter country.Filter, sortKey string) ([]country.Country, error) {
	query := `SELECT ` + countryColumns + ` FROM countries`
	var (
		args  []interface{}
		where []string
	)
	if filter.Region != "" {
		args = append(args, filter.Region)
		where = append(where, fmt.Sprintf("region = $%d", len(args)))
	}
	if filter.CurrencyCode != "" {
		args = append(args, filter.CurrencyCode)
		where = append(where, fmt.Sprintf("currency_code = $%d", len(args)))
	}
	for i, clause := range where {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	if order, ok := orderClause(sortKey); ok {
		query += order
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectCountries(rows)
}

// orderClause maps a sort key to its ORDER BY clause. Unrecognized keys are
// ignored by design rather than rejected.
func orderClause(sortKey string) (string, bool) {
	switch sortKey {
	case country.SortGDPDesc:
		return " ORDER BY estimated_gdp DESC NULLS LAST", true
	case country.SortGDPAsc:
		return " ORDER BY estimated_gdp ASC NULLS FIRST", true
	case country.SortPopDesc:
		return " ORDER BY population DESC", true
	case country.SortPopAsc:
		return " ORDER BY population ASC", true
	case country.SortNameAsc:
		return " ORDER BY name ASC", true
	case country.SortNameDesc:
		return " ORDER BY name DESC", true
	default:
		return "", false
	}
}

func (s *Store) GetCountry(ctx context.Context, name string) (country.Country, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+countryColumns+`
		FROM countries
		WHERE name = $1
	`, name)
	return scanCountry(row)
}

func (s *Store) DeleteCountry(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM countries WHERE name = $1
	`, name)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) GetStatus(ctx context.Context) (country.AppStatus, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT total_countries, last_refreshed_at
		FROM app_status
		WHERE id = 1
	`)

	var (
		status        country.AppStatus
		lastRefreshed sql.NullTime
	)
	if err := row.Scan(&status.TotalCountries, &lastRefreshed); err != nil {
		return country.AppStatus{}, err
	}
	if lastRefreshed.Valid {
		ts := lastRefreshed.Time.UTC()
		status.LastRefreshed = &ts
	}
	return status, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCountry(row rowScanner) (country.Country, error) {
	var (
		rec          country.Country
		capital      sql.NullString
		region       sql.NullString
		currencyCode sql.NullString
		exchangeRate sql.NullFloat64
		estimatedGDP sql.NullFloat64
		flagURL      sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.Name, &capital, &region, &rec.Population, &currencyCode, &exchangeRate, &estimatedGDP, &flagURL, &rec.LastRefreshed); err != nil {
		return country.Country{}, err
	}
	rec.LastRefreshed = rec.LastRefreshed.UTC()
	if capital.Valid {
		rec.Capital = &capital.String
	}
	if region.Valid {
		rec.Region = &region.String
	}
	if currencyCode.Valid {
		rec.CurrencyCode = &currencyCode.String
	}
	if exchangeRate.Valid {
		rec.ExchangeRate = &exchangeRate.Float64
	}
	if estimatedGDP.Valid {
		rec.EstimatedGDP = &estimatedGDP.Float64
	}
	if flagURL.Valid {
		rec.FlagURL = &flagURL.String
	}
	return rec, nil
}

func collectCountries(rows *sql.Rows) ([]country.Country, error) {
	defer rows.Close()

	var result []country.Country
	for rows.Next() {
		rec, err := scanCountry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}
