// Package storage defines the persistence contract for country records.
package storage

import (
	"context"
	"time"

	"github.com/worldfacts/countryd/internal/app/domain/country"
)

// CountryStore persists country records and the singleton refresh status.
// Implementations signal a missing row with sql.ErrNoRows.
type CountryStore interface {
	// RefreshCountries replaces the given records by name, updates the
	// singleton status and returns it together with the five records holding
	// the highest non-null estimated GDP. The whole batch is atomic: on any
	// failure prior data stays in place.
	RefreshCountries(ctx context.Context, records []country.Country, refreshedAt time.Time) (country.AppStatus, []country.Country, error)

	// ListCountries returns records matching the filter. Both filter fields
	// are conjunctive when set. Sort accepts the country.Sort* keys; any
	// other value is ignored and storage order is returned.
	ListCountries(ctx context.Context, filter country.Filter, sort string) ([]country.Country, error)

	GetCountry(ctx context.Context, name string) (country.Country, error)
	DeleteCountry(ctx context.Context, name string) error
	GetStatus(ctx context.Context) (country.AppStatus, error)
}
