// Package countries implements the data-refresh pipeline and the query
// operations over persisted country records.
package countries

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/worldfacts/countryd/internal/app/apperr"
	"github.com/worldfacts/countryd/internal/app/domain/country"
	"github.com/worldfacts/countryd/internal/app/storage"
	"github.com/worldfacts/countryd/pkg/logger"
)

// CountrySource fetches the raw country list from an upstream API.
type CountrySource interface {
	Fetch(ctx context.Context) ([]country.RawCountry, error)
}

// RateSource fetches the exchange-rate table from an upstream API.
type RateSource interface {
	Fetch(ctx context.Context) (country.RateTable, error)
}

// Renderer turns a status and top-5 list into a summary image on disk.
type Renderer interface {
	Render(status country.AppStatus, top []country.Country) (string, error)
}

// RefreshResult is what a successful refresh reports back to the caller.
type RefreshResult struct {
	Status             string    `json:"status"`
	CountriesProcessed int64     `json:"countries_processed"`
	LastRefreshedAt    time.Time `json:"last_refreshed_at"`
}

// Service owns the refresh pipeline and the read/delete accessors. It is the
// only write path for country records and the status singleton.
type Service struct {
	store     storage.CountryStore
	countries CountrySource
	rates     RateSource
	renderer  Renderer
	log       *logger.Logger

	// multiplier draws the per-country growth factor. The randomness is a
	// stand-in simulation and kept as given behavior; tests assert ranges,
	// not exact values.
	multiplier func() float64
}

// Option customises a Service.
type Option func(*Service)

// WithMultiplier overrides the growth-factor draw.
func WithMultiplier(fn func() float64) Option {
	return func(s *Service) { s.multiplier = fn }
}

// New constructs the countries service.
func New(store storage.CountryStore, countriesSrc CountrySource, rateSrc RateSource, renderer Renderer, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewDefault("countries")
	}
	s := &Service{
		store:     store,
		countries: countriesSrc,
		rates:     rateSrc,
		renderer:  renderer,
		log:       log,
		multiplier: func() float64 {
			// Uniform over the closed range [1000, 2000]; rand.Float64 alone
			// never reaches the upper endpoint.
			const steps = int64(1) << 53
			return 1000.0 + 1000.0*float64(rand.Int63n(steps+1))/float64(steps)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh runs the full pipeline: fetch both upstream datasets concurrently,
// enrich, persist atomically, then render the summary image. Either upstream
// failure aborts before anything is written. A render failure surfaces as its
// own error kind but the refresh stays committed.
func (s *Service) Refresh(ctx context.Context) (RefreshResult, error) {
	var (
		wg    sync.WaitGroup
		raw   []country.RawCountry
		rates country.RateTable
		cErr  error
		rErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		raw, cErr = s.countries.Fetch(ctx)
	}()
	go func() {
		defer wg.Done()
		rates, rErr = s.rates.Fetch(ctx)
	}()
	wg.Wait()

	if cErr != nil {
		return RefreshResult{}, cErr
	}
	if rErr != nil {
		return RefreshResult{}, rErr
	}

	s.log.WithField("countries", len(raw)).
		WithField("rates", len(rates)).
		Info("fetched upstream datasets")

	// One timestamp for the whole batch, truncated to 100ms.
	refreshedAt := time.Now().UTC().Truncate(100 * time.Millisecond)
	records := s.enrich(raw, rates, refreshedAt)

	status, top, err := s.store.RefreshCountries(ctx, records, refreshedAt)
	if err != nil {
		return RefreshResult{}, apperr.Storage(err)
	}

	s.log.WithField("processed", status.TotalCountries).Info("database refresh complete")

	if _, err := s.renderer.Render(status, top); err != nil {
		return RefreshResult{}, err
	}

	return RefreshResult{
		Status:             "success",
		CountriesProcessed: status.TotalCountries,
		LastRefreshedAt:    refreshedAt,
	}, nil
}

// enrich joins countries with the rate table and computes derived fields,
// preserving input order.
func (s *Service) enrich(raw []country.RawCountry, rates country.RateTable, refreshedAt time.Time) []country.Country {
	records := make([]country.Country, 0, len(raw))
	for _, rc := range raw {
		rec := country.Country{
			Name:          rc.Name,
			Capital:       rc.Capital,
			Region:        rc.Region,
			Population:    rc.Population,
			FlagURL:       rc.Flag,
			LastRefreshed: refreshedAt,
		}
		if len(rc.Currencies) > 0 {
			code := rc.Currencies[0].Code
			rec.CurrencyCode = &code
			if rate, ok := rates[code]; ok {
				r := rate
				rec.ExchangeRate = &r
				gdp := float64(rc.Population) * s.multiplier() / rate
				rec.EstimatedGDP = &gdp
			}
			// Code present but unknown to the rate table: both derived
			// fields stay absent.
		} else {
			// No currency at all: estimated GDP is defined as exactly zero.
			zero := 0.0
			rec.EstimatedGDP = &zero
		}
		records = append(records, rec)
	}
	return records
}

// List returns countries matching the filter. An unrecognized sort key is
// silently ignored; this is documented behavior, not an oversight.
func (s *Service) List(ctx context.Context, filter country.Filter, sort string) ([]country.Country, error) {
	result, err := s.store.ListCountries(ctx, filter, sort)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return result, nil
}

// Get fetches a single record by exact name.
func (s *Service) Get(ctx context.Context, name string) (country.Country, error) {
	rec, err := s.store.GetCountry(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return country.Country{}, apperr.NotFoundf("Country '%s' not found", name)
		}
		return country.Country{}, apperr.Storage(err)
	}
	return rec, nil
}

// Delete removes exactly one record by name.
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := s.store.DeleteCountry(ctx, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFoundf("Country '%s' not found", name)
		}
		return apperr.Storage(err)
	}
	return nil
}

// Status returns the singleton aggregate. A missing row is a server-side
// problem since migrations seed it, so it maps to a storage error.
func (s *Service) Status(ctx context.Context) (country.AppStatus, error) {
	status, err := s.store.GetStatus(ctx)
	if err != nil {
		return country.AppStatus{}, apperr.Storage(err)
	}
	return status, nil
}
