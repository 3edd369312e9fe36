// Package memory provides an in-memory CountryStore for tests and local
// development.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/worldfacts/countryd/internal/app/domain/country"
	"github.com/worldfacts/countryd/internal/app/storage"
)

// Store is an in-memory implementation of storage.CountryStore. It is safe
// for concurrent use and preserves insertion order for unsorted lists.
type Store struct {
	mu        sync.RWMutex
	nextID    int64
	order     []string
	countries map[string]country.Country
	status    country.AppStatus
	hasStatus bool

	// failAfter, when >= 0, fails RefreshCountries after that many upserts.
	// Lets tests exercise the atomic-rollback contract.
	failAfter int
	failErr   error
}

var _ storage.CountryStore = (*Store)(nil)

// New creates an empty store with the singleton status row present, matching
// the migrated database schema.
func New() *Store {
	return &Store{
		nextID:    1,
		countries: make(map[string]country.Country),
		hasStatus: true,
		failAfter: -1,
	}
}

// FailAfter arranges for the next RefreshCountries call to fail with err
// once n records have been applied.
func (s *Store) FailAfter(n int, err error) {
	s.mu.Lock()
	s.failAfter = n
	s.failErr = err
	s.mu.Unlock()
}

func (s *Store) RefreshCountries(_ context.Context, records []country.Country, refreshedAt time.Time) (country.AppStatus, []country.Country, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Stage against copies so a mid-batch failure leaves prior data intact.
	staged := make(map[string]country.Country, len(s.countries))
	for k, v := range s.countries {
		staged[k] = v
	}
	stagedOrder := append([]string(nil), s.order...)
	stagedNextID := s.nextID

	for i, rec := range records {
		if s.failAfter >= 0 && i >= s.failAfter {
			err := s.failErr
			s.failAfter = -1
			s.failErr = nil
			return country.AppStatus{}, nil, err
		}
		rec.LastRefreshed = refreshedAt
		if existing, ok := staged[rec.Name]; ok {
			rec.ID = existing.ID
		} else {
			rec.ID = stagedNextID
			stagedNextID++
			stagedOrder = append(stagedOrder, rec.Name)
		}
		staged[rec.Name] = rec
	}

	s.countries = staged
	s.order = stagedOrder
	s.nextID = stagedNextID

	ts := refreshedAt
	s.status = country.AppStatus{
		TotalCountries: int64(len(records)),
		LastRefreshed:  &ts,
	}
	s.hasStatus = true

	return s.status, s.topByGDPLocked(5), nil
}

func (s *Store) topByGDPLocked(n int) []country.Country {
	var withGDP []country.Country
	for _, name := range s.order {
		rec := s.countries[name]
		if rec.EstimatedGDP != nil {
			withGDP = append(withGDP, rec)
		}
	}
	sort.SliceStable(withGDP, func(i, j int) bool {
		return *withGDP[i].EstimatedGDP > *withGDP[j].EstimatedGDP
	})
	if len(withGDP) > n {
		withGDP = withGDP[:n]
	}
	return withGDP
}

func (s *Store) ListCountries(_ context.Context, filter country.Filter, sortKey string) ([]country.Country, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []country.Country
	for _, name := range s.order {
		rec := s.countries[name]
		if filter.Region != "" && (rec.Region == nil || *rec.Region != filter.Region) {
			continue
		}
		if filter.CurrencyCode != "" && (rec.CurrencyCode == nil || *rec.CurrencyCode != filter.CurrencyCode) {
			continue
		}
		result = append(result, rec)
	}

	switch sortKey {
	case country.SortGDPDesc:
		sort.SliceStable(result, func(i, j int) bool { return gdpDescLess(result[i], result[j]) })
	case country.SortGDPAsc:
		sort.SliceStable(result, func(i, j int) bool { return gdpAscLess(result[i], result[j]) })
	case country.SortPopDesc:
		sort.SliceStable(result, func(i, j int) bool { return result[i].Population > result[j].Population })
	case country.SortPopAsc:
		sort.SliceStable(result, func(i, j int) bool { return result[i].Population < result[j].Population })
	case country.SortNameAsc:
		sort.SliceStable(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	case country.SortNameDesc:
		sort.SliceStable(result, func(i, j int) bool { return result[i].Name > result[j].Name })
	}
	return result, nil
}

// gdpAscLess orders ascending with null GDPs first and gdpDescLess orders
// descending with null GDPs last, matching the SQL store's ORDER BY clauses.
func gdpAscLess(a, b country.Country) bool {
	if a.EstimatedGDP == nil {
		return b.EstimatedGDP != nil
	}
	if b.EstimatedGDP == nil {
		return false
	}
	return *a.EstimatedGDP < *b.EstimatedGDP
}

func gdpDescLess(a, b country.Country) bool {
	if a.EstimatedGDP == nil {
		return false
	}
	if b.EstimatedGDP == nil {
		return true
	}
	return *a.EstimatedGDP > *b.EstimatedGDP
}

func (s *Store) GetCountry(_ context.Context, name string) (country.Country, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.countries[name]
	if !ok {
		return country.Country{}, sql.ErrNoRows
	}
	return rec, nil
}

func (s *Store) DeleteCountry(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.countries[name]; !ok {
		return sql.ErrNoRows
	}
	delete(s.countries, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) GetStatus(_ context.Context) (country.AppStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasStatus {
		return country.AppStatus{}, sql.ErrNoRows
	}
	return s.status, nil
}

// Count reports the number of stored records. Test helper.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.countries)
}

// ClearStatus removes the singleton status row. Test helper.
func (s *Store) ClearStatus() {
	s.mu.Lock()
	s.hasStatus = false
	s.status = country.AppStatus{}
	s.mu.Unlock()
}
