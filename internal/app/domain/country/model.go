// Package country holds the domain types shared by the storage, service and
// HTTP layers.
package country

import "time"

// Country is one persisted, enriched country record. Pointer fields map to
// nullable columns and serialize as JSON null when absent.
type Country struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Capital       *string   `json:"capital"`
	Region        *string   `json:"region"`
	Population    int64     `json:"population"`
	CurrencyCode  *string   `json:"currency_code"`
	ExchangeRate  *float64  `json:"exchange_rate"`
	EstimatedGDP  *float64  `json:"estimated_gdp"`
	FlagURL       *string   `json:"flag_url"`
	LastRefreshed time.Time `json:"last_refreshed_at"`
}

// AppStatus is the singleton aggregate updated with every refresh.
type AppStatus struct {
	TotalCountries int64      `json:"total_countries"`
	LastRefreshed  *time.Time `json:"last_refreshed_at"`
}

// Currency is one entry of a country's currency list as the upstream API
// reports it.
type Currency struct {
	Code string `json:"code"`
}

// RawCountry is the upstream representation before enrichment. Only the first
// currency is used downstream.
type RawCountry struct {
	Name       string     `json:"name"`
	Capital    *string    `json:"capital"`
	Region     *string    `json:"region"`
	Population int64      `json:"population"`
	Flag       *string    `json:"flag"`
	Currencies []Currency `json:"currencies"`
}

// RateTable maps an ISO currency code to its USD exchange rate.
type RateTable map[string]float64

// Sort keys accepted by list queries. Anything else is silently ignored.
const (
	SortGDPDesc  = "gdp_desc"
	SortGDPAsc   = "gdp_asc"
	SortPopDesc  = "pop_desc"
	SortPopAsc   = "pop_asc"
	SortNameAsc  = "name_asc"
	SortNameDesc = "name_desc"
)

// Filter restricts list queries. Empty fields match everything; set fields
// are conjunctive.
type Filter struct {
	Region       string
	CurrencyCode string
}
