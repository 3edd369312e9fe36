// Package upstream holds the HTTP clients for the external data sources the
// refresh pipeline depends on.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/worldfacts/countryd/internal/app/apperr"
	"github.com/worldfacts/countryd/internal/app/domain/country"
	"github.com/worldfacts/countryd/pkg/logger"
)

// Source names used in upstream failure messages.
const (
	SourceCountries = "RestCountries"
	SourceRates     = "OpenExchangeRates"
)

// CountriesClient fetches the full country list from the RestCountries API.
type CountriesClient struct {
	client *http.Client
	url    string
	log    *logger.Logger
}

// NewCountriesClient constructs a client against the given endpoint. A nil
// http.Client gets a 10 second timeout.
func NewCountriesClient(client *http.Client, url string, log *logger.Logger) *CountriesClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("upstream-countries")
	}
	return &CountriesClient{client: client, url: url, log: log}
}

// Fetch returns every country record the source knows about. Transport and
// decode failures are wrapped as upstream errors tagged with the source name.
func (c *CountriesClient) Fetch(ctx context.Context) ([]country.RawCountry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, apperr.Upstream(SourceCountries, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperr.Upstream(SourceCountries, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Upstream(SourceCountries, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var countries []country.RawCountry
	if err := json.NewDecoder(resp.Body).Decode(&countries); err != nil {
		return nil, apperr.Upstream(SourceCountries+" (parsing)", err)
	}

	c.log.WithField("count", len(countries)).Debug("fetched countries")
	return countries, nil
}

// RatesClient fetches the USD exchange-rate table.
type RatesClient struct {
	client *http.Client
	url    string
	log    *logger.Logger
}

// NewRatesClient constructs a client against the given endpoint. A nil
// http.Client gets a 10 second timeout.
func NewRatesClient(client *http.Client, url string, log *logger.Logger) *RatesClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("upstream-rates")
	}
	return &RatesClient{client: client, url: url, log: log}
}

// Fetch returns the rate table for the current refresh cycle.
func (c *RatesClient) Fetch(ctx context.Context) (country.RateTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, apperr.Upstream(SourceRates, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperr.Upstream(SourceRates, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Upstream(SourceRates, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperr.Upstream(SourceRates+" (parsing)", err)
	}

	c.log.WithField("count", len(payload.Rates)).Debug("fetched exchange rates")
	return country.RateTable(payload.Rates), nil
}
