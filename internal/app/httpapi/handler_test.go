package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/worldfacts/countryd/internal/app/domain/country"
	"github.com/worldfacts/countryd/internal/app/report"
	"github.com/worldfacts/countryd/internal/app/services/countries"
	"github.com/worldfacts/countryd/internal/app/storage/memory"
	"github.com/worldfacts/countryd/internal/app/upstream"
)

const countriesPayload = `[
	{"name":"Testland","capital":"Testville","region":"Testia","population":1000000,"flag":"https://flags.example/tl.svg","currencies":[{"code":"XTL"}]},
	{"name":"Nocoinia","region":"Testia","population":5000,"currencies":null},
	{"name":"Mysteria","population":777,"currencies":[{"code":"ZZZ"}]}
]`

const ratesPayload = `{"result":"success","base_code":"USD","rates":{"USD":1.0,"XTL":2.0}}`

type testEnv struct {
	handler http.Handler
	store   *memory.Store
}

func newTestEnv(t *testing.T, countriesBody, ratesBody string, upstreamStatus int) *testEnv {
	t.Helper()

	countriesSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if upstreamStatus != http.StatusOK {
			w.WriteHeader(upstreamStatus)
			return
		}
		w.Write([]byte(countriesBody))
	}))
	t.Cleanup(countriesSrv.Close)

	ratesSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ratesBody))
	}))
	t.Cleanup(ratesSrv.Close)

	store := memory.New()
	renderer := report.NewImageRenderer(t.TempDir(), nil)
	svc := countries.New(
		store,
		upstream.NewCountriesClient(countriesSrv.Client(), countriesSrv.URL, nil),
		upstream.NewRatesClient(ratesSrv.Client(), ratesSrv.URL, nil),
		renderer,
		nil,
	)
	return &testEnv{
		handler: NewHandler(svc, renderer.Path(), nil),
		store:   store,
	}
}

func (e *testEnv) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	resp := httptest.NewRecorder()
	e.handler.ServeHTTP(resp, req)
	return resp
}

func TestRefreshAndQueryFlow(t *testing.T) {
	env := newTestEnv(t, countriesPayload, ratesPayload, http.StatusOK)

	resp := env.do(t, http.MethodPost, "/countries/refresh")
	if resp.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var refresh struct {
		Status             string `json:"status"`
		CountriesProcessed int64  `json:"countries_processed"`
		LastRefreshedAt    string `json:"last_refreshed_at"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &refresh); err != nil {
		t.Fatalf("unmarshal refresh: %v", err)
	}
	if refresh.Status != "success" || refresh.CountriesProcessed != 3 || refresh.LastRefreshedAt == "" {
		t.Fatalf("unexpected refresh response: %+v", refresh)
	}

	resp = env.do(t, http.MethodGet, "/countries")
	if resp.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.Code)
	}
	var list []country.Country
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 countries, got %d", len(list))
	}

	resp = env.do(t, http.MethodGet, "/countries/Testland")
	if resp.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.Code)
	}
	var testland country.Country
	if err := json.Unmarshal(resp.Body.Bytes(), &testland); err != nil {
		t.Fatalf("unmarshal country: %v", err)
	}
	if testland.ExchangeRate == nil || *testland.ExchangeRate != 2.0 {
		t.Fatalf("unexpected exchange rate: %#v", testland.ExchangeRate)
	}
	if testland.EstimatedGDP == nil || *testland.EstimatedGDP < 500000000 || *testland.EstimatedGDP > 1000000000 {
		t.Fatalf("estimated GDP out of expected range: %#v", testland.EstimatedGDP)
	}

	resp = env.do(t, http.MethodGet, "/countries/Nocoinia")
	var nocoinia country.Country
	if err := json.Unmarshal(resp.Body.Bytes(), &nocoinia); err != nil {
		t.Fatalf("unmarshal country: %v", err)
	}
	if nocoinia.ExchangeRate != nil {
		t.Fatalf("expected null exchange_rate for Nocoinia")
	}
	if nocoinia.EstimatedGDP == nil || *nocoinia.EstimatedGDP != 0 {
		t.Fatalf("expected estimated_gdp 0 for Nocoinia, got %#v", nocoinia.EstimatedGDP)
	}

	resp = env.do(t, http.MethodGet, "/status")
	if resp.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", resp.Code)
	}
	var status country.AppStatus
	if err := json.Unmarshal(resp.Body.Bytes(), &status); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if status.TotalCountries != 3 || status.LastRefreshed == nil {
		t.Fatalf("unexpected status: %+v", status)
	}

	resp = env.do(t, http.MethodGet, "/countries/image")
	if resp.Code != http.StatusOK {
		t.Fatalf("image: expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); !strings.Contains(ct, "image/png") {
		t.Fatalf("expected png content type, got %q", ct)
	}

	resp = env.do(t, http.MethodDelete, "/countries/Testland")
	if resp.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.Code)
	}
	resp = env.do(t, http.MethodDelete, "/countries/Testland")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", resp.Code)
	}
}

func TestGetUnknownCountryBody(t *testing.T) {
	env := newTestEnv(t, countriesPayload, ratesPayload, http.StatusOK)

	resp := env.do(t, http.MethodGet, "/countries/Nope")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["error"] != "Country 'Nope' not found" {
		t.Fatalf("unexpected body: %#v", body)
	}
}

func TestRefreshUpstreamFailureReturns503(t *testing.T) {
	env := newTestEnv(t, "", ratesPayload, http.StatusBadGateway)

	resp := env.do(t, http.MethodPost, "/countries/refresh")
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), upstream.SourceCountries) {
		t.Fatalf("body should name the failing source: %s", resp.Body.String())
	}
	if env.store.Count() != 0 {
		t.Fatalf("nothing may be persisted on upstream failure")
	}
}

func TestImageNotFoundBeforeFirstRefresh(t *testing.T) {
	env := newTestEnv(t, countriesPayload, ratesPayload, http.StatusOK)

	resp := env.do(t, http.MethodGet, "/countries/image")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before first refresh, got %d", resp.Code)
	}
}

func TestListUnknownSortIgnored(t *testing.T) {
	env := newTestEnv(t, countriesPayload, ratesPayload, http.StatusOK)
	if resp := env.do(t, http.MethodPost, "/countries/refresh"); resp.Code != http.StatusOK {
		t.Fatalf("refresh: %d", resp.Code)
	}

	plain := env.do(t, http.MethodGet, "/countries")
	odd := env.do(t, http.MethodGet, "/countries?sort=sideways")
	if plain.Code != http.StatusOK || odd.Code != http.StatusOK {
		t.Fatalf("expected 200/200, got %d/%d", plain.Code, odd.Code)
	}

	var a, b []country.Country
	if err := json.Unmarshal(plain.Body.Bytes(), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := json.Unmarshal(odd.Body.Bytes(), &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("unknown sort changed cardinality: %d vs %d", len(a), len(b))
	}
}

func TestListFilterByRegionAndCurrency(t *testing.T) {
	env := newTestEnv(t, countriesPayload, ratesPayload, http.StatusOK)
	if resp := env.do(t, http.MethodPost, "/countries/refresh"); resp.Code != http.StatusOK {
		t.Fatalf("refresh: %d", resp.Code)
	}

	resp := env.do(t, http.MethodGet, "/countries?region=Testia&currency=XTL")
	var list []country.Country
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Testland" {
		t.Fatalf("conjunctive filter failed: %#v", list)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, countriesPayload, ratesPayload, http.StatusOK)
	if resp := env.do(t, http.MethodGet, "/healthz"); resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}
