// Package httpapi exposes the REST surface of the service.
package httpapi

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/worldfacts/countryd/internal/app/apperr"
	"github.com/worldfacts/countryd/internal/app/domain/country"
	"github.com/worldfacts/countryd/internal/app/metrics"
	"github.com/worldfacts/countryd/internal/app/services/countries"
	"github.com/worldfacts/countryd/pkg/logger"
)

// handler bundles the HTTP endpoints over the countries service.
type handler struct {
	svc       *countries.Service
	imagePath string
	log       *logger.Logger
}

// NewHandler returns the router exposing the REST API.
func NewHandler(svc *countries.Service, imagePath string, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{svc: svc, imagePath: imagePath, log: log}

	r := mux.NewRouter()
	r.Use(LoggingMiddleware(log))
	r.Use(MetricsMiddleware())

	r.HandleFunc("/countries/refresh", h.refresh).Methods(http.MethodPost)
	r.HandleFunc("/countries/image", h.serveImage).Methods(http.MethodGet)
	r.HandleFunc("/countries", h.list).Methods(http.MethodGet)
	r.HandleFunc("/countries/{name}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/countries/{name}", h.delete).Methods(http.MethodDelete)
	r.HandleFunc("/status", h.status).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	return r
}

// POST /countries/refresh
func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	h.log.Info("starting data refresh")
	start := time.Now()

	result, err := h.svc.Refresh(r.Context())
	if err != nil {
		metrics.RecordRefresh("failure", time.Since(start))
		h.writeError(w, err)
		return
	}
	metrics.RecordRefresh("success", time.Since(start))

	writeJSON(w, http.StatusOK, result)
}

// GET /countries?region=&currency=&sort=
func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := country.Filter{
		Region:       q.Get("region"),
		CurrencyCode: q.Get("currency"),
	}

	result, err := h.svc.List(r.Context(), filter, q.Get("sort"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if result == nil {
		result = []country.Country{}
	}
	writeJSON(w, http.StatusOK, result)
}

// GET /countries/{name}
func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	rec, err := h.svc.Get(r.Context(), name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DELETE /countries/{name}
func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.svc.Delete(r.Context(), name); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /status
func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Status(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// GET /countries/image
func (h *handler) serveImage(w http.ResponseWriter, r *http.Request) {
	if _, err := os.Stat(h.imagePath); err != nil {
		h.writeError(w, apperr.NotFoundf("Summary image not found. Please run /countries/refresh first."))
		return
	}
	http.ServeFile(w, r, h.imagePath)
}

// GET /healthz
func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		// Full detail stays server-side; the client gets a generic message.
		h.log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, map[string]string{"error": apperr.ClientMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
