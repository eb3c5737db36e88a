package report

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/community-solar/internal/model"
	"github.com/sells-group/community-solar/internal/monitoring"
	"github.com/sells-group/community-solar/internal/store"
)

// maxPageSize caps the number of sites returned by one request.
const maxPageSize = 1000

// SiteStore is the read-only view of the store served over HTTP.
type SiteStore interface {
	ListSites(ctx context.Context, filter store.SiteFilter) ([]model.Site, error)
	DataDictionary(ctx context.Context) ([]store.TableDictionary, error)
	Ping(ctx context.Context) error
}

// Server serves enriched sites to reporting consumers. Every route reads.
type Server struct {
	store     SiteStore
	collector *monitoring.Collector
	gatherer  prometheus.Gatherer
}

// NewServer creates a Server. collector and gatherer may be nil, which
// disables /api/status and /metrics.
func NewServer(st SiteStore, collector *monitoring.Collector, gatherer prometheus.Gatherer) *Server {
	return &Server{store: st, collector: collector, gatherer: gatherer}
}

// Handler returns the chi router for the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/sites", s.handleSites)
		r.Get("/sites.geojson", s.handleSitesGeoJSON)
		r.Get("/dictionary", s.handleDictionary)
		if s.collector != nil {
			r.Get("/status", s.handleStatus)
		}
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	sites, ok := s.listSites(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(sites), "sites": sites})
}

func (s *Server) handleSitesGeoJSON(w http.ResponseWriter, r *http.Request) {
	sites, ok := s.listSites(w, r)
	if !ok {
		return
	}
	data, err := MarshalGeoJSON(sites)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleDictionary(w http.ResponseWriter, r *http.Request) {
	tables, err := s.store.DataDictionary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.collector.Collect(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) listSites(w http.ResponseWriter, r *http.Request) ([]model.Site, bool) {
	filter, err := ParseSiteFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	sites, err := s.store.ListSites(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	if sites == nil {
		sites = []model.Site{}
	}
	return sites, true
}

// ParseSiteFilter reads the site filter from query parameters:
// city, property_code, min_kwh, disadvantaged, limit and offset.
func ParseSiteFilter(r *http.Request) (store.SiteFilter, error) {
	q := r.URL.Query()
	f := store.SiteFilter{
		City:         strings.TrimSpace(q.Get("city")),
		PropertyCode: strings.TrimSpace(q.Get("property_code")),
		Limit:        100,
	}

	if v := q.Get("min_kwh"); v != "" {
		kwh, err := strconv.ParseFloat(v, 64)
		if err != nil || kwh < 0 {
			return f, &paramError{name: "min_kwh", value: v}
		}
		f.MinYearlyKWh = kwh
	}
	if v := q.Get("disadvantaged"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, &paramError{name: "disadvantaged", value: v}
		}
		f.DisadvantagedOnly = b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, &paramError{name: "limit", value: v}
		}
		f.Limit = min(n, maxPageSize)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, &paramError{name: "offset", value: v}
		}
		f.Offset = n
	}
	return f, nil
}

type paramError struct {
	name  string
	value string
}

func (e *paramError) Error() string {
	return "invalid " + e.name + ": " + strconv.Quote(e.value)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("report: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		zap.L().Error("report: request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
