// Package controlplane serves the read-only admin API: recorded exchanges,
// the route table, health and process stats.
package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tjfontaine/polyglot-event-gateway/internal/adapter"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/ports"
)

const maxListLimit = 500

// RouteSource yields the route table currently being served. The runtime
// swaps apps on config reload, so the table is looked up per request.
type RouteSource func() *adapter.Router

type Server struct {
	router    *chi.Mux
	startTime time.Time
	store     ports.ExchangeStore
	routes    RouteSource
	logger    *slog.Logger
}

// NewServer creates the admin API. store may be nil when recording is
// disabled.
func NewServer(store ports.ExchangeStore, routes RouteSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:    chi.NewRouter(),
		startTime: time.Now(),
		store:     store,
		routes:    routes,
		logger:    logger,
	}
	s.mount()
	return s
}

func (s *Server) mount() {
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/stats", s.handleStats)
	s.router.Get("/routes", s.handleRoutes)
	s.router.Get("/exchanges", s.handleListExchanges)
	s.router.Get("/exchanges/{exchange_id}", s.handleExchangeDetail)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type HealthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	pinger, ok := s.store.(ports.Pinger)
	if !ok {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := pinger.Ping(ctx); err != nil {
		s.logger.WarnContext(r.Context(), "storage health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Storage: "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Storage: "ok"})
}

type StatsResponse struct {
	Uptime       string      `json:"uptime"`
	GoVersion    string      `json:"go_version"`
	NumGoroutine int         `json:"num_goroutine"`
	Memory       MemoryStats `json:"memory"`
}

type MemoryStats struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeJSON(w, http.StatusOK, StatsResponse{
		Uptime:       time.Since(s.startTime).Round(time.Second).String(),
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		Memory: MemoryStats{
			Alloc:      m.Alloc,
			TotalAlloc: m.TotalAlloc,
			Sys:        m.Sys,
			NumGC:      m.NumGC,
		},
	})
}

type RouteSummary struct {
	Method       string `json:"method"`
	Pattern      string `json:"pattern"`
	Match        string `json:"match"`
	ConsumesJSON bool   `json:"consumes_json"`
}

type RouteListResponse struct {
	Routes []RouteSummary `json:"routes"`
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	resp := RouteListResponse{Routes: []RouteSummary{}}
	if s.routes != nil {
		if router := s.routes(); router != nil {
			for _, rt := range router.Routes() {
				resp.Routes = append(resp.Routes, RouteSummary{
					Method:       rt.Method,
					Pattern:      rt.Pattern,
					Match:        rt.Kind.String(),
					ConsumesJSON: rt.ConsumesJSON,
				})
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type ExchangeListResponse struct {
	Exchanges []*domain.Exchange `json:"exchanges"`
	Total     int                `json:"total"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

func (s *Server) handleListExchanges(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "exchange storage not configured")
		return
	}

	q := r.URL.Query()
	opts := ports.ExchangeListOptions{
		Path:  q.Get("path"),
		Limit: ports.DefaultExchangeListLimit,
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxListLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxListLimit))
			return
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		opts.Offset = n
	}
	if v := q.Get("status"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 100 || n > 599 {
			writeError(w, http.StatusBadRequest, "status must be an HTTP status code")
			return
		}
		opts.Status = n
	}

	exchanges, err := s.store.ListExchanges(r.Context(), opts)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to list exchanges", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list exchanges")
		return
	}
	if exchanges == nil {
		exchanges = []*domain.Exchange{}
	}

	writeJSON(w, http.StatusOK, ExchangeListResponse{
		Exchanges: exchanges,
		Total:     len(exchanges),
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	})
}

func (s *Server) handleExchangeDetail(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "exchange storage not configured")
		return
	}

	id := chi.URLParam(r, "exchange_id")
	ex, err := s.store.GetExchange(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrExchangeNotFound) {
			writeError(w, http.StatusNotFound, "exchange not found")
			return
		}
		s.logger.ErrorContext(r.Context(), "failed to get exchange",
			slog.String("exchange_id", id),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get exchange")
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, adapter.ErrorBody{Error: message})
}
