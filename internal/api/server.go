// Package api provides the HTTP server for PiùCane.
// It exposes the level table, the XP calculators and the per-user
// gamification operations as a JSON API.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/piucane/piucane/internal/app/gamification"
	"github.com/piucane/piucane/internal/domain"
	"github.com/piucane/piucane/internal/health"
	"github.com/piucane/piucane/internal/infra/metrics"
)

// Server is the PiùCane HTTP API server.
type Server struct {
	svc            *gamification.Service
	health         *health.Checker // nil: /health always reports ok
	metricsEnabled bool
	corsOrigins    []string
	version        string
	now            func() time.Time
}

// NewServer creates a new API server.
func NewServer(svc *gamification.Service) *Server {
	return &Server{
		svc:         svc,
		corsOrigins: []string{"*"},
		version:     "dev",
		now:         time.Now,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth sets the checker reported by /health.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// SetCORSOrigins replaces the allowed CORS origins.
func (s *Server) SetCORSOrigins(origins []string) {
	if len(origins) > 0 {
		s.corsOrigins = origins
	}
}

// SetVersion sets the version reported by /api/version.
func (s *Server) SetVersion(v string) { s.version = v }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler)
	r.Use(instrument)

	r.Get("/health", s.handleHealth)

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
	})

	r.Route("/api", func(r chi.Router) {
		// Level table & calculators
		r.Get("/levels", s.handleListLevels)
		r.Get("/levels/calculate", s.handleCalculateLevel)
		r.Get("/levels/{level}", s.handleGetLevel)
		r.Get("/xp/streak", s.handleStreakXP)
		r.Get("/xp/badge", s.handleBadgeXP)
		r.Post("/xp/mission", s.handleMissionXP)
		r.Put("/events/multiplier", s.handleEventMultiplier)
		r.Post("/missions/adapt", s.handleAdaptMission)

		// Mission attempts
		r.Route("/missions/progress/{progressID}", func(r chi.Router) {
			r.Post("/step", s.handleMissionStep)
			r.Post("/complete", s.handleCompleteMission)
			r.Post("/fail", s.handleFailMission)
		})

		// Per-user operations
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/profile", s.handleGetProfile)
			r.Put("/premium", s.handleSetPremium)
			r.Post("/xp", s.handleAwardXP)
			r.Post("/activity", s.handleRecordActivity)
			r.Post("/badges/check", s.handleCheckBadges)
			r.Get("/badges", s.handleListBadges)
			r.Get("/rewards", s.handleListRewards)
			r.Post("/rewards/{rewardID}/claim", s.handleClaimReward)
			r.Post("/dda", s.handleInitializeDDA)
			r.Get("/dda", s.handleGetDDA)
			r.Post("/dda/evaluate", s.handleEvaluateDDA)
			r.Get("/dda/recommendation", s.handleRecommendation)
			r.Post("/missions", s.handleStartMission)
			r.Get("/missions", s.handleListMissions)
			r.Get("/notifications", s.handleNotifications)
		})
	})

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// instrument records request count and latency by route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
		metrics.HTTPLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    errorType(status),
		},
	})
}

// writeServiceError maps a service error onto a status code.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConcurrency),
		errors.Is(err, domain.ErrRewardNotClaimable),
		errors.Is(err, domain.ErrMissionNotActive):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("[api] %s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	default:
		return "error"
	}
}

// decodeJSON decodes the request body into v. An empty body leaves v as is.
func decodeJSON(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
