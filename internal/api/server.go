// Package api provides the HTTP server for the PuzzlePup backend. Every
// engagement trigger is a synchronous request/response endpoint over the
// progression service; business-rule rejections come back as normal JSON
// results, not 5xx faults.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/puzzlepup/puzzlepup/internal/app/engagement"
	"github.com/puzzlepup/puzzlepup/internal/app/progression"
	"github.com/puzzlepup/puzzlepup/internal/domain"
	"github.com/puzzlepup/puzzlepup/internal/health"
)

// Server is the PuzzlePup HTTP API server.
type Server struct {
	progression    *progression.Service
	notifications  *engagement.NotificationService
	health         *health.Checker
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(p *progression.Service, n *engagement.NotificationService) *Server {
	return &Server{progression: p, notifications: n}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth attaches a health checker whose results /health reports.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health check for deploy targets
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{"status": "ok"}
		if s.health != nil {
			if !s.health.IsHealthy() {
				resp["status"] = "degraded"
			}
			resp["checks"] = s.health.Statuses()
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Post("/api/users", s.handleSignup)
	r.Get("/api/users/{id}/progression", s.handleProgression)
	r.Get("/api/users/{id}/rewards", s.handleRewardHistory)

	r.Route("/api/engagement", func(r chi.Router) {
		r.Post("/{id}/checkin", s.handleCheckIn)
		r.Post("/{id}/level-clear", s.handleLevelClear)
		r.Get("/{id}/weekly", s.handleWeekly)
		r.Post("/{id}/weekly/claim", s.handleWeeklyClaim)
		r.Post("/{id}/daily-run", s.handleDailyRun)
		r.Post("/{id}/comeback/claim", s.handleComebackClaim)
		r.Post("/{id}/achievements/check", s.handleAchievementCheck)
		r.Get("/{id}/achievements", s.handleAchievements)
		r.Get("/{id}/notifications", s.handleNotifications)
		r.Post("/notifications/{nid}/shown", s.handleNotificationShown)
	})

	r.Post("/api/purchases", s.handlePurchase)

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": msg,
		},
	})
}

// writeDomainError maps a service error onto an HTTP response. Business-rule
// rejections (claim guards) are 409s with a stable code so clients can render
// them as ordinary UI states.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username_taken", err.Error())
	case errors.Is(err, domain.ErrEmptyUsername),
		errors.Is(err, domain.ErrInvalidReferralCode),
		errors.Is(err, domain.ErrInvalidDifficulty),
		errors.Is(err, domain.ErrInvalidScore):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, domain.ErrAlreadyClaimed):
		writeError(w, http.StatusConflict, "already_claimed", err.Error())
	case errors.Is(err, domain.ErrInsufficientProgress):
		writeError(w, http.StatusConflict, "insufficient_progress", err.Error())
	case errors.Is(err, domain.ErrNotEligible):
		writeError(w, http.StatusConflict, "not_eligible", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusServiceUnavailable, "conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}
