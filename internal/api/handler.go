// Package api exposes the prediction engine and the mission lifecycle over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/missionctl/orbit/internal/domain"
	"github.com/missionctl/orbit/internal/metrics"
	"github.com/missionctl/orbit/internal/mission"
	"github.com/missionctl/orbit/internal/predictor"
	"github.com/missionctl/orbit/internal/preset"
)

// Dependencies are the collaborators the handlers need. Repo, Cache and Bus
// are only used for health checks and may be nil.
type Dependencies struct {
	Config    domain.ServerConfig
	Repo      domain.Repository
	Cache     domain.Cache
	Bus       domain.EventBus
	Missions  *mission.Service
	Predictor *predictor.Predictor
	Presets   *preset.Generator
	Metrics   *metrics.Manager
}

// Handler holds dependencies for API handlers.
type Handler struct {
	deps    Dependencies
	version string
}

// NewHandler creates a new API handler.
func NewHandler(deps Dependencies, version string) *Handler {
	return &Handler{deps: deps, version: version}
}

type errorResponse struct {
	Error string `json:"error"`
}

// messageResponse is the envelope used by the game API.
type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Root handles GET / with a service banner.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "Orbit Mission Engine",
		"version": h.version,
		"endpoints": []string{
			"/health", "/ready", "/metrics", "/preset", "/predict",
			"/api/missions", "/api/missions/start", "/api/missions/check/{id}",
			"/api/missions/predict", "/api/user/{username}",
		},
	})
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status         string  `json:"status"`
	ModelLoaded    bool    `json:"model_loaded"`
	RangesLoaded   bool    `json:"ranges_loaded"`
	Threshold      float64 `json:"threshold"`
	ClampInputs    bool    `json:"clamp_inputs"`
	RangeFallbacks int64   `json:"range_fallbacks"`
	Version        string  `json:"version"`
}

// Health handles GET /health. Always 200; backing service failures and a
// missing model report "degraded".
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := HealthResponse{Status: "ok", Version: h.version}

	if p := h.deps.Predictor; p != nil {
		cfg := p.Config()
		resp.ModelLoaded = p.ModelLoaded()
		resp.RangesLoaded = p.Ranges().Loaded()
		resp.Threshold = cfg.Threshold
		resp.ClampInputs = cfg.ClampInputs
		resp.RangeFallbacks = p.Ranges().Fallbacks()
	}
	if !resp.ModelLoaded {
		resp.Status = "degraded"
	}

	if h.deps.Repo != nil {
		if err := h.deps.Repo.Ping(ctx); err != nil {
			slog.Warn("repository health check failed", "error", err)
			resp.Status = "degraded"
		}
	}
	if h.deps.Cache != nil {
		if err := h.deps.Cache.Ping(ctx); err != nil {
			slog.Warn("cache health check failed", "error", err)
			resp.Status = "degraded"
		}
	}
	if h.deps.Bus != nil {
		if err := h.deps.Bus.Ping(ctx); err != nil {
			slog.Warn("event bus health check failed", "error", err)
			resp.Status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Ready handles GET /ready. Not ready until the store answers.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.deps.Repo != nil {
		if err := h.deps.Repo.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeMissionError writes err in the game API envelope. Internal errors are
// logged and replaced with a generic message.
func writeMissionError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			"path", r.URL.Path,
			"request_id", GetRequestID(r.Context()),
			"error", err,
		)
		msg = "internal server error"
	}
	writeJSON(w, status, messageResponse{Success: false, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}
