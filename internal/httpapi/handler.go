// Package httpapi is the HTTP edge: GET /pricing parameter validation,
// the degraded-mode stale fallback, and the coordinator-error-to-status
// mapping of spec §7, plus GET /health and GET /metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gitaway/pricing-proxy/internal/breaker"
	"github.com/gitaway/pricing-proxy/internal/coordinator"
	"github.com/gitaway/pricing-proxy/internal/upstream"
	"github.com/gitaway/pricing-proxy/pkg/cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const staleWarning = "Using cached rate due to temporary service issue"

// Handler serves the pricing proxy's HTTP surface.
type Handler struct {
	coordinator *coordinator.Coordinator
	redis       *redis.Client
	logger      zerolog.Logger
}

// New creates a Handler over the given coordinator and Redis client (the
// latter used only for the /health readiness probe).
func New(coord *coordinator.Coordinator, redisClient *redis.Client) *Handler {
	return &Handler{
		coordinator: coord,
		redis:       redisClient,
		logger:      log.With().Str("component", "httpapi").Logger(),
	}
}

// RegisterRoutes adds the pricing proxy's routes to mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/pricing", h.handlePricing)
	mux.HandleFunc("/health", h.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
}

type pricingResponse struct {
	Rate    string `json:"rate"`
	Warning string `json:"warning,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handlePricing(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	hotel := r.URL.Query().Get("hotel")
	room := r.URL.Query().Get("room")

	if err := validateParams(period, hotel, room); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	key := cache.NewRateKey(period, hotel, room)
	ctx := r.Context()

	value, _, err := h.coordinator.Resolve(ctx, key, period, hotel, room)
	if err == nil {
		writeJSON(w, http.StatusOK, pricingResponse{Rate: value})
		return
	}

	h.handleError(w, ctx, key, err)
}

// handleError implements spec §7's propagation policy: most upstream/
// breaker/lock failures get a stale-fallback attempt before being mapped
// to a status code; StoreUnavailable never does (bypassing the lock on a
// store outage would restore the thundering-herd pathology).
func (h *Handler) handleError(w http.ResponseWriter, ctx context.Context, key cache.RateKey, err error) {
	if errors.Is(err, coordinator.ErrStoreUnavailable) {
		h.logger.Error().Err(err).Str("key", key.String()).Msg("shared store unavailable")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Service unavailable: shared store unreachable"})
		return
	}

	if errors.Is(err, coordinator.ErrBusy) {
		h.logger.Warn().Str("key", key.String()).Msg("lock contention, no cached value")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Service temporarily busy, please retry"})
		return
	}

	// Every remaining error kind gets a stale-fallback attempt first.
	if stale, staleErr := h.coordinator.Stale(ctx, key); staleErr == nil {
		h.logger.Warn().Str("key", key.String()).Err(err).Msg("serving stale rate in degraded mode")
		writeJSON(w, http.StatusOK, pricingResponse{Rate: stale, Warning: staleWarning})
		return
	}

	status, message := mapUpstreamError(err)
	h.logger.Error().Str("key", key.String()).Err(err).Int("status", status).Msg("no stale fallback available")
	writeJSON(w, status, errorResponse{Error: message})
}

// mapUpstreamError implements the no-stale branch of spec §7's table.
// lock.ErrUnavailable never reaches here: coordinator.Resolve intercepts
// it itself and always converts it to either a cache-hit return or
// coordinator.ErrBusy, which handleError checks before calling this.
func mapUpstreamError(err error) (int, string) {
	if errors.Is(err, breaker.ErrOpen) {
		return http.StatusServiceUnavailable, "Service unavailable: upstream circuit open"
	}

	var upErr *upstream.Error
	if errors.As(err, &upErr) {
		switch upErr.Kind {
		case upstream.KindTimeout:
			return http.StatusGatewayTimeout, "Upstream timeout: " + upErr.Message
		case upstream.KindClient:
			return http.StatusBadGateway, "Upstream client error: " + upErr.Message
		case upstream.KindServer, upstream.KindNetwork:
			return http.StatusServiceUnavailable, "Service unavailable: upstream error"
		case upstream.KindProtocol:
			return http.StatusServiceUnavailable, "Service unavailable: " + upErr.Message
		}
	}

	return http.StatusServiceUnavailable, "Service unavailable"
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.redis.Ping(ctx).Err(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "redis": "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
