// Package upstream implements the HTTP client for the external pricing
// API: a single POST per call, typed failure classification, and a hard
// per-call deadline. It has no retry logic of its own — retry/backoff
// policy belongs to the breaker and coordinator layers above it.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// CallTimeout is the hard per-call deadline imposed on every upstream
// request, per spec §4.A.
const CallTimeout = 5 * time.Second

var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_requests_total",
		Help: "Total upstream pricing API calls by outcome",
	}, []string{"outcome"})

	upstreamRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "upstream_request_duration_seconds",
		Help:    "Upstream pricing API call duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
)

// attribute mirrors the single (period, hotel, room) tuple the wire
// contract expects.
type attribute struct {
	Period string `json:"period"`
	Hotel  string `json:"hotel"`
	Room   string `json:"room"`
}

type requestBody struct {
	Attributes []attribute `json:"attributes"`
}

type rate struct {
	Rate string `json:"rate"`
}

type responseBody struct {
	Rates []rate `json:"rates"`
	Error string `json:"error"`
}

// Client issues requests against the pricing API's single /pricing
// endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	userAgent  string
	logger     zerolog.Logger
}

// Config holds the upstream client's configuration.
type Config struct {
	// BaseURL is the pricing API origin, e.g. "http://rate-api:3001".
	BaseURL string

	// Token is sent as the bearer-style "token" header when non-empty.
	Token string

	// UserAgent identifies this proxy to the upstream, e.g. "pricing-proxy/1.0".
	UserAgent string
}

// New creates an upstream client. The returned client enforces CallTimeout
// on every FetchRate call regardless of the caller's own context deadline.
func New(cfg Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: CallTimeout},
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		userAgent:  cfg.UserAgent,
		logger:     log.With().Str("component", "upstream").Logger(),
	}
}

// FetchRate issues a single POST to the pricing API and returns the first
// rate of the response, or a typed *Error describing why it could not.
func (c *Client) FetchRate(ctx context.Context, period, hotel, room string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		upstreamRequestDuration.Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(requestBody{
		Attributes: []attribute{{Period: period, Hotel: hotel, Room: room}},
	})
	if err != nil {
		upstreamRequestsTotal.WithLabelValues(string(KindGeneric)).Inc()
		return "", newError(KindGeneric, 0, "marshal request body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pricing", bytes.NewReader(body))
	if err != nil {
		upstreamRequestsTotal.WithLabelValues(string(KindGeneric)).Inc()
		return "", newError(KindGeneric, 0, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("token", c.token)
	}

	c.logger.Debug().Str("period", period).Str("hotel", hotel).Str("room", room).Msg("upstream call start")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind, classified := classifyDoError(err)
		upstreamRequestsTotal.WithLabelValues(string(kind)).Inc()
		c.logger.Warn().Err(err).Str("kind", string(kind)).Msg("upstream call failed")
		return "", newError(kind, 0, classified, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		upstreamRequestsTotal.WithLabelValues(string(KindNetwork)).Inc()
		return "", newError(KindNetwork, resp.StatusCode, "read response body", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var out responseBody
		if err := json.Unmarshal(data, &out); err != nil || len(out.Rates) == 0 || out.Rates[0].Rate == "" {
			upstreamRequestsTotal.WithLabelValues(string(KindProtocol)).Inc()
			c.logger.Warn().Int("status", resp.StatusCode).Msg("upstream response shape mismatch")
			return "", newError(KindProtocol, resp.StatusCode, "response did not match {rates:[{rate}]} shape", nil)
		}
		upstreamRequestsTotal.WithLabelValues("success").Inc()
		c.logger.Debug().Msg("upstream call finished")
		return out.Rates[0].Rate, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		upstreamRequestsTotal.WithLabelValues(string(KindClient)).Inc()
		msg := extractErrorMessage(data, resp.Status)
		c.logger.Warn().Int("status", resp.StatusCode).Str("msg", msg).Msg("upstream client error")
		return "", newError(KindClient, resp.StatusCode, msg, nil)

	case resp.StatusCode >= 500:
		upstreamRequestsTotal.WithLabelValues(string(KindServer)).Inc()
		msg := extractErrorMessage(data, resp.Status)
		c.logger.Warn().Int("status", resp.StatusCode).Str("msg", msg).Msg("upstream server error")
		return "", newError(KindServer, resp.StatusCode, msg, nil)

	default:
		upstreamRequestsTotal.WithLabelValues(string(KindGeneric)).Inc()
		return "", newError(KindGeneric, resp.StatusCode, resp.Status, nil)
	}
}

func extractErrorMessage(body []byte, fallback string) string {
	var out responseBody
	if err := json.Unmarshal(body, &out); err == nil && out.Error != "" {
		return out.Error
	}
	return fallback
}

// classifyDoError distinguishes a timeout from a generic network failure.
func classifyDoError(err error) (Kind, string) {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout, fmt.Sprintf("request timed out after %s", CallTimeout)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, fmt.Sprintf("request timed out after %s", CallTimeout)
	}
	return KindNetwork, err.Error()
}
