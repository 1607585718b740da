package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gitaway/pricing-proxy/internal/breaker"
	"github.com/gitaway/pricing-proxy/internal/coordinator"
	"github.com/gitaway/pricing-proxy/internal/lock"
	"github.com/gitaway/pricing-proxy/internal/testutil"
	"github.com/gitaway/pricing-proxy/internal/upstream"
	"github.com/gitaway/pricing-proxy/pkg/cache"
	"github.com/redis/go-redis/v9"
)

func TestValidateParams(t *testing.T) {
	tests := []struct {
		name                string
		period, hotel, room string
		wantErrSubstring    string
	}{
		{"all missing", "", "", "", "Missing required parameters"},
		{"missing room", "Summer", "FloatingPointResort", "", "Missing required parameters"},
		{"invalid period", "summer-2024", "FloatingPointResort", "SingletonRoom", "Invalid period"},
		{"invalid hotel", "Summer", "MotelSix", "SingletonRoom", "Invalid hotel"},
		{"invalid room", "Summer", "FloatingPointResort", "PenthouseSuite", "Invalid room"},
		{"valid", "Winter", "GitawayHotel", "BooleanTwin", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateParams(tt.period, tt.hotel, tt.room)
			if tt.wantErrSubstring == "" {
				if err != nil {
					t.Fatalf("validateParams() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErrSubstring) {
				t.Fatalf("validateParams() = %v, want substring %q", err, tt.wantErrSubstring)
			}
		})
	}
}

func TestMapUpstreamError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantStatus    int
		wantSubstring string
	}{
		{
			name:          "breaker open",
			err:           breaker.ErrOpen,
			wantStatus:    http.StatusServiceUnavailable,
			wantSubstring: "circuit open",
		},
		{
			name:          "upstream timeout",
			err:           &upstream.Error{Kind: upstream.KindTimeout, Message: "request timed out after 5s"},
			wantStatus:    http.StatusGatewayTimeout,
			wantSubstring: "timeout",
		},
		{
			name:          "upstream client error",
			err:           &upstream.Error{Kind: upstream.KindClient, StatusCode: 400, Message: "bad attrs"},
			wantStatus:    http.StatusBadGateway,
			wantSubstring: "bad attrs",
		},
		{
			name:          "upstream server error",
			err:           &upstream.Error{Kind: upstream.KindServer, StatusCode: 500, Message: "db down"},
			wantStatus:    http.StatusServiceUnavailable,
			wantSubstring: "unavailable",
		},
		{
			name:          "upstream network error",
			err:           &upstream.Error{Kind: upstream.KindNetwork, Message: "connection refused"},
			wantStatus:    http.StatusServiceUnavailable,
			wantSubstring: "unavailable",
		},
		{
			name:          "upstream protocol error",
			err:           &upstream.Error{Kind: upstream.KindProtocol, Message: "response did not match {rates:[{rate}]} shape"},
			wantStatus:    http.StatusServiceUnavailable,
			wantSubstring: "response did not match",
		},
		{
			name:          "unclassified error",
			err:           lock.ErrStoreUnavailable,
			wantStatus:    http.StatusServiceUnavailable,
			wantSubstring: "unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := mapUpstreamError(tt.err)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if !strings.Contains(strings.ToLower(msg), strings.ToLower(tt.wantSubstring)) {
				t.Errorf("message = %q, want substring %q", msg, tt.wantSubstring)
			}
		})
	}
}

// newTestHandler wires a Handler over miniredis and a scriptable upstream
// mock, mirroring the teacher's httptest.NewRecorder()-based handler
// tests rather than pulling in a testcontainers-gated Redis.
func newTestHandler(t *testing.T) (*Handler, *testutil.MockPricingAPI, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	mock := testutil.NewMockPricingAPI()
	t.Cleanup(mock.Close)

	upstreamClient := upstream.New(upstream.Config{BaseURL: mock.URL(), UserAgent: "handler-test/1.0"})
	cb := breaker.New(breaker.DefaultConfig())
	locker := lock.New(redisClient)
	store := cache.NewStore(redisClient)

	timings := coordinator.Timings{
		TFresh: time.Minute,
		TStale: 10 * time.Minute,
		THold:  2 * time.Second,
		TWait:  200 * time.Millisecond,
		TPoll:  5 * time.Millisecond,
	}
	coord := coordinator.New(store, locker, cb, upstreamClient, timings)

	return New(coord, redisClient), mock, mr
}

func getPricing(h *Handler, query string) (*http.Response, map[string]interface{}) {
	req := httptest.NewRequest(http.MethodGet, "/pricing?"+query, nil)
	w := httptest.NewRecorder()
	h.handlePricing(w, req)

	resp := w.Result()
	var body map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func TestHandlePricing_Success(t *testing.T) {
	h, mock, mr := newTestHandler(t)
	t.Cleanup(mr.Close)
	mock.SetResponse(testutil.NewHealthyResponse("15000"))

	resp, body := getPricing(h, "period=Summer&hotel=FloatingPointResort&room=SingletonRoom")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["rate"] != "15000" {
		t.Errorf("rate = %v, want 15000", body["rate"])
	}
	if _, ok := body["warning"]; ok {
		t.Errorf("unexpected warning on a healthy resolve: %v", body["warning"])
	}
}

func TestHandlePricing_ValidationError(t *testing.T) {
	h, _, mr := newTestHandler(t)
	t.Cleanup(mr.Close)

	resp, body := getPricing(h, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if errMsg, _ := body["error"].(string); !strings.Contains(errMsg, "Missing required parameters") {
		t.Errorf("error = %q, want substring %q", errMsg, "Missing required parameters")
	}
}

func TestHandlePricing_ClientErrorMapsTo502(t *testing.T) {
	h, mock, mr := newTestHandler(t)
	t.Cleanup(mr.Close)
	mock.SetResponse(testutil.NewClientErrorResponse("unknown room"))

	resp, body := getPricing(h, "period=Summer&hotel=FloatingPointResort&room=SingletonRoom")
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	if errMsg, _ := body["error"].(string); !strings.Contains(errMsg, "unknown room") {
		t.Errorf("error = %q, want substring %q", errMsg, "unknown room")
	}
}

func TestHandlePricing_ProtocolMismatchMapsTo503(t *testing.T) {
	h, mock, mr := newTestHandler(t)
	t.Cleanup(mr.Close)
	mock.SetResponse(testutil.NewProtocolMismatchResponse())

	resp, body := getPricing(h, "period=Summer&hotel=FloatingPointResort&room=SingletonRoom")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	if errMsg, _ := body["error"].(string); !strings.Contains(errMsg, "did not match") {
		t.Errorf("error = %q, want substring %q", errMsg, "did not match")
	}
}

func TestHandlePricing_DegradedModeServesStale(t *testing.T) {
	h, mock, mr := newTestHandler(t)
	t.Cleanup(mr.Close)
	mock.SetResponse(testutil.NewServerErrorResponse("upstream overloaded"))

	key := cache.NewRateKey("Summer", "FloatingPointResort", "SingletonRoom")
	store := cache.NewStore(h.redis)
	if err := store.Put(context.Background(), cache.Stale, key, "40000", time.Hour); err != nil {
		t.Fatalf("preload stale cache: %v", err)
	}

	resp, body := getPricing(h, "period=Summer&hotel=FloatingPointResort&room=SingletonRoom")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["rate"] != "40000" {
		t.Errorf("rate = %v, want 40000", body["rate"])
	}
	if warning, _ := body["warning"].(string); !strings.Contains(warning, "cached rate") {
		t.Errorf("warning = %q, want substring %q", warning, "cached rate")
	}
}

func TestHandlePricing_StoreUnavailableMapsTo500(t *testing.T) {
	h, _, mr := newTestHandler(t)
	mr.Close()

	resp, body := getPricing(h, "period=Summer&hotel=FloatingPointResort&room=SingletonRoom")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if errMsg, _ := body["error"].(string); !strings.Contains(errMsg, "shared store") {
		t.Errorf("error = %q, want substring %q", errMsg, "shared store")
	}
}

func TestHandleHealth(t *testing.T) {
	h, _, mr := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.handleHealth(w, req)
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Result().StatusCode)
	}

	mr.Close()

	req2 := httptest.NewRequest(http.MethodGet, "/health", nil)
	w2 := httptest.NewRecorder()
	h.handleHealth(w2, req2)
	if w2.Result().StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w2.Result().StatusCode)
	}
}
