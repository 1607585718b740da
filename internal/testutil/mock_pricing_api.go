// Package testutil provides testing utilities for the pricing proxy.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"
)

// MockResponse defines the behavior for a mock pricing API response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockPricingAPI is a configurable mock of the upstream pricing API, used
// to drive the thundering-herd and degraded-mode scenarios of spec §8
// without a real rate-limited backend.
type MockPricingAPI struct {
	server *httptest.Server

	mu       sync.RWMutex
	handler  func(w http.ResponseWriter, r *http.Request)
	requests atomic.Int32
}

// NewMockPricingAPI starts a mock pricing API server with a default 200
// response. Use SetResponse/SetHandler to script specific behavior.
func NewMockPricingAPI() *MockPricingAPI {
	mock := &MockPricingAPI{}
	mock.SetResponse(NewHealthyResponse("10000"))

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.requests.Add(1)

		mock.mu.RLock()
		h := mock.handler
		mock.mu.RUnlock()

		h(w, r)
	}))

	return mock
}

// URL returns the mock server's base URL.
func (m *MockPricingAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockPricingAPI) Close() {
	m.server.Close()
}

// SetHandler installs a custom handler invoked for every request.
func (m *MockPricingAPI) SetHandler(handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

// SetResponse configures a fixed response for every request.
func (m *MockPricingAPI) SetResponse(resp MockResponse) {
	m.SetHandler(func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns the number of requests the mock has received.
func (m *MockPricingAPI) RequestCount() int {
	return int(m.requests.Load())
}

// Reset clears the request counter.
func (m *MockPricingAPI) Reset() {
	m.requests.Store(0)
}

// NewHealthyResponse builds a {"rates":[{"rate": value}]} 200 response.
func NewHealthyResponse(value string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"rates":[{"rate":%q}]}`, value),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewServerErrorResponse builds a 500 response with the given upstream
// error message.
func NewServerErrorResponse(message string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       fmt.Sprintf(`{"error":%q}`, message),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewClientErrorResponse builds a 400 response with the given upstream
// error message.
func NewClientErrorResponse(message string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       fmt.Sprintf(`{"error":%q}`, message),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewTimeoutResponse builds a response that sleeps past the given
// duration before replying, to trigger the upstream client's deadline.
func NewTimeoutResponse(delay time.Duration) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"rates":[{"rate":"0"}]}`,
		Delay:      delay,
	}
}

// NewProtocolMismatchResponse builds a 200 response whose body doesn't
// match the {"rates":[{"rate":...}]} contract.
func NewProtocolMismatchResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"unexpected":"shape"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}
