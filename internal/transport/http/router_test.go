package http_test

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"testing/fstest"

	transportHTTP "github.com/opentrusty/console/internal/transport/http"
	"github.com/stretchr/testify/assert"
)

// TestPurpose: Validates that each path reaches the intended handler.
// Scope: Unit Test
// Expected: Proxy, system and SPA routes resolve as registered.
// Test Case ID: RTR-01
func TestRouter_Routes(t *testing.T) {
	fb := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{}}`))
	})
	static := fstest.MapFS{
		"index.html":    {Data: []byte("<html>console</html>")},
		"assets/app.js": {Data: []byte("console.log(1)")},
	}
	console := newConsole(t, fb.URL, consoleOptions{opts: transportHTTP.RouterOptions{StaticFS: static}})

	tests := []struct {
		name     string
		method   string
		path     string
		status   int
		contains string
	}{
		{"health", http.MethodGet, "/health", http.StatusOK, `"healthy"`},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK, "go_goroutines"},
		{"spa root", http.MethodGet, "/", http.StatusOK, "console"},
		{"spa client route", http.MethodGet, "/organizations/42/members", http.StatusOK, "<html>"},
		{"spa asset", http.MethodGet, "/assets/app.js", http.StatusOK, "console.log"},
		{"spa rejects post", http.MethodPost, "/organizations", http.StatusMethodNotAllowed, "Method not allowed"},
		{"invitation", http.MethodGet, "/invitation-proxy/t", http.StatusOK, `"data"`},
		{"api", http.MethodGet, "/api/me", http.StatusOK, `"data"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(console, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.contains)
		})
	}

	w := serve(console, httptest.NewRequest(http.MethodGet, "/assets/app.js", nil))
	assert.Equal(t, "public, max-age=31536000, immutable", w.Header().Get("Cache-Control"))
}

// TestPurpose: Validates that the SPA fallback is absent when no bundle is configured.
// Scope: Unit Test
// Expected: Unknown paths are 404.
// Test Case ID: RTR-02
func TestRouter_NoStaticBundle(t *testing.T) {
	fb := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {})
	console := newConsole(t, fb.URL, consoleOptions{})

	w := serve(console, httptest.NewRequest(http.MethodGet, "/organizations", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestPurpose: Validates per-client rate limiting.
// Scope: Unit Test
// Security: Abuse throttling (CWE-770)
// Expected: With burst 2, the third request from one client is 429 while another client is unaffected.
// Test Case ID: RTR-03
func TestRouter_RateLimit(t *testing.T) {
	fb := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {})
	limiter := transportHTTP.NewRateLimiter(0.001, 2)
	t.Cleanup(limiter.Stop)
	console := newConsole(t, fb.URL, consoleOptions{limiter: limiter})

	from := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = ip + ":5555"
		return serve(console, req).Code
	}

	assert.Equal(t, http.StatusOK, from("10.0.0.1"))
	assert.Equal(t, http.StatusOK, from("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, from("10.0.0.1"))
	assert.Equal(t, http.StatusOK, from("10.0.0.2"))

	// Without trusted proxies a forged X-Forwarded-For does not buy a new budget.
	spoof := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", forwarded)
		return serve(console, req).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, spoof("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, spoof("203.0.113.2, 10.0.0.9"))
}

// TestPurpose: Validates the dedicated avatar upload throttle.
// Scope: Unit Test
// Security: Upload abuse throttling (CWE-770)
// Expected: With one upload per minute, the second upload attempt from the same client is 429.
// Test Case ID: RTR-04
func TestRouter_UploadLimit(t *testing.T) {
	fb := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {})
	console := newConsole(t, fb.URL, consoleOptions{opts: transportHTTP.RouterOptions{UploadsPerMinute: 1}})

	first := serve(console, httptest.NewRequest(http.MethodPost, "/avatar-proxy/upload", nil))
	assert.Equal(t, http.StatusBadRequest, first.Code)

	second := serve(console, httptest.NewRequest(http.MethodPost, "/avatar-proxy/upload", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "Too many uploads", decodeMessage(t, second))

	// Fetches are not counted against the upload budget.
	w := serve(console, httptest.NewRequest(http.MethodGet, "/avatar-proxy/", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestPurpose: Validates that forwarded client addresses are honored only from trusted proxies.
// Scope: Unit Test
// Security: Rate limit bypass through forged X-Forwarded-For (CWE-348)
// Expected: Behind a trusted proxy the nearest untrusted hop is the client; forged leading hops and untrusted peers do not change the key.
// Test Case ID: RTR-05
func TestRouter_TrustedProxies(t *testing.T) {
	fb := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {})
	limiter := transportHTTP.NewRateLimiter(0.001, 1)
	t.Cleanup(limiter.Stop)
	console := newConsole(t, fb.URL, consoleOptions{
		limiter: limiter,
		opts: transportHTTP.RouterOptions{
			TrustedProxies: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")},
		},
	})

	get := func(peer, forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = peer + ":443"
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		return serve(console, req).Code
	}

	// Client 203.0.113.5 reaches us through two trusted proxies.
	assert.Equal(t, http.StatusOK, get("10.1.1.1", "203.0.113.5, 10.2.2.2"))
	assert.Equal(t, http.StatusTooManyRequests, get("10.1.1.9", "203.0.113.5"))

	// A forged leading hop does not hide the real client.
	assert.Equal(t, http.StatusTooManyRequests, get("10.1.1.1", "198.51.100.77, 203.0.113.5"))

	// Another client behind the proxy has its own budget.
	assert.Equal(t, http.StatusOK, get("10.1.1.1", "203.0.113.6"))

	// An untrusted peer is keyed on its own address whatever it forwards.
	assert.Equal(t, http.StatusOK, get("198.51.100.1", "203.0.113.7"))
	assert.Equal(t, http.StatusTooManyRequests, get("198.51.100.1", "203.0.113.8"))
}
