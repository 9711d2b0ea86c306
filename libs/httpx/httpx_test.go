package httpx

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(okHandler(), mark("a"), nil, mark("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if strings.Join(order, ",") != "a,b" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestWithRequestID(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if seen != "req-123" || rw.Header().Get(RequestIDHeader) != "req-123" {
		t.Fatalf("expected caller id to be reused, got %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "" || len(seen) > 128 {
		t.Fatalf("expected a fresh id, got %q", seen)
	}
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	h := rl.Middleware()(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		codes = append(codes, rw.Code)
		if rw.Code == http.StatusTooManyRequests && rw.Header().Get("Retry-After") == "" {
			t.Fatal("expected Retry-After on 429")
		}
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes: %v", codes)
	}

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.2:5555"
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, other)
	if rw.Code != http.StatusOK {
		t.Fatalf("other clients should not share a bucket, got %d", rw.Code)
	}

	now = now.Add(time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected bucket to refill, got %d", rw.Code)
	}
}

func TestClientKeyIgnoresClientSuppliedHops(t *testing.T) {
	cases := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{name: "proxy appends real client", remote: "10.0.0.5:4000", xff: "198.51.100.1, 203.0.113.7", want: "203.0.113.7"},
		{name: "spoofed first hop ignored", remote: "10.0.0.5:4000", xff: "1.2.3.4, 203.0.113.7", want: "203.0.113.7"},
		{name: "direct client header ignored", remote: "203.0.113.9:5555", xff: "1.2.3.4", want: "203.0.113.9"},
		{name: "garbage last hop", remote: "127.0.0.1:4000", xff: "203.0.113.7, nonsense", want: "127.0.0.1"},
		{name: "no header", remote: "10.0.0.5:4000", want: "10.0.0.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if got := clientKey(req); got != tc.want {
				t.Fatalf("unexpected key %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRateLimiterSpoofedForwardedForSharesBucket(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	h := rl.Middleware()(okHandler())
	for i, spoof := range []string{"1.1.1.1", "2.2.2.2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		req.Header.Set("X-Forwarded-For", spoof)
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		if i == 1 && rw.Code != http.StatusTooManyRequests {
			t.Fatalf("expected spoofed header to hit the same bucket, got %d", rw.Code)
		}
	}
}

func TestWithCORSPreflight(t *testing.T) {
	h := WithCORS(CORSPolicy{
		AllowedOrigins: []string{"https://coach.example.com"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization", "Idempotency-Key"},
		MaxAge:         10 * time.Minute,
	})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/public/bookings", nil)
	req.Header.Set("Origin", "https://coach.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code < 200 || rw.Code > 299 {
		t.Fatalf("expected 2xx preflight, got %d", rw.Code)
	}
	if rw.Header().Get("Access-Control-Allow-Origin") != "https://coach.example.com" {
		t.Fatalf("unexpected allow origin %q", rw.Header().Get("Access-Control-Allow-Origin"))
	}
	if rw.Header().Get("Access-Control-Max-Age") != "600" {
		t.Fatalf("unexpected max age %q", rw.Header().Get("Access-Control-Max-Age"))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unexpected CORS header for unknown origin")
	}
}

func TestWithTimeoutSkipsStreamingPaths(t *testing.T) {
	flushable := false
	h := WithTimeout(time.Second, "/api/v1/notifications/stream")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, flushable = w.(http.Flusher)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/notifications/stream", nil))
	if !flushable {
		t.Fatal("streaming path should receive the raw writer")
	}
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil))
	if flushable {
		t.Fatal("regular path should be wrapped by the timeout handler")
	}
}

func TestWithRecover(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	h := WithRecover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	if rw.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rw.Code)
	}
}

func TestWriteError(t *testing.T) {
	rw := httptest.NewRecorder()
	WriteError(rw, http.StatusConflict, "slot unavailable", "SLOT_ALREADY_BOOKED")
	if rw.Code != http.StatusConflict || rw.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected response: %d %q", rw.Code, rw.Header().Get("Content-Type"))
	}
	var body map[string]string
	if err := json.Unmarshal(rw.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["reason"] != "SLOT_ALREADY_BOOKED" || body["error"] != "slot unavailable" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	if got := retryAfterSeconds(1500 * time.Millisecond); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := retryAfterSeconds(-1); got != 1 {
		t.Fatalf("expected 1 for unknown ttl, got %d", got)
	}
}
