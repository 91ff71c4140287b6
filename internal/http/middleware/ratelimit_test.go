package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestKeyByUserOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")

	if key := KeyByUserOrIP()(c); !strings.HasPrefix(key, "ip:") || !strings.Contains(key, "203.0.113.9") {
		t.Fatalf("expected ip-based key; got %q", key)
	}
	c.Set(CtxKeyUserID, "u123")
	if key := KeyByUserOrIP()(c); key != "user:u123" {
		t.Fatalf("expected user-based key; got %q", key)
	}
}

func TestNewRateLimiter_BurstCoercionAndReuse(t *testing.T) {
	rl := NewRateLimiter(2.0, 0, KeyByUserOrIP())
	if rl.burst != 1 {
		t.Fatalf("burst coercion failed, got %d", rl.burst)
	}
	now := time.Now()
	lim := rl.bucketFor("k1", now)
	if rl.bucketFor("k1", now) != lim || rl.size() != 1 {
		t.Fatalf("expected the same bucket to be reused")
	}
}

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1.0, 1, KeyByUserOrIP())
	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	rl.bucketFor("old", base)
	rl.mu.Lock()
	rl.lookups = sweepEvery - 1
	rl.mu.Unlock()

	rl.bucketFor("new", base.Add(bucketIdle))

	rl.mu.Lock()
	_, hasOld := rl.buckets["old"]
	_, hasNew := rl.buckets["new"]
	rl.mu.Unlock()
	if hasOld || !hasNew {
		t.Fatalf("old=%v new=%v; idle bucket should be swept", hasOld, hasNew)
	}
}

func TestIsRateBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if IsRateBypass(c) {
		t.Fatalf("expected IsRateBypass=false by default")
	}
	c.Set(ctxKeyRateBypass, true)
	if !IsRateBypass(c) {
		t.Fatalf("expected IsRateBypass=true when set")
	}
	c.Set(ctxKeyRateBypass, "yes")
	if IsRateBypass(c) {
		t.Fatalf("non-bool flag must read as false")
	}
}

func TestRetryAfter(t *testing.T) {
	for d, want := range map[time.Duration]string{
		0:                       "1",
		300 * time.Millisecond:  "1",
		time.Second:             "1",
		1500 * time.Millisecond: "2",
		42 * time.Second:        "42",
	} {
		if got := retryAfter(d); got != want {
			t.Fatalf("retryAfter(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestRateLimiter_Handler_AllowDenyBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_ = captureLogger(t)
	rl := NewRateLimiter(1.0, 1, KeyByUserOrIP())
	fixed := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return fixed }

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Header("X-Request-ID", "rid-1"); c.Next() })
	r.Use(rl.Handler())
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	before := testutil.ToFloat64(rateLimited)

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w1.Code != http.StatusOK {
		t.Fatalf("first request should be allowed, got %d", w1.Code)
	}

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be rate-limited, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("expected Retry-After=1, got %q", got)
	}
	var body map[string]any
	if err := json.Unmarshal(w2.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["code"] != "too_many_requests" || body["message"] != "rate limit exceeded" ||
		body["statusCode"] != float64(http.StatusTooManyRequests) || body["request_id"] != "rid-1" {
		t.Fatalf("unexpected JSON body: %v", body)
	}
	if got := testutil.ToFloat64(rateLimited) - before; got != 1 {
		t.Fatalf("rate limited counter delta = %v", got)
	}

	// A refused request must not have consumed the next token.
	fixed = fixed.Add(time.Second)
	w3 := httptest.NewRecorder()
	r.ServeHTTP(w3, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w3.Code != http.StatusOK {
		t.Fatalf("request after refill should pass, got %d", w3.Code)
	}

	rBypass := gin.New()
	rBypass.Use(func(c *gin.Context) { c.Set(ctxKeyRateBypass, true); c.Next() })
	rBypass.Use(rl.Handler())
	rBypass.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	w4 := httptest.NewRecorder()
	rBypass.ServeHTTP(w4, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w4.Code != http.StatusOK {
		t.Fatalf("bypass request should be allowed, got %d", w4.Code)
	}
}

func TestRateLimiter_ZeroRateRefusesAfterBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_ = captureLogger(t)
	rl := NewRateLimiter(0, 1, KeyByUserOrIP())

	r := gin.New()
	r.Use(rl.Handler())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}
