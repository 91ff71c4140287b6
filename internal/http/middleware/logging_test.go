package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf) // plain JSON lines
	return &buf
}

func decodeEnvelope(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("invalid JSON body %q: %v", body, err)
	}
	return m
}

func TestRequestID_GenerateAndPropagate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/rid", func(c *gin.Context) {
		if v, ok := c.Get(requestIDKey); !ok || v == "" {
			t.Fatalf("requestID not set in context")
		}
		c.String(http.StatusOK, "ok")
	})

	// No header -> generated
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rid", nil))
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated %s header", requestIDHeader)
	}

	// Lowercase header -> propagated
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/rid", nil)
	req2.Header.Set(strings.ToLower(requestIDHeader), "abc-123")
	r.ServeHTTP(w2, req2)
	if got := w2.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("expected propagated request id, got %q", got)
	}

	// Oversized header -> replaced
	w3 := httptest.NewRecorder()
	req3 := httptest.NewRequest(http.MethodGet, "/rid", nil)
	long := strings.Repeat("x", 129)
	req3.Header.Set(requestIDHeader, long)
	r.ServeHTTP(w3, req3)
	if got := w3.Header().Get(requestIDHeader); got == long || got == "" {
		t.Fatalf("expected regenerated request id, got %q", got)
	}
}

func TestRecovery_PanicBeforeWrite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID())
	r.Use(Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(requestIDHeader, "rid-panic")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	body := decodeEnvelope(t, w.Body.Bytes())
	if body["code"] != "internal_error" ||
		body["request_id"] != "rid-panic" ||
		body["error"] != "Internal Server Error" ||
		body["statusCode"] != float64(500) {
		t.Fatalf("unexpected envelope: %v", body)
	}
	if !strings.Contains(buf.String(), "panic recovered") || !strings.Contains(buf.String(), "kaboom") {
		t.Fatalf("panic not logged: %s", buf.String())
	}
}

func TestRecovery_PanicAfterWrite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_ = captureLogger(t)

	r := gin.New()
	r.Use(Recovery())
	r.GET("/late", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/late", nil))

	// Headers are already out; the body must not get a second JSON document.
	if w.Body.String() != "partial" {
		t.Fatalf("body = %q", w.Body.String())
	}
}

func TestAbort_Envelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	reached := false
	r.GET("/x", func(c *gin.Context) {
		Abort(c, http.StatusNotFound, "not_found", "alert not found")
	}, func(c *gin.Context) {
		reached = true
		c.String(http.StatusOK, "unreachable")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Code != http.StatusNotFound || reached {
		t.Fatalf("status = %d, later handler reached = %v", w.Code, reached)
	}
	body := decodeEnvelope(t, w.Body.Bytes())
	if body["error"] != "Not Found" || body["statusCode"] != float64(404) ||
		body["code"] != "not_found" || body["message"] != "alert not found" {
		t.Fatalf("unexpected envelope: %v", body)
	}
	if body["request_id"] != w.Header().Get(requestIDHeader) {
		t.Fatalf("request_id %v does not match header %q", body["request_id"], w.Header().Get(requestIDHeader))
	}
}

func TestLoggerFrom_FallbackAndScoped(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if LoggerFrom(c) == nil {
		t.Fatalf("fallback logger must not be nil")
	}

	scoped := log.With().Str("request_id", "rid-9").Logger()
	c.Set(loggerKey, &scoped)
	LoggerFrom(c).Info().Msg("hello")
	if !strings.Contains(buf.String(), `"request_id":"rid-9"`) {
		t.Fatalf("scoped logger not used: %s", buf.String())
	}

	// wrong type falls back to the global logger
	c.Set(loggerKey, "nope")
	if LoggerFrom(c) == nil {
		t.Fatalf("fallback logger must not be nil")
	}
}

func TestUserID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := UserID(c); got != "" {
		t.Fatalf("UserID without auth = %q", got)
	}
	c.Set(CtxKeyUserID, "broker-1")
	if got := UserID(c); got != "broker-1" {
		t.Fatalf("UserID = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"abc", 0, "abc"},
		{"abc", 3, "abc"},
		{"abcdef", 3, "abc…"},
		{"", 5, ""},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.max); got != tc.want {
			t.Fatalf("truncate(%q,%d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}
