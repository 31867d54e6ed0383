package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serve(r *gin.Engine, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/ping", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimiter(1, time.Minute))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := serve(r, http.MethodGet, ""); w.Code != http.StatusOK {
		t.Fatalf("first request status = %d", w.Code)
	}
	if w := serve(r, http.MethodGet, ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"https://learn.example.com"}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.OPTIONS("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "https://learn.example.com")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://learn.example.com" {
		t.Fatalf("allowed origin header = %q", got)
	}

	w = serve(r, http.MethodGet, "https://evil.example.com")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin %q", got)
	}

	w = serve(r, http.MethodOptions, "https://learn.example.com")
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", w.Code)
	}
}

func TestSecureHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Secure())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "")
	if w.Header().Get("X-Frame-Options") != "DENY" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("headers = %v", w.Header())
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must only be sent over TLS")
	}
}

func TestLimiterStoreSweep(t *testing.T) {
	store := NewLimiterStore(2, time.Minute)
	start := time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC)

	if !store.Allow("a", start) || !store.Allow("a", start) {
		t.Fatalf("burst of 2 should be allowed")
	}
	if store.Allow("a", start) {
		t.Fatalf("third request in the same instant should be limited")
	}
	if !store.Allow("b", start) {
		t.Fatalf("keys must not share a bucket")
	}

	// 30 秒回填 1 个令牌
	if !store.Allow("a", start.Add(30*time.Second)) {
		t.Fatalf("token should refill after window/maxRequests")
	}

	store.Allow("b", start.Add(5*time.Minute))
	if left := store.Sweep(start.Add(5*time.Minute), 3*time.Minute); left != 1 {
		t.Fatalf("entries after sweep = %d, want 1", left)
	}
}

func TestKeyedRateLimiterSkipsEmptyKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(KeyedRateLimiter(1, time.Minute, func(c *gin.Context) string {
		return c.GetHeader("X-Learner")
	}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(learner string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		if learner != "" {
			req.Header.Set("X-Learner", learner)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 3; i++ {
		if code := send(""); code != http.StatusOK {
			t.Fatalf("anonymous request %d status = %d", i, code)
		}
	}
	if send("1") != http.StatusOK || send("2") != http.StatusOK {
		t.Fatalf("first request per learner should pass")
	}
	if code := send("1"); code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", code)
	}
}
