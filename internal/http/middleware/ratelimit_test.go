package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestKeyByClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")
	c.Request = req
	if got := KeyByClientIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("got %q", got)
	}
}

func TestRateLimiter_ReuseAndSweep(t *testing.T) {
	rl := NewRateLimiter(1, 0, nil)
	if rl.burst != 1 {
		t.Fatalf("burst not coerced: %d", rl.burst)
	}
	a := rl.limiter("k")
	if rl.limiter("k") != a {
		t.Fatal("bucket should be reused")
	}

	rl.ttl = time.Nanosecond
	rl.visitors["stale"] = &visitor{limiter: a, lastSeen: time.Now().Add(-time.Hour)}
	rl.lookups = sweepEvery - 1
	rl.limiter("fresh")
	if _, ok := rl.visitors["stale"]; ok {
		t.Fatal("stale bucket should be swept")
	}
	if rl.lookups != 0 {
		t.Fatalf("lookup counter not reset: %d", rl.lookups)
	}
}

func TestRateLimiter_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.001, 1, KeyByClientIP())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-Bypass") != "" {
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	})
	r.Use(rl.Handler())
	r.GET("/refresh", func(c *gin.Context) { c.String(http.StatusOK, "OK") })

	do := func(bypass bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/refresh", nil)
		req.RemoteAddr = "198.51.100.1:1"
		if bypass {
			req.Header.Set("X-Bypass", "1")
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := do(false); w.Code != http.StatusOK {
		t.Fatalf("first request status=%d", w.Code)
	}
	w := do(false)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "1" {
		t.Fatalf("second request should be limited: %d", w.Code)
	}
	if w := do(true); w.Code != http.StatusOK {
		t.Fatalf("bypass should skip limiting: %d", w.Code)
	}
}
