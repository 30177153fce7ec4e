package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/duty-roster-bot/internal/config"
	"github.com/tbourn/duty-roster-bot/internal/domain"
	"github.com/tbourn/duty-roster-bot/internal/http/middleware"
	"github.com/tbourn/duty-roster-bot/internal/repo"
	"github.com/tbourn/duty-roster-bot/internal/services"
)

// --- stubs ---

type countingBot struct {
	mu sync.Mutex
	n  int
}

func (b *countingBot) HandleUpdate(context.Context, domain.Update) {
	b.mu.Lock()
	b.n++
	b.mu.Unlock()
}

func (b *countingBot) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

type noopJobs struct{}

func (noopJobs) AutoRefresh(context.Context) (services.JobResult, error) {
	return services.JobResult{Job: services.JobAutoRefresh}, nil
}

func (noopJobs) SendDutyReminders(context.Context) (services.JobResult, error) {
	return services.JobResult{Job: services.JobReminder}, nil
}

func (noopJobs) PurgeUpdates(context.Context) (int64, error) { return 0, nil }

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:router_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func baseConfig() config.Config {
	return config.Config{
		MaxBodyBytes:    1 << 20,
		RateRPS:         100,
		RateBurst:       10,
		UpdateDedupeTTL: time.Hour,
		OTEL:            config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newEngine(t *testing.T, cfg config.Config) (*gin.Engine, *countingBot) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	bot := &countingBot{}
	RegisterRoutes(r, Deps{DB: newTestDB(t), Bot: bot, Jobs: noopJobs{}}, cfg)
	return r, bot
}

func do(r http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newEngine(t, baseConfig())

	w := do(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("pipeline headers missing: %v", w.Header())
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("CORS must stay off without configured origins")
	}

	w = do(r, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "rosterbot_http_requests_total") {
		t.Fatalf("GET /metrics bad: code=%d", w.Code)
	}

	if w = do(r, http.MethodGet, "/nope", "", nil); w.Code != http.StatusNotFound ||
		!strings.Contains(w.Body.String(), `"code":"not_found"`) {
		t.Fatalf("GET /nope = %d %s", w.Code, w.Body.String())
	}
	if w = do(r, http.MethodPost, "/health", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}

	if w = do(r, http.MethodGet, "/swagger/index.html", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be off by default, got %d", w.Code)
	}
}

func TestRegisterRoutes_JobsReturnOK(t *testing.T) {
	r, _ := newEngine(t, baseConfig())
	for _, p := range []string{"/refresh", "/reminder"} {
		if w := do(r, http.MethodGet, p, "", nil); w.Code != http.StatusOK || w.Body.String() != "OK" {
			t.Fatalf("GET %s = %d %q", p, w.Code, w.Body.String())
		}
	}
}

func TestRegisterRoutes_WebhookDedupeThroughDB(t *testing.T) {
	r, bot := newEngine(t, baseConfig())
	body := `{"update_id":1001,"message":{"chat":{"id":5},"from":{"id":5},"text":"/help"}}`

	for i := 0; i < 2; i++ {
		w := do(r, http.MethodPost, "/webhook", body, map[string]string{"Content-Type": "application/json"})
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok":true`) {
			t.Fatalf("attempt %d: %d %s", i, w.Code, w.Body.String())
		}
	}
	if bot.calls() != 1 {
		t.Fatalf("redelivery should be skipped, bot calls=%d", bot.calls())
	}

	if w := do(r, http.MethodPost, "/webhook", `{"update_id":`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed update = %d", w.Code)
	}
}

func TestRegisterRoutes_WebhookSecretAndBypass(t *testing.T) {
	cfg := baseConfig()
	cfg.Telegram.WebhookSecret = "s3cret"
	cfg.RateRPS = 0.001
	cfg.RateBurst = 1
	r, bot := newEngine(t, cfg)

	if w := do(r, http.MethodPost, "/webhook", `{"update_id":1}`, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing secret = %d", w.Code)
	}

	// Verified deliveries are never throttled.
	hdr := map[string]string{middleware.HeaderTelegramSecret: "s3cret"}
	for i := int64(10); i < 15; i++ {
		body := `{"update_id":` + strconv.FormatInt(i, 10) + `,"message":{"chat":{"id":5},"text":"hi"}}`
		if w := do(r, http.MethodPost, "/webhook", body, hdr); w.Code != http.StatusOK {
			t.Fatalf("verified delivery %d = %d", i, w.Code)
		}
	}
	if bot.calls() != 5 {
		t.Fatalf("bot calls=%d", bot.calls())
	}

	// Job endpoints share the per-IP bucket: burst 1, then 429.
	if w := do(r, http.MethodGet, "/refresh", "", nil); w.Code != http.StatusOK {
		t.Fatalf("first job call = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/reminder", "", nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second job call = %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_SwaggerEnabled(t *testing.T) {
	cfg := baseConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	cfg.SwaggerEnabled = true
	r, _ := newEngine(t, cfg)

	w := do(r, http.MethodGet, "/health", "", map[string]string{"Origin": "http://example.com"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}

	w = do(r, http.MethodGet, "/swagger/doc.json", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/webhook") {
		t.Fatalf("swagger doc = %d", w.Code)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := do(r, http.MethodPost, "/echo", "0123456789AB", nil) // 12 bytes
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
	if w = do(r, http.MethodPost, "/echo", "short", nil); w.Code != http.StatusOK {
		t.Fatalf("small body = %d", w.Code)
	}
}
