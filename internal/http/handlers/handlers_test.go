package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tbourn/duty-roster-bot/internal/domain"
	"github.com/tbourn/duty-roster-bot/internal/observability"
	"github.com/tbourn/duty-roster-bot/internal/repo"
	"github.com/tbourn/duty-roster-bot/internal/services"
)

// ---------- stubs ----------

type stubBot struct {
	mu      sync.Mutex
	updates []domain.Update
	ctxErr  error
}

func (s *stubBot) HandleUpdate(ctx context.Context, u domain.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, u)
	s.ctxErr = ctx.Err()
}

func (s *stubBot) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

type stubJobs struct {
	refreshErr, remindErr, purgeErr error
	refreshed, reminded, purged     int
}

func (s *stubJobs) AutoRefresh(context.Context) (services.JobResult, error) {
	s.refreshed++
	return services.JobResult{Job: services.JobAutoRefresh}, s.refreshErr
}

func (s *stubJobs) SendDutyReminders(context.Context) (services.JobResult, error) {
	s.reminded++
	return services.JobResult{Job: services.JobReminder}, s.remindErr
}

func (s *stubJobs) PurgeUpdates(context.Context) (int64, error) {
	s.purged++
	return 2, s.purgeErr
}

// memClaims mimics repo.ClaimUpdate without a database.
func memClaims() ClaimFunc {
	var mu sync.Mutex
	seen := map[int64]bool{}
	return func(_ context.Context, updateID, _ int64) error {
		mu.Lock()
		defer mu.Unlock()
		if seen[updateID] {
			return repo.ErrDuplicate
		}
		seen[updateID] = true
		return nil
	}
}

func newRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook", h.Webhook)
	r.GET("/refresh", h.Refresh)
	r.GET("/reminder", h.Reminder)
	r.GET("/health", Health)
	return r
}

func postUpdate(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ---------- webhook ----------

func TestWebhook_DecodesAndAcks(t *testing.T) {
	bot := &stubBot{}
	r := newRouter(New(bot, &stubJobs{}, memClaims()))

	w := postUpdate(r, `{"update_id":7,"message":{"message_id":1,"chat":{"id":-100,"type":"group"},"from":{"id":111},"text":"/status"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp WebhookResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || !resp.OK {
		t.Fatalf("unexpected body %s (%v)", w.Body.String(), err)
	}
	if bot.count() != 1 {
		t.Fatalf("bot calls=%d", bot.count())
	}
	u := bot.updates[0]
	if u.UpdateID != 7 || u.Message.Chat.ID != -100 || u.Message.SenderID() != 111 || u.Message.Text != "/status" {
		t.Fatalf("decoded update mismatch: %+v", u.Message)
	}
	if bot.ctxErr != nil {
		t.Fatalf("handler context should not be cancelled: %v", bot.ctxErr)
	}
}

func TestWebhook_MalformedJSON(t *testing.T) {
	bot := &stubBot{}
	r := newRouter(New(bot, &stubJobs{}, nil))

	w := postUpdate(r, `{"update_id":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Code != ErrCodeInvalidUpdate {
		t.Fatalf("unexpected error body %s", w.Body.String())
	}
	if bot.count() != 0 {
		t.Fatal("bot must not see malformed updates")
	}
}

func TestWebhook_DuplicateSkipped(t *testing.T) {
	bot := &stubBot{}
	r := newRouter(New(bot, &stubJobs{}, memClaims()))
	before := testutil.ToFloat64(observability.DuplicateUpdates)

	body := `{"update_id":42,"message":{"chat":{"id":5},"text":"hi"}}`
	for i := 0; i < 3; i++ {
		if w := postUpdate(r, body); w.Code != http.StatusOK {
			t.Fatalf("attempt %d status=%d", i, w.Code)
		}
	}
	if bot.count() != 1 {
		t.Fatalf("bot calls=%d want 1", bot.count())
	}
	if got := testutil.ToFloat64(observability.DuplicateUpdates) - before; got != 2 {
		t.Fatalf("duplicate counter delta=%v want 2", got)
	}
}

func TestWebhook_ClaimErrorStillHandles(t *testing.T) {
	bot := &stubBot{}
	claim := func(context.Context, int64, int64) error { return errors.New("db down") }
	r := newRouter(New(bot, &stubJobs{}, claim))

	if w := postUpdate(r, `{"update_id":1,"message":{"chat":{"id":5},"text":"hi"}}`); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if bot.count() != 1 {
		t.Fatal("update should be handled when dedupe fails")
	}
}

func TestWebhook_NoMessageStillAcks(t *testing.T) {
	bot := &stubBot{}
	r := newRouter(New(bot, &stubJobs{}, memClaims()))
	if w := postUpdate(r, `{"update_id":9}`); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

// ---------- jobs ----------

func TestJobs_AlwaysOK(t *testing.T) {
	tests := []struct {
		name string
		jobs *stubJobs
	}{
		{"success", &stubJobs{}},
		{"failures", &stubJobs{
			refreshErr: errors.New("store"),
			remindErr:  errors.New("store"),
			purgeErr:   errors.New("store"),
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(New(&stubBot{}, tc.jobs, nil))
			for _, path := range []string{"/refresh", "/reminder"} {
				w := httptest.NewRecorder()
				r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
				if w.Code != http.StatusOK || w.Body.String() != "OK" {
					t.Fatalf("%s: status=%d body=%q", path, w.Code, w.Body.String())
				}
			}
			if tc.jobs.refreshed != 1 || tc.jobs.purged != 1 || tc.jobs.reminded != 1 {
				t.Fatalf("job calls: %+v", tc.jobs)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	r := newRouter(New(&stubBot{}, &stubJobs{}, nil))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"status":"ok"`)) {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}
