package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func TestRedact(t *testing.T) {
	in := "token=123456789:AAH-abcdefghijklmnopqrstuvwxyz0123456&key=sk-abcdefghijklmnopqrstu"
	out := redact(in)
	if strings.Contains(out, "AAH-") || strings.Contains(out, "sk-abc") {
		t.Fatalf("secrets left in %q", out)
	}
	if !strings.Contains(out, "[REDACTED:token]") || !strings.Contains(out, "[REDACTED:key]") {
		t.Fatalf("markers missing in %q", out)
	}
	if redact("") != "" || redact("chat_id=42") != "chat_id=42" {
		t.Fatal("benign input must pass through")
	}
}

func TestAccessLog_MasksAndLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogs(t)

	r := gin.New()
	r.Use(RequestID(), AccessLog(RedactOptions{MaskHeaders: []string{"X-Extra"}}))
	r.POST("/webhook", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("inside")
		c.Status(http.StatusBadRequest)
	})

	req := httptest.NewRequest(http.MethodPost, "/webhook?t=123456789:AAH-abcdefghijklmnopqrstuvwxyz0123456", nil)
	req.Header.Set(HeaderTelegramSecret, "s3cret")
	req.Header.Set("X-Extra", "hide-me")
	req.Header.Set(requestIDHeader, "rid-log")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, leak := range []string{"s3cret", "hide-me", "AAH-"} {
		if strings.Contains(out, leak) {
			t.Fatalf("%q leaked into logs: %s", leak, out)
		}
	}
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, `"message":"http_request"`) {
		t.Fatalf("expected warn access log: %s", out)
	}
	if strings.Count(out, `"request_id":"rid-log"`) != 2 {
		t.Fatalf("scoped logger should carry request id: %s", out)
	}
}
