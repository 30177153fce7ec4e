package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestFail_Envelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		status  int
		code    string
		wantLog bool
	}{
		{"client error is not logged", http.StatusNotFound, ErrCodeNotFound, false},
		{"server error is logged", http.StatusInternalServerError, ErrCodeInternal, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			lg := zerolog.New(&buf)

			r := gin.New()
			r.Use(func(c *gin.Context) {
				c.Writer.Header().Set("X-Request-ID", "rid-1")
				c.Set("logger", &lg)
				c.Next()
			})
			r.GET("/x", func(c *gin.Context) { Fail(c, tc.status, tc.code, "boom") })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
			if w.Code != tc.status {
				t.Fatalf("status=%d", w.Code)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("json: %v", err)
			}
			if resp != (ErrorResponse{RequestID: "rid-1", Code: tc.code, Message: "boom"}) {
				t.Fatalf("unexpected body: %+v", resp)
			}
			if logged := strings.Contains(buf.String(), `"level":"error"`); logged != tc.wantLog {
				t.Fatalf("logged=%v want %v: %s", logged, tc.wantLog, buf.String())
			}
		})
	}
}

func TestSuccessHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/json", func(c *gin.Context) { ok(c, http.StatusAccepted, WebhookResponse{OK: true}) })
	r.GET("/text", func(c *gin.Context) { okText(c, "OK") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/json", nil))
	if w.Code != http.StatusAccepted || strings.TrimSpace(w.Body.String()) != `{"ok":true}` {
		t.Fatalf("json: %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/text", nil))
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("text: %d %q", w.Code, w.Body.String())
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("content-type=%q", w.Header().Get("Content-Type"))
	}
}
