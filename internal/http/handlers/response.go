// Package handlers provides the HTTP handlers for the Telegram webhook, the
// scheduled job endpoints and health checks.
//
// Errors leave through fail, which writes an ErrorResponse with a stable code
// and logs 5xx with the request-scoped logger. Telegram itself ignores bodies;
// the envelope is for operators calling the endpoints by hand.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/duty-roster-bot/internal/http/middleware"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// One of the ErrCode constants
	Code    string `json:"code" example:"not_found"`
	Message string `json:"message" example:"resource not found"`
}

// fail aborts with status and an ErrorResponse.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router's fallbacks share the envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// okText writes a 200 plain-text body. Cron callers of the job endpoints
// only check for "OK".
func okText(c *gin.Context, body string) {
	c.String(http.StatusOK, body)
}
