package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// HeaderTelegramSecret carries the secret_token registered with setWebhook.
const HeaderTelegramSecret = "X-Telegram-Bot-Api-Secret-Token"

// RedactOptions lists extra header names whose values are replaced with
// "[REDACTED]". Authorization, Cookie, Set-Cookie and the Telegram secret
// header are always masked. Matching is case-insensitive.
type RedactOptions struct {
	MaskHeaders []string
}

var (
	// A bot token is "<digits>:<35 url-safe chars>". It leaks into logs
	// through misconfigured webhook URLs such as /webhook?token=...
	botTokenRE = regexp.MustCompile(`\b\d{6,12}:[A-Za-z0-9_-]{30,}\b`)
	bearerRE   = regexp.MustCompile(`(?i)\bsk-[A-Za-z0-9_-]{16,}\b`)
)

// redact scrubs bot tokens and API keys from s.
func redact(s string) string {
	if s == "" {
		return s
	}
	s = botTokenRE.ReplaceAllString(s, "[REDACTED:token]")
	return bearerRE.ReplaceAllString(s, "[REDACTED:key]")
}

// AccessLog emits one structured log line per request with secrets scrubbed
// from the query and headers, and attaches a request-scoped logger that
// LoggerFrom returns to handlers. Bodies are never logged: webhook payloads
// carry member names and chat ids.
//
// Level follows the outcome: error for 5xx or gin errors, warn for 4xx,
// info otherwise.
func AccessLog(opts RedactOptions) gin.HandlerFunc {
	mask := map[string]struct{}{
		"authorization":                       {},
		"cookie":                              {},
		"set-cookie":                          {},
		strings.ToLower(HeaderTelegramSecret): {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			mask[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := mask[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = redact(strings.Join(vv, ", "))
		}

		l := log.With().
			Str("request_id", RequestIDFrom(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Logger()
		c.Set(loggerKey, &l)

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case len(c.Errors) > 0:
			ev = l.Error().Str("errors", c.Errors.String())
		case status >= 500:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		default:
			ev = l.Info()
		}
		ev.
			Str("query", truncate(redact(c.Request.URL.RawQuery), maxQueryLogLength)).
			Interface("headers", headers).
			Int64("bytes_in", c.Request.ContentLength).
			Int("status", status).
			Int("bytes_out", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Msg("http_request")
	}
}
