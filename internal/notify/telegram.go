package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/tbourn/duty-roster-bot/internal/observability"
)

// TelegramOptions configures a Telegram client.
type TelegramOptions struct {
	BaseURL      string        // e.g. https://api.telegram.org
	Token        string        // bot token
	HTTPClient   *http.Client  // optional; default has Timeout
	Timeout      time.Duration // per request, default 10s
	SendRPS      float64       // outbound pacing, default 25/s
	MaxRetries   int           // transient failure retries, default 3
	MaxFileBytes int64         // download cap, default 10 MiB
	Logger       zerolog.Logger

	// NewBackOff overrides the retry schedule (tests use a zero backoff).
	NewBackOff func() backoff.BackOff
}

// Telegram talks to the Bot API. It implements Notifier and FileFetcher and
// is safe for concurrent use.
type Telegram struct {
	http     *http.Client
	baseURL  string
	token    string
	limiter  *rate.Limiter
	retries  uint
	maxBytes int64
	log      zerolog.Logger
	newBO    func() backoff.BackOff
}

// NewTelegram builds a client from opts, filling defaults.
func NewTelegram(opts TelegramOptions) *Telegram {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.SendRPS <= 0 {
		opts.SendRPS = 25
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = 10 << 20
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 300 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		}
	}
	return &Telegram{
		http:     opts.HTTPClient,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		token:    opts.Token,
		limiter:  rate.NewLimiter(rate.Limit(opts.SendRPS), int(opts.SendRPS)+1),
		retries:  uint(opts.MaxRetries) + 1,
		maxBytes: opts.MaxFileBytes,
		log:      opts.Logger,
		newBO:    opts.NewBackOff,
	}
}

// APIError is a non-2xx or ok=false Bot API response.
type APIError struct {
	StatusCode  int
	ErrorCode   int
	Description string
	RetryAfter  int
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("telegram http %d: %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("telegram http %d", e.StatusCode)
}

// IsMarkdownParseError reports whether Telegram rejected the message's
// formatting entities.
func IsMarkdownParseError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	d := strings.ToLower(apiErr.Description)
	return strings.Contains(d, "can't parse entities") || strings.Contains(d, "can't parse entity")
}

type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

type okResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

// Send posts text with parse_mode=Markdown. Transient failures (network,
// 429, 5xx) are retried with exponential backoff. If Telegram cannot parse
// the Markdown, the message is resent once as plain text.
func (t *Telegram) Send(ctx context.Context, chatID int64, text string) error {
	ctx, span := observability.Tracer("notify/telegram").Start(ctx, "Telegram.Send")
	defer span.End()
	span.SetAttributes(attribute.Int64("chat.id", chatID))

	if strings.TrimSpace(text) == "" {
		text = "(empty)"
	}

	err := t.sendWithRetry(ctx, chatID, text, "Markdown")
	if IsMarkdownParseError(err) {
		t.log.Warn().Err(err).Int64("chat_id", chatID).Msg("markdown rejected; resending as plain text")
		err = t.sendWithRetry(ctx, chatID, text, "")
		if err == nil {
			observability.NotificationsTotal.WithLabelValues("plain_fallback").Inc()
			return nil
		}
	}
	if err != nil {
		observability.NotificationsTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return err
	}
	observability.NotificationsTotal.WithLabelValues("sent").Inc()
	return nil
}

func (t *Telegram) sendWithRetry(ctx context.Context, chatID int64, text, parseMode string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             parseMode,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return backoff.Permanent(err)
	}

	op := func() (struct{}, error) {
		if err := t.limiter.Wait(ctx); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, t.postSendMessage(ctx, body)
	}
	_, err = backoff.Retry(ctx, op,
		backoff.WithBackOff(t.newBO()),
		backoff.WithMaxTries(t.retries),
	)
	return err
}

func (t *Telegram) postSendMessage(ctx context.Context, body []byte) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err // network errors are retried
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()

	var out okResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 && out.OK {
		return nil
	}

	apiErr := &APIError{
		StatusCode:  resp.StatusCode,
		ErrorCode:   out.ErrorCode,
		Description: strings.TrimSpace(out.Description),
	}
	if apiErr.Description == "" {
		apiErr.Description = strings.TrimSpace(string(raw))
	}
	if out.Parameters != nil {
		apiErr.RetryAfter = out.Parameters.RetryAfter
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if apiErr.RetryAfter > 0 {
			return backoff.RetryAfter(apiErr.RetryAfter)
		}
		return apiErr
	case resp.StatusCode >= 500:
		return apiErr
	default:
		return backoff.Permanent(apiErr)
	}
}

type telegramFile struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

type getFileResponse struct {
	OK          bool         `json:"ok"`
	Description string       `json:"description,omitempty"`
	Result      telegramFile `json:"result"`
}

// Fetch resolves fileID through getFile and downloads the content, refusing
// files larger than MaxFileBytes.
func (t *Telegram) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	ctx, span := observability.Tracer("notify/telegram").Start(ctx, "Telegram.Fetch")
	defer span.End()

	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, errors.New("missing file_id")
	}

	endpoint := fmt.Sprintf("%s/bot%s/getFile?file_id=%s", t.baseURL, t.token, url.QueryEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, err
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()

	var out getFileResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("telegram getFile: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !out.OK {
		return nil, &APIError{StatusCode: resp.StatusCode, Description: out.Description}
	}
	if strings.TrimSpace(out.Result.FilePath) == "" {
		return nil, errors.New("telegram getFile: missing file_path")
	}
	if out.Result.FileSize > t.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, out.Result.FileSize, t.maxBytes)
	}

	return t.download(ctx, out.Result.FilePath)
}

func (t *Telegram) download(ctx context.Context, filePath string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/file/bot%s/%s", t.baseURL, t.token, strings.TrimLeft(filePath, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("telegram download http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > t.maxBytes {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrFileTooLarge, t.maxBytes)
	}
	return data, nil
}
