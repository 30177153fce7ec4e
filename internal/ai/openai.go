package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/duty-roster-bot/internal/observability"
)

// OpenAIOptions configures an OpenAI-compatible client.
type OpenAIOptions struct {
	BaseURL        string // including /v1, e.g. https://api.openai.com/v1
	APIKey         string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
	HTTPClient     *http.Client
}

// OpenAI implements Bridge over the chat completions and embeddings
// endpoints.
type OpenAI struct {
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	http       *http.Client
}

// NewOpenAI builds a client, filling defaults.
func NewOpenAI(opts OpenAIOptions) *OpenAI {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.EmbeddingModel == "" {
		opts.EmbeddingModel = "text-embedding-3-small"
	}
	return &OpenAI{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		model:      opts.Model,
		embedModel: opts.EmbeddingModel,
		http:       opts.HTTPClient,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string, or []contentPart for vision
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

// Complete sends a system+user exchange and returns the first choice.
func (c *OpenAI) Complete(ctx context.Context, systemPersona, userPrompt string) (string, error) {
	ctx, span := observability.Tracer("ai/openai").Start(ctx, "OpenAI.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("ai.model", c.model))

	req := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPersona},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   500,
		Temperature: 0.7,
	}
	return c.chat(ctx, req)
}

// Embed returns the embedding vector of text.
func (c *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := observability.Tracer("ai/openai").Start(ctx, "OpenAI.Embed")
	defer span.End()

	var out embeddingResponse
	status, raw, err := c.post(ctx, "/embeddings", embeddingRequest{Model: c.embedModel, Input: text}, &out)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, httpError(status, out.Error, raw)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, ErrEmptyResponse
	}
	return out.Data[0].Embedding, nil
}

// ExtractText reads plain-text formats directly and asks the vision model to
// transcribe images. Other formats yield ErrUnsupportedMedia.
func (c *OpenAI) ExtractText(ctx context.Context, data []byte, mimeHint string) (string, error) {
	mt := mediaType(mimeHint)
	switch {
	case isTextual(mt):
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrUnsupportedMedia, mt)
		}
		return strings.TrimSpace(string(data)), nil
	case strings.HasPrefix(mt, "image/"):
		return c.transcribeImage(ctx, data, mt)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, mt)
	}
}

func (c *OpenAI) transcribeImage(ctx context.Context, data []byte, mt string) (string, error) {
	ctx, span := observability.Tracer("ai/openai").Start(ctx, "OpenAI.TranscribeImage")
	defer span.End()

	uri := "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(data)
	req := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: "Transcribe all text in this image. Render tables as Markdown tables. Output only the transcription."},
				{Type: "image_url", ImageURL: &imageURL{URL: uri}},
			},
		}},
		MaxTokens: 2000,
	}
	return c.chat(ctx, req)
}

func (c *OpenAI) chat(ctx context.Context, req chatCompletionRequest) (string, error) {
	var out chatCompletionResponse
	status, raw, err := c.post(ctx, "/chat/completions", req, &out)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", httpError(status, out.Error, raw)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (c *OpenAI) post(ctx context.Context, path string, body, out any) (int, []byte, error) {
	if c.apiKey == "" {
		return 0, nil, ErrDisabled
	}
	b, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	if err := json.Unmarshal(raw, out); err != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, raw, fmt.Errorf("openai: decode response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

func httpError(status int, e *apiError, raw []byte) error {
	if e != nil && e.Message != "" {
		return fmt.Errorf("openai http %d: %s", status, e.Message)
	}
	return fmt.Errorf("openai http %d: %s", status, strings.TrimSpace(string(raw)))
}

func mediaType(hint string) string {
	if hint == "" {
		return "application/octet-stream"
	}
	mt, _, err := mime.ParseMediaType(hint)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(hint))
	}
	return mt
}

func isTextual(mt string) bool {
	switch mt {
	case "application/json", "application/x-yaml", "application/yaml", "application/xml":
		return true
	}
	return strings.HasPrefix(mt, "text/")
}
