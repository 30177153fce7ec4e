package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, h http.HandlerFunc) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewOpenAI(OpenAIOptions{BaseURL: srv.URL + "/v1", APIKey: "sk-test"})
}

func TestComplete_SendsPersonaAndPrompt(t *testing.T) {
	var got chatCompletionRequest
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  steady lah  "}}]}`))
	})

	out, err := c.Complete(context.Background(), "be rude", "who is on duty?")
	require.NoError(t, err)
	assert.Equal(t, "steady lah", out)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "be rude", got.Messages[0].Content)
	assert.Equal(t, "who is on duty?", got.Messages[1].Content)
	assert.Equal(t, 500, got.MaxTokens)
}

func TestComplete_ErrorMessageSurfaced(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"auth"}}`))
	})
	_, err := c.Complete(context.Background(), "p", "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai http 401: bad key")
}

func TestComplete_EmptyChoices(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	_, err := c.Complete(context.Background(), "p", "q")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNoAPIKey_Disabled(t *testing.T) {
	c := NewOpenAI(OpenAIOptions{BaseURL: "http://127.0.0.1:1"})
	_, err := c.Complete(context.Background(), "p", "q")
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = c.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestEmbed(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, "duty rules", req.Input)
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.5,-0.25,1]}]}`))
	})
	v, err := c.Embed(context.Background(), "duty rules")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25, 1}, v)
}

func TestExtractText_TextualDecodedLocally(t *testing.T) {
	c := NewOpenAI(OpenAIOptions{}) // no server; must not be called
	for _, mt := range []string{"text/plain", "text/markdown; charset=utf-8", "application/json"} {
		out, err := c.ExtractText(context.Background(), []byte("  hello\n"), mt)
		require.NoError(t, err, mt)
		assert.Equal(t, "hello", out)
	}
}

func TestExtractText_Unsupported(t *testing.T) {
	c := NewOpenAI(OpenAIOptions{})
	_, err := c.ExtractText(context.Background(), []byte("%PDF"), "application/pdf")
	assert.True(t, errors.Is(err, ErrUnsupportedMedia))

	_, err = c.ExtractText(context.Background(), []byte{0xff, 0xfe}, "text/plain")
	assert.ErrorIs(t, err, ErrUnsupportedMedia)
}

func TestExtractText_ImageUsesVision(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		msgs := raw["messages"].([]any)
		parts := msgs[0].(map[string]any)["content"].([]any)
		img := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
		assert.True(t, strings.HasPrefix(img, "data:image/png;base64,"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"| Day | RA |\n|---|---|\n| Mon | Alice |"}}]}`))
	})
	out, err := c.ExtractText(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "image/png")
	require.NoError(t, err)
	assert.Contains(t, out, "| Mon | Alice |")
}

func TestDisabledBridge(t *testing.T) {
	var b Bridge = Disabled{}
	_, err := b.Complete(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrDisabled)
}
