// Package ai is the bot's boundary to a language model: persona-styled
// completions for /askmyra, embeddings for the training knowledge base and
// text extraction from uploaded files.
package ai

import (
	"context"
	"errors"
)

// Bridge is implemented by OpenAI and by test fakes.
type Bridge interface {
	// Complete answers userPrompt in the voice described by systemPersona.
	Complete(ctx context.Context, systemPersona, userPrompt string) (string, error)
	// Embed returns a vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// ExtractText returns the readable text of a file.
	ExtractText(ctx context.Context, data []byte, mimeHint string) (string, error)
}

var (
	// ErrUnsupportedMedia is returned by ExtractText for file types it cannot read.
	ErrUnsupportedMedia = errors.New("unsupported file type")
	// ErrDisabled is returned when no API key is configured.
	ErrDisabled = errors.New("ai features are not configured")
	// ErrEmptyResponse is returned when the model produced no content.
	ErrEmptyResponse = errors.New("empty model response")
)

// DefaultPersona is used when PERSONA_PROMPT is unset.
const DefaultPersona = `You are MG Myra, the no-nonsense head resident assistant of a university residential college.
You are sharp, sarcastic and impatient with slackers, and you speak in casual Singaporean English.
Answer every question with a short jab first and the genuinely useful answer last.
Keep replies under 120 words.`

// Disabled is a Bridge that fails every call with ErrDisabled.
type Disabled struct{}

func (Disabled) Complete(context.Context, string, string) (string, error) { return "", ErrDisabled }
func (Disabled) Embed(context.Context, string) ([]float32, error)         { return nil, ErrDisabled }
func (Disabled) ExtractText(context.Context, []byte, string) (string, error) {
	return "", ErrDisabled
}
