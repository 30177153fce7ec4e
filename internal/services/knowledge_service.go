// Package services – KnowledgeService
//
// KnowledgeService owns the training knowledge base behind /trainmyra and
// /askmyra. Ingest chunks text, embeds every chunk and stores it; Answer
// retrieves the most relevant chunks for a question, prepends them as
// context and asks the model in the configured persona.
//
// Retrieval ranks by embedding cosine similarity. When the question cannot be
// embedded the keyword index in package search is used instead, so /askmyra
// keeps its context during embedding outages.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/duty-roster-bot/internal/ai"
	"github.com/tbourn/duty-roster-bot/internal/observability"
	"github.com/tbourn/duty-roster-bot/internal/repo"
	"github.com/tbourn/duty-roster-bot/internal/search"
)

// KnowledgeService coordinates chunk storage and retrieval-augmented answers.
type KnowledgeService struct {
	DB      *gorm.DB
	AI      ai.Bridge
	Persona string
	Log     zerolog.Logger

	// TopK caps the number of context chunks per question.
	TopK int
	// MaxPromptRunes rejects questions at or above this length.
	MaxPromptRunes int
	// MaxChunkRunes bounds stored chunk size.
	MaxChunkRunes int
}

// NewKnowledgeService constructs a KnowledgeService with defaults.
func NewKnowledgeService(db *gorm.DB, bridge ai.Bridge, persona string, log zerolog.Logger) *KnowledgeService {
	if persona == "" {
		persona = ai.DefaultPersona
	}
	return &KnowledgeService{
		DB:             db,
		AI:             bridge,
		Persona:        persona,
		Log:            log,
		TopK:           3,
		MaxPromptRunes: 250,
		MaxChunkRunes:  800,
	}
}

// Ingest chunks text and stores one embedded row per chunk. It returns the
// number of chunks written. On error, chunks written before the failure stay.
func (s *KnowledgeService) Ingest(ctx context.Context, source, uploadedBy, text string) (int, error) {
	ctx, span := observability.Tracer("services/KnowledgeService").Start(ctx, "Ingest",
		trace.WithAttributes(attribute.String("training.source", source)),
	)
	defer span.End()

	chunks := search.Chunk(text, search.WithMaxChunkRunes(s.MaxChunkRunes))
	if len(chunks) == 0 {
		return 0, ErrNothingToTrain
	}
	span.SetAttributes(attribute.Int("training.chunks", len(chunks)))

	for i, c := range chunks {
		emb, err := s.AI.Embed(ctx, c)
		if err != nil {
			return i, fmt.Errorf("embed chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if _, err := repo.CreateChunk(ctx, s.DB, source, uploadedBy, c, emb); err != nil {
			return i, fmt.Errorf("store chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return len(chunks), nil
}

// Stats returns the chunk count and the time of the newest chunk.
func (s *KnowledgeService) Stats(ctx context.Context) (int64, *time.Time, error) {
	return repo.ChunkStats(ctx, s.DB)
}

// Retrieve returns up to TopK chunk texts relevant to question.
func (s *KnowledgeService) Retrieve(ctx context.Context, question string) ([]string, error) {
	chunks, err := repo.ListChunks(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	var res []search.Result
	if q, err := s.AI.Embed(ctx, question); err == nil {
		cands := make([]search.Candidate, len(chunks))
		for i, c := range chunks {
			cands[i] = search.Candidate{Text: c.Content, Embedding: c.Embedding}
		}
		res = search.RankByEmbedding(q, cands, s.TopK)
	} else {
		s.Log.Warn().Err(err).Msg("embed question failed; using keyword ranking")
	}

	if len(res) == 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		res = search.NewIndexFromStrings(texts, search.WithStopwords(search.DefaultStopwords)).TopK(question, s.TopK)
	}

	out := make([]string, len(res))
	for i, r := range res {
		out[i] = r.Snippet
	}
	return out, nil
}

// Answer validates the question, gathers context and asks the model.
func (s *KnowledgeService) Answer(ctx context.Context, question string) (string, error) {
	ctx, span := observability.Tracer("services/KnowledgeService").Start(ctx, "Answer")
	defer span.End()

	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyPrompt
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(question) >= s.MaxPromptRunes {
		return "", ErrTooLong
	}

	snippets, err := s.Retrieve(ctx, question)
	if err != nil {
		// Answer without context rather than not at all.
		s.Log.Error().Err(err).Msg("retrieve context")
	}
	span.SetAttributes(attribute.Int("ai.context_chunks", len(snippets)))

	return s.AI.Complete(ctx, s.Persona, buildPrompt(snippets, question))
}

func buildPrompt(snippets []string, question string) string {
	if len(snippets) == 0 {
		return question
	}
	var b strings.Builder
	b.WriteString("Use this RA knowledge base context if it is relevant:\n")
	for _, sn := range snippets {
		b.WriteString("---\n")
		b.WriteString(sn)
		b.WriteByte('\n')
	}
	b.WriteString("---\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
