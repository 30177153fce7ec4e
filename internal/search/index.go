// Package search ranks stored training chunks against a question.
//
// Two rankers are provided. RankByEmbedding orders candidates by cosine
// similarity of their embeddings to the query vector. The keyword Index is
// the fallback used when the question cannot be embedded; it scores with
// Jaccard similarity between token sets: |Q ∩ P| / |Q ∪ P|.
//
// Both are deterministic (ties broken by shorter text, then lexically) and
// hold no locks; an Index is read-only after construction.
package search

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Result is a ranked snippet with its similarity score.
type Result struct {
	Snippet string
	Score   float64
}

// Index is the keyword ranker.
type Index interface {
	TopK(query string, k int) []Result
}

// Candidate is a chunk with its stored embedding.
type Candidate struct {
	Text      string
	Embedding []float32
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	minParagraphRunes int
	maxChunkRunes     int
	stopwords         map[string]struct{}
	maxDocs           int
}

func defaultConfig() config {
	return config{
		minParagraphRunes: 0,
		maxChunkRunes:     800,
	}
}

// WithMinParagraphRunes drops paragraphs shorter than n from an Index.
func WithMinParagraphRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minParagraphRunes = n
		}
	}
}

// WithMaxChunkRunes bounds the size of chunks produced by Chunk.
func WithMaxChunkRunes(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxChunkRunes = n
		}
	}
}

func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// DefaultStopwords are common English words that carry no retrieval signal.
var DefaultStopwords = []string{
	"a", "an", "and", "are", "at", "be", "by", "do", "for", "from", "how",
	"i", "in", "is", "it", "me", "my", "of", "on", "or", "the", "to", "what",
	"when", "where", "who", "with", "you",
}

// ----------------------------------------------------------------------------
// Keyword index

type doc struct {
	text   string
	tokens map[string]struct{}
}

type index struct {
	cfg  config
	docs []doc
}

// NewIndexFromStrings builds an Index directly from a slice of paragraphs.
func NewIndexFromStrings(paragraphs []string, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	docs := make([]doc, 0, len(paragraphs))
	for _, raw := range paragraphs {
		t := strings.TrimSpace(normalizeWhitespace(raw))
		if t == "" {
			continue
		}
		if cfg.minParagraphRunes > 0 && utf8.RuneCountInString(t) < cfg.minParagraphRunes {
			continue
		}
		toks := tokenize(t, cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		docs = append(docs, doc{text: t, tokens: toks})
		if cfg.maxDocs > 0 && len(docs) >= cfg.maxDocs {
			break
		}
	}
	return &index{cfg: cfg, docs: docs}
}

// TopK returns up to k best-matching paragraphs by Jaccard similarity.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}

	buf := make([]Result, 0, len(i.docs))
	for _, d := range i.docs {
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := float64(len(qTokens) + len(d.tokens) - over)
		buf = append(buf, Result{Snippet: d.text, Score: float64(over) / union})
	}
	return top(buf, k)
}

// ----------------------------------------------------------------------------
// Embedding ranking

// RankByEmbedding returns up to k candidates with the highest cosine
// similarity to query. Candidates whose embedding is empty or of a different
// dimension are skipped, as are non-positive scores.
func RankByEmbedding(query []float32, cands []Candidate, k int) []Result {
	if len(query) == 0 || len(cands) == 0 {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	buf := make([]Result, 0, len(cands))
	for _, c := range cands {
		if len(c.Embedding) != len(query) {
			continue
		}
		s := Cosine(query, c.Embedding)
		if s <= 0 {
			continue
		}
		buf = append(buf, Result{Snippet: c.Text, Score: s})
	}
	return top(buf, k)
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// ----------------------------------------------------------------------------
// Helpers

func top(buf []Result, k int) []Result {
	if len(buf) == 0 {
		return nil
	}
	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].Score != buf[b].Score {
			return buf[a].Score > buf[b].Score
		}
		la, lb := utf8.RuneCountInString(buf[a].Snippet), utf8.RuneCountInString(buf[b].Snippet)
		if la != lb {
			return la < lb
		}
		return buf[a].Snippet < buf[b].Snippet
	})
	if k > len(buf) {
		k = len(buf)
	}
	return buf[:k]
}

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

var paraSplitRE = regexp.MustCompile(`\n\s*\n`)

func splitParas(raw string) []string {
	chunks := paraSplitRE.Split(raw, -1)
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if t := strings.TrimSpace(c); t != "" {
			out = append(out, t)
		}
	}
	return out
}
