package search

import (
	"math"
	"testing"
)

func TestOptionsAndDefaults(t *testing.T) {
	cfg := defaultConfig()
	if cfg.minParagraphRunes != 0 || cfg.maxChunkRunes != 800 || cfg.stopwords != nil {
		t.Fatalf("defaultConfig unexpected: %#v", cfg)
	}
	WithMinParagraphRunes(-1)(&cfg)
	WithMaxChunkRunes(0)(&cfg)
	WithMaxDocs(0)(&cfg)
	if cfg.minParagraphRunes != 0 || cfg.maxChunkRunes != 800 || cfg.maxDocs != 0 {
		t.Fatalf("non-positive options should be ignored: %#v", cfg)
	}
	WithStopwords([]string{" The ", ""})(&cfg)
	if _, ok := cfg.stopwords["the"]; !ok {
		t.Fatalf("stopword not normalised: %#v", cfg.stopwords)
	}
	cfg2 := defaultConfig()
	WithStopwords(nil)(&cfg2)
	if cfg2.stopwords != nil {
		t.Fatalf("empty stopwords should remain nil")
	}
}

func TestIndexTopK(t *testing.T) {
	idx := NewIndexFromStrings([]string{
		"Duty swaps must be approved by the other RA.",
		"Quiet hours start at 11pm on weekdays.",
		"Mon Alice",
		"   ",
	}, WithStopwords(DefaultStopwords))

	res := idx.TopK("When do quiet hours start?", 2)
	if len(res) != 1 {
		t.Fatalf("want 1 result, got %#v", res)
	}
	if res[0].Snippet != "Quiet hours start at 11pm on weekdays." {
		t.Fatalf("wrong snippet: %q", res[0].Snippet)
	}
	if res[0].Score <= 0 || res[0].Score > 1 {
		t.Fatalf("score out of range: %v", res[0].Score)
	}

	if got := idx.TopK("   ", 3); got != nil {
		t.Fatalf("blank query should return nil")
	}
	if got := idx.TopK("the", 3); got != nil {
		t.Fatalf("stopword-only query should return nil")
	}
}

func TestIndexTieBreakDeterministic(t *testing.T) {
	idx := NewIndexFromStrings([]string{"beta alpha", "alpha beta"})
	res := idx.TopK("alpha beta", 0)
	if len(res) != 2 {
		t.Fatalf("want 2, got %d", len(res))
	}
	if res[0].Snippet != "alpha beta" {
		t.Fatalf("ties should sort lexically, got %q first", res[0].Snippet)
	}
}

func TestIndexMinRunesAndMaxDocs(t *testing.T) {
	idx := NewIndexFromStrings([]string{"tiny", "a much longer paragraph", "another long paragraph"},
		WithMinParagraphRunes(10), WithMaxDocs(1))
	if res := idx.TopK("tiny", 3); res != nil {
		t.Fatalf("short paragraph should be filtered")
	}
	if res := idx.TopK("another", 3); res != nil {
		t.Fatalf("maxDocs should cap the index")
	}
	if res := idx.TopK("longer", 3); len(res) != 1 {
		t.Fatalf("first long paragraph should be indexed")
	}
}

func TestCosine(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Fatalf("identical vectors: %v", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Fatalf("orthogonal vectors: %v", got)
	}
	if got := Cosine([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Fatalf("zero vector: %v", got)
	}
	if got := Cosine([]float32{1}, []float32{1, 2}); got != 0 {
		t.Fatalf("length mismatch: %v", got)
	}
}

func TestRankByEmbedding(t *testing.T) {
	cands := []Candidate{
		{Text: "north", Embedding: []float32{0, 1}},
		{Text: "east", Embedding: []float32{1, 0}},
		{Text: "north-east", Embedding: []float32{1, 1}},
		{Text: "south", Embedding: []float32{0, -1}},
		{Text: "broken", Embedding: []float32{1, 2, 3}},
		{Text: "missing"},
	}
	res := RankByEmbedding([]float32{0, 2}, cands, 5)
	if len(res) != 2 {
		t.Fatalf("want 2 positive results, got %#v", res)
	}
	if res[0].Snippet != "north" || res[1].Snippet != "north-east" {
		t.Fatalf("unexpected order: %#v", res)
	}
	if RankByEmbedding(nil, cands, 3) != nil {
		t.Fatalf("empty query should return nil")
	}
}
