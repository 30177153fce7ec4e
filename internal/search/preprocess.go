package search

import (
	"bufio"
	"strings"
	"unicode/utf8"
)

// FlattenMarkdown turns each markdown table row into a standalone line of
// space-joined cells and drops separator rows, so that a transcribed roster
// table ranks row by row. Non-table lines are kept and paragraph breaks are
// normalised to a single blank line.
func FlattenMarkdown(text string) string {
	var b strings.Builder
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	blank := true // suppress a leading blank line
	inTable := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			if !blank {
				b.WriteByte('\n')
				blank = true
			}
			inTable = false
			continue
		}

		if strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") {
			fact, ok := tableRow(line)
			if !ok {
				continue
			}
			// each row is its own paragraph
			if !inTable && !blank {
				b.WriteByte('\n')
			}
			b.WriteString(fact)
			b.WriteString("\n\n")
			blank = true
			inTable = true
			continue
		}

		inTable = false
		b.WriteString(line)
		b.WriteByte('\n')
		blank = false
	}
	return strings.TrimRight(b.String(), "\n")
}

func tableRow(line string) (string, bool) {
	cols := strings.Split(strings.Trim(line, "|"), "|")
	cells := make([]string, 0, len(cols))
	sep := true
	for _, c := range cols {
		cell := strings.TrimSpace(c)
		if strings.Trim(cell, ":- ") != "" {
			sep = false
		}
		if cell != "" {
			cells = append(cells, cell)
		}
	}
	if sep || len(cells) == 0 {
		return "", false
	}
	return strings.Join(cells, " "), true
}

// Chunk flattens text and packs its paragraphs into chunks of at most
// WithMaxChunkRunes runes. Paragraphs longer than the limit are split on
// word boundaries.
func Chunk(text string, opts ...Option) []string {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	limit := cfg.maxChunkRunes

	var (
		out []string
		cur strings.Builder
		n   int
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
		n = 0
	}

	for _, p := range splitParas(FlattenMarkdown(text)) {
		p = normalizeWhitespace(p)
		pl := utf8.RuneCountInString(p)
		if pl > limit {
			flush()
			out = append(out, splitLong(p, limit)...)
			continue
		}
		if n > 0 && n+2+pl > limit {
			flush()
		}
		if n > 0 {
			cur.WriteString("\n\n")
			n += 2
		}
		cur.WriteString(p)
		n += pl
	}
	flush()
	return out
}

func splitLong(p string, limit int) []string {
	var out []string
	var cur strings.Builder
	n := 0
	for _, w := range strings.Fields(p) {
		wl := utf8.RuneCountInString(w)
		if n > 0 && n+1+wl > limit {
			out = append(out, cur.String())
			cur.Reset()
			n = 0
		}
		if n > 0 {
			cur.WriteByte(' ')
			n++
		}
		cur.WriteString(w)
		n += wl
	}
	if n > 0 {
		out = append(out, cur.String())
	}
	return out
}
