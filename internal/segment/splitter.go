package segment

import (
	"regexp"
	"strings"
)

// Default chunking policy for source segmentation: character-based recursive
// splitting, preferring paragraph boundaries and falling back to ever finer
// separators only when a split is still too large.
const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 150
)

var defaultSeparators = []string{"\n\n", "\n", ".", " ", ""}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	pageNumberRe = regexp.MustCompile(`(?i)\bPage\s*\d+\b`)
	boilerRe     = regexp.MustCompile(`(?i)(Confidential|Draft|Company Name).*?\n`)
)

// CleanText normalizes extracted source text before chunking: collapses
// whitespace runs, strips standalone page-number artifacts, and removes
// common header/footer boilerplate.
func CleanText(text string) string {
	text = boilerRe.ReplaceAllString(text, "")
	text = pageNumberRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// RecursiveSplitter splits text into chunks of at most ChunkSize runes with
// Overlap runes carried between consecutive chunks. Separators are tried in
// order; a fragment still larger than ChunkSize recurses with the remaining,
// finer separators.
type RecursiveSplitter struct {
	ChunkSize  int
	Overlap    int
	separators []string
}

// NewRecursiveSplitter returns a splitter with the given size and overlap
// using the default separator ladder.
func NewRecursiveSplitter(chunkSize, overlap int) *RecursiveSplitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize * DefaultOverlap / DefaultChunkSize
	}
	return &RecursiveSplitter{
		ChunkSize:  chunkSize,
		Overlap:    overlap,
		separators: defaultSeparators,
	}
}

// Split chunks text. Empty or whitespace-only input yields no chunks.
func (s *RecursiveSplitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	pieces := s.fragment(text, s.separators)
	return s.merge(pieces)
}

// fragment breaks text into pieces no larger than ChunkSize, recursing down
// the separator ladder for oversized fragments.
func (s *RecursiveSplitter) fragment(text string, seps []string) []string {
	if len([]rune(text)) <= s.ChunkSize {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	sep, rest := nextSeparator(text, seps)
	if sep == "" {
		return splitRunes(text, s.ChunkSize)
	}

	var pieces []string
	for _, part := range splitKeepSep(text, sep) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		if len([]rune(part)) <= s.ChunkSize {
			pieces = append(pieces, part)
			continue
		}
		pieces = append(pieces, s.fragment(part, rest)...)
	}
	return pieces
}

// merge greedily packs pieces into chunks up to ChunkSize, seeding each new
// chunk with the trailing pieces of the previous one up to Overlap runes.
func (s *RecursiveSplitter) merge(pieces []string) []string {
	var chunks []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunk := strings.TrimSpace(strings.Join(current, ""))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		// Carry trailing pieces into the next chunk for overlap.
		var carry []string
		carryLen := 0
		for i := len(current) - 1; i >= 0; i-- {
			n := len([]rune(current[i]))
			if carryLen+n > s.Overlap {
				break
			}
			carry = append([]string{current[i]}, carry...)
			carryLen += n
		}
		current = carry
		currentLen = carryLen
	}

	for _, piece := range pieces {
		n := len([]rune(piece))
		if currentLen+n > s.ChunkSize && len(current) > 0 {
			flush()
		}
		current = append(current, piece)
		currentLen += n
	}
	if len(current) > 0 {
		chunk := strings.TrimSpace(strings.Join(current, ""))
		if chunk != "" && (len(chunks) == 0 || chunk != chunks[len(chunks)-1]) {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// nextSeparator picks the first separator in seps that occurs in text and
// returns it with the remaining ladder.
func nextSeparator(text string, seps []string) (string, []string) {
	for i, sep := range seps {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, seps[i+1:]
		}
	}
	return "", nil
}

// splitKeepSep splits on sep, keeping the separator attached to the
// preceding part so sentence punctuation is not lost.
func splitKeepSep(text, sep string) []string {
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i < len(parts)-1 {
			p += sep
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitRunes(text string, size int) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
