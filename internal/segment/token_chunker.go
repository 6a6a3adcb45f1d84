package segment

import (
	"regexp"
	"strings"
)

// TokenChunker splits raw text into sentence-aligned chunks of roughly
// ChunkTokens tokens with OverlapTokens of trailing-sentence overlap. Token
// counts use the 4-characters-per-token heuristic shared with the context
// budget. This is the policy applied to single raw-text payloads such as
// email bodies; multi-type source segmentation uses RecursiveSplitter.
type TokenChunker struct {
	ChunkTokens   int
	OverlapTokens int
}

// NewTokenChunker returns a chunker with the 400/50 token policy.
func NewTokenChunker() *TokenChunker {
	return &TokenChunker{ChunkTokens: 400, OverlapTokens: 50}
}

var (
	sentenceEndRe = regexp.MustCompile(`(?s)([.!?])\s+`)
	newlineRunRe  = regexp.MustCompile(`\n+`)
	spaceRunRe    = regexp.MustCompile(` +`)
)

// Chunk splits text into token-budgeted, sentence-aligned chunks.
func (t *TokenChunker) Chunk(text string) []string {
	text = normalizeWhitespace(text)
	if text == "" {
		return nil
	}

	sentences := splitSentences(text)
	var chunks []string
	var current []string
	currentTokens := 0

	for _, sentence := range sentences {
		n := estimateTokens(sentence)
		if currentTokens+n > t.ChunkTokens && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))

			// Keep trailing sentences up to the overlap budget.
			var carry []string
			carryTokens := 0
			for i := len(current) - 1; i >= 0; i-- {
				st := estimateTokens(current[i])
				if carryTokens+st > t.OverlapTokens {
					break
				}
				carry = append([]string{current[i]}, carry...)
				carryTokens += st
			}
			current = carry
			currentTokens = carryTokens
		}
		current = append(current, sentence)
		currentTokens += n
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

func splitSentences(text string) []string {
	marked := sentenceEndRe.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeWhitespace(text string) string {
	text = newlineRunRe.ReplaceAllString(text, "\n")
	text = spaceRunRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// estimateTokens mirrors budget.Estimate: 1 token per 4 characters, with a
// floor of one token for non-empty text.
func estimateTokens(s string) int {
	n := len(s) / 4
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}
