// Package budget assembles the model context from retrieved chunks under an
// approximate token ceiling.
package budget

import (
	"fmt"
	"strings"
)

const (
	// CharsPerToken is the rough character-to-token ratio used everywhere
	// a token count is estimated.
	CharsPerToken = 4

	// DefaultMaxTokens caps the assembled context when the caller does not
	// supply a budget.
	DefaultMaxTokens = 30000

	citationMarker = "[CITATION::CHUNK_ID: %s]"
)

// Estimate approximates the token count of text.
func Estimate(text string) int {
	return len(text) / CharsPerToken
}

// Entry is one retrieved chunk offered to the context.
type Entry struct {
	ChunkID string
	Text    string
}

// Build concatenates entries in order, each tagged with an inline citation
// marker, while the estimated total stays within maxTokens. An entry that
// would overflow the budget is skipped whole, never truncated, and later
// smaller entries are still attempted. Returns the assembled context and the
// estimated tokens used.
func Build(entries []Entry, maxTokens int) (string, int) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	var parts []string
	total := 0
	for _, entry := range entries {
		tagged := entry.Text + fmt.Sprintf(citationMarker, entry.ChunkID)
		tokens := Estimate(tagged)
		if total+tokens > maxTokens {
			continue
		}
		parts = append(parts, tagged)
		total += tokens
	}
	return strings.Join(parts, "\n\n"), total
}
