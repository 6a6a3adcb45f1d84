// Package extract recovers a structured answer from raw model output. Models
// are instructed to reply with a single JSON object carrying reply_text and
// citation keys, but wrap it in prose, leave trailing commas, drop quotes, or
// truncate mid-string often enough that parsing needs layered fallbacks.
package extract

import (
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
)

// Answer is the structured reply recovered from model output.
type Answer struct {
	ReplyText string   `json:"reply_text"`
	Citations []string `json:"citation"`
}

var (
	// Outermost {...} objects with up to one nested level.
	braceObjectRe = regexp.MustCompile(`(?s)(\{(?:[^{}]|(?:\{(?:[^{}]|(?:\{[^{}]*\}))*\}))*\})`)

	trailingCommaRe  = regexp.MustCompile(`,(\s*[}\]])`)
	bareKeyRe        = regexp.MustCompile(`([{,]\s*)([a-zA-Z0-9_]+)(\s*:)`)
	stringLiteralRe  = regexp.MustCompile(`"[^"\\]*(?:\\.[^"\\]*)*"`)
	unquotedScalarRe = regexp.MustCompile(`:\s*([^",{}\[\]\s][^",{}\[\]\s]*)\s*([,}\]])`)

	quotedReplyRe = regexp.MustCompile(`(?s)"reply_text"\s*:\s*"((?:[^"\\]|\\.)*)("|$)`)
	bareReplyRe   = regexp.MustCompile(`(?s)reply_text\s*:\s*"((?:[^"\\]|\\.)*)("|$)`)
	quotedCiteRe  = regexp.MustCompile(`(?s)"citation"\s*:\s*\[(.*?)\]`)
	bareCiteRe    = regexp.MustCompile(`(?s)citation\s*:\s*\[(.*?)\]`)
	quotedItemRe  = regexp.MustCompile(`"((?:[^"\\]|\\.)*)("|$)`)
	bareItemRe    = regexp.MustCompile(`[^,\s\[\]]+`)
)

// strategy is one tolerant-parsing attempt; ok reports success.
type strategy func(modelOutput string) (*Answer, bool)

var strategies = []strategy{
	parseDirect,
	parseBraceScan,
	parseRepaired,
	parseFields,
}

// Extract runs the strategies in order and returns the first success, or nil
// when every strategy fails. Callers substitute the raw output as a fallback
// reply with no citations.
func Extract(modelOutput string) *Answer {
	for _, try := range strategies {
		if answer, ok := try(modelOutput); ok {
			return answer
		}
	}
	log.Printf("extract: all strategies failed, falling back to raw output")
	return nil
}

// parseDirect parses the whole trimmed output and requires both keys with
// well-typed values.
func parseDirect(modelOutput string) (*Answer, bool) {
	return decodeStrict(strings.TrimSpace(modelOutput))
}

// parseBraceScan tries every balanced {...} object found anywhere in the
// output; the first one carrying both keys wins.
func parseBraceScan(modelOutput string) (*Answer, bool) {
	for _, candidate := range braceObjectRe.FindAllString(modelOutput, -1) {
		if answer, ok := decodeStrict(candidate); ok {
			return answer, true
		}
	}
	return nil, false
}

// parseRepaired takes the substring from the first "{" to the last "}" and
// applies a sequence of mechanical fixes before parsing. Type mismatches
// inside the citation array are tolerated here rather than rejected.
func parseRepaired(modelOutput string) (*Answer, bool) {
	start := strings.Index(modelOutput, "{")
	if start < 0 {
		return nil, false
	}
	text := modelOutput[start:]
	end := strings.LastIndex(text, "}")
	if end < 0 {
		return nil, false
	}
	text = text[:end+1]

	text = trailingCommaRe.ReplaceAllString(text, "$1")
	text = bareKeyRe.ReplaceAllString(text, `$1"$2"$3`)
	text = stringLiteralRe.ReplaceAllStringFunc(text, func(s string) string {
		return strings.ReplaceAll(s, "\n", `\n`)
	})
	text = unquotedScalarRe.ReplaceAllString(text, `: "$1"$2`)

	return decodeLenient(text)
}

// parseFields regex-extracts reply_text and the citation array directly,
// without requiring the output to be an object at all.
func parseFields(modelOutput string) (*Answer, bool) {
	replyMatch := quotedReplyRe.FindStringSubmatch(modelOutput)
	if replyMatch == nil {
		replyMatch = bareReplyRe.FindStringSubmatch(modelOutput)
	}
	if replyMatch == nil {
		return nil, false
	}

	citeMatch := quotedCiteRe.FindStringSubmatch(modelOutput)
	if citeMatch == nil {
		citeMatch = bareCiteRe.FindStringSubmatch(modelOutput)
	}

	citations := []string{}
	if citeMatch != nil {
		inner := citeMatch[1]
		if items := quotedItemRe.FindAllStringSubmatch(inner, -1); len(items) > 0 {
			for _, item := range items {
				citations = append(citations, item[1])
			}
		} else {
			citations = append(citations, bareItemRe.FindAllString(inner, -1)...)
		}
	}

	return &Answer{
		ReplyText: decodeEscapes(replyMatch[1]),
		Citations: citations,
	}, true
}

// decodeStrict requires a JSON object with a string reply_text and a
// string-array citation.
func decodeStrict(text string) (*Answer, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, false
	}
	replyRaw, hasReply := raw["reply_text"]
	citeRaw, hasCite := raw["citation"]
	if !hasReply || !hasCite {
		return nil, false
	}

	var reply string
	if err := json.Unmarshal(replyRaw, &reply); err != nil {
		return nil, false
	}
	var citations []string
	if err := json.Unmarshal(citeRaw, &citations); err != nil {
		return nil, false
	}
	if citations == nil {
		citations = []string{}
	}
	return &Answer{ReplyText: reply, Citations: citations}, true
}

// decodeLenient requires both keys and a string reply_text, but coerces
// citation entries of the wrong type instead of failing.
func decodeLenient(text string) (*Answer, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, false
	}
	replyRaw, hasReply := raw["reply_text"]
	citeRaw, hasCite := raw["citation"]
	if !hasReply || !hasCite {
		return nil, false
	}

	var reply string
	if err := json.Unmarshal(replyRaw, &reply); err != nil {
		return nil, false
	}

	citations := []string{}
	var items []any
	if err := json.Unmarshal(citeRaw, &items); err != nil {
		log.Printf("extract: citation array not well-formed after repair: %v", err)
	} else {
		for _, item := range items {
			if s, ok := item.(string); ok {
				citations = append(citations, s)
				continue
			}
			citations = append(citations, fmt.Sprint(item))
		}
	}
	return &Answer{ReplyText: reply, Citations: citations}, true
}

var escapeReplacements = []struct {
	escaped   string
	unescaped string
}{
	{`\n`, "\n"},
	{`\"`, `"`},
	{`\\`, `\`},
	{`\t`, "\t"},
	{`\r`, "\r"},
	{`\b`, "\b"},
	{`\f`, "\f"},
}

// decodeEscapes resolves backslash escapes captured by the field regexes.
// Replacements run in order, matching how truncated model output is usually
// escaped.
func decodeEscapes(s string) string {
	for _, r := range escapeReplacements {
		s = strings.ReplaceAll(s, r.escaped, r.unescaped)
	}
	return s
}
