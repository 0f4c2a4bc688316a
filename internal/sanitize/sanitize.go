// Package sanitize turns free-form model output into a dataset record.
package sanitize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ashureev/jailbreak-datagen/internal/domain"
	"github.com/google/uuid"
)

const fence = "```"

// ParseError reports model output that could not be turned into a record.
type ParseError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse extracts a GeneratedExample from raw completion text and assigns it a
// fresh ID. Surrounding whitespace, a fenced code block and commentary before
// the first '{' or after the last '}' are tolerated. Broken object syntax is
// not repaired.
func Parse(raw string) (domain.GeneratedExample, error) {
	payload, err := Extract(raw)
	if err != nil {
		return domain.GeneratedExample{}, err
	}

	var ex domain.GeneratedExample
	if err := json.Unmarshal([]byte(payload), &ex); err != nil {
		return domain.GeneratedExample{}, &ParseError{Reason: "invalid JSON object", Raw: raw, Err: err}
	}

	if !ex.Category.Valid() {
		return domain.GeneratedExample{}, &ParseError{Reason: fmt.Sprintf("unknown category %q", ex.Category), Raw: raw}
	}
	if strings.TrimSpace(ex.AttackTechnique) == "" {
		return domain.GeneratedExample{}, &ParseError{Reason: "missing attackTechnique", Raw: raw}
	}

	ex.ID = uuid.NewString()
	ex.Severity = domain.Severity(strings.ToLower(strings.TrimSpace(string(ex.Severity))))
	return ex, nil
}

// Extract applies the staged stripping and returns the candidate object text.
func Extract(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", &ParseError{Reason: "empty response", Raw: raw}
	}

	text = stripFence(text)

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return "", &ParseError{Reason: "no JSON object found", Raw: raw}
	}
	return text[start : end+1], nil
}

// stripFence removes an opening fence line such as "```json" and a matching
// trailing fence if present. Text that does not start with a fence is
// returned unchanged.
func stripFence(text string) string {
	if !strings.HasPrefix(text, fence) {
		return text
	}

	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		// Single-line block: drop the marker and its language tag.
		text = strings.TrimPrefix(text, fence)
		text = strings.TrimLeftFunc(text, isTagRune)
	}

	text = strings.TrimRightFunc(text, isSpace)
	text = strings.TrimSuffix(text, fence)
	return strings.TrimSpace(text)
}

func isTagRune(r rune) bool {
	return r == '_' || r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// Preview returns at most n runes of s, for log lines and error messages.
func Preview(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
