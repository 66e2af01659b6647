package util

import (
	"errors"
	"strings"
)

// MaxPromptInputLength caps any user-supplied text embedded in a prompt.
const MaxPromptInputLength = 5000

// ErrNoJSONObject is returned when oracle output contains no JSON object.
var ErrNoJSONObject = errors.New("no JSON object found in output")

// SanitizeForPrompt neutralises sequences that could close a triple-quoted
// or fenced block inside a prompt and caps the length.
func SanitizeForPrompt(input string) string {
	if input == "" {
		return ""
	}
	out := strings.ReplaceAll(input, `"""`, `'"'`)
	out = strings.ReplaceAll(out, "```", "'''")
	return TruncateRunes(out, MaxPromptInputLength)
}

// ExtractJSONObject strips Markdown code fences from oracle output and returns
// the outermost {...} span.
func ExtractJSONObject(raw string) (string, error) {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```JSON")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end < start {
		return "", ErrNoJSONObject
	}
	return cleaned[start : end+1], nil
}
