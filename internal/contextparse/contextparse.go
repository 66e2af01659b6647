// Package contextparse extracts structured fields from the free-form
// conversation context a user supplies alongside their draft.
//
// The context may carry tagged blocks:
//
//	THEIR MESSAGE: "what they sent"
//
//	SITUATION: background the user wants to share
//
//	ADDITIONAL CONTEXT FROM USER:
//	- question: answer
//
// Parsing is lenient: missing or malformed markers degrade to treating the
// whole string as situation text, never to an error.
package contextparse

import (
	"regexp"
	"strings"

	"github.com/nmiskell11/reframe-app/internal/models"
)

// AdditionalMarker introduces the section appended from clarifying answers.
const AdditionalMarker = "ADDITIONAL CONTEXT FROM USER:"

var (
	// Markers only count at the start of a line, so a quoted message that
	// itself says "situation:" is not split.
	theirMessageMarker = regexp.MustCompile(`(?im)^[ \t]*THEIR MESSAGE:`)
	situationMarker    = regexp.MustCompile(`(?im)^[ \t]*SITUATION:`)
	additionalMarker   = regexp.MustCompile(`(?im)^[ \t]*ADDITIONAL CONTEXT FROM USER:`)
	blankLine          = regexp.MustCompile(`\n[ \t]*\r?\n`)
)

// quoteChars are stripped from both ends of the quoted message.
const quoteChars = "\"'“”‘’`"

// Parsed is the structured form of a context string. Any field may be empty.
type Parsed struct {
	TheirMessage string
	Situation    string
	Additional   string
}

// Parse splits a raw context string into its tagged parts.
func Parse(raw string) Parsed {
	var p Parsed
	if strings.TrimSpace(raw) == "" {
		return p
	}

	body := raw
	if loc := additionalMarker.FindStringIndex(raw); loc != nil {
		body = raw[:loc[0]]
		p.Additional = strings.TrimSpace(raw[loc[1]:])
	}

	theirLoc := theirMessageMarker.FindStringIndex(body)
	sitLoc := situationMarker.FindStringIndex(body)

	if theirLoc != nil {
		rest := body[theirLoc[1]:]
		end := len(rest)
		if bl := blankLine.FindStringIndex(rest); bl != nil && bl[0] < end {
			end = bl[0]
		}
		if s := situationMarker.FindStringIndex(rest); s != nil && s[0] < end {
			end = s[0]
		}
		p.TheirMessage = stripQuotes(rest[:end])
	}

	if sitLoc != nil {
		rest := body[sitLoc[1]:]
		end := len(rest)
		if t := theirMessageMarker.FindStringIndex(rest); t != nil {
			end = t[0]
		}
		p.Situation = strings.TrimSpace(rest[:end])
	}

	if theirLoc == nil && sitLoc == nil {
		if p.Additional == "" {
			p.Situation = raw
		} else {
			p.Situation = strings.TrimSpace(body)
		}
	}
	return p
}

// HasInboundMessage reports whether the context quotes a received message
// long enough to be worth running inbound detection on.
func (p Parsed) HasInboundMessage(minLength int) bool {
	return len([]rune(p.TheirMessage)) > minLength
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, quoteChars)
	return strings.TrimSpace(s)
}

// Enrich appends the caller's clarifying answers to the original context as an
// ADDITIONAL CONTEXT FROM USER section. Each answered question becomes one
// "- question: answer" line. An existing additional section is replaced so
// repeated rounds do not stack copies.
func Enrich(context string, answers []models.ClarifyingAnswer) string {
	if len(answers) == 0 {
		return context
	}
	base := context
	if loc := additionalMarker.FindStringIndex(base); loc != nil {
		base = base[:loc[0]]
	}
	base = strings.TrimRight(base, " \t\r\n")

	var b strings.Builder
	if base != "" {
		b.WriteString(base)
		b.WriteString("\n\n")
	}
	b.WriteString(AdditionalMarker)
	for _, a := range answers {
		b.WriteString("\n- ")
		if a.QuestionText != "" {
			b.WriteString(a.QuestionText)
			b.WriteString(": ")
		}
		b.WriteString(a.DisplayText())
	}
	return b.String()
}
