// Package reframe produces the de-escalated rewrite of the user's draft.
package reframe

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/nmiskell11/reframe-app/internal/contextparse"
	"github.com/nmiskell11/reframe-app/internal/genai"
	"github.com/nmiskell11/reframe-app/internal/models"
	"github.com/nmiskell11/reframe-app/internal/relationship"
	"github.com/nmiskell11/reframe-app/internal/util"
)

// reframeMaxTokens leaves room for a full rewrite.
const reframeMaxTokens = 2000

// ErrEmptyReframe is returned when the oracle answers with blank text.
var ErrEmptyReframe = errors.New("oracle returned an empty reframe")

//go:embed reframe.tmpl
var reframeTemplateText string

var reframeTemplate = template.Must(template.New("reframe").Parse(reframeTemplateText))

type promptData struct {
	Relationship string
	Tone         string
	Formality    string
	Approach     string
	TheirMessage string
	Situation    string
	Answers      []string
	Message      string
}

// Reframer rewrites drafts through the oracle.
type Reframer struct {
	oracle genai.Oracle
}

// NewReframer creates a Reframer.
func NewReframer(oracle genai.Oracle) *Reframer {
	return &Reframer{oracle: oracle}
}

// BuildPrompt renders the rewrite prompt. rawContext may be an enriched
// context; its additional section is rendered from answers instead.
func BuildPrompt(message, rawContext string, rt models.RelationshipType, answers []models.ClarifyingAnswer) (string, error) {
	profile := relationship.Lookup(rt)
	parsed := contextparse.Parse(rawContext)

	data := promptData{
		Relationship: rt.Label(),
		Tone:         profile.Tone,
		Formality:    profile.Formality,
		Approach:     profile.Approach,
		TheirMessage: util.SanitizeForPrompt(parsed.TheirMessage),
		Situation:    util.SanitizeForPrompt(parsed.Situation),
		Message:      util.SanitizeForPrompt(message),
	}
	for _, a := range answers {
		line := a.DisplayText()
		if a.QuestionText != "" {
			line = a.QuestionText + ": " + line
		}
		data.Answers = append(data.Answers, util.SanitizeForPrompt(line))
	}

	var buf bytes.Buffer
	if err := reframeTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render reframe prompt: %w", err)
	}
	return buf.String(), nil
}

// Reframe returns the trimmed rewrite. Errors are returned to the caller.
func (r *Reframer) Reframe(ctx context.Context, message, rawContext string, rt models.RelationshipType, answers []models.ClarifyingAnswer) (string, error) {
	prompt, err := BuildPrompt(message, rawContext, rt, answers)
	if err != nil {
		return "", err
	}

	out, err := r.oracle.Complete(ctx, genai.Request{Purpose: genai.PurposeReframe, Prompt: prompt, MaxTokens: reframeMaxTokens})
	if err != nil {
		return "", fmt.Errorf("reframe oracle call failed: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyReframe
	}
	slog.Debug("Reframer.Reframe: rewrite produced", "relationship_type", rt, "answers", len(answers), "output_length", len(out))
	return out, nil
}
