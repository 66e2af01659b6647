// Package rfd is the red-flag detector. It asks the oracle to classify a
// message against the communication-pattern taxonomy, either a message the
// user received (inbound) or the draft they are about to send (outbound), and
// normalises the free-text answer into a models.DetectionResult.
//
// Detection is advisory: any oracle or parse failure yields a clean result.
package rfd

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"text/template"

	"github.com/nmiskell11/reframe-app/internal/clarify"
	"github.com/nmiskell11/reframe-app/internal/contextparse"
	"github.com/nmiskell11/reframe-app/internal/genai"
	"github.com/nmiskell11/reframe-app/internal/models"
	"github.com/nmiskell11/reframe-app/internal/relationship"
	"github.com/nmiskell11/reframe-app/internal/util"
)

// detectMaxTokens bounds a detection answer.
const detectMaxTokens = 1000

//go:embed detect.tmpl
var detectTemplateText string

var detectTemplate = template.Must(template.New("detect").Parse(detectTemplateText))

type numberedPattern struct {
	Number int
	Pattern
}

type detectPromptData struct {
	Inbound      bool
	Relationship string
	Message      string
	Situation    string
	Patterns     []numberedPattern
	Exception    string
	Rubric       string
}

// Detector runs pattern detection against an oracle.
type Detector struct {
	oracle  genai.Oracle
	catalog *clarify.Catalog
}

// NewDetector creates a Detector. A nil catalog selects the embedded question catalog.
func NewDetector(oracle genai.Oracle, catalog *clarify.Catalog) *Detector {
	if catalog == nil {
		catalog = clarify.DefaultCatalog()
	}
	return &Detector{oracle: oracle, catalog: catalog}
}

// BuildPrompt renders the detection prompt for one direction. A non-empty
// rubric asks the oracle for a piggybacked context assessment.
func BuildPrompt(message string, dir models.Direction, rt models.RelationshipType, rawContext, rubric string) (string, error) {
	numbered := make([]numberedPattern, len(Taxonomy))
	for i, p := range Taxonomy {
		numbered[i] = numberedPattern{Number: i + 1, Pattern: p}
	}
	data := detectPromptData{
		Inbound:      dir == models.DirectionInbound,
		Relationship: rt.Label(),
		Message:      util.SanitizeForPrompt(message),
		Patterns:     numbered,
		Exception:    relationship.Lookup(rt).ExceptionFor(dir),
		Rubric:       rubric,
	}
	if dir == models.DirectionOutbound {
		data.Situation = util.SanitizeForPrompt(contextparse.Parse(rawContext).Situation)
	}

	var buf bytes.Buffer
	if err := detectTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s detection prompt: %w", dir, err)
	}
	return buf.String(), nil
}

// Detect classifies message in the given direction. For inbound detection
// message is the received message; rawContext supplies background for
// outbound detection and may be empty.
func (d *Detector) Detect(ctx context.Context, message string, dir models.Direction, rt models.RelationshipType, rawContext string) models.DetectionResult {
	fields, ok := d.call(ctx, message, dir, rt, rawContext, "")
	if !ok {
		return models.NoRedFlags(dir)
	}
	return resultFromFields(fields, dir)
}

// DetectWithAssessment runs outbound detection and reads the piggybacked
// context assessment from the same answer. A missing or malformed assessment
// section counts as sufficient.
func (d *Detector) DetectWithAssessment(ctx context.Context, message string, rt models.RelationshipType, rawContext string, answered []string) (models.DetectionResult, clarify.Assessment) {
	fields, ok := d.call(ctx, message, models.DirectionOutbound, rt, rawContext, d.catalog.Rubric(answered))
	if !ok {
		return models.NoRedFlags(models.DirectionOutbound), clarify.SufficientAssessment()
	}
	return resultFromFields(fields, models.DirectionOutbound), clarify.AssessmentFromFields(fields["contextAssessment"], answered)
}

func (d *Detector) call(ctx context.Context, message string, dir models.Direction, rt models.RelationshipType, rawContext, rubric string) (map[string]interface{}, bool) {
	prompt, err := BuildPrompt(message, dir, rt, rawContext, rubric)
	if err != nil {
		slog.Error("Detector.Detect: prompt rendering failed", "direction", dir, "error", err)
		return nil, false
	}

	purpose := genai.PurposeDetectOutbound
	if dir == models.DirectionInbound {
		purpose = genai.PurposeDetectInbound
	}
	out, err := d.oracle.Complete(ctx, genai.Request{Purpose: purpose, Prompt: prompt, MaxTokens: detectMaxTokens})
	if err != nil {
		slog.Warn("Detector.Detect: oracle call failed, treating as no red flags", "direction", dir, "error", err)
		return nil, false
	}

	fields, err := decodeAnswer(out)
	if err != nil {
		slog.Warn("Detector.Detect: unparseable detection answer, treating as no red flags", "direction", dir, "error", err, "output_length", len(out))
		return nil, false
	}
	return fields, true
}
