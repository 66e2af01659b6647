package clarify

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/nmiskell11/reframe-app/internal/contextparse"
	"github.com/nmiskell11/reframe-app/internal/genai"
	"github.com/nmiskell11/reframe-app/internal/models"
	"github.com/nmiskell11/reframe-app/internal/util"
)

// assessMaxTokens bounds the standalone assessment answer.
const assessMaxTokens = 300

//go:embed assess.tmpl
var assessTemplateText string

var assessTemplate = template.Must(template.New("assess").Parse(assessTemplateText))

// Assessment is the decision on whether the available context is enough.
type Assessment struct {
	Sufficient  bool
	QuestionIDs []string
	Wildcard    string
}

// SufficientAssessment is the fail-open result.
func SufficientAssessment() Assessment {
	return Assessment{Sufficient: true}
}

// Assessor runs the standalone sufficiency check against the oracle.
type Assessor struct {
	oracle  genai.Oracle
	catalog *Catalog
}

// NewAssessor creates an Assessor. A nil catalog selects the embedded one.
func NewAssessor(oracle genai.Oracle, catalog *Catalog) *Assessor {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Assessor{oracle: oracle, catalog: catalog}
}

type assessPromptData struct {
	Relationship string
	TheirMessage string
	Situation    string
	Additional   string
	Message      string
	Rubric       string
}

// BuildPrompt renders the standalone assessment prompt.
func (a *Assessor) BuildPrompt(message, rawContext string, rt models.RelationshipType, answered []string) (string, error) {
	parsed := contextparse.Parse(rawContext)
	data := assessPromptData{
		Relationship: rt.Label(),
		TheirMessage: util.SanitizeForPrompt(parsed.TheirMessage),
		Situation:    util.SanitizeForPrompt(parsed.Situation),
		Additional:   util.SanitizeForPrompt(parsed.Additional),
		Message:      util.SanitizeForPrompt(message),
		Rubric:       a.catalog.Rubric(answered),
	}
	var buf bytes.Buffer
	if err := assessTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render assessment prompt: %w", err)
	}
	return buf.String(), nil
}

// Assess asks the oracle whether more context is needed. Any oracle or parse
// failure is logged and treated as sufficient.
func (a *Assessor) Assess(ctx context.Context, message, rawContext string, rt models.RelationshipType, answered []string) Assessment {
	prompt, err := a.BuildPrompt(message, rawContext, rt, answered)
	if err != nil {
		slog.Error("Assessor.Assess: prompt rendering failed", "error", err)
		return SufficientAssessment()
	}

	out, err := a.oracle.Complete(ctx, genai.Request{Purpose: genai.PurposeAssess, Prompt: prompt, MaxTokens: assessMaxTokens})
	if err != nil {
		slog.Warn("Assessor.Assess: oracle call failed, treating context as sufficient", "error", err)
		return SufficientAssessment()
	}

	assessment, err := ParseAssessment(out, answered)
	if err != nil {
		slog.Warn("Assessor.Assess: unparseable assessment, treating context as sufficient", "error", err, "output_length", len(out))
		return SufficientAssessment()
	}
	slog.Debug("Assessor.Assess: assessment parsed",
		"sufficient", assessment.Sufficient,
		"question_ids", assessment.QuestionIDs,
		"has_wildcard", assessment.Wildcard != "")
	return assessment
}

// ParseAssessment decodes a standalone assessment answer.
func ParseAssessment(raw string, answered []string) (Assessment, error) {
	obj, err := util.ExtractJSONObject(raw)
	if err != nil {
		return SufficientAssessment(), err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return SufficientAssessment(), fmt.Errorf("failed to decode assessment: %w", err)
	}
	return AssessmentFromFields(fields, answered), nil
}

// AssessmentFromFields converts a decoded assessment object. It is shared by
// the standalone path and the section piggybacked on outbound detection.
// A missing or mistyped "sufficient" field fails open.
func AssessmentFromFields(section interface{}, answered []string) Assessment {
	fields, ok := section.(map[string]interface{})
	if !ok {
		return SufficientAssessment()
	}
	sufficient, ok := fields["sufficient"].(bool)
	if !ok || sufficient {
		return SufficientAssessment()
	}

	skip := make(map[string]bool, len(answered))
	for _, id := range answered {
		skip[id] = true
	}

	result := Assessment{Sufficient: false}
	if ids, ok := fields["questionIds"].([]interface{}); ok {
		for _, v := range ids {
			id, ok := v.(string)
			if !ok {
				continue
			}
			id = strings.TrimSpace(id)
			if id == "" || skip[id] {
				continue
			}
			result.QuestionIDs = append(result.QuestionIDs, id)
		}
	}
	if w, ok := fields["wildcardQuestion"].(string); ok {
		result.Wildcard = util.TruncateRunes(strings.TrimSpace(w), models.MaxWildcardLength)
	}
	return result
}
