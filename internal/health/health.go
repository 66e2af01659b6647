// Package health implements the deterministic relationship-health heuristic.
//
// It flags objectively unsafe situations (being "the other person" in a
// secret relationship, unsafe age gaps, controlling behavior) from keywords
// alone, independently of the generative oracle. The result is advisory: it is
// attached to whichever response the pipeline produces and never blocks it.
package health

import (
	"regexp"
	"strings"

	"github.com/nmiskell11/reframe-app/internal/models"
)

var (
	relationshipIndicators = regexp.MustCompile(`girlfriend|boyfriend|married|wife|husband|partner.*has.*girlfriend|partner.*has.*boyfriend|seeing someone|in a relationship|dating someone`)
	concealmentTerms       = regexp.MustCompile(`secret|hide|don['’]?t tell|can['’]?t break up|awkward to break up|waiting to break up`)
	parentalGuidance       = regexp.MustCompile(`deserve better|first choice|respect yourself|healthy relationship|concerned|worried about you`)
	ageGapTerms            = regexp.MustCompile(`much older|adult.*relationship|age.*gap|[0-9]{2}.*years.*older`)
	controllingTerms       = regexp.MustCompile(`track.*phone|check.*phone|monitor.*location|can['’]?t see.*friends|isolate|control.*who.*talk`)
)

const (
	alertRelationshipHealth = "⚠️ Relationship Health Concern"
	alertSafety             = "⚠️ Safety Concern"
)

// Check runs the three keyword checks against context and message.
// The first match wins; nil means no concern. Check is a pure function.
func Check(context, message string, rt models.RelationshipType) *models.HealthCheckResult {
	if context == "" && message == "" {
		return nil
	}

	combined := strings.ToLower(context + " " + message)
	contextLower := strings.ToLower(context)

	if relationshipIndicators.MatchString(combined) && concealmentTerms.MatchString(combined) {
		// A parent writing to their child who is already steering them toward a
		// healthy response does not need the alert.
		if rt == models.RelationshipChild && parentalGuidance.MatchString(contextLower) {
			return nil
		}
		return &models.HealthCheckResult{
			Type:     models.HealthCheckOtherPerson,
			Severity: models.SeverityHigh,
			Alert:    alertRelationshipHealth,
			Message: "Being romantically involved with someone who is in a committed relationship puts you in a compromised position. " +
				"Whatever reasons are given (\"it's awkward\", \"waiting for the right time\"), this situation is unlikely to be healthy for anyone involved. " +
				"You deserve to be someone's first choice, not a secret or a backup plan.",
		}
	}

	if rt == models.RelationshipChild || rt == models.RelationshipParent {
		if ageGapTerms.MatchString(combined) {
			return &models.HealthCheckResult{
				Type:     models.HealthCheckAgeConcern,
				Severity: models.SeverityHigh,
				Alert:    alertSafety,
				Message: "A relationship with someone significantly older raises important safety questions. " +
					"Please talk to a trusted adult about this situation.",
			}
		}
	}

	if controllingTerms.MatchString(combined) {
		return &models.HealthCheckResult{
			Type:     models.HealthCheckControlling,
			Severity: models.SeverityHigh,
			Alert:    alertRelationshipHealth,
			Message: "Controlling behaviors like tracking your phone, monitoring your location, or limiting who you can see are warning signs of an unhealthy relationship. " +
				"Everyone deserves privacy and autonomy.",
		}
	}

	return nil
}
