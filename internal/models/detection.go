package models

// DetectionResult is the normalized answer of the pattern detector.
// When HasRedFlags is false every optional field is empty.
type DetectionResult struct {
	HasRedFlags bool      `json:"hasRedFlags"`
	Source      Direction `json:"source"`
	Severity    Severity  `json:"severity,omitempty"`
	Patterns    []string  `json:"patterns,omitempty"`
	Explanation string    `json:"explanation,omitempty"`
	Suggestion  string    `json:"suggestion,omitempty"`
	// Validation is only produced for inbound detections.
	Validation string `json:"validation,omitempty"`
}

// NoRedFlags returns the clean result for the given direction.
func NoRedFlags(source Direction) DetectionResult {
	return DetectionResult{HasRedFlags: false, Source: source}
}

// HealthCheckType enumerates the deterministic relationship-health concerns.
type HealthCheckType string

const (
	HealthCheckOtherPerson HealthCheckType = "other_person"
	HealthCheckAgeConcern  HealthCheckType = "age_concern"
	HealthCheckControlling HealthCheckType = "controlling"
)

// HealthCheckResult is produced by the rule-based relationship-health heuristic.
type HealthCheckResult struct {
	Type     HealthCheckType `json:"type"`
	Severity Severity        `json:"severity"`
	Alert    string          `json:"alert"`
	Message  string          `json:"message"`
}

// SafetyResource points the user at outside support.
type SafetyResource struct {
	Name        string `json:"name"`
	Contact     string `json:"contact,omitempty"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description"`
}
