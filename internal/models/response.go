package models

// Outcome names the single terminal emission of a pipeline run.
type Outcome string

const (
	OutcomeInboundAlert  Outcome = "rfd_inbound"
	OutcomeOutboundAlert Outcome = "rfd_outbound"
	OutcomeQuestions     Outcome = "questions"
	OutcomeReframe       Outcome = "reframe"
	OutcomeFailed        Outcome = "failed"
)

// Response type tags for the non-alert variants.
const (
	ResponseTypeQuestions = "questions"
	ResponseTypeReframe   = "reframe"
)

// DefaultSkipLabel is the caption of the "skip questions" affordance.
const DefaultSkipLabel = "Skip and reframe now"

// ErrorResponse is returned for validation failures and rewrite failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Error builds an ErrorResponse with the given message.
func Error(message string) ErrorResponse {
	return ErrorResponse{Error: message}
}

// RFDAlertResponse reports a detected pattern; no rewrite was performed.
type RFDAlertResponse struct {
	RFDAlert       bool               `json:"rfdAlert"`
	RFDResult      DetectionResult    `json:"rfdResult"`
	CheckedInbound bool               `json:"checkedInbound,omitempty"`
	HealthCheck    *HealthCheckResult `json:"healthCheck"`
}

// QuestionsResponse asks the caller for clarification before reframing.
type QuestionsResponse struct {
	Type          string             `json:"type"`
	Questions     []QuestionSpec     `json:"questions"`
	SkipAllowed   bool               `json:"skipAllowed"`
	SkipLabel     string             `json:"skipLabel"`
	QuestionRound int                `json:"questionRound"`
	HealthCheck   *HealthCheckResult `json:"healthCheck"`
}

// ReframeResponse carries the rewritten message.
type ReframeResponse struct {
	Type             string             `json:"type"`
	Reframed         string             `json:"reframed"`
	RelationshipType RelationshipType   `json:"relationshipType"`
	UsedContext      bool               `json:"usedContext"`
	HealthCheck      *HealthCheckResult `json:"healthCheck"`
	SafetyResources  []SafetyResource   `json:"safetyResources,omitempty"`
}
