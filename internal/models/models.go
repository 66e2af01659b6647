// Package models defines the core data structures for reframe.
//
// It includes the relationship, detection, health-check and clarifying-question
// types shared across the pipeline, plus the HTTP request/response contracts.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// Validation constants for input validation
const (
	// MaxMessageLength defines the maximum allowed length (in characters) of the user's draft
	MaxMessageLength = 5000
	// MaxContextLength defines the maximum allowed length (in characters) of the conversation context
	MaxContextLength = 5000
	// MaxClarifyingAnswers defines the maximum number of clarifying answers accepted per request
	MaxClarifyingAnswers = 10
	// MaxAnswerTextLength caps each free-text field of a clarifying answer
	MaxAnswerTextLength = 500
	// MaxAnswerIDLength caps the id of a clarifying answer
	MaxAnswerIDLength = 64
	// MaxQuestionRounds is the number of clarifying rounds after which the pipeline always reframes
	MaxQuestionRounds = 2
	// MaxQuestionsPerRound is the maximum number of catalog questions returned in one round
	MaxQuestionsPerRound = 3
	// MaxWildcardLength caps the oracle-authored wildcard question
	MaxWildcardLength = 500
)

// Error variables for better error handling and testability
var (
	ErrEmptyMessage    = errors.New("message is required")
	ErrMessageTooLong  = fmt.Errorf("message must be under %d characters", MaxMessageLength)
	ErrContextTooLong  = fmt.Errorf("context must be under %d characters", MaxContextLength)
	ErrTooManyAnswers  = fmt.Errorf("at most %d clarifying answers are allowed", MaxClarifyingAnswers)
	ErrInvalidJSONBody = errors.New("invalid JSON")
)

// RelationshipType tags who the message is addressed to. It parameterizes
// tone, formality and detection exceptions for every downstream prompt.
type RelationshipType string

const (
	RelationshipRomanticPartner RelationshipType = "romantic_partner"
	RelationshipParent          RelationshipType = "parent"
	RelationshipFamily          RelationshipType = "family"
	RelationshipFriend          RelationshipType = "friend"
	RelationshipManager         RelationshipType = "manager"
	RelationshipDirectReport    RelationshipType = "direct_report"
	RelationshipColleague       RelationshipType = "colleague"
	RelationshipClient          RelationshipType = "client"
	RelationshipNeighbor        RelationshipType = "neighbor"
	RelationshipChild           RelationshipType = "child"
	RelationshipProvider        RelationshipType = "provider"
	RelationshipGeneral         RelationshipType = "general"
)

// AllRelationshipTypes returns the closed set of relationship types in display order.
func AllRelationshipTypes() []RelationshipType {
	return []RelationshipType{
		RelationshipRomanticPartner,
		RelationshipParent,
		RelationshipFamily,
		RelationshipFriend,
		RelationshipManager,
		RelationshipDirectReport,
		RelationshipColleague,
		RelationshipClient,
		RelationshipNeighbor,
		RelationshipChild,
		RelationshipProvider,
		RelationshipGeneral,
	}
}

// IsValidRelationshipType checks if the given relationship type is supported.
func IsValidRelationshipType(rt RelationshipType) bool {
	for _, known := range AllRelationshipTypes() {
		if rt == known {
			return true
		}
	}
	return false
}

// NormalizeRelationshipType coerces a caller-supplied value into the closed set.
// Unknown or empty values become general; they are never rejected.
func NormalizeRelationshipType(raw string) RelationshipType {
	rt := RelationshipType(strings.ToLower(strings.TrimSpace(raw)))
	if IsValidRelationshipType(rt) {
		return rt
	}
	return RelationshipGeneral
}

// Label returns a human readable form ("romantic partner") for prompts.
func (rt RelationshipType) Label() string {
	return strings.ReplaceAll(string(rt), "_", " ")
}

// Direction identifies which message a detection looked at.
type Direction string

const (
	// DirectionInbound is a message the user received.
	DirectionInbound Direction = "inbound"
	// DirectionOutbound is the message the user is about to send.
	DirectionOutbound Direction = "outbound"
)

// Severity grades a detected pattern or health concern.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// IsValidSeverity checks if the given severity is one of low, medium or high.
func IsValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	default:
		return false
	}
}

// Stage tells the pipeline whether this is a first pass or a follow-up
// carrying clarifying answers.
type Stage string

const (
	StageInitial            Stage = "initial"
	StageReframeWithAnswers Stage = "reframe_with_answers"
)

// NormalizeStage maps unknown values to the initial stage.
func NormalizeStage(raw string) Stage {
	switch Stage(strings.TrimSpace(raw)) {
	case StageReframeWithAnswers:
		return StageReframeWithAnswers
	default:
		return StageInitial
	}
}
