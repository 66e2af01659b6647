package models

import (
	"strings"
	"unicode/utf8"

	"github.com/nmiskell11/reframe-app/internal/util"
)

// ReframeRequest is the JSON body of POST /api/reframe. Every field is
// caller-supplied and must be revalidated through Normalize.
type ReframeRequest struct {
	Message           string             `json:"message"`
	Context           string             `json:"context,omitempty"`
	RelationshipType  string             `json:"relationshipType,omitempty"`
	SessionToken      string             `json:"sessionToken,omitempty"`
	SkipRFD           bool               `json:"skipRFD,omitempty"`
	CheckedInbound    bool               `json:"checkedInbound,omitempty"`
	Stage             string             `json:"stage,omitempty"`
	ClarifyingAnswers []ClarifyingAnswer `json:"clarifyingAnswers,omitempty"`
	QuestionRound     int                `json:"questionRound,omitempty"`
	SkipQuestions     bool               `json:"skipQuestions,omitempty"`
}

// PipelineRequest is the validated, coerced unit of state the pipeline runs on.
// Together its fields form a complete continuation of a multi-round exchange.
type PipelineRequest struct {
	Message          string
	Context          string
	RelationshipType RelationshipType
	SessionToken     string
	SkipRFD          bool
	CheckedInbound   bool
	Stage            Stage
	Answers          []ClarifyingAnswer
	QuestionRound    int
	SkipQuestions    bool
}

// HasContext reports whether the request carries any non-blank context.
func (p PipelineRequest) HasContext() bool {
	return strings.TrimSpace(p.Context) != ""
}

// Validate checks the hard limits that fail a request closed.
func (r *ReframeRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(r.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if utf8.RuneCountInString(r.Context) > MaxContextLength {
		return ErrContextTooLong
	}
	if len(r.ClarifyingAnswers) > MaxClarifyingAnswers {
		return ErrTooManyAnswers
	}
	return nil
}

// Normalize validates the request and coerces the soft fields: unknown
// relationship types become general, unknown stages become initial, the
// question round is clamped and malformed answers are dropped.
func (r *ReframeRequest) Normalize() (PipelineRequest, error) {
	if err := r.Validate(); err != nil {
		return PipelineRequest{}, err
	}

	round := r.QuestionRound
	if round < 0 {
		round = 0
	}
	if round > MaxQuestionRounds {
		round = MaxQuestionRounds
	}

	return PipelineRequest{
		Message:          r.Message,
		Context:          r.Context,
		RelationshipType: NormalizeRelationshipType(r.RelationshipType),
		SessionToken:     util.TruncateRunes(strings.TrimSpace(r.SessionToken), 128),
		SkipRFD:          r.SkipRFD,
		CheckedInbound:   r.CheckedInbound,
		Stage:            NormalizeStage(r.Stage),
		Answers:          normalizeAnswers(r.ClarifyingAnswers),
		QuestionRound:    round,
		SkipQuestions:    r.SkipQuestions,
	}, nil
}

// normalizeAnswers trims and caps every answer, drops entries without an id
// or answer, and keeps the first occurrence of a repeated id.
func normalizeAnswers(in []ClarifyingAnswer) []ClarifyingAnswer {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]ClarifyingAnswer, 0, len(in))
	for _, a := range in {
		id := util.TruncateRunes(strings.TrimSpace(a.ID), MaxAnswerIDLength)
		if id == "" || seen[id] {
			continue
		}
		text := strings.TrimSpace(a.AnswerText)
		value := strings.TrimSpace(a.AnswerValue)
		if text == "" {
			text = value
		}
		if text == "" {
			continue
		}
		seen[id] = true
		out = append(out, ClarifyingAnswer{
			ID:           id,
			QuestionText: util.TruncateRunes(strings.TrimSpace(a.QuestionText), MaxAnswerTextLength),
			AnswerValue:  util.TruncateRunes(value, MaxAnswerIDLength),
			AnswerText:   util.TruncateRunes(text, MaxAnswerTextLength),
			CustomText:   util.TruncateRunes(strings.TrimSpace(a.CustomText), MaxAnswerTextLength),
		})
	}
	return out
}
