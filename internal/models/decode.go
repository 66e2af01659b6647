package models

import (
	"encoding/json"
	"log/slog"

	"github.com/mitchellh/mapstructure"
)

// UnmarshalJSON decodes a request body leniently. Only a body that is not a
// JSON object is an error. A field of the wrong type is left at its zero
// value and a fractional round is truncated, so a damaged continuation field
// re-runs the check it gates instead of failing the whole request.
func (r *ReframeRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = ReframeRequest{}
	looseField(raw, "message", &r.Message)
	looseField(raw, "context", &r.Context)
	looseField(raw, "relationshipType", &r.RelationshipType)
	looseField(raw, "sessionToken", &r.SessionToken)
	looseField(raw, "skipRFD", &r.SkipRFD)
	looseField(raw, "checkedInbound", &r.CheckedInbound)
	looseField(raw, "stage", &r.Stage)
	looseField(raw, "questionRound", &r.QuestionRound)
	looseField(raw, "skipQuestions", &r.SkipQuestions)

	if items, ok := raw["clarifyingAnswers"].([]interface{}); ok {
		// Non-object entries stay as empty answers so the answer cap still
		// counts them. Normalize drops them.
		r.ClarifyingAnswers = make([]ClarifyingAnswer, len(items))
		for i, item := range items {
			obj, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			a := &r.ClarifyingAnswers[i]
			looseField(obj, "id", &a.ID)
			looseField(obj, "question_text", &a.QuestionText)
			looseField(obj, "answer_value", &a.AnswerValue)
			looseField(obj, "answer_text", &a.AnswerText)
			looseField(obj, "custom_text", &a.CustomText)
		}
	}
	return nil
}

// looseField decodes raw[key] into dst. On a type mismatch dst keeps its zero
// value.
func looseField(raw map[string]interface{}, key string, dst interface{}) {
	v, ok := raw[key]
	if !ok || v == nil {
		return
	}
	if err := mapstructure.Decode(v, dst); err != nil {
		slog.Debug("ReframeRequest.UnmarshalJSON: ignoring malformed field", "field", key, "error", err)
	}
}
