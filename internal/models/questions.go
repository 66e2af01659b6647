package models

// QuestionFormat describes how a clarifying question is answered.
type QuestionFormat string

const (
	QuestionFormatSingleSelect QuestionFormat = "single_select"
	QuestionFormatFreeText     QuestionFormat = "free_text"
)

// QuestionOption is one selectable answer of a single_select question.
type QuestionOption struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// QuestionSpec is a clarifying question returned to the caller.
type QuestionSpec struct {
	ID         string           `json:"id"`
	Text       string           `json:"text"`
	Format     QuestionFormat   `json:"format"`
	Options    []QuestionOption `json:"options"`
	AllowOther bool             `json:"allowOther"`
	Required   bool             `json:"required"`
}

// ClarifyingAnswer is supplied by the caller on a follow-up request and
// accumulates across rounds.
type ClarifyingAnswer struct {
	ID           string `json:"id"`
	QuestionText string `json:"question_text,omitempty"`
	AnswerValue  string `json:"answer_value,omitempty"`
	AnswerText   string `json:"answer_text"`
	CustomText   string `json:"custom_text,omitempty"`
}

// DisplayText renders the answer the way it is shown back to the oracle:
// the answer text, followed by the custom elaboration when one was given.
func (a ClarifyingAnswer) DisplayText() string {
	if a.CustomText == "" {
		return a.AnswerText
	}
	return a.AnswerText + " — " + a.CustomText
}

// AnsweredIDs returns the ids of the given answers in order.
func AnsweredIDs(answers []ClarifyingAnswer) []string {
	ids := make([]string, 0, len(answers))
	for _, a := range answers {
		ids = append(ids, a.ID)
	}
	return ids
}
