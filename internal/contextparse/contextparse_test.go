package contextparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nmiskell11/reframe-app/internal/models"
)

func TestParse_TaggedBlocks(t *testing.T) {
	tests := []struct {
		name    string
		context string
	}{
		{"double quotes blank line", "THEIR MESSAGE: \"You never call me back\"\n\nSITUATION: We argued last week"},
		{"single newline", "THEIR MESSAGE: \"You never call me back\"\nSITUATION: We argued last week"},
		{"no quotes", "THEIR MESSAGE: You never call me back\n\nSITUATION: We argued last week"},
		{"single quotes extra space", "their message:    'You never call me back'  \n\n\nsituation:   We argued last week  "},
		{"curly quotes", "THEIR MESSAGE: “You never call me back”\n \nSITUATION:\nWe argued last week\n"},
		{"crlf", "THEIR MESSAGE: \"You never call me back\"\r\n\r\nSITUATION: We argued last week\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Parse(tt.context)
			assert.Equal(t, "You never call me back", p.TheirMessage)
			assert.Equal(t, "We argued last week", p.Situation)
			assert.Empty(t, p.Additional)
		})
	}
}

func TestParse_NoMarkers(t *testing.T) {
	contexts := []string{
		"We have been fighting about chores for weeks.",
		"  leading and trailing space  ",
		"THEIR MSG: almost a marker\nSITUATON: typo",
	}
	for _, c := range contexts {
		p := Parse(c)
		assert.Equal(t, c, p.Situation)
		assert.Empty(t, p.TheirMessage)
	}
}

func TestParse_Empty(t *testing.T) {
	assert.Equal(t, Parsed{}, Parse(""))
	assert.Equal(t, Parsed{}, Parse("   \n "))
}

func TestParse_OnlyTheirMessage(t *testing.T) {
	p := Parse(`THEIR MESSAGE: "I can't break up with her, it's complicated" `)
	assert.Equal(t, "I can't break up with her, it's complicated", p.TheirMessage)
	assert.Empty(t, p.Situation)
	assert.True(t, p.HasInboundMessage(10))
}

func TestParse_SituationStopsAtAdditionalSection(t *testing.T) {
	raw := "SITUATION: My sister keeps borrowing money\n\nADDITIONAL CONTEXT FROM USER:\n- How long? : Months"
	p := Parse(raw)
	assert.Equal(t, "My sister keeps borrowing money", p.Situation)
	assert.Equal(t, "- How long? : Months", p.Additional)
}

func TestParse_AdditionalWithoutMarkers(t *testing.T) {
	raw := "We share an office.\n\nADDITIONAL CONTEXT FROM USER:\n- Outcome: Repair"
	p := Parse(raw)
	assert.Equal(t, "We share an office.", p.Situation)
	assert.Equal(t, "- Outcome: Repair", p.Additional)
}

func TestParse_SituationBeforeTheirMessage(t *testing.T) {
	p := Parse("SITUATION: roommate conflict\nTHEIR MESSAGE: \"clean up your mess\"")
	assert.Equal(t, "roommate conflict", p.Situation)
	assert.Equal(t, "clean up your mess", p.TheirMessage)
}

func TestParse_MarkerWordsInsideQuotedMessage(t *testing.T) {
	tests := []struct {
		name    string
		context string
		their   string
		sit     string
	}{
		{
			name:    "situation inside message",
			context: "THEIR MESSAGE: \"Your situation: you never call\"\n\nSITUATION: we argued",
			their:   "Your situation: you never call",
			sit:     "we argued",
		},
		{
			name:    "their message inside situation",
			context: "SITUATION: she wrote their message: in caps\nTHEIR MESSAGE: \"stop ignoring me\"",
			their:   "stop ignoring me",
			sit:     "she wrote their message: in caps",
		},
		{
			name:    "indented markers",
			context: "  THEIR MESSAGE: \"Situation: dire, call me\"\n\t SITUATION: late rent",
			their:   "Situation: dire, call me",
			sit:     "late rent",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Parse(tt.context)
			assert.Equal(t, tt.their, p.TheirMessage)
			assert.Equal(t, tt.sit, p.Situation)
		})
	}
}

func TestParse_InlineMarkerIsNotASection(t *testing.T) {
	p := Parse("We talked. ADDITIONAL CONTEXT FROM USER: was mentioned in passing")
	assert.Empty(t, p.Additional)
	assert.Equal(t, "We talked. ADDITIONAL CONTEXT FROM USER: was mentioned in passing", p.Situation)
}

func TestHasInboundMessage(t *testing.T) {
	assert.False(t, Parsed{TheirMessage: "ok fine"}.HasInboundMessage(10))
	assert.False(t, Parsed{TheirMessage: "exactly10!"}.HasInboundMessage(10))
	assert.True(t, Parsed{TheirMessage: "eleven char"}.HasInboundMessage(10))
}

func TestEnrich(t *testing.T) {
	answers := []models.ClarifyingAnswer{
		{ID: "pattern_duration", QuestionText: "How long has this been going on?", AnswerText: "A few months"},
		{ID: "desired_outcome", QuestionText: "What do you want to happen?", AnswerText: "Repair things", CustomText: "before the holidays"},
	}
	got := Enrich("SITUATION: We keep arguing", answers)
	want := "SITUATION: We keep arguing\n\nADDITIONAL CONTEXT FROM USER:\n" +
		"- How long has this been going on?: A few months\n" +
		"- What do you want to happen?: Repair things — before the holidays"
	assert.Equal(t, want, got)

	p := Parse(got)
	assert.Equal(t, "We keep arguing", p.Situation)
	assert.Contains(t, p.Additional, "Repair things — before the holidays")
}

func TestEnrich_NoAnswersKeepsContext(t *testing.T) {
	assert.Equal(t, "ctx", Enrich("ctx", nil))
}

func TestEnrich_EmptyContext(t *testing.T) {
	got := Enrich("", []models.ClarifyingAnswer{{AnswerText: "Yes"}})
	assert.Equal(t, "ADDITIONAL CONTEXT FROM USER:\n- Yes", got)
}

func TestEnrich_ReplacesPreviousSection(t *testing.T) {
	first := Enrich("ctx", []models.ClarifyingAnswer{{QuestionText: "Q1", AnswerText: "A1"}})
	second := Enrich(first, []models.ClarifyingAnswer{
		{QuestionText: "Q1", AnswerText: "A1"},
		{QuestionText: "Q2", AnswerText: "A2"},
	})
	assert.Equal(t, 1, strings.Count(second, AdditionalMarker))
	assert.Contains(t, second, "- Q2: A2")
}
