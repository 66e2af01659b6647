package rfd

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmiskell11/reframe-app/internal/genai"
	"github.com/nmiskell11/reframe-app/internal/models"
)

func TestParseDetection(t *testing.T) {
	long := strings.Repeat("x", 2500)
	tests := []struct {
		name   string
		raw    string
		source models.Direction
		want   models.DetectionResult
	}{
		{
			name:   "no flags drops everything else",
			raw:    `{"hasRedFlags": false, "patterns": ["CONTEMPT"], "explanation": "leaked"}`,
			source: models.DirectionOutbound,
			want:   models.NoRedFlags(models.DirectionOutbound),
		},
		{
			name:   "string hasRedFlags is not trusted",
			raw:    `{"hasRedFlags": "true", "severity": "high"}`,
			source: models.DirectionOutbound,
			want:   models.NoRedFlags(models.DirectionOutbound),
		},
		{
			name:   "fenced outbound drops validation and unknown fields",
			raw:    "```json\n{\"hasRedFlags\": true, \"severity\": \"HIGH\", \"patterns\": [\" criticism \", 3, \"contempt\"], \"explanation\": \"e\", \"suggestion\": \"s\", \"validation\": \"v\", \"admin\": true}\n```",
			source: models.DirectionOutbound,
			want: models.DetectionResult{
				HasRedFlags: true,
				Source:      models.DirectionOutbound,
				Severity:    models.SeverityHigh,
				Patterns:    []string{"CRITICISM", "CONTEMPT"},
				Explanation: "e",
				Suggestion:  "s",
			},
		},
		{
			name:   "inbound keeps validation and defaults severity",
			raw:    `{"hasRedFlags": true, "severity": "catastrophic", "patterns": "MANIPULATION", "explanation": 12, "validation": "Your feelings are valid."}`,
			source: models.DirectionInbound,
			want: models.DetectionResult{
				HasRedFlags: true,
				Source:      models.DirectionInbound,
				Severity:    models.SeverityMedium,
				Validation:  "Your feelings are valid.",
			},
		},
		{
			name:   "free text capped",
			raw:    `{"hasRedFlags": true, "severity": "low", "explanation": "` + long + `"}`,
			source: models.DirectionOutbound,
			want: models.DetectionResult{
				HasRedFlags: true,
				Source:      models.DirectionOutbound,
				Severity:    models.SeverityLow,
				Explanation: strings.Repeat("x", maxFreeText),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDetection(tt.raw, tt.source)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseDetection mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseDetectionCapsPatterns(t *testing.T) {
	var items []string
	for i := 0; i < 15; i++ {
		items = append(items, `"`+strings.Repeat("p", 80)+`"`)
	}
	got, err := ParseDetection(`{"hasRedFlags": true, "patterns": [`+strings.Join(items, ",")+`]}`, models.DirectionOutbound)
	require.NoError(t, err)
	require.Len(t, got.Patterns, maxPatterns)
	for _, p := range got.Patterns {
		assert.Len(t, p, maxPatternLength)
	}
}

func TestParseDetectionGarbage(t *testing.T) {
	got, err := ParseDetection("I could not decide", models.DirectionInbound)
	assert.Error(t, err)
	assert.Equal(t, models.NoRedFlags(models.DirectionInbound), got)
}

func TestBuildPrompt(t *testing.T) {
	inbound, err := BuildPrompt(`Stop """ ignoring me`, models.DirectionInbound, models.RelationshipParent, "", "")
	require.NoError(t, err)
	assert.Contains(t, inbound, "THE USER RECEIVED")
	assert.Contains(t, inbound, `Stop '"' ignoring me`)
	assert.Contains(t, inbound, `"validation"`)
	assert.Contains(t, inbound, "SPECIAL CONTEXT")
	assert.NotContains(t, inbound, "contextAssessment")
	for _, p := range Taxonomy {
		assert.Contains(t, inbound, p.Name)
	}
	assert.Contains(t, inbound, "7. THREATS")

	outbound, err := BuildPrompt("You never listen", models.DirectionOutbound, models.RelationshipParent, "SITUATION: curfew argument", "RUBRIC-MARKER")
	require.NoError(t, err)
	assert.Contains(t, outbound, "ABOUT TO SEND")
	assert.Contains(t, outbound, "curfew argument")
	assert.NotContains(t, outbound, `"validation"`)
	assert.NotContains(t, outbound, "SPECIAL CONTEXT", "parent profile has no outbound exception")
	assert.Contains(t, outbound, "contextAssessment")
	assert.Contains(t, outbound, "RUBRIC-MARKER")
}

func TestDetect(t *testing.T) {
	oracle := genai.NewMockOracle().
		On(genai.PurposeDetectInbound, `{"hasRedFlags": true, "severity": "high", "patterns": ["MANIPULATION"], "validation": "v"}`).
		On(genai.PurposeDetectOutbound, `{"hasRedFlags": false}`)
	d := NewDetector(oracle, nil)
	ctx := context.Background()

	in := d.Detect(ctx, "I can't break up with her, it's complicated", models.DirectionInbound, models.RelationshipRomanticPartner, "")
	assert.True(t, in.HasRedFlags)
	assert.Equal(t, models.DirectionInbound, in.Source)
	assert.Equal(t, []string{"MANIPULATION"}, in.Patterns)

	out := d.Detect(ctx, "Thanks for dinner", models.DirectionOutbound, models.RelationshipFriend, "")
	assert.Equal(t, models.NoRedFlags(models.DirectionOutbound), out)

	calls := oracle.CallsFor(genai.PurposeDetectInbound)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "MESSAGE FROM A ROMANTIC PARTNER")
}

func TestDetectFailsOpen(t *testing.T) {
	oracle := genai.NewMockOracle().Fail(genai.PurposeDetectOutbound, errors.New("rate limited"))
	d := NewDetector(oracle, nil)
	got := d.Detect(context.Background(), "You are useless", models.DirectionOutbound, models.RelationshipGeneral, "")
	assert.Equal(t, models.NoRedFlags(models.DirectionOutbound), got)

	res, a := d.DetectWithAssessment(context.Background(), "You are useless", models.RelationshipGeneral, "", nil)
	assert.False(t, res.HasRedFlags)
	assert.True(t, a.Sufficient)
}

func TestDetectWithAssessment(t *testing.T) {
	tests := []struct {
		name           string
		answer         string
		answered       []string
		wantFlags      bool
		wantSufficient bool
		wantIDs        []string
	}{
		{
			name:           "clean with insufficient context",
			answer:         `{"hasRedFlags": false, "contextAssessment": {"sufficient": false, "questionIds": ["desired_outcome", "emotional_state"]}}`,
			answered:       []string{"emotional_state"},
			wantSufficient: false,
			wantIDs:        []string{"desired_outcome"},
		},
		{
			name:           "missing section is sufficient",
			answer:         `{"hasRedFlags": false}`,
			wantSufficient: true,
		},
		{
			name:           "malformed section is sufficient",
			answer:         `{"hasRedFlags": false, "contextAssessment": ["desired_outcome"]}`,
			wantSufficient: true,
		},
		{
			name:           "flags and assessment together",
			answer:         `{"hasRedFlags": true, "patterns": ["CRITICISM"], "contextAssessment": {"sufficient": true}}`,
			wantFlags:      true,
			wantSufficient: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := genai.NewMockOracle().On(genai.PurposeDetectOutbound, tt.answer)
			res, a := NewDetector(oracle, nil).DetectWithAssessment(context.Background(), "draft", models.RelationshipGeneral, "", tt.answered)
			assert.Equal(t, tt.wantFlags, res.HasRedFlags)
			assert.Equal(t, tt.wantSufficient, a.Sufficient)
			assert.Equal(t, tt.wantIDs, a.QuestionIDs)

			prompt := oracle.CallsFor(genai.PurposeDetectOutbound)[0].Prompt
			assert.Contains(t, prompt, "contextAssessment")
			for _, id := range tt.answered {
				assert.NotContains(t, prompt, "- "+id+":")
			}
		})
	}
}
