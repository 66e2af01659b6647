package clarify

import (
	"fmt"
	"log/slog"

	"github.com/nmiskell11/reframe-app/internal/contextparse"
	"github.com/nmiskell11/reframe-app/internal/models"
)

// WildcardID returns the id given to the oracle-authored question of a round.
func WildcardID(round int) string {
	return fmt.Sprintf("wildcard_%d", round)
}

// Negotiate turns an insufficient assessment into the QUESTIONS payload for
// the round after currentRound. Unknown, duplicate and answered ids are
// dropped; of two mutually exclusive ids the one listed first wins, and an id
// that conflicts with an earlier answer is dropped. It returns nil when no
// question survives.
func (c *Catalog) Negotiate(a Assessment, answered []string, currentRound int) *models.QuestionsResponse {
	if a.Sufficient {
		return nil
	}
	nextRound := currentRound + 1

	answeredSet := make(map[string]bool, len(answered))
	for _, id := range answered {
		answeredSet[id] = true
	}
	seen := make(map[string]bool, len(a.QuestionIDs))
	var kept []string

	for _, id := range a.QuestionIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if !c.Has(id) {
			slog.Debug("Catalog.Negotiate: ignoring unknown question id", "id", id)
			continue
		}
		if answeredSet[id] {
			continue
		}
		if conflict := c.conflictWith(id, kept, answered); conflict != "" {
			slog.Warn("Catalog.Negotiate: dropping mutually exclusive question", "dropped", id, "kept", conflict, "round", nextRound)
			continue
		}
		kept = append(kept, id)
	}
	if len(kept) > models.MaxQuestionsPerRound {
		kept = kept[:models.MaxQuestionsPerRound]
	}

	questions := make([]models.QuestionSpec, 0, len(kept)+1)
	for _, id := range kept {
		e, _ := c.Lookup(id)
		questions = append(questions, e.Spec())
	}
	if a.Wildcard != "" {
		questions = append(questions, models.QuestionSpec{
			ID:      WildcardID(nextRound),
			Text:    a.Wildcard,
			Format:  models.QuestionFormatFreeText,
			Options: []models.QuestionOption{},
		})
	}
	if len(questions) == 0 {
		return nil
	}

	return &models.QuestionsResponse{
		Type:          models.ResponseTypeQuestions,
		Questions:     questions,
		SkipAllowed:   true,
		SkipLabel:     models.DefaultSkipLabel,
		QuestionRound: nextRound,
	}
}

func (c *Catalog) conflictWith(id string, kept, answered []string) string {
	for _, other := range kept {
		if c.excludes(id, other) {
			return other
		}
	}
	for _, other := range answered {
		if c.excludes(id, other) {
			return other
		}
	}
	return ""
}

// ResolveAnswers labels catalog answers with the catalog wording of their
// question. Other answers keep the question text the caller sent.
func (c *Catalog) ResolveAnswers(answers []models.ClarifyingAnswer) []models.ClarifyingAnswer {
	if len(answers) == 0 {
		return nil
	}
	resolved := make([]models.ClarifyingAnswer, len(answers))
	for i, a := range answers {
		if e, ok := c.Lookup(a.ID); ok {
			a.QuestionText = e.Text
		}
		resolved[i] = a
	}
	return resolved
}

// BuildEnrichedContext appends the resolved answers to the original context.
func (c *Catalog) BuildEnrichedContext(rawContext string, answers []models.ClarifyingAnswer) string {
	return contextparse.Enrich(rawContext, c.ResolveAnswers(answers))
}
