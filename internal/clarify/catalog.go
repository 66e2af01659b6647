// Package clarify decides whether a draft needs more context before it can be
// reframed well, and turns the oracle's raw picks into a bounded set of
// clarifying questions drawn from a fixed catalog.
package clarify

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nmiskell11/reframe-app/internal/models"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Entry is one catalog question plus the rubric the assessor sees.
type Entry struct {
	ID            string                  `yaml:"id"`
	Text          string                  `yaml:"text"`
	Format        models.QuestionFormat   `yaml:"format"`
	Options       []models.QuestionOption `yaml:"options"`
	AllowOther    bool                    `yaml:"allow_other"`
	Required      bool                    `yaml:"required"`
	When          string                  `yaml:"when"`
	ExclusiveWith []string                `yaml:"exclusive_with"`
}

// Spec converts the entry into the client-facing question.
func (e Entry) Spec() models.QuestionSpec {
	opts := e.Options
	if opts == nil {
		opts = []models.QuestionOption{}
	}
	return models.QuestionSpec{
		ID:         e.ID,
		Text:       e.Text,
		Format:     e.Format,
		Options:    opts,
		AllowOther: e.AllowOther,
		Required:   e.Required,
	}
}

// Catalog is the ordered, immutable set of clarifying questions.
type Catalog struct {
	entries []Entry
	byID    map[string]int
}

// LoadCatalog parses and validates a catalog document.
func LoadCatalog(data []byte) (*Catalog, error) {
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse question catalog: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("question catalog is empty")
	}

	c := &Catalog{entries: entries, byID: make(map[string]int, len(entries))}
	for i, e := range entries {
		if e.ID == "" || e.Text == "" {
			return nil, fmt.Errorf("catalog entry %d is missing id or text", i)
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog id %q", e.ID)
		}
		switch e.Format {
		case models.QuestionFormatSingleSelect:
			if len(e.Options) == 0 {
				return nil, fmt.Errorf("single_select question %q has no options", e.ID)
			}
		case models.QuestionFormatFreeText:
		default:
			return nil, fmt.Errorf("question %q has unknown format %q", e.ID, e.Format)
		}
		c.byID[e.ID] = i
	}
	for _, e := range entries {
		for _, other := range e.ExclusiveWith {
			if _, ok := c.byID[other]; !ok {
				return nil, fmt.Errorf("question %q is exclusive with unknown id %q", e.ID, other)
			}
		}
	}
	return c, nil
}

var defaultCatalog = mustLoadCatalog(catalogYAML)

func mustLoadCatalog(data []byte) *Catalog {
	c, err := LoadCatalog(data)
	if err != nil {
		panic(fmt.Sprintf("Failed to load embedded question catalog at startup: %v", err))
	}
	return c
}

// DefaultCatalog returns the embedded question catalog.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// Lookup returns the entry with the given id.
func (c *Catalog) Lookup(id string) (Entry, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Has reports whether id is a catalog question.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Entries returns the catalog in declaration order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Unanswered returns the entries whose id is not in answered.
func (c *Catalog) Unanswered(answered []string) []Entry {
	skip := make(map[string]bool, len(answered))
	for _, id := range answered {
		skip[id] = true
	}
	var out []Entry
	for _, e := range c.entries {
		if !skip[e.ID] {
			out = append(out, e)
		}
	}
	return out
}

// excludes reports whether a and b may not appear together.
func (c *Catalog) excludes(a, b string) bool {
	ea, ok := c.Lookup(a)
	if ok {
		for _, id := range ea.ExclusiveWith {
			if id == b {
				return true
			}
		}
	}
	eb, ok := c.Lookup(b)
	if ok {
		for _, id := range eb.ExclusiveWith {
			if id == a {
				return true
			}
		}
	}
	return false
}

// Rubric renders the question list and asking rules embedded in assessment
// prompts. Answered ids are left out.
func (c *Catalog) Rubric(answered []string) string {
	var b strings.Builder
	b.WriteString("AVAILABLE CLARIFYING QUESTIONS (id: ask only when):\n")
	open := c.Unanswered(answered)
	if len(open) == 0 {
		b.WriteString("(none left, every question has been answered)\n")
	}
	for _, e := range open {
		fmt.Fprintf(&b, "- %s: %s\n", e.ID, e.When)
	}

	b.WriteString("\nRULES FOR ASKING:\n")
	b.WriteString("- Prefer asking ZERO questions. Mark the context insufficient only when a missing fact would clearly change the rewrite.\n")
	fmt.Fprintf(&b, "- Pick at most %d ids from the list above, most important first. Never invent ids.\n", models.MaxQuestionsPerRound)
	for i, e := range c.entries {
		for _, other := range e.ExclusiveWith {
			if c.byID[other] > i {
				fmt.Fprintf(&b, "- Never pick both %s and %s.\n", e.ID, other)
			}
		}
	}
	b.WriteString("- Only add a wildcardQuestion when something essential is not covered by the list.\n")
	return b.String()
}
