// Package relationship provides the data-driven profile of every relationship
// type: the tone, formality and approach used by the reframer, and the
// optional exception clauses that narrow what the pattern detector flags.
//
// Profiles are loaded once from an embedded YAML document.
package relationship

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nmiskell11/reframe-app/internal/models"
)

//go:embed profiles.yaml
var profilesYAML []byte

// Profile describes how to speak to one kind of recipient.
type Profile struct {
	Type              models.RelationshipType `yaml:"type"`
	Tone              string                  `yaml:"tone"`
	Formality         string                  `yaml:"formality"`
	Approach          string                  `yaml:"approach"`
	InboundException  string                  `yaml:"inbound_exception"`
	OutboundException string                  `yaml:"outbound_exception"`
}

// ExceptionFor returns the exception clause for the given detection direction,
// or an empty string when the relationship has none.
func (p Profile) ExceptionFor(dir models.Direction) string {
	if dir == models.DirectionInbound {
		return strings.TrimSpace(p.InboundException)
	}
	return strings.TrimSpace(p.OutboundException)
}

var profiles = mustLoad(profilesYAML)

// Lookup returns the profile for rt, falling back to the general profile.
func Lookup(rt models.RelationshipType) Profile {
	if p, ok := profiles[rt]; ok {
		return p
	}
	return profiles[models.RelationshipGeneral]
}

// Load parses a profile document and checks that every relationship type is
// covered exactly once.
func Load(data []byte) (map[models.RelationshipType]Profile, error) {
	var list []Profile
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse relationship profiles: %w", err)
	}

	out := make(map[models.RelationshipType]Profile, len(list))
	for _, p := range list {
		if !models.IsValidRelationshipType(p.Type) {
			return nil, fmt.Errorf("unknown relationship type %q in profiles", p.Type)
		}
		if _, dup := out[p.Type]; dup {
			return nil, fmt.Errorf("duplicate relationship profile %q", p.Type)
		}
		if p.Tone == "" || p.Formality == "" || p.Approach == "" {
			return nil, fmt.Errorf("relationship profile %q is missing tone, formality or approach", p.Type)
		}
		out[p.Type] = p
	}
	for _, rt := range models.AllRelationshipTypes() {
		if _, ok := out[rt]; !ok {
			return nil, fmt.Errorf("missing relationship profile %q", rt)
		}
	}
	return out, nil
}

func mustLoad(data []byte) map[models.RelationshipType]Profile {
	m, err := Load(data)
	if err != nil {
		panic(fmt.Sprintf("Failed to load embedded relationship profiles at startup: %v", err))
	}
	return m
}
