package rfd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nmiskell11/reframe-app/internal/models"
	"github.com/nmiskell11/reframe-app/internal/util"
)

const (
	maxPatterns      = 10
	maxPatternLength = 64
	maxFreeText      = 2000
)

// decodeAnswer strips code fences and decodes the outermost JSON object.
func decodeAnswer(raw string) (map[string]interface{}, error) {
	obj, err := util.ExtractJSONObject(raw)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return nil, fmt.Errorf("failed to decode detection answer: %w", err)
	}
	return fields, nil
}

// ParseDetection normalises a raw oracle answer into a DetectionResult.
func ParseDetection(raw string, source models.Direction) (models.DetectionResult, error) {
	fields, err := decodeAnswer(raw)
	if err != nil {
		return models.NoRedFlags(source), err
	}
	return resultFromFields(fields, source), nil
}

// resultFromFields copies the whitelisted fields. Anything else the oracle
// returned, or any field of the wrong type, is discarded.
func resultFromFields(fields map[string]interface{}, source models.Direction) models.DetectionResult {
	flagged, ok := fields["hasRedFlags"].(bool)
	if !ok || !flagged {
		return models.NoRedFlags(source)
	}

	result := models.DetectionResult{
		HasRedFlags: true,
		Source:      source,
		Severity:    models.SeverityMedium,
		Patterns:    patternsFrom(fields["patterns"]),
		Explanation: textFrom(fields["explanation"]),
		Suggestion:  textFrom(fields["suggestion"]),
	}
	if s, ok := fields["severity"].(string); ok {
		if sev := models.Severity(strings.ToLower(strings.TrimSpace(s))); models.IsValidSeverity(sev) {
			result.Severity = sev
		}
	}
	if source == models.DirectionInbound {
		result.Validation = textFrom(fields["validation"])
	}
	return result
}

func patternsFrom(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		out = append(out, util.TruncateRunes(s, maxPatternLength))
		if len(out) == maxPatterns {
			break
		}
	}
	return out
}

func textFrom(v interface{}) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return util.TruncateRunes(strings.TrimSpace(s), maxFreeText)
}
