package models

import (
	"fmt"

	"github.com/goccy/go-json"
)

// AnalysisResult is the per-call reflection report. It is displayed to the
// user and never persisted; an empty list means "insufficient data", not an
// error.
type AnalysisResult struct {
	Overview            string   `json:"overview" jsonschema_description:"Summary of what this entry reveals"`
	EmotionalPatterns   []string `json:"emotional_patterns" jsonschema_description:"Emotional patterns visible in the supplied evidence"`
	EnvironmentPatterns []string `json:"environment_patterns" jsonschema_description:"Observations about the person's physical environment"`
	BehavioralLoops     []string `json:"behavioral_loops" jsonschema_description:"Repeating behavior cycles grounded in the entries"`
	Triggers            []string `json:"triggers" jsonschema_description:"Triggers evident in this entry or across entries"`
	RecurringThemes     []string `json:"recurring_themes" jsonschema_description:"Themes that recur across the entry history"`
	CorePursuitsAndWhy  string   `json:"core_pursuits_and_why" jsonschema_description:"What the person seems to be pursuing and the likely why"`
	ReflectionPrompts   []string `json:"reflection_prompts" jsonschema_description:"Gentle questions for the person to sit with"`
}

// ModelResponse is the full payload the model must return for one analysis
// call: the report fields plus the updated pattern profile, produced
// together. The two halves are extracted independently by field name.
type ModelResponse struct {
	AnalysisResult
	PatternProfile PatternProfile `json:"pattern_profile" jsonschema_description:"The cumulative pattern profile, updated slowly from the previous version"`
}

var requiredResponseFields = []string{
	"overview",
	"emotional_patterns",
	"environment_patterns",
	"behavioral_loops",
	"triggers",
	"recurring_themes",
	"core_pursuits_and_why",
	"reflection_prompts",
	"pattern_profile",
}

var requiredProfileFields = []string{
	"summary",
	"tendencies",
	"typical_triggers",
	"typical_coping_styles",
	"last_updated",
}

// DecodeModelResponse parses and validates a raw model payload. Every
// top-level field and every pattern_profile sub-field must be present and
// correctly typed; a response failing any check is rejected whole.
func DecodeModelResponse(data []byte) (*ModelResponse, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed response JSON: %w", err)
	}
	for _, field := range requiredResponseFields {
		// An explicit null is as absent as a missing key
		if v, ok := raw[field]; !ok || string(v) == "null" {
			return nil, fmt.Errorf("response missing required field %q", field)
		}
	}

	var profileRaw map[string]json.RawMessage
	if err := json.Unmarshal(raw["pattern_profile"], &profileRaw); err != nil {
		return nil, fmt.Errorf("pattern_profile is not an object: %w", err)
	}
	for _, field := range requiredProfileFields {
		if v, ok := profileRaw[field]; !ok || string(v) == "null" {
			return nil, fmt.Errorf("pattern_profile missing required field %q", field)
		}
	}

	var resp ModelResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("mistyped response field: %w", err)
	}
	return &resp, nil
}
