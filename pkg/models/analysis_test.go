package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validResponse = `{
	"overview": "You tend to prepare your surroundings before starting.",
	"emotional_patterns": ["restlessness before focused work"],
	"environment_patterns": ["cluttered desk precedes avoidance"],
	"behavioral_loops": ["clean desk, then start work"],
	"triggers": ["upcoming deadlines"],
	"recurring_themes": ["control through order"],
	"core_pursuits_and_why": "A sense of readiness, possibly to quiet anxiety.",
	"reflection_prompts": ["What would happen if you started before tidying?"],
	"pattern_profile": {
		"summary": "Prepares environment before engaging with demanding tasks.",
		"tendencies": ["pre-task ritual behavior"],
		"typical_triggers": ["deadlines"],
		"typical_coping_styles": ["environmental ordering"],
		"last_updated": "2026-08-24T10:00:00Z"
	}
}`

// TestDecodeModelResponse_Valid tests decoding a complete payload.
func TestDecodeModelResponse_Valid(t *testing.T) {
	resp, err := DecodeModelResponse([]byte(validResponse))
	require.NoError(t, err)

	assert.Equal(t, "You tend to prepare your surroundings before starting.", resp.Overview)
	assert.Equal(t, []string{"restlessness before focused work"}, resp.EmotionalPatterns)
	assert.Equal(t, "A sense of readiness, possibly to quiet anxiety.", resp.CorePursuitsAndWhy)
	assert.Equal(t, "Prepares environment before engaging with demanding tasks.", resp.PatternProfile.Summary)
	assert.Equal(t, []string{"pre-task ritual behavior"}, resp.PatternProfile.Tendencies)
	assert.Equal(t, "2026-08-24T10:00:00Z", resp.PatternProfile.LastUpdated)
}

// TestDecodeModelResponse_Invalid tests rejection of malformed payloads.
func TestDecodeModelResponse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		errSub  string
	}{
		{
			name:    "malformed JSON",
			payload: `{not json`,
			errSub:  "malformed response JSON",
		},
		{
			name: "missing top-level field",
			payload: `{"overview": "x", "emotional_patterns": [], "environment_patterns": [],
				"behavioral_loops": [], "triggers": [], "recurring_themes": [],
				"core_pursuits_and_why": "", "reflection_prompts": []}`,
			errSub: `missing required field "pattern_profile"`,
		},
		{
			name: "missing profile sub-field",
			payload: `{"overview": "x", "emotional_patterns": [], "environment_patterns": [],
				"behavioral_loops": [], "triggers": [], "recurring_themes": [],
				"core_pursuits_and_why": "", "reflection_prompts": [],
				"pattern_profile": {"summary": "s", "tendencies": [], "typical_triggers": [],
				"typical_coping_styles": []}}`,
			errSub: `pattern_profile missing required field "last_updated"`,
		},
		{
			name: "null top-level field",
			payload: `{"overview": null, "emotional_patterns": [], "environment_patterns": [],
				"behavioral_loops": [], "triggers": [], "recurring_themes": [],
				"core_pursuits_and_why": "", "reflection_prompts": [],
				"pattern_profile": {"summary": "s", "tendencies": [], "typical_triggers": [],
				"typical_coping_styles": [], "last_updated": "now"}}`,
			errSub: `missing required field "overview"`,
		},
		{
			name: "null profile sub-field",
			payload: `{"overview": "x", "emotional_patterns": [], "environment_patterns": [],
				"behavioral_loops": [], "triggers": [], "recurring_themes": [],
				"core_pursuits_and_why": "", "reflection_prompts": [],
				"pattern_profile": {"summary": null, "tendencies": [], "typical_triggers": [],
				"typical_coping_styles": [], "last_updated": "now"}}`,
			errSub: `pattern_profile missing required field "summary"`,
		},
		{
			name: "pattern_profile not an object",
			payload: `{"overview": "x", "emotional_patterns": [], "environment_patterns": [],
				"behavioral_loops": [], "triggers": [], "recurring_themes": [],
				"core_pursuits_and_why": "", "reflection_prompts": [],
				"pattern_profile": "not an object"}`,
			errSub: "pattern_profile is not an object",
		},
		{
			name: "mistyped field",
			payload: `{"overview": 42, "emotional_patterns": [], "environment_patterns": [],
				"behavioral_loops": [], "triggers": [], "recurring_themes": [],
				"core_pursuits_and_why": "", "reflection_prompts": [],
				"pattern_profile": {"summary": "s", "tendencies": [], "typical_triggers": [],
				"typical_coping_styles": [], "last_updated": "now"}}`,
			errSub: "mistyped response field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := DecodeModelResponse([]byte(tt.payload))
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

// TestNewJournalEntry tests entry construction from submission inputs.
func TestNewJournalEntry(t *testing.T) {
	entry := NewJournalEntry("I keep cleaning my desk before I can start work.", 2, 1)

	assert.NotEmpty(t, entry.ID)
	assert.NotEmpty(t, entry.Timestamp)
	assert.Equal(t, "I keep cleaning my desk before I can start work.", entry.Text)
	assert.Equal(t, 2, entry.JournalPhotoCount)
	assert.Equal(t, 1, entry.SpacePhotoCount)

	// IDs are never reused
	other := NewJournalEntry("another", 0, 0)
	assert.NotEqual(t, entry.ID, other.ID)
}
