package models

// PatternProfile is the single cumulative summary of the user's inferred
// behavioral landscape. Each successful analysis replaces it wholesale with
// the model's updated version; the model is contractually responsible for
// keeping updates slow and cumulative, the client performs no field-level
// merge.
type PatternProfile struct {
	Summary             string   `json:"summary" jsonschema_description:"Short description of the person's overall pattern landscape"`
	Tendencies          []string `json:"tendencies" jsonschema_description:"Short observations of recurring behavioral tendencies"`
	TypicalTriggers     []string `json:"typical_triggers" jsonschema_description:"Situations or stimuli that typically precede the person's patterns"`
	TypicalCopingStyles []string `json:"typical_coping_styles" jsonschema_description:"How the person typically responds to or manages their triggers"`
	LastUpdated         string   `json:"last_updated" jsonschema_description:"ISO-8601 timestamp of this profile version"`
}
