package analyzer

import "github.com/halcyonlabs/reverie/pkg/models"

// State is the orchestrator's lifecycle position. A cycle always starts a
// fresh transition from idle; succeeded and failed are terminal for the
// cycle that produced them.
type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Status is the externally visible snapshot of the orchestrator: the state
// plus, depending on it, the result to display or the failure message.
type Status struct {
	State   State                  `json:"state"`
	Result  *models.AnalysisResult `json:"result,omitempty"`
	Message string                 `json:"message,omitempty"`
}
