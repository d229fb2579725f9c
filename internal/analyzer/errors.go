package analyzer

import (
	"errors"

	"github.com/halcyonlabs/reverie/internal/config"
	"github.com/halcyonlabs/reverie/internal/prompt"
)

var (
	// ErrMissingAPIKey means the model boundary is not configured. Checked
	// before anything else; not recoverable without a deployment fix.
	ErrMissingAPIKey = errors.New("missing " + config.EnvAPIKey)

	// ErrBusy means an analysis is already in flight. The second invocation
	// is rejected without touching the in-flight cycle's state.
	ErrBusy = errors.New("an analysis is already in progress")
)

// TransportError wraps a network or call failure at the model boundary.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "model call failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SchemaError wraps a response that arrived but failed schema validation.
// Displayed like a transport failure, logged distinctly for diagnosis.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return "model response failed validation: " + e.Err.Error()
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// UserMessage maps an analysis failure to the single human-readable string
// shown to the user. Each new attempt replaces the previous message
// wholesale.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, prompt.ErrNoContent):
		return "Write something or add a photo before analyzing."
	case errors.Is(err, ErrMissingAPIKey):
		return "Analysis is not configured: set OPENAI_API_KEY and restart."
	case errors.Is(err, ErrBusy):
		return "An analysis is already running. Wait for it to finish."
	default:
		// Transport and schema failures read the same to the user.
		return "The analysis failed. Please try again."
	}
}
