package generation

import "errors"

// Errors surfaced as task failure messages. They carry no detail that could
// leak prompts or credentials.
var (
	// ErrTailorUnavailable is returned when no LLM is configured.
	ErrTailorUnavailable = errors.New("AI_PROVIDER_NOT_CONFIGURED")

	// ErrRendererUnavailable is returned when no rendering service is configured.
	ErrRendererUnavailable = errors.New("LATEX_RENDER_NOT_CONFIGURED")
)

// StageError records which build stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}
