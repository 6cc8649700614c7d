package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrInvalidConfig is returned when the tailor configuration is invalid.
	ErrInvalidConfig = errors.New("invalid gemini configuration")

	// ErrInvalidResponse is returned when the model output cannot be parsed.
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when safety filters block the output.
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned when retries are exhausted on temporary errors.
	ErrTransientFailure = errors.New("transient error during tailoring")

	// ErrEmptyJob is returned when the job has no title to tailor for.
	ErrEmptyJob = errors.New("job title cannot be empty")
)
