package llm

import "fmt"

// CompletionError is the single failure signal for a completion call, whatever went
// wrong underneath: transport, status code, authentication, rate limiting or a body
// that could not be decoded.
type CompletionError struct {
	Provider   Provider
	Model      string
	StatusCode int // zero when no HTTP response was received
	Cause      error
}

func (e *CompletionError) Error() string {
	model := e.Model
	if model == "" {
		model = "default"
	}
	return fmt.Sprintf("%s completion failed (model %s): %v", e.Provider, model, e.Cause)
}

func (e *CompletionError) Unwrap() error {
	return e.Cause
}

func completionErr(p Provider, model string, status int, format string, args ...any) *CompletionError {
	return &CompletionError{Provider: p, Model: model, StatusCode: status, Cause: fmt.Errorf(format, args...)}
}
