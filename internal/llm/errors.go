// Package llm - errors.go defines typed errors for completion and embedding calls.
package llm

import "fmt"

// RateLimitedError indicates the provider rejected a call for quota reasons
// and the retry budget is exhausted.
type RateLimitedError struct {
	Message string
	Cause   error
}

func (e *RateLimitedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("rate limited: %s (cause: %v)", e.Message, e.Cause)
	}
	return fmt.Sprintf("rate limited: %s", e.Message)
}

func (e *RateLimitedError) Unwrap() error {
	return e.Cause
}

// TimeoutError indicates a call exceeded its per-attempt deadline on every retry.
type TimeoutError struct {
	Message string
	Cause   error
}

func (e *TimeoutError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("call timed out: %s (cause: %v)", e.Message, e.Cause)
	}
	return fmt.Sprintf("call timed out: %s", e.Message)
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// MalformedOutputError indicates the provider returned a response the caller
// cannot use: no candidates, no text parts, or output that fails downstream
// schema validation.
type MalformedOutputError struct {
	Message string
	Cause   error
}

func (e *MalformedOutputError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed model output: %s (cause: %v)", e.Message, e.Cause)
	}
	return fmt.Sprintf("malformed model output: %s", e.Message)
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Cause
}
