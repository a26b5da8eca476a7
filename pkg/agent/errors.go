package agent

import (
	"context"
	"errors"
	"fmt"

	"datachat-be/pkg/llm"
	"datachat-be/pkg/search"
)

// Code classifies a failed turn. The retryable flag travels with the
// code to the client, which decides whether to resend.
type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeUpstreamTimeout     Code = "UPSTREAM_TIMEOUT"
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"
	CodeSynthesis           Code = "SYNTHESIS_ERROR"
	CodeRateLimited         Code = "RATE_LIMITED"
	CodeInternal            Code = "INTERNAL_ERROR"
)

// PipelineError is the single error type crossing stage boundaries.
type PipelineError struct {
	Code    Code
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the client may usefully resend the turn.
func (e *PipelineError) Retryable() bool {
	switch e.Code {
	case CodeUpstreamTimeout, CodeUpstreamUnavailable, CodeRateLimited:
		return true
	}
	return false
}

// UserMessage is the text shown to the user. Internal errors stay generic.
func (e *PipelineError) UserMessage() string {
	switch e.Code {
	case CodeValidation:
		return e.Message
	case CodeUpstreamTimeout:
		return "The request took too long to complete. Please try again."
	case CodeUpstreamUnavailable:
		return "A backend service is currently unreachable. Please try again shortly."
	case CodeSynthesis:
		return "I could not build a valid query for that question. Try rephrasing it."
	case CodeRateLimited:
		return "Too many requests right now. Please wait a moment and try again."
	default:
		return "Something went wrong while processing your message."
	}
}

func NewValidationError(message string) *PipelineError {
	return &PipelineError{Code: CodeValidation, Message: message}
}

func NewSynthesisError(message string, err error) *PipelineError {
	return &PipelineError{Code: CodeSynthesis, Message: message, Err: err}
}

func NewInternalError(message string, err error) *PipelineError {
	return &PipelineError{Code: CodeInternal, Message: message, Err: err}
}

// Classify maps collaborator errors onto the taxonomy. Unknown errors
// become internal.
func Classify(err error) *PipelineError {
	var pipeErr *PipelineError
	if errors.As(err, &pipeErr) {
		return pipeErr
	}

	var badQuery *search.BadQueryError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, search.ErrTimeout):
		return &PipelineError{Code: CodeUpstreamTimeout, Message: "upstream call timed out", Err: err}
	case errors.Is(err, search.ErrUnavailable):
		return &PipelineError{Code: CodeUpstreamUnavailable, Message: "upstream unreachable", Err: err}
	case errors.Is(err, llm.ErrRateLimited):
		return &PipelineError{Code: CodeRateLimited, Message: "model backpressure", Err: err}
	case errors.As(err, &badQuery):
		return &PipelineError{Code: CodeSynthesis, Message: badQuery.Reason, Err: err}
	}
	return &PipelineError{Code: CodeInternal, Message: "unexpected failure", Err: err}
}
