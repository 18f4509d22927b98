package core

import "errors"

var (
	// ErrTimeout is returned when an inference call exhausted its retries by timing out.
	ErrTimeout = errors.New("inference timed out")
	// ErrRunTimeout is returned when a whole pipeline run exceeded its deadline.
	ErrRunTimeout = errors.New("pipeline run timed out")
	// ErrServiceUnavailable covers unreachable inference, embedding, search and fetch services.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrParse marks malformed structured output from a reasoning step.
	ErrParse = errors.New("malformed model output")
	// ErrExtractionEmpty is a zero-result fetch outcome. Callers absorb it.
	ErrExtractionEmpty = errors.New("extraction empty")
	ErrCanceled        = errors.New("run canceled")
	ErrSessionBusy     = errors.New("session already has a run in flight")
	ErrSessionNotFound = errors.New("session not found")
)
