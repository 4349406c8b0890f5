package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a user-visible failure. Each kind maps to one reply.
type ErrorKind string

const (
	KindAccessDenied     ErrorKind = "access_denied"
	KindAdminOnly        ErrorKind = "admin_only"
	KindUnknownCommand   ErrorKind = "unknown_command"
	KindBadRequest       ErrorKind = "bad_request"
	KindNoSearchResults  ErrorKind = "no_search_results"
	KindInvalidSelection ErrorKind = "invalid_selection"
	KindFetch            ErrorKind = "fetch_error"
	KindConversion       ErrorKind = "conversion_error"
	KindSend             ErrorKind = "send_error"
	KindBusy             ErrorKind = "busy"
	KindCancelled        ErrorKind = "cancelled"
	KindTimeout          ErrorKind = "timeout"
	KindInternal         ErrorKind = "internal"
)

var (
	ErrBusy                = errors.New("already processing")
	ErrNoActiveSelection   = errors.New("no active selection")
	ErrSelectionOutOfRange = errors.New("selection out of range")
	ErrNoSearchResults     = errors.New("no results")
	ErrTooLarge            = errors.New("media too large")
	ErrUnsupportedMedia    = errors.New("unsupported media")
)

// JobError is a pipeline failure carrying its kind and the failing stage
type JobError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewJobError wraps err with a kind and operation
func NewJobError(kind ErrorKind, op string, err error) *JobError {
	return &JobError{Kind: kind, Op: op, Err: err}
}

func (e *JobError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *JobError) Unwrap() error { return e.Err }

// KindOf classifies any error returned by the core
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind
	}
	switch {
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.Is(err, ErrNoActiveSelection), errors.Is(err, ErrSelectionOutOfRange):
		return KindInvalidSelection
	case errors.Is(err, ErrNoSearchResults):
		return KindNoSearchResults
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	return KindInternal
}
