package firestore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type failure uint8

const (
	failureOther failure = iota
	failureNotFound
	failureConflict
	failureUnavailable
)

// Conflicts cover contention and precondition failures. Unavailable covers
// outages and quota pressure.
var failureByCode = map[codes.Code]failure{
	codes.NotFound:           failureNotFound,
	codes.AlreadyExists:      failureConflict,
	codes.FailedPrecondition: failureConflict,
	codes.Aborted:            failureConflict,
	codes.OutOfRange:         failureConflict,
	codes.Unavailable:        failureUnavailable,
	codes.ResourceExhausted:  failureUnavailable,
	codes.Internal:           failureUnavailable,
}

// Error is a classified Firestore failure. It satisfies
// repositories.RepositoryError so services can map it to HTTP statuses.
type Error struct {
	op    string
	cause error
	class failure
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op == "" {
		return e.cause.Error()
	}
	return e.op + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func (e *Error) IsNotFound() bool    { return e != nil && e.class == failureNotFound }
func (e *Error) IsConflict() bool    { return e != nil && e.class == failureConflict }
func (e *Error) IsUnavailable() bool { return e != nil && e.class == failureUnavailable }

// NotFound reports a document that is absent or outside the requested shop.
func NotFound(op, message string) error {
	return &Error{op: op, cause: errors.New(message), class: failureNotFound}
}

// WrapError classifies err by its gRPC status. Context errors are returned
// unchanged and an already classified error only gains op if it had none.
func WrapError(op string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var classified *Error
	if errors.As(err, &classified) {
		if classified.op == "" {
			classified.op = op
		}
		return classified
	}

	code := status.Code(err)
	switch code {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}
	return &Error{op: op, cause: err, class: failureByCode[code]}
}
