// Package errs defines the error categories surfaced at the interaction
// boundary and the user-facing text for each.
package errs

import (
	cr "github.com/cockroachdb/errors"
)

var (
	// ErrSessionExpired: a follow-up interaction found no matching session.
	ErrSessionExpired = cr.New("session expired")
	// ErrValidation: malformed user input, rejected before any mutation.
	ErrValidation = cr.New("validation failed")
	// ErrExternal: a platform API call failed.
	ErrExternal = cr.New("external call failed")
	// ErrNotFound: a referenced message, role or record no longer exists.
	ErrNotFound = cr.New("not found")
	// ErrSchedulerAbort: finalization could not proceed and was left for retry.
	ErrSchedulerAbort = cr.New("finalization aborted")
)

const genericRetry = "Something went wrong. Please try again or contact a moderator."

// userFacing carries the exact text a user should see for an error.
type userFacing struct {
	cause error
	msg   string
}

func (e *userFacing) Error() string { return e.msg + ": " + e.cause.Error() }
func (e *userFacing) Unwrap() error { return e.cause }

func New(msg string) error {
	return cr.New(msg)
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

func Mark(err error, markErr error) error {
	if err == nil {
		return markErr
	}
	return cr.Mark(err, markErr)
}

func Is(err, target error) bool {
	return cr.Is(err, target)
}

// Validation returns a validation error whose message is shown verbatim.
func Validation(msg string) error {
	return &userFacing{cause: ErrValidation, msg: msg}
}

// NotFound returns a not-found error whose message is shown verbatim.
func NotFound(msg string) error {
	return &userFacing{cause: ErrNotFound, msg: msg}
}

// Expired returns a session-expired error that tells the user how to restart.
func Expired(restart string) error {
	return &userFacing{cause: ErrSessionExpired, msg: "Session expired. Run " + restart + " again."}
}

// External marks err as a platform failure; users see msg, or the generic
// retry text when msg is empty.
func External(err error, msg string) error {
	if err == nil {
		return nil
	}
	marked := cr.Mark(err, ErrExternal)
	if msg == "" {
		return marked
	}
	return &userFacing{cause: marked, msg: msg}
}

// UserMessage maps any error to the text shown to the invoking user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var uf *userFacing
	if cr.As(err, &uf) {
		return uf.msg
	}
	switch {
	case cr.Is(err, ErrSessionExpired):
		return "Session expired. Please start again."
	case cr.Is(err, ErrValidation):
		return "That input isn't valid. Please check it and try again."
	case cr.Is(err, ErrNotFound):
		return "That item is no longer available."
	default:
		return genericRetry
	}
}
