package proof

import (
	"context"
	"errors"
	"fmt"
)

// Kind is a stable failure category. Callers branch on Kind, never on
// message text.
type Kind string

const (
	// KindInvalidInput: malformed transaction identifier or bundle bytes
	KindInvalidInput Kind = "InvalidInput"
	// KindNotFound: unknown to the resolver, or absent from the fetched manifest
	KindNotFound Kind = "NotFound"
	// KindUnavailable: transient failure of the ledger source
	KindUnavailable Kind = "Unavailable"
	// KindIntegrityMismatch: source data disagrees with its own digests.
	// Security relevant; never folded into NotFound.
	KindIntegrityMismatch Kind = "IntegrityMismatch"
	// KindInternal: canonical encoding failed
	KindInternal Kind = "Internal"
)

// Error is the typed failure surfaced by every proof operation
type Error struct {
	Kind    Kind
	Stage   Stage
	Message string
	Cause   error
}

// Sentinels for errors.Is; they match any *Error of the same Kind.
var (
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrUnavailable       = &Error{Kind: KindUnavailable}
	ErrIntegrityMismatch = &Error{Kind: KindIntegrityMismatch}
	ErrInternal          = &Error{Kind: KindInternal}
)

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Stage != StageIdle {
		return fmt.Sprintf("%s: %s", e.Stage, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches sentinel errors by Kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Cause == nil
}

// NewError creates a typed error
func NewError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a typed error around cause
func WrapError(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the Kind of err. Context cancellation counts as
// Unavailable; anything untyped is Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindUnavailable
	}
	return KindInternal
}

// atStage converts err into an *Error pinned to stage. Untyped failures
// from the ledger are transient from the core's point of view.
func atStage(err error, stage Stage, fallback Kind) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		cp := *perr
		if cp.Stage == StageIdle {
			cp.Stage = stage
		}
		return &cp
	}

	kind := fallback
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = KindUnavailable
	}
	return &Error{Kind: kind, Stage: stage, Message: "ledger call failed", Cause: err}
}
