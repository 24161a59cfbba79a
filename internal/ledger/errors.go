package ledger

import "errors"

// Kind classifies why a transaction was reverted.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthorization
	KindConflict
	KindResource
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindResource:
		return "resource"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a revert: the transaction had no effect and Reason is shown to the caller verbatim.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

// Is matches another *Error with the same kind and reason, so sentinel reverts work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Reason == e.Reason
}

// Revert builds a revert error.
func Revert(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// KindOf returns the revert kind of err, if err is (or wraps) a revert.
func KindOf(err error) (Kind, bool) {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Kind, true
	}
	return 0, false
}
