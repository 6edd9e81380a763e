package models

import "errors"

// Kind classifies a domain error so transports can map it without string matching.
type Kind string

const (
	KindInvalidInput      Kind = "InvalidInput"
	KindEmptyField        Kind = "EmptyField"
	KindAlreadyRegistered Kind = "AlreadyRegistered"
	KindAlreadyExists     Kind = "AlreadyExists"
	KindAlreadyActive     Kind = "AlreadyActive"
	KindNotRegistered     Kind = "NotRegistered"
	KindNotFound          Kind = "NotFound"
	KindNotActive         Kind = "NotActive"
	KindPermissionDenied  Kind = "PermissionDenied"
	KindLimitExceeded     Kind = "LimitExceeded"
)

// Sentinel errors, one per kind. Match with errors.Is.
var (
	ErrInvalidInput      = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrEmptyField        = &Error{Kind: KindEmptyField, Message: "empty field"}
	ErrAlreadyRegistered = &Error{Kind: KindAlreadyRegistered, Message: "already registered"}
	ErrAlreadyExists     = &Error{Kind: KindAlreadyExists, Message: "already exists"}
	ErrAlreadyActive     = &Error{Kind: KindAlreadyActive, Message: "already active"}
	ErrNotRegistered     = &Error{Kind: KindNotRegistered, Message: "not registered"}
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "not found"}
	ErrNotActive         = &Error{Kind: KindNotActive, Message: "not active"}
	ErrPermissionDenied  = &Error{Kind: KindPermissionDenied, Message: "permission denied"}
	ErrLimitExceeded     = &Error{Kind: KindLimitExceeded, Message: "limit exceeded"}
)

// Error is a typed validation failure returned by the registry and ledgers.
// An operation that returns an Error has not changed any state.
type Error struct {
	Kind    Kind
	Message string
}

// NewError returns an error of the given kind with a caller facing message.
func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target is a sentinel of the same kind. EmptyField
// errors also match ErrInvalidInput.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindInvalidInput && e.Kind == KindEmptyField
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
