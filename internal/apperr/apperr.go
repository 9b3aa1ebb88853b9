// Package apperr holds the error taxonomy shared by the scheduler and the
// payment coordinator. Transport layers map a Kind to their own status codes.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotAuthenticated
	KindNotAuthorized
	KindNotFound
	KindInfrastructure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindNotAuthorized:
		return "not_authorized"
	case KindNotFound:
		return "not_found"
	case KindInfrastructure:
		return "infrastructure"
	}
	return "internal"
}

// Error is an application error. Code is the stable machine-readable reason.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so wrapped copies of a sentinel still compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Wrap returns a copy of sentinel carrying cause.
func Wrap(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Message: sentinel.Message, Err: cause}
}

// KindOf reports the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf reports the code of err, "INTERNAL" for foreign errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL"
}

// MessageOf returns the public message of err without the wrapped cause.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// scheduling
var (
	ErrInvalidDate       = New(KindValidation, "INVALID_DATE", "date must be YYYY-MM-DD")
	ErrDateInPast        = New(KindValidation, "DATE_IN_PAST", "cannot book in the past")
	ErrInvalidTime       = New(KindValidation, "INVALID_TIME", "time is not a bookable slot")
	ErrNoteTooLong       = New(KindValidation, "NOTE_TOO_LONG", "note too long")
	ErrInvalidPhone      = New(KindValidation, "INVALID_PHONE", "phone number is not valid")
	ErrNoDates           = New(KindValidation, "NO_DATES", "at least one date required")
	ErrSlotAlreadyBooked = New(KindConflict, "SLOT_ALREADY_BOOKED", "this time slot is already booked, pick another one")
	ErrNotAuthenticated  = New(KindNotAuthenticated, "NOT_AUTHENTICATED", "sign in required")
	ErrNotAuthorized     = New(KindNotAuthorized, "NOT_AUTHORIZED", "not your appointment")
	ErrNotFound          = New(KindNotFound, "NOT_FOUND", "not found")
	ErrStoreUnavailable  = New(KindInfrastructure, "STORE_UNAVAILABLE", "availability store unavailable")
)

// payments
var (
	ErrInvalidAmount    = New(KindValidation, "INVALID_AMOUNT", "amount must be positive")
	ErrInvalidMetadata  = New(KindValidation, "INVALID_METADATA", "order name required")
	ErrInvalidSignature = New(KindInfrastructure, "INVALID_SIGNATURE", "webhook signature verification failed")
	ErrInvalidPayload   = New(KindValidation, "INVALID_PAYLOAD", "webhook payload could not be decoded")
	ErrProvider         = New(KindInfrastructure, "PROVIDER_UNAVAILABLE", "payment provider unavailable")
)
