package database

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a database Error. It is deliberately flat, matching the
// error taxonomy every caller of this package is expected to switch on.
type Kind int

const (
	// KindDatabase is the generic kind for driver errors that match no more
	// specific kind; the driver's native error code is not extracted.
	KindDatabase Kind = iota
	KindBusy
	KindTimeout
	KindConnectionLost
	KindConnect
	KindAuthorization
	KindInvalidPassword
	KindVersion
	KindInvalid
	KindInterrupted
	KindBind
	KindEntryNotFound
	KindMissingTable
	KindMissingColumn
	KindObsoleteTable
	KindObsoleteColumn
	KindTypeMismatch
	KindExists
	KindNotFound
	KindFunctionNotSupported
)

func (k Kind) String() string {
	switch k {
	case KindDatabase:
		return "Database"
	case KindBusy:
		return "DatabaseBusy"
	case KindTimeout:
		return "DatabaseTimeout"
	case KindConnectionLost:
		return "DatabaseConnectionLost"
	case KindConnect:
		return "DatabaseConnect"
	case KindAuthorization:
		return "DatabaseAuthorization"
	case KindInvalidPassword:
		return "InvalidPassword"
	case KindVersion:
		return "DatabaseVersion"
	case KindInvalid:
		return "DatabaseInvalid"
	case KindInterrupted:
		return "Interrupted"
	case KindBind:
		return "DatabaseBind"
	case KindEntryNotFound:
		return "DatabaseEntryNotFound"
	case KindMissingTable:
		return "DatabaseMissingTable"
	case KindMissingColumn:
		return "DatabaseMissingColumn"
	case KindObsoleteTable:
		return "DatabaseObsoleteTable"
	case KindObsoleteColumn:
		return "DatabaseObsoleteColumn"
	case KindTypeMismatch:
		return "DatabaseTypeMismatch"
	case KindExists:
		return "DatabaseExists"
	case KindNotFound:
		return "DatabaseNotFound"
	case KindFunctionNotSupported:
		return "FunctionNotSupported"
	default:
		return "DatabaseUnknown"
	}
}

// Error is the error type surfaced to callers of this package.
//
// It always carries a Kind and a human-readable message, and wraps the
// originating driver error as Cause where there is one. This package does
// not fill in NativeOp or SQL (Builder.Debug is not consulted); Error()
// prints SQL only when a caller has set it.
type Error struct {
	Kind     Kind
	Message  string
	Cause    error
	NativeOp string // driver-native error code/class, as text; not set by this package
	SQL      string // offending SQL fragment; not set by this package
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.SQL != "" {
		msg += fmt.Sprintf(" (sql: %s)", e.SQL)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is(err, SomeKindSentinel) style comparisons against another *Error by Kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}

	return false
}

// newError builds an *Error of the given kind wrapping cause with message.
func newError(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// IsKind reports whether err is a *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}

	return false
}

// CantPerformQuery wraps err as a generic KindDatabase error naming the failed query.
func CantPerformQuery(err error, query string) error {
	if err == nil {
		return nil
	}

	return newError(KindDatabase, err, "can't perform %q", query)
}

// Sentinels for use with errors.Is against the Kind-carrying *Error values this package returns.
var (
	ErrBusy                 = &Error{Kind: KindBusy}
	ErrTimeout              = &Error{Kind: KindTimeout}
	ErrConnectionLost       = &Error{Kind: KindConnectionLost}
	ErrConnect              = &Error{Kind: KindConnect}
	ErrAuthorization        = &Error{Kind: KindAuthorization}
	ErrInvalidPassword      = &Error{Kind: KindInvalidPassword}
	ErrVersion              = &Error{Kind: KindVersion}
	ErrInvalid              = &Error{Kind: KindInvalid}
	ErrInterrupted          = &Error{Kind: KindInterrupted}
	ErrBind                 = &Error{Kind: KindBind}
	ErrEntryNotFound        = &Error{Kind: KindEntryNotFound}
	ErrMissingTable         = &Error{Kind: KindMissingTable}
	ErrMissingColumn        = &Error{Kind: KindMissingColumn}
	ErrObsoleteTable        = &Error{Kind: KindObsoleteTable}
	ErrObsoleteColumn       = &Error{Kind: KindObsoleteColumn}
	ErrTypeMismatch         = &Error{Kind: KindTypeMismatch}
	ErrExists               = &Error{Kind: KindExists}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrFunctionNotSupported = &Error{Kind: KindFunctionNotSupported}
)
