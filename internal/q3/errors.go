package q3

import (
	"errors"
	"fmt"
)

// Kind classifies a query failure so callers can branch without matching message strings.
type Kind uint8

const (
	// KindUnknown is reported by KindOf for errors that did not originate in this package.
	KindUnknown Kind = iota
	// KindParameter is a missing or invalid request field (payload, timeout, password).
	KindParameter
	// KindFormat is a malformed "host:port" string.
	KindFormat
	// KindRange is a port outside [MinPort, MaxPort].
	KindRange
	// KindTimeout is raised when nothing arrived before the overall deadline.
	KindTimeout
	// KindStructure is a reply that cannot hold a valid document.
	KindStructure
	// KindNetwork is a socket level failure (dial, write, read).
	KindNetwork
	// KindAuth is a reply rejecting the rcon password.
	KindAuth
)

var kindNames = [...]string{
	KindUnknown:   "unknown",
	KindParameter: "parameter",
	KindFormat:    "format",
	KindRange:     "range",
	KindTimeout:   "timeout",
	KindStructure: "structure",
	KindNetwork:   "network",
	KindAuth:      "auth",
}

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Sentinel errors, one per kind. Any *Error matches the sentinel of its kind with errors.Is.
var (
	ErrParameter = &Error{Kind: KindParameter}
	ErrFormat    = &Error{Kind: KindFormat}
	ErrRange     = &Error{Kind: KindRange}
	ErrTimeout   = &Error{Kind: KindTimeout}
	ErrStructure = &Error{Kind: KindStructure}
	ErrNetwork   = &Error{Kind: KindNetwork}
	ErrAuth      = &Error{Kind: KindAuth}
)

// Error is a tagged query error.
type Error struct {
	// Err is the underlying cause, if any.
	Err error

	// Detail is a human-readable description of the failure.
	Detail string

	Kind Kind
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}

	return KindUnknown
}

func newError(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func wrapError(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}
