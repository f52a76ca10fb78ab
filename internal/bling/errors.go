package bling

import (
	"errors"
	"fmt"
)

// Kind classifies failures of the access layer and the sync pipeline.
type Kind string

const (
	// KindAuth: token endpoint unreachable, non-200, or no access_token.
	KindAuth Kind = "auth"
	// KindUpstream: transport failure or non-200 from the API.
	KindUpstream Kind = "upstream"
	// KindPersistence: document store read/write failure.
	KindPersistence Kind = "persistence"
	// KindParse: a payload or value that could not be decoded.
	KindParse Kind = "parse"
)

// Error is the error type returned by this package.
type Error struct {
	Kind   Kind
	Op     string // e.g. "token", "GET /contas/receber"
	Status int    // HTTP status when known
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error.
func NewError(kind Kind, op string, status int, err error) *Error {
	return &Error{Kind: kind, Op: op, Status: status, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
