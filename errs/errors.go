// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package errs defines the error taxonomy shared by the wallet surfaces.
// Both the page-facing envelope and the approval UI render failures from
// the same [Error] values, so the two never disagree about a failure.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind uint8

const (
	Unknown Kind = iota
	Validation
	Authorization
	Chain
	NotImplemented
	Storage
	WindowClosed
)

// User-facing messages that callers match on.
const (
	MsgInvalidSender   = "Invalid sender address."
	MsgWindowClosed    = "Window closed by user."
	MsgRejected        = "Transaction rejected by user."
	MsgStorage         = "Failed to access storage."
	MsgNotImplemented  = "Method not implemented."
	MsgInvalidSiteURL  = "Invalid site url."
	MsgOnlyL1XAccounts = "Invalid account type. Only l1x accounts are supported."
)

var (
	// Sentinels for errors.Is. A sentinel matches any *Error of its kind.
	ErrValidation     = &Error{Kind: Validation}
	ErrAuthorization  = &Error{Kind: Authorization}
	ErrChain          = &Error{Kind: Chain}
	ErrNotImplemented = &Error{Kind: NotImplemented}
	ErrStorage        = &Error{Kind: Storage}
	ErrWindowClosed   = &Error{Kind: WindowClosed}
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Authorization:
		return "authorization"
	case Chain:
		return "chain"
	case NotImplemented:
		return "not implemented"
	case Storage:
		return "storage"
	case WindowClosed:
		return "window closed"
	default:
		return "unknown"
	}
}

// Error carries a user-facing message and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String() + " error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

func Validationf(format string, args ...interface{}) error {
	return &Error{Kind: Validation, Message: fmt.Sprintf(format, args...)}
}

func Authorizationf(format string, args ...interface{}) error {
	return &Error{Kind: Authorization, Message: fmt.Sprintf(format, args...)}
}

// NewChain wraps an RPC or on-chain failure. An empty msg surfaces the
// cause's text to the user.
func NewChain(msg string, err error) error {
	return &Error{Kind: Chain, Message: msg, Err: err}
}

// NewStorage wraps a store failure. The user only ever sees MsgStorage.
func NewStorage(err error) error {
	return &Error{Kind: Storage, Message: MsgStorage, Err: err}
}

// NotImplementedOp reports that a family does not support op.
func NotImplementedOp(op string) error {
	return &Error{Kind: NotImplemented, Message: MsgNotImplemented, Err: fmt.Errorf("%s unsupported", op)}
}

func NewWindowClosed() error {
	return &Error{Kind: WindowClosed, Message: MsgWindowClosed}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Message returns the text shown to a user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
