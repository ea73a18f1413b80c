// Package errs defines the error taxonomy shared by every component of the
// execution engine. Every engine error is an *E whose Kind() reports its
// category, so callers can branch with errors.As instead of string matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the wire/log error-kind names from the error taxonomy.
type Kind string

const (
	KindInvalidRequest      Kind = "InvalidRequest"
	KindNotFound            Kind = "NotFound"
	KindDuplicateSkill      Kind = "DuplicateSkill"
	KindDuplicateTool       Kind = "DuplicateTool"
	KindSchemaError         Kind = "SchemaError"
	KindArgumentTypeError   Kind = "ArgumentTypeError"
	KindMissingArgument     Kind = "MissingArgument"
	KindUnknownArgument     Kind = "UnknownArgument"
	KindToolExecutionError  Kind = "ToolExecutionError"
	KindToolTimeout         Kind = "ToolTimeout"
	KindSkillError          Kind = "SkillError"
	KindSyntaxError         Kind = "SyntaxError"
	KindRuntimeError        Kind = "RuntimeError"
	KindTimeout             Kind = "Timeout"
	KindInvalidDepSpec      Kind = "InvalidDepSpec"
	KindRuntimeDepsDisabled Kind = "RuntimeDepsDisabled"
	KindInstallFailed       Kind = "InstallFailed"
	KindAuthRequired        Kind = "AuthRequired"
	KindAuthInvalid         Kind = "AuthInvalid"
	KindStorageUnavailable  Kind = "StorageUnavailable"
	KindCorrupt             Kind = "Corrupt"
	KindExecutorUnavailable Kind = "ExecutorUnavailable"
	KindExecutorClosed      Kind = "ExecutorClosed"
	KindTransportError      Kind = "TransportError"
	KindConflict            Kind = "Conflict"
)

// E is a typed, wrapped engine error.
type E struct {
	kind    Kind
	msg     string
	wrapped error
}

func New(kind Kind, msg string) *E {
	return &E{kind: kind, msg: msg}
}

func Wrap(kind Kind, msg string, err error) *E {
	return &E{kind: kind, msg: msg, wrapped: err}
}

func (e *E) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *E) Unwrap() error { return e.wrapped }

func (e *E) Kind() string { return string(e.kind) }

// Is allows errors.Is(err, errs.New(KindNotFound, "")) style matching on kind alone.
func (e *E) Is(target error) bool {
	t, ok := target.(*E)
	if !ok {
		return false
	}
	return t.kind == e.kind
}

// KindOf extracts the Kind of err, or "" if err is not an *E (nor wraps one).
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.kind
	}
	return ""
}
