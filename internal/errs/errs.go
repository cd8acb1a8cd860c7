// Package errs provides the structured error taxonomy shared across fetch's
// chunk store, embedding sessions, chunkers, providers and query pipeline.
package errs

import "fmt"

// Kind classifies an error along the taxonomy carried over from the
// original store/index design: caller mistakes, logical no-ops, and the
// various subsystems that can fail.
type Kind string

const (
	// KindCallerError covers invalid vector length, non-filterable
	// attribute, unknown extension, malformed key — never retried.
	KindCallerError Kind = "caller_error"

	// KindSequencing marks a provided modified date that is not strictly
	// newer than what is stored. Logged at info, swallowed by callers.
	KindSequencing Kind = "sequencing"

	// KindIO covers file open/read/write, directory creation failures.
	KindIO Kind = "io"

	// KindChunking covers chunker decode/encode failures, usually fatal
	// for the file being processed.
	KindChunking Kind = "chunking"

	// KindEmbedding covers embedding session failures; Details["variant"]
	// carries the finer-grained variant (Initialization, Preprocessing,
	// Calculation, IO, InvalidType, Unknown).
	KindEmbedding Kind = "embedding"

	// KindStore covers chunk store operation failures (put, clear, query,
	// merge_insert, delete, optimize, connection, table-operation,
	// invalid-parameter); Details["op"] carries the operation name.
	KindStore Kind = "store"

	// KindCursor covers cursor lookup/persistence failures.
	KindCursor Kind = "cursor"

	// KindJoin covers cross-task join failures in a fan-out.
	KindJoin Kind = "join"
)

// Error is the structured error type threaded through every fetch
// component. It carries enough context to log, attribute to a provider,
// and compare with errors.Is.
type Error struct {
	Kind      Kind
	Message   string
	Component string // provider/component name attached per the propagation policy
	Cause     error
	Details   map[string]string
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind around an existing error.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithComponent attaches the emitting provider/component name and returns
// the same error for chaining.
func (e *Error) WithComponent(name string) *Error {
	e.Component = name
	return e
}

// WithDetail attaches a key-value detail and returns the same error for
// chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind, enabling
// errors.Is(err, errs.New(errs.KindSequencing, "")) style checks.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// IsKind reports whether err is an *Error carrying the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}

// InvalidVectorLength builds the caller error for a vector length mismatch.
func InvalidVectorLength(given, expected int) *Error {
	return New(KindCallerError, "invalid vector length").
		WithDetail("given", fmt.Sprintf("%d", given)).
		WithDetail("expected", fmt.Sprintf("%d", expected))
}

// UnavailableFilter builds the caller error for a filter on a non-declared
// attribute.
func UnavailableFilter(attribute string) *Error {
	return New(KindCallerError, "filter attribute not declared").
		WithDetail("attribute", attribute)
}

// Sequencing builds the sequencing no-op error.
func Sequencing(provided, stored uint64) *Error {
	return New(KindSequencing, "provided sequence number is not newer than stored").
		WithDetail("provided", fmt.Sprintf("%d", provided)).
		WithDetail("stored", fmt.Sprintf("%d", stored))
}

// StoreOp wraps a backend error under the given store operation name.
func StoreOp(op string, cause error) *Error {
	return Wrap(KindStore, op, cause).WithDetail("op", op)
}

// Serialization builds the composite-key encoding error.
func Serialization(element string, cause error) *Error {
	return Wrap(KindCallerError, "failed to serialize "+element, cause)
}

// CursorNotFound builds the cursor-not-found client error.
func CursorNotFound(id string) *Error {
	return New(KindCursor, "cursor not found").WithDetail("id", id)
}
