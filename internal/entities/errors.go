package entities

import (
	"errors"
	"fmt"

	"github.com/gbproject/normgraph/internal/schema"
)

// Code categorizes structural faults. All faults are local and not
// retriable; a call that returns one returns no partial result.
type Code string

const (
	// ErrCodeDanglingReference indicates a reference to an id absent from
	// the target table.
	ErrCodeDanglingReference Code = "DANGLING_REFERENCE"

	// ErrCodeDuplicateIdentifier indicates one id claimed by two entity types.
	ErrCodeDuplicateIdentifier Code = "DUPLICATE_IDENTIFIER"

	// ErrCodeDepthExceeded indicates nesting beyond the configured ceiling.
	ErrCodeDepthExceeded Code = "DEPTH_EXCEEDED"

	// ErrCodeReferenceCycle indicates a reference chain that revisits an
	// entity still being resolved.
	ErrCodeReferenceCycle Code = "REFERENCE_CYCLE"

	// ErrCodeMissingIdentifier indicates an occurrence without an id.
	ErrCodeMissingIdentifier Code = "MISSING_IDENTIFIER"

	// ErrCodeMalformedOccurrence indicates a document value not shaped as
	// the graph declares.
	ErrCodeMalformedOccurrence Code = "MALFORMED_OCCURRENCE"

	// ErrCodeMalformedReference indicates a stored reference not shaped as
	// the graph declares.
	ErrCodeMalformedReference Code = "MALFORMED_REFERENCE"

	// ErrCodeUnknownType indicates a type the graph does not declare.
	ErrCodeUnknownType Code = "UNKNOWN_TYPE"
)

// Error is a structural fault found while normalizing or denormalizing.
type Error struct {
	// Code identifies the fault category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Type and ID identify the entity involved, when there is one.
	Type schema.EntityType
	ID   string

	// Path locates the fault: a document path during normalization
	// (scenes[0].actors[1].script[0]) or a referrer path during
	// denormalization (triggers:t1.script[0]).
	Path string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf returns the Code of err, or "" if err is not an *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsDanglingReference reports whether err is a dangling-reference fault.
func IsDanglingReference(err error) bool {
	return CodeOf(err) == ErrCodeDanglingReference
}

// IsDuplicateIdentifier reports whether err is a cross-type identifier clash.
func IsDuplicateIdentifier(err error) bool {
	return CodeOf(err) == ErrCodeDuplicateIdentifier
}

// IsDepthExceeded reports whether err is a depth-exceeded fault.
func IsDepthExceeded(err error) bool {
	return CodeOf(err) == ErrCodeDepthExceeded
}

// IsReferenceCycle reports whether err is a reference-cycle fault.
func IsReferenceCycle(err error) bool {
	return CodeOf(err) == ErrCodeReferenceCycle
}

func newDanglingError(t schema.EntityType, id, referrer string) *Error {
	return &Error{
		Code:    ErrCodeDanglingReference,
		Message: fmt.Sprintf("%s %q not found", t, id),
		Type:    t,
		ID:      id,
		Path:    referrer,
	}
}

func newDuplicateError(t, owner schema.EntityType, id, path string) *Error {
	return &Error{
		Code:    ErrCodeDuplicateIdentifier,
		Message: fmt.Sprintf("id %q is claimed by %s and %s", id, owner, t),
		Type:    t,
		ID:      id,
		Path:    path,
	}
}

func newDepthError(depth, limit int, path string) *Error {
	return &Error{
		Code:    ErrCodeDepthExceeded,
		Message: fmt.Sprintf("nesting depth %d exceeds limit %d", depth, limit),
		Path:    path,
	}
}

func newCycleError(t schema.EntityType, id, referrer string) *Error {
	return &Error{
		Code:    ErrCodeReferenceCycle,
		Message: fmt.Sprintf("%s %q references itself through its own subtree", t, id),
		Type:    t,
		ID:      id,
		Path:    referrer,
	}
}

func newMissingIDError(t schema.EntityType, idField, path string) *Error {
	return &Error{
		Code:    ErrCodeMissingIdentifier,
		Message: fmt.Sprintf("%s occurrence has no %q field", t, idField),
		Type:    t,
		Path:    path,
	}
}

func newMalformedOccurrence(t schema.EntityType, msg, path string) *Error {
	return &Error{
		Code:    ErrCodeMalformedOccurrence,
		Message: msg,
		Type:    t,
		Path:    path,
	}
}

func newMalformedReference(t schema.EntityType, msg, path string) *Error {
	return &Error{
		Code:    ErrCodeMalformedReference,
		Message: msg,
		Type:    t,
		Path:    path,
	}
}

func newUnknownTypeError(t schema.EntityType) *Error {
	return &Error{
		Code:    ErrCodeUnknownType,
		Message: fmt.Sprintf("entity type %q is not declared by the schema", t),
		Type:    t,
	}
}
