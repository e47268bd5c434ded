package colmeia

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidID means the id is not a 24-character hex ObjectID
	ErrInvalidID = errors.New("invalid colmeia id")

	// ErrNotFound means no colmeia has the requested id
	ErrNotFound = errors.New("colmeia not found")

	// ErrDuplicateKey means another colmeia already uses the identifier
	ErrDuplicateKey = errors.New("colmeia identifier already exists")

	// ErrInternal wraps any unexpected store failure
	ErrInternal = errors.New("colmeia store failure")
)

// Field error kinds
const (
	KindRequired = "required"
	KindMin      = "min"
	KindCast     = "cast"
)

// FieldError describes one rejected field
type FieldError struct {
	Message string
	Path    string
	Kind    string
}

// FieldErrors is keyed by field path
type FieldErrors map[string]FieldError

// ValidationError is returned when input fails field validation
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	paths := make([]string, 0, len(e.Fields))
	for path := range e.Fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	parts := make([]string, 0, len(paths))
	for _, path := range paths {
		parts = append(parts, fmt.Sprintf("%s: %s", path, e.Fields[path].Message))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// NewCastError reports a value that could not be decoded into the field's type.
// An empty path means the body itself was unreadable.
func NewCastError(path string) *ValidationError {
	if path == "" {
		path = "body"
	}
	return &ValidationError{Fields: FieldErrors{
		path: {
			Message: fmt.Sprintf("Valor inválido para o campo %s.", path),
			Path:    path,
			Kind:    KindCast,
		},
	}}
}
