package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned on read paths when the entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrBadRequest is returned when an identifier is malformed or refers to nothing.
	ErrBadRequest = errors.New("bad request")
	// ErrUnauthorized is returned when the requester may not act on the entity.
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError carries the submitted form back to the caller so it can be
// shown again together with the field errors.
type ValidationError struct {
	Form   TaskForm
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
