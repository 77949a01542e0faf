package store

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

var (
	// ErrNotFound reports a missing user where absence is an error.
	ErrNotFound = errors.New("user not found")
	// ErrMissingSearchTerm reports an empty or whitespace-only search query.
	ErrMissingSearchTerm = errors.New("missing search term")
	// ErrNotConnected reports an operation on an adapter before Connect.
	ErrNotConnected = errors.New("store: not connected")
	// ErrAlreadyConnected reports a second Connect without Disconnect.
	ErrAlreadyConnected = errors.New("store: already connected")
)

// FieldError is one invalid field inside a ValidationError.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError aggregates per-field failures for a create request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// UserExistsError reports a unique-constraint collision on create.
// Field names the colliding attribute when the backend can tell.
type UserExistsError struct {
	Field string
}

func (e *UserExistsError) Error() string {
	if e.Field == "" {
		return "user already exists"
	}
	return fmt.Sprintf("user with this %s already exists", e.Field)
}

// ValidateCreate applies the backend-independent constraints on signup fields:
// every field required and non-empty after trimming, email well-formed.
// Adapters call this before their native insert; backend-level constraints
// (unique indexes) still apply afterwards.
func ValidateCreate(f *CreateFields) error {
	var verr ValidationError
	f.Firstname = strings.TrimSpace(f.Firstname)
	f.Lastname = strings.TrimSpace(f.Lastname)
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)

	require := func(field, value string) {
		if value == "" {
			verr.Fields = append(verr.Fields, FieldError{Field: field, Message: "is required"})
		}
	}
	require("firstname", f.Firstname)
	require("lastname", f.Lastname)
	require("username", f.Username)
	require("email", f.Email)
	require("password", f.Password)

	if f.Email != "" {
		if _, err := mail.ParseAddress(f.Email); err != nil {
			verr.Fields = append(verr.Fields, FieldError{Field: "email", Message: "must be a valid email"})
		}
	}
	if len(verr.Fields) > 0 {
		return &verr
	}
	return nil
}
