package api

import (
	"context"
)

// Principal is the identity carried by a validated bearer token.
type Principal struct {
	ID       string
	Username string
}

// Authenticator is implemented by types able to validate an Authorization
// header value and return the identity it carries.
type Authenticator interface {
	PrincipalFromAuthHeader(string) (Principal, error)
}

// Deduper prevents the same create form from being submitted twice.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when the create fails.
	Remove(ctx context.Context, userID, key string) error
}

// validationResponse is rendered with 422 when a form is rejected.
type validationResponse struct {
	Form   any               `json:"form"`
	Errors map[string]string `json:"errors"`
}
