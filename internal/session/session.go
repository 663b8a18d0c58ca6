// Package session carries the identity of the staff member behind a
// request. Credentials are checked upstream; this package only transports
// the outcome.
package session

import (
	"context"
	"strings"
)

type contextKey struct{}

// Identity is what the identity provider tells us about the caller.
type Identity struct {
	Authenticated bool   `json:"authenticated"`
	DisplayName   string `json:"display_name"`
}

// Welcome is the greeting shown to an authenticated staff member.
func (i Identity) Welcome() string {
	if !i.Authenticated {
		return ""
	}
	name := strings.TrimSpace(i.DisplayName)
	if name == "" {
		return "Bienvenido/a"
	}
	return "Bienvenido/a " + name
}

// WithIdentity stores id on ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the request identity; the zero Identity is anonymous.
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(contextKey{}).(Identity)
	return id
}
