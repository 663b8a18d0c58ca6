package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWelcome(t *testing.T) {
	assert.Equal(t, "Bienvenido/a Marta", Identity{Authenticated: true, DisplayName: " Marta "}.Welcome())
	assert.Equal(t, "Bienvenido/a", Identity{Authenticated: true}.Welcome())
	assert.Empty(t, Identity{DisplayName: "Marta"}.Welcome())
}

func TestContextRoundTrip(t *testing.T) {
	assert.Equal(t, Identity{}, FromContext(context.Background()))

	id := Identity{Authenticated: true, DisplayName: "Marta"}
	assert.Equal(t, id, FromContext(WithIdentity(context.Background(), id)))
}
