package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	return NewRegistry(func() *Handler {
		return NewHandler(Config{Provider: &plainProvider{reply: "ok"}})
	})
}

func TestRegistry_ResolveIsIdempotent(t *testing.T) {
	r := testRegistry()

	a := r.Resolve("s1")
	b := r.Resolve("s1")
	assert.Same(t, a, b)
	assert.Equal(t, 1, r.Len())

	r.Resolve("s2")
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_ResetClearsHistory(t *testing.T) {
	r := testRegistry()

	h := r.Resolve("s1")
	_, err := h.Chat(context.Background(), "hi")
	require.NoError(t, err)
	require.NotZero(t, h.HistoryLen())

	r.Reset("s1")
	assert.Zero(t, h.HistoryLen())

	// the next turn starts from an empty history precondition
	_, err = h.Chat(context.Background(), "again")
	require.NoError(t, err)
	assert.Equal(t, 2, h.HistoryLen())
}

func TestRegistry_ResetUnknownSessionIsNoop(t *testing.T) {
	r := testRegistry()
	r.Reset("never-seen")
	assert.Zero(t, r.Len(), "reset must not create sessions")
}
