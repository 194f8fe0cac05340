package battle

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizbattle/battle-server/internal/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(store.NewMemory(), zerolog.Nop())
}

func TestRoomIDShape(t *testing.T) {
	id := RoomID("biology", "user1")
	assert.True(t, strings.HasPrefix(id, "room_"), "room id %q missing prefix", id)
	assert.True(t, strings.HasSuffix(id, "_biology_waiting"), "room id %q missing topic suffix", id)

	// Stable for the same inputs, distinct across hosts.
	assert.Equal(t, id, RoomID("biology", "user1"))
	assert.NotEqual(t, id, RoomID("biology", "user2"))
	assert.NotEqual(t, id, RoomID("sanrio", "user1"))
}

func TestRegistryHostBinding(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	roomID, err := reg.Create(ctx, "biology", "user1")
	require.NoError(t, err)

	host, err := reg.Host(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, "user1", host)

	require.NoError(t, reg.DeleteHost(ctx, roomID))
	_, err = reg.Host(ctx, roomID)
	assert.ErrorIs(t, err, ErrNoHost)
}

func TestRegistryHostUnknownRoom(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.Host(context.Background(), "room_0_biology_waiting")
	assert.ErrorIs(t, err, ErrNoHost)
}

func TestRegistryMatchedFlag(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	roomID, err := reg.Create(ctx, "biology", "user1")
	require.NoError(t, err)

	matched, err := reg.IsMatched(ctx, roomID)
	require.NoError(t, err)
	assert.False(t, matched)

	require.NoError(t, reg.SetMatched(ctx, roomID))
	matched, err = reg.IsMatched(ctx, roomID)
	require.NoError(t, err)
	assert.True(t, matched)

	require.NoError(t, reg.ClearMatched(ctx, roomID))
	matched, err = reg.IsMatched(ctx, roomID)
	require.NoError(t, err)
	assert.False(t, matched)
}
