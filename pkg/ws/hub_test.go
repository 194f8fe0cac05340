package ws

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queuedFrames drains everything currently sitting on the connection's
// outbound queue without blocking.
func queuedFrames(c *Connection) []any {
	var out []any
	for {
		select {
		case frame, ok := <-c.sendCh:
			if !ok {
				return out
			}
			out = append(out, frame)
		default:
			return out
		}
	}
}

func newTestConn() *Connection {
	return NewConnection(nil, zerolog.Nop())
}

func TestBroadcastReachesEachMemberOnce(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	a, b := newTestConn(), newTestConn()
	idA, idB := uuid.New(), uuid.New()
	hub.Register(idA, a)
	hub.Register(idB, b)
	hub.Join("room_1", idA)
	hub.Join("room_1", idA) // double join must not double deliver
	hub.Join("room_1", idB)

	require.NoError(t, hub.Broadcast("room_1", "frame"))

	assert.Equal(t, []any{"frame"}, queuedFrames(a))
	assert.Equal(t, []any{"frame"}, queuedFrames(b))
}

func TestBroadcastPreservesOrderPerMember(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	conn := newTestConn()
	id := uuid.New()
	hub.Register(id, conn)
	hub.Join("room_1", id)

	for i := 0; i < 5; i++ {
		require.NoError(t, hub.Broadcast("room_1", i))
	}

	assert.Equal(t, []any{0, 1, 2, 3, 4}, queuedFrames(conn))
}

func TestBroadcastScopedToRoom(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	a, b := newTestConn(), newTestConn()
	idA, idB := uuid.New(), uuid.New()
	hub.Register(idA, a)
	hub.Register(idB, b)
	hub.Join("room_1", idA)
	hub.Join("room_2", idB)

	require.NoError(t, hub.Broadcast("room_1", "frame"))

	assert.Equal(t, []any{"frame"}, queuedFrames(a))
	assert.Empty(t, queuedFrames(b))
}

func TestSendTo(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	conn := newTestConn()
	id := uuid.New()
	hub.Register(id, conn)

	require.NoError(t, hub.SendTo(id, "direct"))
	assert.Equal(t, []any{"direct"}, queuedFrames(conn))

	err := hub.SendTo(uuid.New(), "nowhere")
	assert.ErrorIs(t, err, ErrConnectionNotFound)
}

func TestUnregisterDropsMembershipAndClosesConn(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	conn := newTestConn()
	id := uuid.New()
	hub.Register(id, conn)
	hub.Join("room_1", id)

	hub.Unregister(id)

	assert.Empty(t, hub.Members("room_1"))
	assert.ErrorIs(t, hub.SendTo(id, "frame"), ErrConnectionNotFound)
	assert.ErrorIs(t, conn.Send("frame"), ErrConnectionClosed)

	// Must be safe when the connection is already gone.
	hub.Unregister(id)
}

func TestLeaveKeepsConnectionRegistered(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	conn := newTestConn()
	id := uuid.New()
	hub.Register(id, conn)
	hub.Join("room_1", id)

	hub.Leave("room_1", id)

	assert.Empty(t, hub.Members("room_1"))
	require.NoError(t, hub.SendTo(id, "still here"))
	assert.Equal(t, []any{"still here"}, queuedFrames(conn))
}

func TestSendQueueFull(t *testing.T) {
	conn := newTestConn()

	for i := 0; i < sendQueueSize; i++ {
		require.NoError(t, conn.Send(i))
	}
	assert.ErrorIs(t, conn.Send("overflow"), ErrSendQueueFull)
}
