package battle

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/rs/zerolog"

	"github.com/quizbattle/battle-server/internal/battle/queue"
	"github.com/quizbattle/battle-server/internal/store"
)

// ErrNoHost is returned when a room has no host binding, typically
// because the match already completed and the binding was cleared.
var ErrNoHost = errors.New("battle: room has no host")

const (
	roomPrefix  = "room"
	hostSuffix  = "_host"
	matchedMark = "_matched"
)

// Registry tracks room state shared across connections: the host binding
// written at creation and the matched flag consulted by disconnect
// handling. It lives on the same KV as the queue so the two stay
// consistent across server instances.
type Registry struct {
	kv     store.KV
	logger zerolog.Logger
}

// NewRegistry creates a room registry on top of kv.
func NewRegistry(kv store.KV, logger zerolog.Logger) *Registry {
	return &Registry{
		kv:     kv,
		logger: logger.With().Str("component", "room_registry").Logger(),
	}
}

// RoomID derives the room identifier for a host on a topic. The id is
// stable for lookup; hash collisions between hosts degrade to sharing a
// room id, which the pairing flow tolerates.
func RoomID(topic, hostUser string) string {
	h := fnv.New64a()
	h.Write([]byte(hostUser))
	return fmt.Sprintf("%s_%d_%s", roomPrefix, h.Sum64(), queue.TopicKey(topic))
}

// Create derives the room id for (topic, hostUser) and stores the host
// binding. The caller still has to enqueue the id itself.
func (r *Registry) Create(ctx context.Context, topic, hostUser string) (string, error) {
	roomID := RoomID(topic, hostUser)
	if err := r.kv.Set(ctx, roomID+hostSuffix, hostUser); err != nil {
		return "", fmt.Errorf("store host binding: %w", err)
	}
	r.logger.Debug().Str("room_id", roomID).Str("host", hostUser).Msg("room created")
	return roomID, nil
}

// Host returns the user bound as host of roomID.
func (r *Registry) Host(ctx context.Context, roomID string) (string, error) {
	host, err := r.kv.Get(ctx, roomID+hostSuffix)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNoHost
	}
	if err != nil {
		return "", fmt.Errorf("get host binding: %w", err)
	}
	return host, nil
}

// DeleteHost clears the host binding once matching completed or the room
// was cancelled, preventing stale reuse of the binding.
func (r *Registry) DeleteHost(ctx context.Context, roomID string) error {
	if err := r.kv.Del(ctx, roomID+hostSuffix); err != nil {
		return fmt.Errorf("delete host binding: %w", err)
	}
	return nil
}

// SetMatched records that a second peer joined roomID.
func (r *Registry) SetMatched(ctx context.Context, roomID string) error {
	if err := r.kv.Set(ctx, roomID+matchedMark, "1"); err != nil {
		return fmt.Errorf("set matched: %w", err)
	}
	return nil
}

// IsMatched reports whether roomID has been matched.
func (r *Registry) IsMatched(ctx context.Context, roomID string) (bool, error) {
	_, err := r.kv.Get(ctx, roomID+matchedMark)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get matched: %w", err)
	}
	return true, nil
}

// ClearMatched removes the matched flag when a finished room is torn down.
func (r *Registry) ClearMatched(ctx context.Context, roomID string) error {
	if err := r.kv.Del(ctx, roomID+matchedMark); err != nil {
		return fmt.Errorf("clear matched: %w", err)
	}
	return nil
}
