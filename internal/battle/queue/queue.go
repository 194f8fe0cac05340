// Package queue implements the per-topic matchmaking FIFO.
//
// Each topic owns one list of pending room ids. A host pushes its room id
// when no opponent is available; the next guest pops it. Hosts that
// disconnect before pairing are marked cancelled under their room id, and
// PopLive discards such entries until it finds a live room or exhausts
// the list.
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/quizbattle/battle-server/internal/store"
)

// ErrEmptyQueue signals that no live room is pending for the topic; the
// caller becomes the new host.
var ErrEmptyQueue = errors.New("queue: no waiting room")

const cancelledMark = "1"

// Queue is the shared matchmaking queue, backed by an injected KV so
// multiple server instances can pair against the same waiting lists.
type Queue struct {
	kv      store.KV
	logger  zerolog.Logger
	skipped func() // invoked once per discarded cancelled entry
}

// New creates a queue on top of kv. onSkip may be nil; when set it is
// called for every cancelled entry discarded during PopLive.
func New(kv store.KV, logger zerolog.Logger, onSkip func()) *Queue {
	return &Queue{
		kv:      kv,
		logger:  logger.With().Str("component", "matchmaking_queue").Logger(),
		skipped: onSkip,
	}
}

// TopicKey returns the waiting-list key for a topic.
func TopicKey(topic string) string {
	return topic + "_waiting"
}

// Enqueue appends roomID to the topic's FIFO.
func (q *Queue) Enqueue(ctx context.Context, topic, roomID string) error {
	if err := q.kv.RPush(ctx, TopicKey(topic), roomID); err != nil {
		return fmt.Errorf("enqueue room: %w", err)
	}
	q.logger.Debug().Str("topic", topic).Str("room_id", roomID).Msg("room enqueued")
	return nil
}

// MarkCancelled records that roomID's host left before pairing. Any
// later pop of this id must discard it.
func (q *Queue) MarkCancelled(ctx context.Context, roomID string) error {
	if err := q.kv.Set(ctx, roomID, cancelledMark); err != nil {
		return fmt.Errorf("mark cancelled: %w", err)
	}
	return nil
}

// IsCancelled reports whether roomID carries a cancellation marker.
func (q *Queue) IsCancelled(ctx context.Context, roomID string) (bool, error) {
	_, err := q.kv.Get(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check cancelled: %w", err)
	}
	return true, nil
}

// ClearCancelled removes the cancellation marker for roomID.
func (q *Queue) ClearCancelled(ctx context.Context, roomID string) error {
	if err := q.kv.Del(ctx, roomID); err != nil {
		return fmt.Errorf("clear cancelled: %w", err)
	}
	return nil
}

// PopLive pops the oldest non-cancelled room id for the topic. Cancelled
// entries are discarded along with their markers, preserving FIFO order
// among live hosts. Returns ErrEmptyQueue when the list runs out.
func (q *Queue) PopLive(ctx context.Context, topic string) (string, error) {
	key := TopicKey(topic)
	for {
		roomID, err := q.kv.LPop(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrEmptyQueue
		}
		if err != nil {
			return "", fmt.Errorf("pop room: %w", err)
		}

		cancelled, err := q.IsCancelled(ctx, roomID)
		if err != nil {
			return "", err
		}
		if !cancelled {
			return roomID, nil
		}

		q.logger.Debug().Str("topic", topic).Str("room_id", roomID).Msg("skipping cancelled room")
		if err := q.ClearCancelled(ctx, roomID); err != nil {
			return "", err
		}
		if q.skipped != nil {
			q.skipped()
		}
	}
}
