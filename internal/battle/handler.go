package battle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quizbattle/battle-server/internal/battle/queue"
	"github.com/quizbattle/battle-server/internal/problem"
	"github.com/quizbattle/battle-server/internal/server"
	"github.com/quizbattle/battle-server/internal/user"
	"github.com/quizbattle/battle-server/pkg/ws"
)

// Options tunes the battle handler.
type Options struct {
	// ProblemsPerMatch is how many problems each round draws. Zero falls
	// back to 5, the round size the clients were built around.
	ProblemsPerMatch int
}

// Handler owns the battle WebSocket endpoint: it pairs connections
// through the queue and registry, drives each connection's session state
// machine, and relays gameplay events through the hub.
type Handler struct {
	queue    *queue.Queue
	registry *Registry
	source   problem.Source
	users    user.Directory
	rand     *problem.Randomizer
	hub      *ws.Hub
	logger   zerolog.Logger
	perMatch int

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewHandler wires the battle endpoint's dependencies.
func NewHandler(
	q *queue.Queue,
	registry *Registry,
	source problem.Source,
	users user.Directory,
	rand *problem.Randomizer,
	hub *ws.Hub,
	opts Options,
	logger zerolog.Logger,
) *Handler {
	perMatch := opts.ProblemsPerMatch
	if perMatch <= 0 {
		perMatch = 5
	}
	return &Handler{
		queue:    q,
		registry: registry,
		source:   source,
		users:    users,
		rand:     rand,
		hub:      hub,
		logger:   logger.With().Str("component", "battle_handler").Logger(),
		perMatch: perMatch,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// ServeWS upgrades the request and runs the connection to completion.
// Connect parameters arrive as query values: user (required), challenge
// (required), level (optional difficulty ceiling, default 0).
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("user")
	topic := r.URL.Query().Get("challenge")
	levelParam := r.URL.Query().Get("level")

	conn, err := server.WSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	connID := uuid.New()
	wsConn := ws.NewConnection(conn, h.logger)
	h.hub.Register(connID, wsConn)
	go wsConn.WritePump()

	activeConnections.Inc()
	defer activeConnections.Dec()

	sess := NewSession(connID, username)
	h.addSession(sess)
	// Disconnect bookkeeping runs on this path no matter which error
	// closed the connection, so no other connection can pop a ghost room
	// after this one is gone.
	defer h.teardown(context.Background(), sess)

	if err := h.connect(context.Background(), sess, username, topic, levelParam); err != nil {
		h.logger.Warn().Err(err).Str("user", username).Str("topic", topic).Msg("connect rejected")
		return
	}

	wsConn.ReadPump(func(raw json.RawMessage) error {
		return h.handleMessage(context.Background(), sess, raw)
	})
}

// connect validates parameters and runs the pairing protocol: pop a live
// room and become the guest, or register a new room and wait as host.
func (h *Handler) connect(ctx context.Context, sess *Session, username, topic, levelParam string) error {
	if username == "" {
		return h.reject(sess, "user is not provided in url")
	}
	if topic == "" {
		return h.reject(sess, "challenge is not provided in url")
	}

	level := 0
	if levelParam != "" {
		parsed, err := strconv.Atoi(levelParam)
		if err != nil {
			return h.reject(sess, fmt.Sprintf("level '%s' is not an integer", levelParam))
		}
		level = parsed
	}

	for {
		roomID, err := h.queue.PopLive(ctx, topic)
		if errors.Is(err, queue.ErrEmptyQueue) {
			return h.becomeHost(ctx, sess, topic)
		}
		if err != nil {
			return h.reject(sess, "matchmaking is unavailable, try again")
		}

		done, err := h.joinAsGuest(ctx, sess, topic, level, roomID)
		if done {
			return err
		}
		// Stale entry (no host binding); keep looking.
	}
}

// becomeHost registers a new room, parks the session in the waiting
// queue and acknowledges with a wait frame. The hub join happens before
// the enqueue so the host cannot miss the start broadcast of a guest
// that pops the room immediately.
func (h *Handler) becomeHost(ctx context.Context, sess *Session, topic string) error {
	roomID, err := h.registry.Create(ctx, topic, sess.UserID)
	if err != nil {
		h.logger.Error().Err(err).Msg("room create failed")
		return h.reject(sess, "matchmaking is unavailable, try again")
	}

	sess.BindRoom(roomID, true)
	h.hub.Join(roomID, sess.ConnID)

	if _, err := sess.Apply(EventWait); err != nil {
		return h.reject(sess, "connection is in an unexpected state")
	}

	if err := h.hub.SendTo(sess.ConnID, ws.WaitFrame{Type: ws.TypeWait}); err != nil {
		return fmt.Errorf("send wait frame: %w", err)
	}

	if err := h.queue.Enqueue(ctx, topic, roomID); err != nil {
		h.logger.Error().Err(err).Str("room_id", roomID).Msg("enqueue failed")
		return h.reject(sess, "matchmaking is unavailable, try again")
	}

	h.logger.Info().Str("room_id", roomID).Str("user", sess.UserID).Str("topic", topic).Msg("hosting room")
	return nil
}

// joinAsGuest completes the pairing side effects for a popped room in
// the order the protocol requires: problems ready, matched recorded,
// peer sessions transitioned, one start_game broadcast, host binding
// cleared. Returns done=false when the room is stale and the pop loop
// should continue.
func (h *Handler) joinAsGuest(ctx context.Context, sess *Session, topic string, level int, roomID string) (bool, error) {
	host, err := h.registry.Host(ctx, roomID)
	if errors.Is(err, ErrNoHost) {
		h.logger.Warn().Str("room_id", roomID).Msg("popped room without host binding, skipping")
		return false, nil
	}
	if err != nil {
		h.requeue(ctx, topic, roomID)
		return true, h.reject(sess, "matchmaking is unavailable, try again")
	}

	pool, err := h.source.Problems(ctx, topic, level)
	if err != nil {
		// The host is still waiting; hand the room back to the queue
		// before closing this connection.
		h.requeue(ctx, topic, roomID)
		var unknown *problem.UnknownTopicError
		if errors.As(err, &unknown) {
			return true, h.reject(sess, unknown.Error())
		}
		h.logger.Error().Err(err).Str("topic", topic).Msg("problem source failed")
		return true, h.reject(sess, "problems are unavailable, try again")
	}

	hostUser, err := h.users.GetOrCreate(ctx, host)
	if err == nil {
		var guestUser user.User
		guestUser, err = h.users.GetOrCreate(ctx, sess.UserID)
		if err == nil {
			return true, h.startRound(ctx, sess, topic, roomID, pool, hostUser, guestUser)
		}
	}

	h.requeue(ctx, topic, roomID)
	h.logger.Error().Err(err).Str("room_id", roomID).Msg("user directory failed")
	return true, h.reject(sess, "matchmaking is unavailable, try again")
}

func (h *Handler) startRound(ctx context.Context, sess *Session, topic, roomID string, pool []problem.Problem, hostUser, guestUser user.User) error {
	sess.BindRoom(roomID, false)
	h.hub.Join(roomID, sess.ConnID)

	if _, err := sess.Apply(EventPaired); err != nil {
		return h.reject(sess, "connection is in an unexpected state")
	}

	if err := h.registry.SetMatched(ctx, roomID); err != nil {
		h.logger.Error().Err(err).Str("room_id", roomID).Msg("set matched failed")
	}
	h.notifyPeerJoined(roomID)

	problems := h.rand.DrawRandomized(pool, h.perMatch)
	frames := make([]ws.ProblemFrame, len(problems))
	for i, p := range problems {
		frames[i] = ws.ProblemFrame{
			Problem: p.Text,
			Options: p.Options,
			Answer:  p.Answer,
		}
	}

	start := ws.StartGameFrame{
		Type:      ws.TypeStartGame,
		Problems:  frames,
		Usernames: []string{hostUser.Username, guestUser.Username},
		Names:     []string{hostUser.Name, guestUser.Name},
	}
	if err := h.hub.Broadcast(roomID, start); err != nil {
		h.logger.Warn().Err(err).Str("room_id", roomID).Msg("start broadcast incomplete")
	}

	// The room has served its purpose; clear the binding so the id can
	// never be reused against a finished match.
	if err := h.registry.DeleteHost(ctx, roomID); err != nil {
		h.logger.Warn().Err(err).Str("room_id", roomID).Msg("delete host binding failed")
	}

	matchesStarted.WithLabelValues(topic).Inc()
	h.logger.Info().
		Str("room_id", roomID).
		Str("host", hostUser.Username).
		Str("guest", guestUser.Username).
		Int("problems", len(problems)).
		Msg("round started")
	return nil
}

// handleMessage processes one inbound frame. Any returned error closes
// the connection; the read pump stops and teardown runs.
func (h *Handler) handleMessage(ctx context.Context, sess *Session, raw json.RawMessage) error {
	var msg AnswerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return h.reject(sess, "message is not valid json")
	}
	if msg.Type == nil {
		return h.reject(sess, "required field 'type' is missing")
	}
	if *msg.Type != ws.TypeAnswer {
		return h.reject(sess, fmt.Sprintf("invalid message type '%s'", *msg.Type))
	}

	// Gameplay is only legal once both peers share a room; anything else
	// is protocol confusion and ends the connection.
	if state := sess.State(); state != StateMatched {
		return h.reject(sess, fmt.Sprintf("answer not allowed in state '%s'", state))
	}

	if msg.UserID == nil {
		return h.reject(sess, "required field 'userID' is missing")
	}
	if msg.Score == nil {
		return h.reject(sess, "required field 'score' is missing")
	}

	// Relay verbatim to every member including the sender; clients
	// reconcile the score locally, the server does not validate it.
	relay := ws.AnswerFrame{
		Type:         ws.TypeAnswer,
		AnsweredUser: *msg.UserID,
		OptionIndex:  msg.OptionIndex,
		AddedScore:   *msg.Score,
	}
	if err := h.hub.Broadcast(sess.RoomID(), relay); err != nil {
		h.logger.Warn().Err(err).Str("room_id", sess.RoomID()).Msg("answer relay incomplete")
	}
	answersRelayed.Inc()
	return nil
}

// teardown is the guaranteed disconnect path. A host that never matched
// leaves a cancellation marker behind so the queue skips its room; a
// matched or unmatched session just cleans up.
func (h *Handler) teardown(ctx context.Context, sess *Session) {
	prev, err := sess.Apply(EventDisconnect)
	if err != nil {
		// A fault already closed the machine; use the state it left.
		prev = sess.ClosedFrom()
	}

	roomID := sess.RoomID()
	if prev == StateWaiting && roomID != "" {
		matched, mErr := h.registry.IsMatched(ctx, roomID)
		if mErr != nil {
			h.logger.Error().Err(mErr).Str("room_id", roomID).Msg("matched check failed during teardown")
		}
		if !matched {
			if err := h.queue.MarkCancelled(ctx, roomID); err != nil {
				h.logger.Error().Err(err).Str("room_id", roomID).Msg("record cancellation failed")
			}
			if err := h.registry.DeleteHost(ctx, roomID); err != nil {
				h.logger.Warn().Err(err).Str("room_id", roomID).Msg("delete host binding failed")
			}
			roomsCancelled.Inc()
			h.logger.Info().Str("room_id", roomID).Str("user", sess.UserID).Msg("room cancelled")
		}
	}

	h.hub.Unregister(sess.ConnID)
	h.removeSession(sess.ConnID)

	// Last one out clears the matched flag so the store does not collect
	// markers for finished rooms.
	if roomID != "" && len(h.hub.Members(roomID)) == 0 {
		if err := h.registry.ClearMatched(ctx, roomID); err != nil {
			h.logger.Warn().Err(err).Str("room_id", roomID).Msg("clear matched failed")
		}
	}
}

// reject sends a best-effort error frame, faults the session and returns
// an error that terminates the connection.
func (h *Handler) reject(sess *Session, msg string) error {
	if err := h.hub.SendTo(sess.ConnID, ws.ErrorFrame{Error: msg}); err != nil {
		h.logger.Debug().Err(err).Msg("error frame not delivered")
	}
	if _, err := sess.Apply(EventFault); err != nil {
		h.logger.Debug().Err(err).Msg("fault on closed session")
	}
	return errors.New(msg)
}

func (h *Handler) requeue(ctx context.Context, topic, roomID string) {
	if err := h.queue.Enqueue(ctx, topic, roomID); err != nil {
		h.logger.Error().Err(err).Str("room_id", roomID).Msg("requeue failed, waiting host is stranded")
	}
}

// notifyPeerJoined applies the matched signal to every member session of
// the room, so the waiting host leaves WAITING through its own state
// machine rather than by a flag flipped from outside.
func (h *Handler) notifyPeerJoined(roomID string) {
	for _, connID := range h.hub.Members(roomID) {
		sess := h.sessionByConn(connID)
		if sess == nil {
			continue
		}
		if _, err := sess.Apply(EventPeerJoined); err != nil {
			h.logger.Debug().Err(err).Str("room_id", roomID).Msg("peer joined signal ignored")
		}
	}
}

func (h *Handler) addSession(sess *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[sess.ConnID] = sess
}

func (h *Handler) removeSession(connID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, connID)
}

func (h *Handler) sessionByConn(connID uuid.UUID) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[connID]
}
