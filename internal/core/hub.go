package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yemishi/chatteroo-server/internal/proto"
)

// DefaultStoreTimeout bounds each collaborator call made by a handler.
const DefaultStoreTimeout = 5 * time.Second

// Deps are the external collaborators of the hub. Any of them may be nil:
// without Messages, send-message fails with delivery_failed; without Chats or
// Users the corresponding enrichment is skipped.
type Deps struct {
	Messages     MessageStore
	Chats        ChatDirectory
	Users        UserDirectory
	StoreTimeout time.Duration
	Now          func() time.Time
}

// Hub routes inbound events to relay handlers and outbound events to sessions.
// It owns the presence registry and the room membership table it was built with.
type Hub struct {
	presence *Presence
	rooms    *Rooms

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool

	handlers     map[string]HandlerFunc
	messages     MessageStore
	chats        ChatDirectory
	users        UserDirectory
	storeTimeout time.Duration
	now          func() time.Time

	bgMu       sync.Mutex
	stopping   bool
	background sync.WaitGroup
	log        *zerolog.Logger
}

// NewHub creates a hub around the given state. Nil presence or rooms are
// replaced with empty ones.
func NewHub(presence *Presence, rooms *Rooms, deps Deps, logger *zerolog.Logger) *Hub {
	if presence == nil {
		presence = NewPresence()
	}
	if rooms == nil {
		rooms = NewRooms()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if deps.StoreTimeout <= 0 {
		deps.StoreTimeout = DefaultStoreTimeout
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	h := &Hub{
		presence:     presence,
		rooms:        rooms,
		sessions:     make(map[string]*Session),
		messages:     deps.Messages,
		chats:        deps.Chats,
		users:        deps.Users,
		storeTimeout: deps.StoreTimeout,
		now:          deps.Now,
		log:          logger,
	}
	h.handlers = h.handlerTable()
	return h
}

// Presence exposes the registry for read-only queries.
func (h *Hub) Presence() *Presence {
	return h.presence
}

// Rooms exposes the membership table for read-only queries.
func (h *Hub) Rooms() *Rooms {
	return h.rooms
}

// OnlineUsers returns the current presence snapshot.
func (h *Hub) OnlineUsers() []string {
	return h.presence.Snapshot()
}

// Attach completes the handshake: the session becomes Active and, when it
// carries a user id, is recorded in presence. Every connected session then
// receives the updated online-users snapshot.
func (h *Hub) Attach(sess *Session) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sess.close()
		return ErrHubStopped
	}
	if !sess.activate() {
		h.mu.Unlock()
		return ErrSessionClosed
	}
	h.sessions[sess.ID] = sess
	if !sess.Anonymous() {
		h.presence.Register(sess.UserID, sess.ID)
	}
	count := len(h.sessions)
	h.mu.Unlock()

	h.log.Info().
		Str("conn_id", sess.ID).
		Str("user_id", sess.UserID).
		Int("sessions", count).
		Msg("session attached")

	h.broadcastOnlineUsers()
	return nil
}

// Detach closes the session, drops it from every room and removes its
// presence entry if it still owns it. Safe to call more than once.
func (h *Hub) Detach(sess *Session) {
	if !sess.close() {
		return
	}

	h.mu.Lock()
	if current, ok := h.sessions[sess.ID]; ok && current == sess {
		delete(h.sessions, sess.ID)
	}
	count := len(h.sessions)
	h.mu.Unlock()

	rooms := h.rooms.LeaveAll(sess.ID)

	removed := false
	if !sess.Anonymous() {
		removed = h.presence.Unregister(sess.UserID, sess.ID)
	}

	h.log.Info().
		Str("conn_id", sess.ID).
		Str("user_id", sess.UserID).
		Int("rooms_left", len(rooms)).
		Bool("presence_removed", removed).
		Int("sessions", count).
		Msg("session detached")

	h.broadcastOnlineUsers()
}

// Dispatch runs the handler registered for name. Callers must dispatch the
// events of one session sequentially to preserve their arrival order.
func (h *Hub) Dispatch(ctx context.Context, sess *Session, name string, data json.RawMessage) error {
	if sess.State() != StateActive {
		return ErrSessionClosed
	}

	handler, ok := h.handlers[name]
	if !ok {
		h.ReplyError(sess, NewCoreError(ErrCodeUnknownEvent, "unknown event: "+name))
		return ErrUnknownEvent
	}

	h.log.Debug().Str("conn_id", sess.ID).Str("event", name).Msg("dispatch")

	err := handler(ctx, sess, data)
	if err == nil {
		return nil
	}

	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		h.ReplyError(sess, coreErr)
	}
	h.log.Warn().Err(err).Str("conn_id", sess.ID).Str("event", name).Msg("handler failed")
	return err
}

// EmitToRoom delivers event to every connection joined to room at the time of
// the call. Returns the number of sessions that accepted it.
func (h *Hub) EmitToRoom(room string, event *Event) int {
	delivered := 0
	for _, connID := range h.rooms.MembersOf(room) {
		if h.EmitToConnection(connID, event) {
			delivered++
		}
	}
	return delivered
}

// EmitToConnection delivers event to one connection. Unknown, closed or
// saturated connections drop it silently.
func (h *Hub) EmitToConnection(connID string, event *Event) bool {
	h.mu.RLock()
	sess, ok := h.sessions[connID]
	h.mu.RUnlock()
	if !ok {
		h.log.Debug().Str("conn_id", connID).Str("event", event.Name).Msg("drop: no such connection")
		return false
	}

	if !sess.deliver(event) {
		h.log.Debug().Str("conn_id", connID).Str("event", event.Name).Msg("drop: session unavailable")
		return false
	}
	return true
}

// EmitToAll delivers event to every connected session.
func (h *Hub) EmitToAll(event *Event) int {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, sess := range sessions {
		if sess.deliver(event) {
			delivered++
		}
	}
	return delivered
}

// Run blocks until ctx is done, then closes every session and waits for
// outstanding background writes.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.bgMu.Lock()
	h.stopping = true
	h.bgMu.Unlock()

	h.mu.Lock()
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.mu.Unlock()

	for _, sess := range sessions {
		h.Detach(sess)
	}

	h.background.Wait()
	h.log.Info().Int("sessions_closed", len(sessions)).Msg("hub stopped")
}

// Wait blocks until background collaborator writes have finished.
func (h *Hub) Wait() {
	h.background.Wait()
}

func (h *Hub) broadcastOnlineUsers() {
	h.EmitToAll(newEvent(proto.EventOnlineUsers, h.presence.Snapshot()))
}

// ReplyError sends err to sess only, as an error event.
func (h *Hub) ReplyError(sess *Session, err *CoreError) bool {
	return sess.deliver(newEvent(proto.EventError, proto.Error{
		Code:     err.Code,
		Msg:      err.Message,
		ClientID: err.ClientID,
	}))
}

// storeContext detaches collaborator calls from the caller's cancellation:
// in-flight handler work is never aborted, only bounded by the store timeout.
func (h *Hub) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), h.storeTimeout)
}

// runBackground runs fn after the handler returns, tracked for shutdown.
// Once the hub is stopping, fn runs inline instead.
func (h *Hub) runBackground(fn func()) {
	h.bgMu.Lock()
	if h.stopping {
		h.bgMu.Unlock()
		fn()
		return
	}
	h.background.Add(1)
	h.bgMu.Unlock()

	go func() {
		defer h.background.Done()
		fn()
	}()
}
