package core

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/yemishi/chatteroo-server/internal/proto"
	"github.com/yemishi/chatteroo-server/internal/store"
)

func (h *Hub) handleSubscribe(_ context.Context, sess *Session, data json.RawMessage) error {
	room, err := proto.DecodeRoomID(data)
	if err != nil {
		return badRequest("subscribe: room id is required", err)
	}
	if h.join(sess, room) {
		h.log.Debug().Str("conn_id", sess.ID).Str("room", room).Msg("subscribed")
	}
	return nil
}

// join adds sess to room, undoing it if the session closed concurrently so a
// detached connection never lingers in the table.
func (h *Hub) join(sess *Session, room string) bool {
	if !h.rooms.Join(sess.ID, room) {
		return false
	}
	if sess.State() != StateActive {
		h.rooms.Leave(sess.ID, room)
		return false
	}
	return true
}

func (h *Hub) handleUnsubscribe(_ context.Context, sess *Session, data json.RawMessage) error {
	room, err := proto.DecodeRoomID(data)
	if err != nil {
		return badRequest("unsubscribe: room id is required", err)
	}
	if h.rooms.Leave(sess.ID, room) {
		h.log.Debug().Str("conn_id", sess.ID).Str("room", room).Msg("unsubscribed")
	}
	return nil
}

func (h *Hub) handleSubscribeAll(_ context.Context, sess *Session, data json.RawMessage) error {
	var rooms []string
	if err := json.Unmarshal(data, &rooms); err != nil {
		return badRequest("subscribe-all: expected a list of room ids", err)
	}

	joined := 0
	for _, room := range rooms {
		room = strings.TrimSpace(room)
		if room == "" {
			continue
		}
		if h.join(sess, room) {
			joined++
		}
	}
	h.log.Debug().Str("conn_id", sess.ID).Int("rooms", joined).Msg("subscribed to all")
	return nil
}

// handleGetOnlineUsers answers only the requesting session.
func (h *Hub) handleGetOnlineUsers(_ context.Context, sess *Session, _ json.RawMessage) error {
	sess.deliver(newEvent(proto.EventOnlineUsers, h.presence.Snapshot()))
	return nil
}

// typingHandler relays typing state to an explicit recipient list. Nothing is
// stored and the room is never broadcast to.
func (h *Hub) typingHandler(outbound string) HandlerFunc {
	return func(_ context.Context, sess *Session, data json.RawMessage) error {
		var p proto.TypingData
		if err := json.Unmarshal(data, &p); err != nil {
			return badRequest(outbound+": invalid payload", err)
		}
		if p.UserID == "" {
			p.UserID = sess.UserID
		}

		event := newEvent(outbound, proto.EventTyping{RoomID: p.RoomID, UserID: p.UserID})
		for _, userID := range p.RecipientIDs {
			connID, ok := h.presence.Lookup(userID)
			if !ok || connID == sess.ID {
				continue
			}
			h.EmitToConnection(connID, event)
		}
		return nil
	}
}

// handleEditMessage is a live refresh only; edits are persisted elsewhere.
func (h *Hub) handleEditMessage(_ context.Context, _ *Session, data json.RawMessage) error {
	var p proto.EditMessageData
	if err := json.Unmarshal(data, &p); err != nil {
		return badRequest("edit-message: invalid payload", err)
	}
	if p.ChatRoom == "" {
		return badRequest("edit-message: chatRoom is required", nil)
	}

	h.EmitToRoom(p.ChatRoom, newEvent(proto.EventUpdateMessage, p.Message))
	return nil
}

func (h *Hub) handleDisconnect(_ context.Context, sess *Session, _ json.RawMessage) error {
	h.Detach(sess)
	return nil
}

// handleSendMessage persists, then delivers.
//
// Delivery policy: the broadcast waits for the append only because the
// payload needs the generated id. Touching the chat's last activity is
// never awaited and its failure never affects delivery.
func (h *Hub) handleSendMessage(ctx context.Context, sess *Session, data json.RawMessage) error {
	var p proto.SendMessageData
	if err := json.Unmarshal(data, &p); err != nil {
		return badRequest("send-message: invalid payload", err)
	}

	msg := &InFlightMessage{
		Room:          strings.TrimSpace(p.Message.Room),
		SenderID:      p.Message.SenderID,
		SenderName:    p.Message.SenderName,
		SenderPicture: p.Message.SenderPicture,
		Content:       p.Message.Content,
		ClientID:      p.Message.ClientID,
		Timestamp:     h.now().UTC(),
	}
	if !sess.Anonymous() {
		msg.SenderID = sess.UserID
	}
	if msg.Room == "" {
		return &CoreError{Code: ErrCodeBadRequest, Message: "send-message: room is required", ClientID: msg.ClientID, Err: ErrBadPayload}
	}
	if msg.SenderID == "" {
		return &CoreError{Code: ErrCodeNotIdentified, Message: "send-message: sender is unknown", ClientID: msg.ClientID}
	}

	if err := h.persist(ctx, msg); err != nil {
		h.log.Error().Err(err).
			Str("conn_id", sess.ID).
			Str("room", msg.Room).
			Str("user_id", msg.SenderID).
			Msg("message append failed")
		return &CoreError{
			Code:     ErrCodeDeliveryFailed,
			Message:  "message could not be saved",
			ClientID: msg.ClientID,
			Err:      err,
		}
	}

	h.enrichSender(ctx, msg)

	delivered := h.EmitToRoom(msg.Room, msg.messageEvent())

	summary := msg.chatUpdatedEvent()
	toast := msg.toastEvent()
	for _, userID := range h.recipients(ctx, msg.Room, msg.SenderID, p.MembersID) {
		connID, ok := h.presence.Lookup(userID)
		if !ok {
			continue
		}
		h.EmitToConnection(connID, summary)
		if connID != sess.ID && !h.rooms.IsMember(connID, msg.Room) {
			h.EmitToConnection(connID, toast)
		}
	}

	h.log.Debug().
		Str("room", msg.Room).
		Int64("message_id", msg.ID).
		Int("delivered", delivered).
		Msg("message relayed")

	room, at := msg.Room, msg.Timestamp
	h.runBackground(func() {
		tctx, cancel := h.storeContext(ctx)
		defer cancel()
		err := h.messages.TouchChat(tctx, room, at)
		switch {
		case err == nil:
		case errors.Is(err, store.ErrNotFound):
			// chat records are provisioned outside the relay
			h.log.Debug().Str("room", room).Msg("no chat record to touch")
		default:
			h.log.Warn().Err(err).Str("room", room).Msg("chat activity update failed")
		}
	})
	return nil
}

func (h *Hub) persist(ctx context.Context, msg *InFlightMessage) error {
	if h.messages == nil {
		return errNoMessageStore
	}

	sctx, cancel := h.storeContext(ctx)
	defer cancel()

	record := &store.Message{
		ChatID:    msg.Room,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}
	if err := h.messages.AppendMessage(sctx, record); err != nil {
		return err
	}
	msg.ID = record.ID
	return nil
}

// enrichSender fills a missing sender name or picture from the user directory.
func (h *Hub) enrichSender(ctx context.Context, msg *InFlightMessage) {
	if h.users == nil || (msg.SenderName != "" && msg.SenderPicture != "") {
		return
	}

	sctx, cancel := h.storeContext(ctx)
	defer cancel()

	user, err := h.users.GetUserByID(sctx, msg.SenderID)
	if err != nil {
		h.log.Debug().Err(err).Str("user_id", msg.SenderID).Msg("sender lookup failed")
		return
	}
	if msg.SenderName == "" {
		msg.SenderName = user.Name
	}
	if msg.SenderPicture == "" {
		msg.SenderPicture = user.Picture
	}
}

// recipients returns the users to notify about a new message: the caller's
// member list, narrowed to the chat's stored members when the directory knows
// the chat, plus the sender. Order is preserved and duplicates dropped.
func (h *Hub) recipients(ctx context.Context, room, senderID string, membersID []string) []string {
	candidates := membersID

	if h.chats != nil {
		sctx, cancel := h.storeContext(ctx)
		members, err := h.chats.ListMembers(sctx, room)
		cancel()

		switch {
		case err != nil:
			h.log.Warn().Err(err).Str("room", room).Msg("member lookup failed; using caller list")
		case len(members) > 0:
			known := make(map[string]struct{}, len(members))
			for _, id := range members {
				known[id] = struct{}{}
			}
			candidates = make([]string, 0, len(membersID))
			for _, id := range membersID {
				if _, ok := known[id]; ok {
					candidates = append(candidates, id)
				}
			}
		}
	}

	seen := make(map[string]struct{}, len(candidates)+1)
	out := make([]string, 0, len(candidates)+1)
	add := func(id string) {
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range candidates {
		add(id)
	}
	add(senderID)
	return out
}
