package proto

import (
	"encoding/json"
	"errors"
	"strings"
)

// Frame is the envelope for every websocket text message, in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Inbound event names. These are part of the client contract.
const (
	InboundSubscribe      = "subscribe"
	InboundUnsubscribe    = "unsubscribe"
	InboundSubscribeAll   = "subscribe-all"
	InboundGetOnlineUsers = "getOnlineUsers"
	InboundTyping         = "typing"
	InboundStopTyping     = "stop-typing"
	InboundEditMessage    = "edit-message"
	InboundSendMessage    = "send-message"
	InboundDisconnect     = "disconnect"
)

// Outbound event names.
const (
	EventOnlineUsers    = "online-users"
	EventMessage        = "message"
	EventChatUpdated    = "chat-updated"
	EventToast          = "toast"
	EventUserTyping     = "user-typing"
	EventUserStopTyping = "user-stop-typing"
	EventUpdateMessage  = "update-message"
	EventError          = "error"
)

// HandshakeUserParam is the query parameter carrying the connecting user's id.
const HandshakeUserParam = "userId"

// ErrMissingRoom is returned when a room id payload is empty.
var ErrMissingRoom = errors.New("room id is required")

// RoomData is the object form of a subscribe/unsubscribe payload.
type RoomData struct {
	RoomID string `json:"roomId"`
}

// DecodeRoomID accepts either a bare JSON string or {"roomId": "..."}.
func DecodeRoomID(raw json.RawMessage) (string, error) {
	var room string
	if err := json.Unmarshal(raw, &room); err != nil {
		var obj RoomData
		if objErr := json.Unmarshal(raw, &obj); objErr != nil {
			return "", err
		}
		room = obj.RoomID
	}
	room = strings.TrimSpace(room)
	if room == "" {
		return "", ErrMissingRoom
	}
	return room, nil
}

// TypingData is sent by a client while composing (or after stopping).
type TypingData struct {
	RoomID       string   `json:"roomId"`
	UserID       string   `json:"userId"`
	RecipientIDs []string `json:"recipientIds"`
}

// EditMessageData carries an edited message to refresh open views.
type EditMessageData struct {
	Message  json.RawMessage `json:"message"`
	ChatRoom string          `json:"chatRoom"`
}

// ChatMessage is the client-authored part of a new message.
type ChatMessage struct {
	Room          string `json:"room"`
	SenderID      string `json:"senderId"`
	SenderName    string `json:"senderName,omitempty"`
	SenderPicture string `json:"senderPicture,omitempty"`
	Content       string `json:"content"`
	ClientID      string `json:"clientId,omitempty"`
}

// SendMessageData requests persistence and fan-out of a new message.
type SendMessageData struct {
	Message   ChatMessage `json:"message"`
	MembersID []string    `json:"membersId"`
}

// MessagePayload is broadcast to every connection in the room.
type MessagePayload struct {
	ID            string `json:"id"`
	Room          string `json:"room"`
	SenderID      string `json:"senderId"`
	SenderName    string `json:"senderName,omitempty"`
	SenderPicture string `json:"senderPicture,omitempty"`
	Content       string `json:"content"`
	Timestamp     string `json:"timestamp"`
	ClientID      string `json:"clientId,omitempty"`
}

// LastMessage summarises the newest message of a chat.
type LastMessage struct {
	Content   string `json:"content"`
	SenderID  string `json:"senderId"`
	Timestamp string `json:"timestamp"`
}

// ChatUpdatedPayload refreshes a user's conversation list entry.
type ChatUpdatedPayload struct {
	ChatID      string      `json:"chatId"`
	LastMessage LastMessage `json:"lastMessage"`
	Content     string      `json:"content"`
	SenderID    string      `json:"senderId"`
	Timestamp   string      `json:"timestamp"`
}

// ToastPayload notifies a user about a message in a room they are not viewing.
type ToastPayload struct {
	ChatID        string `json:"chatId"`
	SenderID      string `json:"senderId"`
	SenderName    string `json:"senderName,omitempty"`
	SenderPicture string `json:"senderPicture,omitempty"`
	Content       string `json:"content"`
}

// EventTyping is delivered for both user-typing and user-stop-typing.
type EventTyping struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code     string `json:"code"`
	Msg      string `json:"msg"`
	ClientID string `json:"clientId,omitempty"`
}
