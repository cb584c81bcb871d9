package core

import (
	"strconv"
	"time"

	"github.com/yemishi/chatteroo-server/internal/proto"
)

// InFlightMessage lives for the duration of one send-message relay.
// It is never retained by the hub.
type InFlightMessage struct {
	ID            int64
	Room          string
	SenderID      string
	SenderName    string
	SenderPicture string
	Content       string
	ClientID      string
	Timestamp     time.Time
}

func (m *InFlightMessage) stamp() string {
	return m.Timestamp.UTC().Format(time.RFC3339Nano)
}

func (m *InFlightMessage) messageEvent() *Event {
	return newEvent(proto.EventMessage, proto.MessagePayload{
		ID:            strconv.FormatInt(m.ID, 10),
		Room:          m.Room,
		SenderID:      m.SenderID,
		SenderName:    m.SenderName,
		SenderPicture: m.SenderPicture,
		Content:       m.Content,
		Timestamp:     m.stamp(),
		ClientID:      m.ClientID,
	})
}

func (m *InFlightMessage) chatUpdatedEvent() *Event {
	ts := m.stamp()
	return newEvent(proto.EventChatUpdated, proto.ChatUpdatedPayload{
		ChatID: m.Room,
		LastMessage: proto.LastMessage{
			Content:   m.Content,
			SenderID:  m.SenderID,
			Timestamp: ts,
		},
		Content:   m.Content,
		SenderID:  m.SenderID,
		Timestamp: ts,
	})
}

func (m *InFlightMessage) toastEvent() *Event {
	return newEvent(proto.EventToast, proto.ToastPayload{
		ChatID:        m.Room,
		SenderID:      m.SenderID,
		SenderName:    m.SenderName,
		SenderPicture: m.SenderPicture,
		Content:       m.Content,
	})
}
