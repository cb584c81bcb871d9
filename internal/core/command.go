package core

import (
	"context"
	"encoding/json"

	"github.com/yemishi/chatteroo-server/internal/proto"
)

// HandlerFunc handles one inbound event for a session. A returned *CoreError
// is reported back to that session only.
type HandlerFunc func(ctx context.Context, sess *Session, data json.RawMessage) error

// handlerTable maps inbound event names to their relay handler.
func (h *Hub) handlerTable() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		proto.InboundSubscribe:      h.handleSubscribe,
		proto.InboundUnsubscribe:    h.handleUnsubscribe,
		proto.InboundSubscribeAll:   h.handleSubscribeAll,
		proto.InboundGetOnlineUsers: h.handleGetOnlineUsers,
		proto.InboundTyping:         h.typingHandler(proto.EventUserTyping),
		proto.InboundStopTyping:     h.typingHandler(proto.EventUserStopTyping),
		proto.InboundEditMessage:    h.handleEditMessage,
		proto.InboundSendMessage:    h.handleSendMessage,
		proto.InboundDisconnect:     h.handleDisconnect,
	}
}
