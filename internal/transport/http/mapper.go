package http

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/yemishi/chatteroo-server/internal/core"
	"github.com/yemishi/chatteroo-server/internal/proto"
	"github.com/yemishi/chatteroo-server/internal/store"
)

var errMissingEvent = errors.New("event name is required")

// decodeFrame parses one inbound websocket text message.
func decodeFrame(data []byte) (proto.Frame, error) {
	var frame proto.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return frame, err
	}
	frame.Event = strings.TrimSpace(frame.Event)
	if frame.Event == "" {
		return frame, errMissingEvent
	}
	return frame, nil
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	return proto.Outbound{Event: event.Name, Data: event.Data}
}

func messageToResponse(msg *store.Message) MessageResponse {
	resp := MessageResponse{
		ID:        strconv.FormatInt(msg.ID, 10),
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Timestamp: msg.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if msg.EditedAt != nil {
		edited := msg.EditedAt.UTC().Format(time.RFC3339Nano)
		resp.EditedAt = &edited
	}
	return resp
}

func chatToResponse(chat *store.Chat, presence *core.Presence) ChatResponse {
	resp := ChatResponse{
		ID:      chat.ID,
		Members: append([]string{}, chat.Members...),
		Online:  []string{},
	}
	if chat.LastMessageAt != nil {
		at := chat.LastMessageAt.UTC().Format(time.RFC3339Nano)
		resp.LastMessageAt = &at
	}
	for _, userID := range chat.Members {
		if _, ok := presence.Lookup(userID); ok {
			resp.Online = append(resp.Online, userID)
		}
	}
	return resp
}
