package proto

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeRoomID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{name: "bare string", raw: `"room7"`, want: "room7"},
		{name: "object form", raw: `{"roomId":"room7"}`, want: "room7"},
		{name: "trims whitespace", raw: `"  room7 "`, want: "room7"},
		{name: "empty string", raw: `""`, wantErr: ErrMissingRoom},
		{name: "object without id", raw: `{}`, wantErr: ErrMissingRoom},
		{name: "number", raw: `42`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRoomID(json.RawMessage(tt.raw))
			switch {
			case tt.want == "" && err == nil:
				t.Fatalf("expected error, got room %q", got)
			case tt.wantErr != nil && !errors.Is(err, tt.wantErr):
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			case tt.want != "" && got != tt.want:
				t.Fatalf("expected %q, got %q (err %v)", tt.want, got, err)
			}
		})
	}
}

func TestOutboundEnvelope(t *testing.T) {
	data, err := json.Marshal(Outbound{Event: EventUserTyping, Data: EventTyping{RoomID: "r1", UserID: "u1"}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"event":"user-typing","data":{"roomId":"r1","userId":"u1"}}`
	if string(data) != want {
		t.Fatalf("expected %s, got %s", want, data)
	}
}

func TestPayloadShapes(t *testing.T) {
	tests := []struct {
		name  string
		frame Outbound
		want  string
	}{
		{
			name:  "message",
			frame: Outbound{Event: EventMessage, Data: MessagePayload{ID: "7", Room: "r1", SenderID: "u1", Content: "hi", Timestamp: "2026-01-01T00:00:00Z"}},
			want:  `{"event":"message","data":{"id":"7","room":"r1","senderId":"u1","content":"hi","timestamp":"2026-01-01T00:00:00Z"}}`,
		},
		{
			name: "chat-updated",
			frame: Outbound{Event: EventChatUpdated, Data: ChatUpdatedPayload{
				ChatID:      "r1",
				LastMessage: LastMessage{Content: "hi", SenderID: "u1", Timestamp: "t"},
				Content:     "hi",
				SenderID:    "u1",
				Timestamp:   "t",
			}},
			want: `{"event":"chat-updated","data":{"chatId":"r1","lastMessage":{"content":"hi","senderId":"u1","timestamp":"t"},"content":"hi","senderId":"u1","timestamp":"t"}}`,
		},
		{
			name:  "toast",
			frame: Outbound{Event: EventToast, Data: ToastPayload{ChatID: "r1", SenderID: "u1", SenderName: "Ana", Content: "hi"}},
			want:  `{"event":"toast","data":{"chatId":"r1","senderId":"u1","senderName":"Ana","content":"hi"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.frame)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, data)
			}
		})
	}
}
