package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yemishi/chatteroo-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMigrateIsRepeatable(t *testing.T) {
	s := newTestStore(t)

	if err := Migrate(context.Background(), s.db); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestGetUserByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, &store.User{ID: "u1", Name: "Ana", Picture: "https://img/ana.png"}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	user, err := s.GetUserByID(ctx, "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Name != "Ana" || user.Picture != "https://img/ana.png" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := s.GetUserByID(ctx, "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChatMembersAndTouch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chat, err := s.CreateChat(ctx, "room7", []string{"u1", "u2", "u2"})
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	if len(chat.Members) != 2 {
		t.Fatalf("expected 2 members, got %v", chat.Members)
	}
	if chat.LastMessageAt != nil {
		t.Fatalf("expected no last activity, got %v", chat.LastMessageAt)
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := s.TouchChat(ctx, "room7", at); err != nil {
		t.Fatalf("touch chat: %v", err)
	}

	chat, err = s.GetChat(ctx, "room7")
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if chat.LastMessageAt == nil || !chat.LastMessageAt.Equal(at) {
		t.Fatalf("expected last activity %v, got %v", at, chat.LastMessageAt)
	}

	if err := s.TouchChat(ctx, "ghost", at); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown chat, got %v", err)
	}
}

func TestAppendAndListMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateChat(ctx, "room7", []string{"u1"}); err != nil {
		t.Fatalf("create chat: %v", err)
	}

	var ids []int64
	for _, text := range []string{"one", "two", "three", "four"} {
		msg := &store.Message{ChatID: "room7", SenderID: "u1", Content: text}
		if err := s.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("append %q: %v", text, err)
		}
		if msg.ID == 0 {
			t.Fatalf("expected generated id for %q", text)
		}
		if msg.Timestamp.IsZero() {
			t.Fatalf("expected timestamp to be filled for %q", text)
		}
		ids = append(ids, msg.ID)
	}

	tests := []struct {
		name     string
		limit    int
		beforeID *int64
		expected []string
	}{
		{name: "latest page", limit: 2, expected: []string{"three", "four"}},
		{name: "before third", limit: 10, beforeID: &ids[2], expected: []string{"one", "two"}},
		{name: "before first", limit: 10, beforeID: &ids[0], expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := s.ListMessages(ctx, "room7", tt.limit, tt.beforeID)
			if err != nil {
				t.Fatalf("list messages: %v", err)
			}
			if len(msgs) != len(tt.expected) {
				t.Fatalf("expected %d messages, got %d", len(tt.expected), len(msgs))
			}
			for i, msg := range msgs {
				if msg.Content != tt.expected[i] {
					t.Errorf("expected %q at index %d, got %q", tt.expected[i], i, msg.Content)
				}
			}
		})
	}

	got, err := s.GetMessage(ctx, ids[1])
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if got.Content != "two" || got.SenderID != "u1" || got.EditedAt != nil {
		t.Fatalf("unexpected message: %+v", got)
	}
	if _, err := s.GetMessage(ctx, 9999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendSamePayloadTwiceStoresTwoRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &store.Message{ChatID: "room7", SenderID: "u1", Content: "hi"}
	second := &store.Message{ChatID: "room7", SenderID: "u1", Content: "hi"}
	if err := s.AppendMessage(ctx, first); err != nil {
		t.Fatalf("append first: %v", err)
	}
	if err := s.AppendMessage(ctx, second); err != nil {
		t.Fatalf("append second: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("expected distinct ids, both %d", first.ID)
	}
}
