package core

import (
	"context"
	"time"

	"github.com/yemishi/chatteroo-server/internal/store"
)

// MessageStore is the durable side of the relay. Both calls may fail
// independently; neither failure is fatal to live delivery.
type MessageStore interface {
	// AppendMessage persists msg and sets its generated ID.
	AppendMessage(ctx context.Context, msg *store.Message) error

	// TouchChat records the chat's last activity time.
	TouchChat(ctx context.Context, chatID string, at time.Time) error
}

// ChatDirectory is consulted to validate caller-supplied member lists.
type ChatDirectory interface {
	// ListMembers returns the user ids participating in a chat.
	ListMembers(ctx context.Context, chatID string) ([]string, error)
}

// UserDirectory resolves display data for senders.
type UserDirectory interface {
	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*store.User, error)
}
