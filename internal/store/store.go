package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User is a directory entry for a chat participant.
type User struct {
	ID        string
	Name      string
	Picture   string
	CreatedAt time.Time
}

// Chat is a conversation record. Its ID doubles as the relay room id.
type Chat struct {
	ID            string
	Members       []string
	LastMessageAt *time.Time // nil until the first message lands
	CreatedAt     time.Time
}

// Message represents a persisted chat message.
type Message struct {
	ID        int64
	ChatID    string
	SenderID  string
	Content   string
	Timestamp time.Time
	EditedAt  *time.Time
}

// UserStore is the read side of the user directory.
type UserStore interface {
	// GetUserByID retrieves a user by ID. Returns ErrNotFound when absent.
	GetUserByID(ctx context.Context, id string) (*User, error)
}

// ChatStore is the chat directory.
type ChatStore interface {
	// GetChat retrieves a chat with its member list.
	GetChat(ctx context.Context, id string) (*Chat, error)

	// ListMembers lists the user ids participating in a chat.
	ListMembers(ctx context.Context, chatID string) ([]string, error)

	// TouchChat records the chat's last activity time.
	TouchChat(ctx context.Context, chatID string, at time.Time) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// AppendMessage persists a message and sets msg.ID.
	AppendMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, id int64) (*Message, error)

	// ListMessages retrieves messages from a chat with pagination.
	// If beforeID is provided, returns messages older than that ID.
	// Results are in chronological order.
	ListMessages(ctx context.Context, chatID string, limit int, beforeID *int64) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ChatStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
