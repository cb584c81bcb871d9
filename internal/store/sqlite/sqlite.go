package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/yemishi/chatteroo-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

// New opens the database at dbPath and applies the schema.
func New(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		return Migrate(ctx, db)
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection keeps :memory: databases shared and serialises writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== Users ====

// CreateUser inserts a directory entry.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *store.User) error {
	query := `
		INSERT INTO users (id, name, picture)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, user.ID, user.Name, user.Picture); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	query := `
		SELECT id, name, picture, created_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Picture,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// ==== Chats ====

// CreateChat inserts a chat and its members in one transaction.
func (s *SQLiteStore) CreateChat(ctx context.Context, id string, members []string) (*store.Chat, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `INSERT INTO chats (id) VALUES (?)`, id); err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}
	for _, userID := range members {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO chat_members (chat_id, user_id) VALUES (?, ?)`,
			id, userID,
		); err != nil {
			return nil, fmt.Errorf("insert member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return s.GetChat(ctx, id)
}

// GetChat retrieves a chat with its member list.
func (s *SQLiteStore) GetChat(ctx context.Context, id string) (*store.Chat, error) {
	query := `
		SELECT id, last_message_at, created_at
		FROM chats
		WHERE id = ?
	`
	var (
		chat     store.Chat
		lastSeen sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&chat.ID, &lastSeen, &chat.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("chat %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query chat: %w", err)
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		chat.LastMessageAt = &t
	}

	members, err := s.ListMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	chat.Members = members

	return &chat, nil
}

// ListMembers lists all members of a chat.
func (s *SQLiteStore) ListMembers(ctx context.Context, chatID string) ([]string, error) {
	query := `
		SELECT user_id FROM chat_members
		WHERE chat_id = ?
		ORDER BY joined_at ASC, user_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, userID)
	}

	return members, rows.Err()
}

// TouchChat records the chat's last activity time.
func (s *SQLiteStore) TouchChat(ctx context.Context, chatID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE chats SET last_message_at = ? WHERE id = ?`,
		at.UTC(), chatID,
	)
	if err != nil {
		return fmt.Errorf("update chat: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("chat %s: %w", chatID, store.ErrNotFound)
	}
	return nil
}

// ==== Messages ====

// AppendMessage persists a message and sets msg.ID.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	msg.Timestamp = msg.Timestamp.UTC()

	query := `
		INSERT INTO messages (chat_id, sender_id, content, timestamp)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.ChatID, msg.SenderID, msg.Content, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*store.Message, error) {
	query := `
		SELECT id, chat_id, sender_id, content, timestamp, edited_at
		FROM messages
		WHERE id = ?
	`
	msg, err := scanMessage(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	return msg, nil
}

// ListMessages retrieves messages from a chat with pagination.
func (s *SQLiteStore) ListMessages(ctx context.Context, chatID string, limit int, beforeID *int64) ([]*store.Message, error) {
	var (
		query string
		args  []any
	)

	if beforeID != nil {
		query = `
			SELECT id, chat_id, sender_id, content, timestamp, edited_at
			FROM messages
			WHERE chat_id = ? AND id < ?
			ORDER BY id DESC
			LIMIT ?
		`
		args = []any{chatID, *beforeID, limit}
	} else {
		query = `
			SELECT id, chat_id, sender_id, content, timestamp, edited_at
			FROM messages
			WHERE chat_id = ?
			ORDER BY id DESC
			LIMIT ?
		`
		args = []any{chatID, limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	// Reverse to get chronological order
	for i := 0; i < len(messages)/2; i++ {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var (
		msg    store.Message
		edited sql.NullTime
	)
	if err := row.Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Content, &msg.Timestamp, &edited); err != nil {
		return nil, err
	}
	if edited.Valid {
		t := edited.Time
		msg.EditedAt = &t
	}
	return &msg, nil
}
