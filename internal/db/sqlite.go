package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/anikdas/chatloom/internal/models"
)

// DefaultTitle is used when a conversation is created without one.
const DefaultTitle = "New chat"

// ErrNotFound is returned when an operation targets a conversation id that
// does not exist.
var ErrNotFound = errors.New("conversation not found")

// messages.conversation_id carries no foreign-key constraint; referential
// integrity is the caller's concern. The seq column gives messages a strict
// total order equal to append order even when created_at values collide.
const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    conversation_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);`

type Database struct {
	db *sql.DB
}

func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open db at %s: %w", dbPath, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db at %s: %w", dbPath, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) CreateConversation(ctx context.Context, title string) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}

	now := time.Now().UTC()
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := d.db.ExecContext(ctx, `
        INSERT INTO conversations (id, title, created_at, updated_at)
        VALUES (?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns all conversations, newest-created first. Creation
// ties are broken by insertion order.
func (d *Database) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	rows, err := d.db.QueryContext(ctx, `
        SELECT id, title, created_at, updated_at
        FROM conversations
        ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// RenameConversation sets a new title and returns the updated conversation,
// or ErrNotFound if the id is unknown. The title is stored trimmed.
func (d *Database) RenameConversation(ctx context.Context, id, title string) (*models.Conversation, error) {
	res, err := d.db.ExecContext(ctx, `
        UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`,
		strings.TrimSpace(title), time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to rename conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}

	var conv models.Conversation
	err = d.db.QueryRowContext(ctx, `
        SELECT id, title, created_at, updated_at FROM conversations WHERE id = ?`, id).
		Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}
	return &conv, nil
}

// DeleteConversation removes a conversation and all of its messages.
// Deleting an id that does not exist is not an error.
func (d *Database) DeleteConversation(ctx context.Context, id string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	return tx.Commit()
}

// ListMessages returns every message in a conversation, oldest first.
func (d *Database) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := d.db.QueryContext(ctx, `
        SELECT id, conversation_id, role, content, created_at
        FROM messages
        WHERE conversation_id = ?
        ORDER BY seq ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ConvID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// AppendMessage stores one message at the end of a conversation. The
// conversation id is not checked for existence.
func (d *Database) AppendMessage(ctx context.Context, conversationID, role, content string) (*models.Message, error) {
	msg := &models.Message{
		ID:        uuid.NewString(),
		ConvID:    conversationID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	_, err := d.db.ExecContext(ctx, `
        INSERT INTO messages (id, conversation_id, role, content, created_at)
        VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ConvID, msg.Role, msg.Content, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return msg, nil
}
