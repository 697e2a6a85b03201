package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/llmchat/backend/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    title TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chats_user_id ON chats (user_id);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    chat_id TEXT NOT NULL REFERENCES chats(id),
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages (chat_id);
CREATE INDEX IF NOT EXISTS idx_messages_role ON messages (role);
CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages (created_at);`

type Database struct {
	db *sql.DB
}

func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) CreateChat(ctx context.Context, chat models.Chat) (models.Chat, error) {
	query := `
        INSERT INTO chats (id, user_id, title, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?)`

	if _, err := d.db.ExecContext(ctx, query,
		chat.ID, chat.UserID, nullableTitle(chat.Title), chat.CreatedAt, chat.UpdatedAt); err != nil {
		return models.Chat{}, fmt.Errorf("failed to insert chat: %w", err)
	}
	return chat, nil
}

// ChatDetail fetches a chat and all its messages, oldest first.
func (d *Database) ChatDetail(ctx context.Context, chatID string) (models.ChatDetail, error) {
	query := `
        SELECT id, user_id, title, created_at, updated_at
        FROM chats
        WHERE id = ?`

	chat, err := scanChat(d.db.QueryRowContext(ctx, query, chatID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ChatDetail{}, models.ErrChatNotFound
		}
		return models.ChatDetail{}, err
	}

	rows, err := d.db.QueryContext(ctx, `
        SELECT id, chat_id, role, content, created_at
        FROM messages
        WHERE chat_id = ?
        ORDER BY created_at ASC`, chatID)
	if err != nil {
		return models.ChatDetail{}, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var (
			msg  models.Message
			role string
			raw  string
		)
		if err := rows.Scan(&msg.ID, &msg.ChatID, &role, &raw, &msg.CreatedAt); err != nil {
			return models.ChatDetail{}, err
		}
		msg.Role = models.Role(role)
		if err := json.Unmarshal([]byte(raw), &msg.Content); err != nil {
			return models.ChatDetail{}, fmt.Errorf("failed to decode content of message %s: %w", msg.ID, err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return models.ChatDetail{}, err
	}

	return models.ChatDetail{Chat: chat, Messages: messages}, nil
}

// ListChats returns the owner's chats ordered by last update, oldest
// first. A limit of 0 means no limit.
func (d *Database) ListChats(ctx context.Context, userID string, limit, offset int) ([]models.Chat, error) {
	if limit == 0 {
		limit = -1
	}

	rows, err := d.db.QueryContext(ctx, `
        SELECT id, user_id, title, created_at, updated_at
        FROM chats
        WHERE user_id = ?
        ORDER BY updated_at ASC
        LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chats := make([]models.Chat, 0)
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

func (d *Database) UpdateChatTitle(ctx context.Context, chatID, title string) (models.Chat, error) {
	query := `
        UPDATE chats
        SET title = ?, updated_at = ?
        WHERE id = ?
        RETURNING id, user_id, title, created_at, updated_at`

	chat, err := scanChat(d.db.QueryRowContext(ctx, query, title, time.Now(), chatID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Chat{}, models.ErrChatNotFound
		}
		return models.Chat{}, fmt.Errorf("failed to update chat title: %w", err)
	}
	return chat, nil
}

// DeleteChat removes a chat and its messages in one transaction.
func (d *Database) DeleteChat(ctx context.Context, chatID string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", chatID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrChatNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE chat_id = ?", chatID); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteChats removes every chat owned by the user, along with their
// messages. Deleting for a user with no chats is not an error.
func (d *Database) DeleteChats(ctx context.Context, userID string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
        DELETE FROM messages
        WHERE chat_id IN (SELECT id FROM chats WHERE user_id = ?)`, userID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM chats WHERE user_id = ?", userID); err != nil {
		return err
	}

	return tx.Commit()
}

func (d *Database) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	raw, err := json.Marshal(msg.Content)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to encode content: %w", err)
	}

	query := `
        INSERT INTO messages (id, chat_id, role, content, created_at)
        VALUES (?, ?, ?, ?, ?)`

	if _, err := d.db.ExecContext(ctx, query,
		msg.ID, msg.ChatID, string(msg.Role), string(raw), msg.CreatedAt); err != nil {
		return models.Message{}, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner) (models.Chat, error) {
	var (
		chat  models.Chat
		title sql.NullString
	)
	if err := row.Scan(&chat.ID, &chat.UserID, &title, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
		return models.Chat{}, err
	}
	if title.Valid {
		chat.Title = &title.String
	}
	return chat, nil
}

func nullableTitle(title *string) sql.NullString {
	if title == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *title, Valid: true}
}
