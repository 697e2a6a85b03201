package models

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ParseRole validates a wire-format role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleSystem, RoleAssistant, RoleTool:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

type ContentType string

const (
	ContentTypeText ContentType = "text"
)

// Content is one typed payload unit within a message. Only text exists
// today; image and file payloads would carry base64 in Content.
type Content struct {
	Type    ContentType `json:"type"`
	Content string      `json:"content"`
}

type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     *string   `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one turn within a chat. Immutable once created; ordering
// within a chat is by CreatedAt ascending.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Role      Role      `json:"role"`
	Content   []Content `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatDetail is a chat plus its (possibly sliced) messages, composed at
// read time. Not a stored entity.
type ChatDetail struct {
	Chat
	Messages []Message `json:"messages"`
}
