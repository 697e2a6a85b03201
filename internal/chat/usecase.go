package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/llmchat/backend/internal/models"
)

// Store is the capability set a storage backend must provide. Any
// implementation of these operations is substitutable.
type Store interface {
	CreateChat(ctx context.Context, chat models.Chat) (models.Chat, error)
	ChatDetail(ctx context.Context, chatID string) (models.ChatDetail, error)
	ListChats(ctx context.Context, userID string, limit, offset int) ([]models.Chat, error)
	UpdateChatTitle(ctx context.Context, chatID, title string) (models.Chat, error)
	DeleteChat(ctx context.Context, chatID string) error
	DeleteChats(ctx context.Context, userID string) error
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
}

// Usecase applies ownership checks and pagination validation before
// delegating to the store.
type Usecase struct {
	store Store
}

func NewUsecase(store Store) *Usecase {
	return &Usecase{store: store}
}

func (u *Usecase) CreateChat(ctx context.Context, userID string, title *string) (models.Chat, error) {
	now := time.Now()
	chat := models.Chat{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return u.store.CreateChat(ctx, chat)
}

func (u *Usecase) ListChats(ctx context.Context, userID string, limit, offset int) ([]models.Chat, error) {
	if limit < 0 || offset < 0 {
		return nil, models.ErrInvalidPagination
	}
	return u.store.ListChats(ctx, userID, limit, offset)
}

func (u *Usecase) DeleteChat(ctx context.Context, userID, chatID string) error {
	if _, err := u.ownedChat(ctx, userID, chatID); err != nil {
		return err
	}
	return u.store.DeleteChat(ctx, chatID)
}

func (u *Usecase) DeleteChats(ctx context.Context, userID string) error {
	return u.store.DeleteChats(ctx, userID)
}

func (u *Usecase) UpdateChatTitle(ctx context.Context, userID, chatID, title string) (models.Chat, error) {
	if _, err := u.ownedChat(ctx, userID, chatID); err != nil {
		return models.Chat{}, err
	}
	return u.store.UpdateChatTitle(ctx, chatID, title)
}

// ChatDetail returns a chat with its messages. With limit and offset
// both zero the full message list comes back; otherwise the list is
// sliced [offset : offset+limit], open-ended when limit is zero. Slices
// past the end are empty, and order is always preserved.
func (u *Usecase) ChatDetail(ctx context.Context, userID, chatID string, limit, offset int) (models.ChatDetail, error) {
	if limit < 0 || offset < 0 {
		return models.ChatDetail{}, models.ErrInvalidPagination
	}

	detail, err := u.ownedChat(ctx, userID, chatID)
	if err != nil {
		return models.ChatDetail{}, err
	}

	if limit == 0 && offset == 0 {
		return detail, nil
	}

	msgs := detail.Messages
	if offset >= len(msgs) {
		msgs = []models.Message{}
	} else {
		msgs = msgs[offset:]
		if limit > 0 && limit < len(msgs) {
			msgs = msgs[:limit]
		}
	}
	detail.Messages = msgs
	return detail, nil
}

// AddMessage persists a new immutable message after verifying the chat
// exists and belongs to the user.
func (u *Usecase) AddMessage(ctx context.Context, userID, chatID string, role models.Role, content []models.Content) (models.Message, error) {
	if _, err := u.ownedChat(ctx, userID, chatID); err != nil {
		return models.Message{}, err
	}

	msg := models.Message{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}

	stored, err := u.store.CreateMessage(ctx, msg)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to save message: %w", err)
	}
	return stored, nil
}

func (u *Usecase) ownedChat(ctx context.Context, userID, chatID string) (models.ChatDetail, error) {
	detail, err := u.store.ChatDetail(ctx, chatID)
	if err != nil {
		return models.ChatDetail{}, err
	}
	if detail.UserID != userID {
		return models.ChatDetail{}, models.ErrNotChatOwner
	}
	return detail, nil
}
