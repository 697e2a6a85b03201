package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/llmchat/backend/internal/models"
)

// fakeStore is an in-memory Store that counts calls, so tests can prove
// validation failures never reach storage.
type fakeStore struct {
	chats    map[string]models.Chat
	messages map[string][]models.Message
	calls    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chats:    make(map[string]models.Chat),
		messages: make(map[string][]models.Message),
	}
}

func (f *fakeStore) CreateChat(_ context.Context, chat models.Chat) (models.Chat, error) {
	f.calls++
	f.chats[chat.ID] = chat
	return chat, nil
}

func (f *fakeStore) ChatDetail(_ context.Context, chatID string) (models.ChatDetail, error) {
	f.calls++
	chat, ok := f.chats[chatID]
	if !ok {
		return models.ChatDetail{}, models.ErrChatNotFound
	}
	msgs := append([]models.Message(nil), f.messages[chatID]...)
	return models.ChatDetail{Chat: chat, Messages: msgs}, nil
}

func (f *fakeStore) ListChats(_ context.Context, userID string, limit, offset int) ([]models.Chat, error) {
	f.calls++
	var chats []models.Chat
	for _, c := range f.chats {
		if c.UserID == userID {
			chats = append(chats, c)
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].UpdatedAt.Before(chats[j].UpdatedAt) })
	if offset >= len(chats) {
		return nil, nil
	}
	chats = chats[offset:]
	if limit > 0 && limit < len(chats) {
		chats = chats[:limit]
	}
	return chats, nil
}

func (f *fakeStore) UpdateChatTitle(_ context.Context, chatID, title string) (models.Chat, error) {
	f.calls++
	chat, ok := f.chats[chatID]
	if !ok {
		return models.Chat{}, models.ErrChatNotFound
	}
	chat.Title = &title
	chat.UpdatedAt = time.Now()
	f.chats[chatID] = chat
	return chat, nil
}

func (f *fakeStore) DeleteChat(_ context.Context, chatID string) error {
	f.calls++
	if _, ok := f.chats[chatID]; !ok {
		return models.ErrChatNotFound
	}
	delete(f.chats, chatID)
	delete(f.messages, chatID)
	return nil
}

func (f *fakeStore) DeleteChats(_ context.Context, userID string) error {
	f.calls++
	for id, c := range f.chats {
		if c.UserID == userID {
			delete(f.chats, id)
			delete(f.messages, id)
		}
	}
	return nil
}

func (f *fakeStore) CreateMessage(_ context.Context, msg models.Message) (models.Message, error) {
	f.calls++
	f.messages[msg.ChatID] = append(f.messages[msg.ChatID], msg)
	return msg, nil
}

func textMessage(chatID, text string, at time.Time) models.Message {
	return models.Message{
		ID:        fmt.Sprintf("msg-%s-%d", text, at.UnixNano()),
		ChatID:    chatID,
		Role:      models.RoleUser,
		Content:   []models.Content{{Type: models.ContentTypeText, Content: text}},
		CreatedAt: at,
	}
}

func TestListChatsRejectsNegativeBounds(t *testing.T) {
	for _, tc := range []struct{ limit, offset int }{
		{-1, 0},
		{0, -1},
		{-5, -5},
	} {
		store := newFakeStore()
		uc := NewUsecase(store)

		_, err := uc.ListChats(context.Background(), "u1", tc.limit, tc.offset)
		if !errors.Is(err, models.ErrInvalidPagination) {
			t.Errorf("ListChats(limit=%d, offset=%d) err = %v, want ErrInvalidPagination", tc.limit, tc.offset, err)
		}
		if store.calls != 0 {
			t.Errorf("ListChats(limit=%d, offset=%d) touched storage %d times", tc.limit, tc.offset, store.calls)
		}
	}
}

func TestChatDetailRejectsNegativeBounds(t *testing.T) {
	store := newFakeStore()
	uc := NewUsecase(store)

	if _, err := uc.ChatDetail(context.Background(), "u1", "c1", -1, 0); !errors.Is(err, models.ErrInvalidPagination) {
		t.Errorf("ChatDetail negative limit err = %v, want ErrInvalidPagination", err)
	}
	if _, err := uc.ChatDetail(context.Background(), "u1", "c1", 0, -1); !errors.Is(err, models.ErrInvalidPagination) {
		t.Errorf("ChatDetail negative offset err = %v, want ErrInvalidPagination", err)
	}
	if store.calls != 0 {
		t.Errorf("storage touched %d times on invalid bounds", store.calls)
	}
}

func TestOperationsOnMissingChat(t *testing.T) {
	uc := NewUsecase(newFakeStore())
	ctx := context.Background()

	if err := uc.DeleteChat(ctx, "u1", "missing"); !errors.Is(err, models.ErrChatNotFound) {
		t.Errorf("DeleteChat err = %v, want ErrChatNotFound", err)
	}
	if _, err := uc.UpdateChatTitle(ctx, "u1", "missing", "t"); !errors.Is(err, models.ErrChatNotFound) {
		t.Errorf("UpdateChatTitle err = %v, want ErrChatNotFound", err)
	}
	if _, err := uc.ChatDetail(ctx, "u1", "missing", 0, 0); !errors.Is(err, models.ErrChatNotFound) {
		t.Errorf("ChatDetail err = %v, want ErrChatNotFound", err)
	}
}

func TestOwnershipChecks(t *testing.T) {
	store := newFakeStore()
	uc := NewUsecase(store)
	ctx := context.Background()

	title := "t1"
	owned, err := uc.CreateChat(ctx, "u2", &title)
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	if err := uc.DeleteChat(ctx, "u1", owned.ID); !errors.Is(err, models.ErrNotChatOwner) {
		t.Errorf("DeleteChat by non-owner err = %v, want ErrNotChatOwner", err)
	}
	if _, err := uc.UpdateChatTitle(ctx, "u1", owned.ID, "new"); !errors.Is(err, models.ErrNotChatOwner) {
		t.Errorf("UpdateChatTitle by non-owner err = %v, want ErrNotChatOwner", err)
	}
	if _, err := uc.ChatDetail(ctx, "u1", owned.ID, 0, 0); !errors.Is(err, models.ErrNotChatOwner) {
		t.Errorf("ChatDetail by non-owner err = %v, want ErrNotChatOwner", err)
	}
	if _, err := uc.AddMessage(ctx, "u1", owned.ID, models.RoleUser, nil); !errors.Is(err, models.ErrNotChatOwner) {
		t.Errorf("AddMessage by non-owner err = %v, want ErrNotChatOwner", err)
	}

	// The owner can still do all of it.
	if _, err := uc.UpdateChatTitle(ctx, "u2", owned.ID, "new"); err != nil {
		t.Errorf("UpdateChatTitle by owner: %v", err)
	}
	if err := uc.DeleteChat(ctx, "u2", owned.ID); err != nil {
		t.Errorf("DeleteChat by owner: %v", err)
	}
}

func TestChatDetailSlicing(t *testing.T) {
	store := newFakeStore()
	uc := NewUsecase(store)
	ctx := context.Background()

	chat, err := uc.CreateChat(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	base := time.Now()
	texts := []string{"m0", "m1", "m2", "m3"}
	for i, text := range texts {
		store.messages[chat.ID] = append(store.messages[chat.ID],
			textMessage(chat.ID, text, base.Add(time.Duration(i)*time.Second)))
	}

	cases := []struct {
		name          string
		limit, offset int
		want          []string
	}{
		{"full list when both zero", 0, 0, []string{"m0", "m1", "m2", "m3"}},
		{"window preserves order", 2, 1, []string{"m1", "m2"}},
		{"open ended with zero limit", 0, 2, []string{"m2", "m3"}},
		{"offset past end is empty", 2, 10, nil},
		{"limit clamps to remaining", 10, 3, []string{"m3"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			detail, err := uc.ChatDetail(ctx, "u1", chat.ID, tc.limit, tc.offset)
			if err != nil {
				t.Fatalf("ChatDetail(limit=%d, offset=%d): %v", tc.limit, tc.offset, err)
			}
			if len(detail.Messages) != len(tc.want) {
				t.Fatalf("got %d messages, want %d", len(detail.Messages), len(tc.want))
			}
			for i, want := range tc.want {
				if got := detail.Messages[i].Content[0].Content; got != want {
					t.Errorf("message[%d] = %q, want %q", i, got, want)
				}
			}
		})
	}
}

func TestCreateThenDetailRoundTrip(t *testing.T) {
	uc := NewUsecase(newFakeStore())
	ctx := context.Background()

	title := "weekend plans"
	created, err := uc.CreateChat(ctx, "u1", &title)
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created chat has empty id")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("created chat has zero timestamps")
	}

	detail, err := uc.ChatDetail(ctx, "u1", created.ID, 0, 0)
	if err != nil {
		t.Fatalf("ChatDetail: %v", err)
	}
	if detail.ID != created.ID || detail.UserID != "u1" {
		t.Errorf("detail = %+v, want id %s owned by u1", detail.Chat, created.ID)
	}
	if detail.Title == nil || *detail.Title != title {
		t.Errorf("detail title = %v, want %q", detail.Title, title)
	}
	if len(detail.Messages) != 0 {
		t.Errorf("fresh chat has %d messages, want 0", len(detail.Messages))
	}
}

func TestListChatsScopedToOwner(t *testing.T) {
	uc := NewUsecase(newFakeStore())
	ctx := context.Background()

	title := "t1"
	created, err := uc.CreateChat(ctx, "u1", &title)
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	mine, err := uc.ListChats(ctx, "u1", 0, 0)
	if err != nil {
		t.Fatalf("ListChats(u1): %v", err)
	}
	if len(mine) != 1 || mine[0].ID != created.ID {
		t.Errorf("ListChats(u1) = %+v, want just %s", mine, created.ID)
	}

	theirs, err := uc.ListChats(ctx, "u2", 0, 0)
	if err != nil {
		t.Fatalf("ListChats(u2): %v", err)
	}
	if len(theirs) != 0 {
		t.Errorf("ListChats(u2) = %+v, want empty", theirs)
	}
}

func TestAddMessage(t *testing.T) {
	store := newFakeStore()
	uc := NewUsecase(store)
	ctx := context.Background()

	chat, err := uc.CreateChat(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	content := []models.Content{{Type: models.ContentTypeText, Content: "hello"}}
	msg, err := uc.AddMessage(ctx, "u1", chat.ID, models.RoleUser, content)
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if msg.ID == "" || msg.ChatID != chat.ID || msg.Role != models.RoleUser {
		t.Errorf("message = %+v, want generated id in chat %s with role user", msg, chat.ID)
	}

	detail, err := uc.ChatDetail(ctx, "u1", chat.ID, 0, 0)
	if err != nil {
		t.Fatalf("ChatDetail: %v", err)
	}
	if len(detail.Messages) != 1 || detail.Messages[0].ID != msg.ID {
		t.Errorf("detail messages = %+v, want the stored message", detail.Messages)
	}
}
