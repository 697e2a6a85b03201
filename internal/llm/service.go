package llm

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/llmchat/backend/internal/models"
	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// MessageStore persists the assistant reply once a stream completes.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
}

// Service turns a chat's history into a streamed assistant reply using an
// OpenAI-compatible endpoint.
type Service struct {
	llm       llms.Model
	store     MessageStore
	enc       *tiktoken.Tiktoken
	maxTokens int
	timeout   time.Duration
}

func New(baseURL, token, model string, maxContextTokens int, timeout time.Duration, store MessageStore) (*Service, error) {
	llm, err := openai.New(
		openai.WithToken(token),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, err
	}

	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}

	return &Service{
		llm:       llm,
		store:     store,
		enc:       enc,
		maxTokens: maxContextTokens,
		timeout:   timeout,
	}, nil
}

// StreamResponse produces a lazy, finite, non-restartable event stream:
// started, zero or more generating deltas, then exactly one of completed,
// failed or canceled. The channel is closed when the stream ends, and the
// stream dies with the context.
func (s *Service) StreamResponse(ctx context.Context, detail models.ChatDetail) <-chan models.ResponseEvent {
	events := make(chan models.ResponseEvent, 1)
	go s.respond(ctx, detail, events)
	return events
}

func (s *Service) respond(ctx context.Context, detail models.ChatDetail, events chan<- models.ResponseEvent) {
	defer close(events)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if !s.emit(ctx, events, models.ResponseEvent{Status: models.ResponseStarted}) {
		return
	}

	history := trimHistory(detail.Messages, s.maxTokens, s.countTokens)

	var reply strings.Builder
	_, err := s.llm.GenerateContent(ctx, historyToContent(history),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			reply.Write(chunk)
			select {
			case events <- models.ResponseEvent{Status: models.ResponseGenerating, Delta: string(chunk)}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			select {
			case events <- models.ResponseEvent{Status: models.ResponseCanceled}:
			default:
			}
			return
		}
		s.emit(ctx, events, models.ResponseEvent{Status: models.ResponseFailed, Error: err.Error()})
		return
	}

	msg := models.Message{
		ID:     uuid.New().String(),
		ChatID: detail.ID,
		Role:   models.RoleAssistant,
		Content: []models.Content{
			{Type: models.ContentTypeText, Content: reply.String()},
		},
		CreatedAt: time.Now(),
	}
	if _, err := s.store.CreateMessage(ctx, msg); err != nil {
		s.emit(ctx, events, models.ResponseEvent{Status: models.ResponseFailed, Error: err.Error()})
		return
	}

	s.emit(ctx, events, models.ResponseEvent{
		Status:  models.ResponseCompleted,
		Content: &models.CompletedContent{Content: reply.String()},
	})
}

func (s *Service) emit(ctx context.Context, events chan<- models.ResponseEvent, ev models.ResponseEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Service) countTokens(text string) int {
	return len(s.enc.Encode(text, nil, nil))
}

// trimHistory keeps the newest messages whose combined token count fits
// the budget. The newest message is always kept so a request is never
// sent empty.
func trimHistory(messages []models.Message, budget int, count func(string) int) []models.Message {
	if len(messages) == 0 {
		return messages
	}

	total := 0
	start := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		total += count(messageText(messages[i]))
		if total > budget && start < len(messages) {
			break
		}
		start = i
	}
	return messages[start:]
}

func historyToContent(messages []models.Message) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		content = append(content, llms.TextParts(chatMessageType(msg.Role), messageText(msg)))
	}
	return content
}

func chatMessageType(role models.Role) llms.ChatMessageType {
	switch role {
	case models.RoleSystem:
		return llms.ChatMessageTypeSystem
	case models.RoleAssistant:
		return llms.ChatMessageTypeAI
	case models.RoleTool:
		return llms.ChatMessageTypeTool
	default:
		return llms.ChatMessageTypeHuman
	}
}

func messageText(msg models.Message) string {
	var sb strings.Builder
	for _, item := range msg.Content {
		if item.Type == models.ContentTypeText {
			sb.WriteString(item.Content)
		}
	}
	return sb.String()
}
