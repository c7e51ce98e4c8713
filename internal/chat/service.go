package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/listening-room-system/pkg/errs"
	"github.com/listening-room-system/pkg/events"
	"github.com/listening-room-system/pkg/models"
)

const defaultMaxContentLen = 1000

type Limiter interface {
	Allow(ctx context.Context, roomID, userID string) (bool, error)
}

type Store interface {
	RoomExists(ctx context.Context, id string) (bool, error)
	IsActiveMember(ctx context.Context, roomID, userID string) (bool, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetDisplayNames(ctx context.Context, ids []string) (map[string]string, error)
	CreateChatMessage(ctx context.Context, msg *models.ChatMessage) error
	GetChatHistory(ctx context.Context, roomID string, page, size int) ([]*models.ChatMessage, error)
}

type Publisher interface {
	Publish(ctx context.Context, eventType events.EventType, roomID, userID string, payload interface{}) error
}

// Service handles room chat: admission through the rate limiter, durable
// persistence, and broadcast.
type Service struct {
	limiter    Limiter
	store      Store
	events     Publisher
	maxContent int
}

func NewService(limiter Limiter, store Store, events Publisher, maxContentLen int) *Service {
	if maxContentLen <= 0 {
		maxContentLen = defaultMaxContentLen
	}
	return &Service{
		limiter:    limiter,
		store:      store,
		events:     events,
		maxContent: maxContentLen,
	}
}

// Message is the client-facing view of a stored chat message.
type Message struct {
	ID                string `json:"id"`
	RoomID            string `json:"room_id"`
	SenderID          string `json:"sender_id"`
	SenderDisplayName string `json:"sender_display_name,omitempty"`
	Content           string `json:"content"`
	SentAtMs          int64  `json:"sent_at_ms"`
}

// Admit decides whether the user may send another message right now. A rate
// limiter outage admits the message: degraded chat ordering is preferable to
// silencing the room.
func (s *Service) Admit(ctx context.Context, roomID, userID string) error {
	allowed, err := s.limiter.Allow(ctx, roomID, userID)
	if err != nil {
		log.Printf("Warning: rate limiter unavailable for room %s, admitting message: %v", roomID, err)
		return nil
	}
	if !allowed {
		return fmt.Errorf("user %s exceeded the message rate for room %s: %w", userID, roomID, errs.ErrRateLimited)
	}
	return nil
}

// Send validates, rate-checks, persists and broadcasts one chat message.
func (s *Service) Send(ctx context.Context, roomID, userID, content string) (*Message, error) {
	exists, err := s.store.RoomExists(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("room %s: %w", roomID, errs.ErrNotFound)
	}

	member, err := s.store.IsActiveMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("user %s is not an active member of room %s: %w", userID, roomID, errs.ErrPreconditionFailed)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("message content is empty: %w", errs.ErrPreconditionFailed)
	}
	if len(content) > s.maxContent {
		return nil, fmt.Errorf("message content exceeds %d characters: %w", s.maxContent, errs.ErrPreconditionFailed)
	}

	if err := s.Admit(ctx, roomID, userID); err != nil {
		return nil, err
	}

	roomUUID, err := uuid.Parse(roomID)
	if err != nil {
		return nil, fmt.Errorf("invalid room id %q: %w", roomID, errs.ErrPreconditionFailed)
	}
	senderUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, errs.ErrPreconditionFailed)
	}

	msg := &models.ChatMessage{
		ID:       uuid.New(),
		RoomID:   roomUUID,
		SenderID: senderUUID,
		Content:  content,
		SentAt:   time.Now(),
	}
	if err := s.store.CreateChatMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store chat message: %w", err)
	}

	senderName := ""
	if sender, err := s.store.GetUserByID(ctx, userID); err == nil {
		senderName = sender.DisplayName
	}

	result := &Message{
		ID:                msg.ID.String(),
		RoomID:            roomID,
		SenderID:          userID,
		SenderDisplayName: senderName,
		Content:           content,
		SentAtMs:          msg.SentAt.UnixMilli(),
	}

	payload := events.ChatMessagePayload{
		MessageID:         result.ID,
		SenderID:          userID,
		SenderDisplayName: senderName,
		Content:           content,
		SentAtMs:          result.SentAtMs,
	}
	if err := s.events.Publish(ctx, events.EventTypeChatMessage, roomID, userID, payload); err != nil {
		log.Printf("Warning: failed to publish chat_message for room %s: %v", roomID, err)
	}

	return result, nil
}

// History returns a page of the room's messages, newest first.
func (s *Service) History(ctx context.Context, roomID, userID string, page, size int) ([]*Message, error) {
	exists, err := s.store.RoomExists(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("room %s: %w", roomID, errs.ErrNotFound)
	}

	member, err := s.store.IsActiveMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("user %s is not an active member of room %s: %w", userID, roomID, errs.ErrPreconditionFailed)
	}

	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 100 {
		size = 50
	}

	stored, err := s.store.GetChatHistory(ctx, roomID, page, size)
	if err != nil {
		return nil, err
	}

	senderIDs := make([]string, 0, len(stored))
	seen := make(map[string]bool, len(stored))
	for _, m := range stored {
		id := m.SenderID.String()
		if !seen[id] {
			seen[id] = true
			senderIDs = append(senderIDs, id)
		}
	}
	names, err := s.store.GetDisplayNames(ctx, senderIDs)
	if err != nil {
		log.Printf("Warning: failed to resolve sender names for room %s: %v", roomID, err)
		names = map[string]string{}
	}

	messages := make([]*Message, 0, len(stored))
	for _, m := range stored {
		messages = append(messages, &Message{
			ID:                m.ID.String(),
			RoomID:            m.RoomID.String(),
			SenderID:          m.SenderID.String(),
			SenderDisplayName: names[m.SenderID.String()],
			Content:           m.Content,
			SentAtMs:          m.SentAt.UnixMilli(),
		})
	}
	return messages, nil
}
