package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/listening-room-system/pkg/errs"
	"github.com/listening-room-system/pkg/events"
	"github.com/listening-room-system/pkg/models"
)

type fakeLimiter struct {
	limit int
	count int
	err   error
}

func (l *fakeLimiter) Allow(_ context.Context, _, _ string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.count >= l.limit {
		return false, nil
	}
	l.count++
	return true, nil
}

type fakeStore struct {
	rooms     map[string]bool
	members   map[string]bool
	users     map[string]*models.User
	messages  []*models.ChatMessage
	createErr error
}

func (s *fakeStore) RoomExists(_ context.Context, id string) (bool, error) {
	return s.rooms[id], nil
}

func (s *fakeStore) IsActiveMember(_ context.Context, roomID, userID string) (bool, error) {
	return s.members[roomID+"/"+userID], nil
}

func (s *fakeStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, errs.ErrNotFound)
	}
	return user, nil
}

func (s *fakeStore) GetDisplayNames(_ context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string)
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			names[id] = user.DisplayName
		}
	}
	return names, nil
}

func (s *fakeStore) CreateChatMessage(_ context.Context, msg *models.ChatMessage) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *fakeStore) GetChatHistory(_ context.Context, roomID string, page, size int) ([]*models.ChatMessage, error) {
	var out []*models.ChatMessage
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].RoomID.String() == roomID {
			out = append(out, s.messages[i])
		}
	}
	start := page * size
	if start >= len(out) {
		return nil, nil
	}
	end := min(start+size, len(out))
	return out[start:end], nil
}

type fakePublisher struct {
	published []events.EventType
}

func (p *fakePublisher) Publish(_ context.Context, eventType events.EventType, _, _ string, _ interface{}) error {
	p.published = append(p.published, eventType)
	return nil
}

var (
	testRoomID = uuid.New().String()
	testUserID = uuid.New().String()
)

func newTestService(t *testing.T, limiter *fakeLimiter) (*Service, *fakeStore, *fakePublisher) {
	t.Helper()
	uid := uuid.MustParse(testUserID)
	store := &fakeStore{
		rooms:   map[string]bool{testRoomID: true},
		members: map[string]bool{testRoomID + "/" + testUserID: true},
		users: map[string]*models.User{
			testUserID: {ID: uid, DisplayName: "Alice"},
		},
	}
	pub := &fakePublisher{}
	return NewService(limiter, store, pub, 1000), store, pub
}

func TestSendPersistsAndBroadcasts(t *testing.T) {
	svc, store, pub := newTestService(t, &fakeLimiter{limit: 10})

	msg, err := svc.Send(context.Background(), testRoomID, testUserID, "  hello room  ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.Content != "hello room" {
		t.Errorf("content = %q, want trimmed", msg.Content)
	}
	if msg.SenderDisplayName != "Alice" {
		t.Errorf("sender name = %q", msg.SenderDisplayName)
	}
	if len(store.messages) != 1 {
		t.Fatalf("stored %d messages, want 1", len(store.messages))
	}
	if len(pub.published) != 1 || pub.published[0] != events.EventTypeChatMessage {
		t.Errorf("published = %v", pub.published)
	}
}

func TestSendRateLimitBlocksEleventhMessage(t *testing.T) {
	svc, store, _ := newTestService(t, &fakeLimiter{limit: 10})

	for i := 0; i < 10; i++ {
		if _, err := svc.Send(context.Background(), testRoomID, testUserID, fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
	}

	_, err := svc.Send(context.Background(), testRoomID, testUserID, "one too many")
	if !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if len(store.messages) != 10 {
		t.Errorf("stored %d messages, want 10", len(store.messages))
	}
}

func TestSendFailsOpenOnLimiterOutage(t *testing.T) {
	limiter := &fakeLimiter{err: fmt.Errorf("rate window: %w", errs.ErrStoreUnavailable)}
	svc, store, _ := newTestService(t, limiter)

	if _, err := svc.Send(context.Background(), testRoomID, testUserID, "still works"); err != nil {
		t.Fatalf("Send must fail open on limiter outage, got %v", err)
	}
	if len(store.messages) != 1 {
		t.Errorf("stored %d messages, want 1", len(store.messages))
	}
}

func TestSendRejectsEmptyContent(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeLimiter{limit: 10})

	_, err := svc.Send(context.Background(), testRoomID, testUserID, "   ")
	if !errors.Is(err, errs.ErrPreconditionFailed) {
		t.Fatalf("expected precondition failure, got %v", err)
	}
}

func TestSendRejectsOversizedContent(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeLimiter{limit: 10})

	_, err := svc.Send(context.Background(), testRoomID, testUserID, strings.Repeat("x", 1001))
	if !errors.Is(err, errs.ErrPreconditionFailed) {
		t.Fatalf("expected precondition failure, got %v", err)
	}
}

func TestSendRejectsNonMember(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeLimiter{limit: 10})

	_, err := svc.Send(context.Background(), testRoomID, uuid.New().String(), "hi")
	if !errors.Is(err, errs.ErrPreconditionFailed) {
		t.Fatalf("expected precondition failure, got %v", err)
	}
}

func TestSendUnknownRoom(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeLimiter{limit: 10})

	_, err := svc.Send(context.Background(), uuid.New().String(), testUserID, "hi")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	svc, store, _ := newTestService(t, &fakeLimiter{limit: 100})

	base := time.Now()
	roomUUID := uuid.MustParse(testRoomID)
	senderUUID := uuid.MustParse(testUserID)
	for i := 0; i < 3; i++ {
		store.messages = append(store.messages, &models.ChatMessage{
			ID:       uuid.New(),
			RoomID:   roomUUID,
			SenderID: senderUUID,
			Content:  fmt.Sprintf("message %d", i),
			SentAt:   base.Add(time.Duration(i) * time.Second),
		})
	}

	messages, err := svc.History(context.Background(), testRoomID, testUserID, 0, 50)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(messages))
	}
	if messages[0].Content != "message 2" {
		t.Errorf("first message = %q, want the newest", messages[0].Content)
	}
	if messages[0].SenderDisplayName != "Alice" {
		t.Errorf("sender name = %q", messages[0].SenderDisplayName)
	}
}

func TestHistoryNonMemberRejected(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeLimiter{limit: 10})

	_, err := svc.History(context.Background(), testRoomID, uuid.New().String(), 0, 50)
	if !errors.Is(err, errs.ErrPreconditionFailed) {
		t.Fatalf("expected precondition failure, got %v", err)
	}
}
