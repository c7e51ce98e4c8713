package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/listening-room-system/pkg/errs"
	"github.com/listening-room-system/pkg/events"
	"github.com/listening-room-system/pkg/models"
)

type fakeStore struct {
	users   map[string]*models.User
	rooms   map[string]*models.Room
	byCode  map[string]*models.Room
	members map[string]string // roomID/userID -> role

	roomExistsCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[string]*models.User),
		rooms:   make(map[string]*models.Room),
		byCode:  make(map[string]*models.Room),
		members: make(map[string]string),
	}
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, errs.ErrNotFound)
	}
	return user, nil
}

func (f *fakeStore) GetDisplayNames(_ context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string)
	for _, id := range ids {
		if user, ok := f.users[id]; ok {
			names[id] = user.DisplayName
		}
	}
	return names, nil
}

func (f *fakeStore) CreateRoom(_ context.Context, room *models.Room) error {
	f.rooms[room.ID.String()] = room
	f.byCode[room.Code] = room
	return nil
}

func (f *fakeStore) GetRoomByID(_ context.Context, id string) (*models.Room, error) {
	room, ok := f.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", id, errs.ErrNotFound)
	}
	return room, nil
}

func (f *fakeStore) GetRoomByCode(_ context.Context, code string) (*models.Room, error) {
	room, ok := f.byCode[code]
	if !ok {
		return nil, fmt.Errorf("room code %s: %w", code, errs.ErrNotFound)
	}
	return room, nil
}

func (f *fakeStore) RoomExists(_ context.Context, id string) (bool, error) {
	f.roomExistsCalls++
	_, ok := f.rooms[id]
	return ok, nil
}

func (f *fakeStore) AddMember(_ context.Context, roomID, userID uuid.UUID, role string) error {
	f.members[roomID.String()+"/"+userID.String()] = role
	return nil
}

func (f *fakeStore) IsActiveMember(_ context.Context, roomID, userID string) (bool, error) {
	_, ok := f.members[roomID+"/"+userID]
	return ok, nil
}

type fakePublisher struct {
	published []events.EventType
}

func (p *fakePublisher) Publish(_ context.Context, eventType events.EventType, _, _ string, _ interface{}) error {
	p.published = append(p.published, eventType)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeStore, *fakePublisher) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	store := newFakeStore()
	pub := &fakePublisher{}
	return NewService(store, cache, pub), store, pub
}

func addUser(store *fakeStore, name string) string {
	id := uuid.New()
	store.users[id.String()] = &models.User{ID: id, DisplayName: name}
	return id.String()
}

func TestCreateMakesCallerHost(t *testing.T) {
	svc, store, _ := newTestService(t)
	hostID := addUser(store, "Alice")

	room, err := svc.Create(context.Background(), hostID, "listening party")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if room.Code == "" || !room.Active {
		t.Errorf("room = %+v", room)
	}
	if role := store.members[room.ID.String()+"/"+hostID]; role != roleHost {
		t.Errorf("host role = %q, want %q", role, roleHost)
	}
}

func TestJoinResolvesCodeAndAddsMember(t *testing.T) {
	svc, store, pub := newTestService(t)
	hostID := addUser(store, "Alice")
	guestID := addUser(store, "Bob")

	created, err := svc.Create(context.Background(), hostID, "listening party")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	joined, err := svc.Join(context.Background(), created.Code, guestID)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if joined.ID != created.ID {
		t.Errorf("joined room %s, want %s", joined.ID, created.ID)
	}
	if role := store.members[created.ID.String()+"/"+guestID]; role != roleMember {
		t.Errorf("guest role = %q, want %q", role, roleMember)
	}
	if len(pub.published) == 0 || pub.published[len(pub.published)-1] != events.EventTypeUserJoined {
		t.Errorf("published = %v", pub.published)
	}

	ok, err := svc.IsActiveMember(context.Background(), created.ID.String(), guestID)
	if err != nil || !ok {
		t.Errorf("IsActiveMember = %v, %v", ok, err)
	}
}

func TestJoinUnknownCode(t *testing.T) {
	svc, store, _ := newTestService(t)
	guestID := addUser(store, "Bob")

	_, err := svc.Join(context.Background(), "NOSUCH", guestID)
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRoomExistsServedFromCache(t *testing.T) {
	svc, store, _ := newTestService(t)
	hostID := addUser(store, "Alice")

	room, err := svc.Create(context.Background(), hostID, "listening party")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := svc.RoomExists(context.Background(), room.ID.String())
	if err != nil || !ok {
		t.Fatalf("RoomExists = %v, %v", ok, err)
	}
	if store.roomExistsCalls != 0 {
		t.Errorf("store hit %d times for a cached room, want 0", store.roomExistsCalls)
	}

	ok, err = svc.RoomExists(context.Background(), uuid.New().String())
	if err != nil || ok {
		t.Errorf("RoomExists for unknown id = %v, %v", ok, err)
	}
	if store.roomExistsCalls != 1 {
		t.Errorf("store hit %d times for an uncached id, want 1", store.roomExistsCalls)
	}
}

func TestGetByIDFallsBackToStore(t *testing.T) {
	svc, store, _ := newTestService(t)
	id := uuid.New()
	store.rooms[id.String()] = &models.Room{ID: id, Code: "ABC234", Name: "quiet room", Active: true}

	room, err := svc.GetByID(context.Background(), id.String())
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if room.Name != "quiet room" {
		t.Errorf("room = %+v", room)
	}

	// The read-through populates the cache.
	ok, err := svc.RoomExists(context.Background(), id.String())
	if err != nil || !ok {
		t.Fatalf("RoomExists = %v, %v", ok, err)
	}
	if store.roomExistsCalls != 0 {
		t.Errorf("store hit %d times after read-through, want 0", store.roomExistsCalls)
	}
}

func TestGenerateRoomCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := generateRoomCode()
		if len(code) != 6 {
			t.Fatalf("code %q has length %d, want 6", code, len(code))
		}
		for _, ch := range code {
			if !strings.ContainsRune(codeAlphabet, ch) {
				t.Fatalf("code %q contains %q outside the alphabet", code, ch)
			}
		}
		seen[code] = true
	}
	// Collisions over 100 draws from a 32^6 space would indicate a broken
	// generator rather than bad luck.
	if len(seen) < 95 {
		t.Errorf("only %d distinct codes out of 100", len(seen))
	}
}
