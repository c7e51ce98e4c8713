package room

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/listening-room-system/pkg/events"
	"github.com/listening-room-system/pkg/models"
)

const (
	roomCacheKeyFmt = "room:%s:meta"
	roomCacheTTL    = 24 * time.Hour

	roleHost   = "HOST"
	roleMember = "MEMBER"
)

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Store is the durable surface the room service needs.
type Store interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetDisplayNames(ctx context.Context, ids []string) (map[string]string, error)
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoomByID(ctx context.Context, id string) (*models.Room, error)
	GetRoomByCode(ctx context.Context, code string) (*models.Room, error)
	RoomExists(ctx context.Context, id string) (bool, error)
	AddMember(ctx context.Context, roomID, userID uuid.UUID, role string) error
	IsActiveMember(ctx context.Context, roomID, userID string) (bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, eventType events.EventType, roomID, userID string, payload interface{}) error
}

// Service manages room lifecycle and membership, and is the membership
// collaborator the runtime services check against. Room metadata is durable
// in MySQL and cached in Redis for the hot read path.
type Service struct {
	db     Store
	cache  *redis.Client
	events Publisher
}

func NewService(db Store, cache *redis.Client, events Publisher) *Service {
	return &Service{
		db:     db,
		cache:  cache,
		events: events,
	}
}

// generateRoomCode produces a short join code. Ambiguous characters are left
// out of the alphabet.
func generateRoomCode() string {
	code := make([]byte, 6)
	for i := range code {
		code[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(code)
}

// Create makes a new room with the caller as host.
func (s *Service) Create(ctx context.Context, hostID, name string) (*models.Room, error) {
	hostUUID, err := uuid.Parse(hostID)
	if err != nil {
		return nil, fmt.Errorf("invalid host id %q: %w", hostID, err)
	}
	if _, err := s.db.GetUserByID(ctx, hostID); err != nil {
		return nil, err
	}

	room := &models.Room{
		ID:     uuid.New(),
		Code:   generateRoomCode(),
		HostID: hostUUID,
		Name:   name,
		Active: true,
	}
	if err := s.db.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	if err := s.db.AddMember(ctx, room.ID, hostUUID, roleHost); err != nil {
		return nil, fmt.Errorf("failed to add host membership: %w", err)
	}

	s.cacheRoom(ctx, room)
	log.Printf("Created room %s (code %s) hosted by %s", room.ID, room.Code, hostID)
	return room, nil
}

// GetByID returns a room, serving from the cache when possible.
func (s *Service) GetByID(ctx context.Context, roomID string) (*models.Room, error) {
	key := fmt.Sprintf(roomCacheKeyFmt, roomID)
	if data, err := s.cache.Get(ctx, key).Result(); err == nil {
		var room models.Room
		if err := json.Unmarshal([]byte(data), &room); err == nil {
			return &room, nil
		}
	}

	room, err := s.db.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	s.cacheRoom(ctx, room)
	return room, nil
}

// GetByCode resolves a join code to its room.
func (s *Service) GetByCode(ctx context.Context, code string) (*models.Room, error) {
	return s.db.GetRoomByCode(ctx, code)
}

// Join adds the user to the room identified by its join code.
func (s *Service) Join(ctx context.Context, code, userID string) (*models.Room, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	if _, err := s.db.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	room, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.db.AddMember(ctx, room.ID, userUUID, roleMember); err != nil {
		return nil, fmt.Errorf("failed to add membership: %w", err)
	}

	if err := s.events.Publish(ctx, events.EventTypeUserJoined, room.ID.String(), userID, nil); err != nil {
		log.Printf("Warning: failed to publish user_joined for room %s: %v", room.ID, err)
	}

	log.Printf("User %s joined room %s", userID, room.ID)
	return room, nil
}

// RoomExists reports whether the id names a known room. A cached room answers
// without touching MySQL.
func (s *Service) RoomExists(ctx context.Context, roomID string) (bool, error) {
	key := fmt.Sprintf(roomCacheKeyFmt, roomID)
	if n, err := s.cache.Exists(ctx, key).Result(); err == nil && n > 0 {
		return true, nil
	}
	return s.db.RoomExists(ctx, roomID)
}

// IsActiveMember reports whether the user currently belongs to the room.
func (s *Service) IsActiveMember(ctx context.Context, roomID, userID string) (bool, error) {
	return s.db.IsActiveMember(ctx, roomID, userID)
}

// GetDisplayNames resolves user ids to display names.
func (s *Service) GetDisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	return s.db.GetDisplayNames(ctx, ids)
}

func (s *Service) cacheRoom(ctx context.Context, room *models.Room) {
	data, err := json.Marshal(room)
	if err != nil {
		return
	}
	key := fmt.Sprintf(roomCacheKeyFmt, room.ID.String())
	if err := s.cache.Set(ctx, key, data, roomCacheTTL).Err(); err != nil {
		log.Printf("Warning: failed to cache room %s: %v", room.ID, err)
	}
}
