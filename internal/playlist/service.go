package playlist

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/listening-room-system/internal/playback"
	"github.com/listening-room-system/pkg/errs"
	"github.com/listening-room-system/pkg/events"
	"github.com/listening-room-system/pkg/models"
)

type QueueStore interface {
	NextSequence(ctx context.Context, roomID string) (int64, error)
	AddItem(ctx context.Context, item *models.QueueItem) error
	Items(ctx context.Context, roomID string) ([]*models.QueueItem, error)
	FirstQueued(ctx context.Context, roomID string) (*models.QueueItem, error)
}

type PlaybackStore interface {
	IsPlaying(ctx context.Context, roomID string) (bool, error)
}

// Starter is the playback operation the queue needs for auto-start.
type Starter interface {
	StartSpecific(ctx context.Context, roomID, itemID string) (playback.StartResult, error)
}

type EngagementCounter interface {
	Counts(ctx context.Context, roomID, itemID string) (likes, dislikes int64, err error)
}

type MembershipStore interface {
	RoomExists(ctx context.Context, id string) (bool, error)
	IsActiveMember(ctx context.Context, roomID, userID string) (bool, error)
	GetDisplayNames(ctx context.Context, ids []string) (map[string]string, error)
}

type Publisher interface {
	Publish(ctx context.Context, eventType events.EventType, roomID, userID string, payload interface{}) error
}

// Service manages a room's append-only track queue.
type Service struct {
	queue      QueueStore
	playback   PlaybackStore
	starter    Starter
	engagement EngagementCounter
	members    MembershipStore
	events     Publisher
}

func NewService(queue QueueStore, playbackStore PlaybackStore, starter Starter,
	engagement EngagementCounter, members MembershipStore, events Publisher) *Service {
	return &Service{
		queue:      queue,
		playback:   playbackStore,
		starter:    starter,
		engagement: engagement,
		members:    members,
		events:     events,
	}
}

// EnqueueResult reports the stored item and whether it began playing
// immediately because the room was idle.
type EnqueueResult struct {
	Item        *models.QueueItem `json:"item"`
	AutoStarted bool              `json:"auto_started"`
}

// Entry is one playlist row in the read model, item metadata plus live
// engagement counts and the adder's display name.
type Entry struct {
	Item         *models.QueueItem `json:"item"`
	LikeCount    int64             `json:"like_count"`
	DislikeCount int64             `json:"dislike_count"`
	AddedByName  string            `json:"added_by_name,omitempty"`
}

func validateTrack(track models.Track) error {
	if strings.TrimSpace(track.SourceID) == "" {
		return fmt.Errorf("track source id is required: %w", errs.ErrPreconditionFailed)
	}
	if strings.TrimSpace(track.Name) == "" {
		return fmt.Errorf("track name is required: %w", errs.ErrPreconditionFailed)
	}
	if track.DurationMs <= 0 {
		return fmt.Errorf("track duration must be positive: %w", errs.ErrPreconditionFailed)
	}
	return nil
}

// Enqueue appends a track to the room's queue. If nothing is playing and the
// new item is the head of the queue, it starts immediately.
func (s *Service) Enqueue(ctx context.Context, roomID, userID string, track models.Track) (*EnqueueResult, error) {
	exists, err := s.members.RoomExists(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("room %s: %w", roomID, errs.ErrNotFound)
	}

	member, err := s.members.IsActiveMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("user %s is not an active member of room %s: %w", userID, roomID, errs.ErrPreconditionFailed)
	}

	if err := validateTrack(track); err != nil {
		return nil, err
	}

	// The counter is bumped before the item is written; an enqueue that fails
	// past this point leaves a gap in the sequence, which is harmless.
	seq, err := s.queue.NextSequence(ctx, roomID)
	if err != nil {
		return nil, err
	}

	item := &models.QueueItem{
		ID:             uuid.New().String(),
		RoomID:         roomID,
		AddedByID:      userID,
		SequenceNumber: seq,
		Status:         models.StatusQueued,
		AddedAtMs:      time.Now().UnixMilli(),
		SourceID:       track.SourceID,
		SourceURI:      track.SourceURI,
		Name:           track.Name,
		Artist:         track.Artist,
		Album:          track.Album,
		DurationMs:     track.DurationMs,
		AlbumImageURL:  track.AlbumImageURL,
	}

	if err := s.queue.AddItem(ctx, item); err != nil {
		return nil, err
	}
	log.Printf("Added track %s to room %s (seq %d)", item.ID, roomID, seq)

	result := &EnqueueResult{Item: item}
	result.AutoStarted = s.maybeAutoStart(ctx, roomID, item)
	if result.AutoStarted {
		item.Status = models.StatusPlaying
	}

	payload := events.ItemAddedPayload{
		Item:        item,
		AutoStarted: result.AutoStarted,
	}
	if err := s.events.Publish(ctx, events.EventTypeItemAdded, roomID, userID, payload); err != nil {
		log.Printf("Warning: failed to publish item_added for room %s: %v", roomID, err)
	}

	return result, nil
}

// maybeAutoStart starts the new item when the room is idle and the item is
// the head of the queue. Failures here never fail the enqueue; the item is
// already stored.
func (s *Service) maybeAutoStart(ctx context.Context, roomID string, item *models.QueueItem) bool {
	playing, err := s.playback.IsPlaying(ctx, roomID)
	if err != nil {
		log.Printf("Warning: failed to check playback state for room %s, skipping auto-start: %v", roomID, err)
		return false
	}
	if playing {
		return false
	}

	first, err := s.queue.FirstQueued(ctx, roomID)
	if err != nil || first == nil || first.ID != item.ID {
		return false
	}

	if _, err := s.starter.StartSpecific(ctx, roomID, item.ID); err != nil {
		log.Printf("Warning: failed to auto-start track %s in room %s: %v", item.ID, roomID, err)
		return false
	}
	return true
}

// GetPlaylist returns every item in the room's queue in sequence order, with
// live engagement counts and adder display names attached.
func (s *Service) GetPlaylist(ctx context.Context, roomID, userID string) ([]Entry, error) {
	exists, err := s.members.RoomExists(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("room %s: %w", roomID, errs.ErrNotFound)
	}

	member, err := s.members.IsActiveMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("user %s is not an active member of room %s: %w", userID, roomID, errs.ErrPreconditionFailed)
	}

	items, err := s.queue.Items(ctx, roomID)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].SequenceNumber < items[j].SequenceNumber
	})

	adderIDs := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if !seen[item.AddedByID] {
			seen[item.AddedByID] = true
			adderIDs = append(adderIDs, item.AddedByID)
		}
	}
	names, err := s.members.GetDisplayNames(ctx, adderIDs)
	if err != nil {
		log.Printf("Warning: failed to resolve display names for room %s: %v", roomID, err)
		names = map[string]string{}
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		likes, dislikes, err := s.engagement.Counts(ctx, item.RoomID, item.ID)
		if err != nil {
			log.Printf("Warning: failed to count engagement for item %s: %v", item.ID, err)
		}
		entries = append(entries, Entry{
			Item:         item,
			LikeCount:    likes,
			DislikeCount: dislikes,
			AddedByName:  names[item.AddedByID],
		})
	}
	return entries, nil
}
