package engagement

import (
	"context"
	"fmt"
	"log"

	"github.com/listening-room-system/pkg/errs"
	"github.com/listening-room-system/pkg/events"
	"github.com/listening-room-system/pkg/models"
)

type ItemStore interface {
	GetItem(ctx context.Context, roomID, itemID string) (*models.QueueItem, error)
}

type EngagementStore interface {
	Direction(ctx context.Context, roomID, itemID, userID string) (models.Direction, error)
	Apply(ctx context.Context, roomID, itemID, userID string, direction models.Direction) error
	Counts(ctx context.Context, roomID, itemID string) (likes, dislikes int64, err error)
}

type StatsStore interface {
	ApplyStatsDelta(ctx context.Context, userID string, delta models.StatsDelta) error
	GetStats(ctx context.Context, userID string) (*models.UserStats, error)
}

type Publisher interface {
	Publish(ctx context.Context, eventType events.EventType, roomID, userID string, payload interface{}) error
}

// Service coordinates a user's like/dislike state across the two stores: the
// per-item member sets in Redis and the track adder's lifetime totals in
// MySQL. The durable write goes first; if the ephemeral write then fails, the
// durable one is compensated.
type Service struct {
	items  ItemStore
	store  EngagementStore
	stats  StatsStore
	events Publisher
}

func NewService(items ItemStore, store EngagementStore, stats StatsStore, events Publisher) *Service {
	return &Service{
		items:  items,
		store:  store,
		stats:  stats,
		events: events,
	}
}

// Result reports the item's counts after the operation and whether anything
// actually changed.
type Result struct {
	Changed      bool             `json:"changed"`
	Direction    models.Direction `json:"direction"`
	LikeCount    int64            `json:"like_count"`
	DislikeCount int64            `json:"dislike_count"`
}

// SetEngagement moves the user's engagement on an item to the requested
// direction. Requesting the direction the user already holds is a no-op.
func (s *Service) SetEngagement(ctx context.Context, roomID, itemID, userID string, direction models.Direction) (*Result, error) {
	if !direction.Valid() {
		return nil, fmt.Errorf("invalid direction %q: %w", direction, errs.ErrPreconditionFailed)
	}

	item, err := s.items.GetItem(ctx, roomID, itemID)
	if err != nil {
		return nil, err
	}

	current, err := s.store.Direction(ctx, roomID, itemID, userID)
	if err != nil {
		return nil, err
	}
	if current == direction {
		likes, dislikes, err := s.store.Counts(ctx, roomID, itemID)
		if err != nil {
			return nil, err
		}
		return &Result{Changed: false, Direction: direction, LikeCount: likes, DislikeCount: dislikes}, nil
	}

	delta := models.DeltaFor(current, direction)

	// Durable first. If this fails nothing has changed anywhere.
	if err := s.stats.ApplyStatsDelta(ctx, item.AddedByID, delta); err != nil {
		return nil, fmt.Errorf("failed to update aggregate stats: %w", err)
	}

	if err := s.store.Apply(ctx, roomID, itemID, userID, direction); err != nil {
		// Roll the durable write back so the two stores agree.
		if compErr := s.stats.ApplyStatsDelta(ctx, item.AddedByID, delta.Inverse()); compErr != nil {
			log.Printf("CRITICAL: stats inconsistent for user %s on item %s in room %s (attempted delta %+v), compensation failed: %v",
				item.AddedByID, itemID, roomID, delta, compErr)
			return nil, fmt.Errorf("engagement write failed and compensation failed: %w", errs.ErrInconsistent)
		}
		return nil, err
	}

	likes, dislikes, err := s.store.Counts(ctx, roomID, itemID)
	if err != nil {
		log.Printf("Warning: failed to read engagement counts for item %s: %v", itemID, err)
	}

	payload := events.StatsUpdatedPayload{
		ItemID:       itemID,
		LikeCount:    likes,
		DislikeCount: dislikes,
	}
	if err := s.events.Publish(ctx, events.EventTypeStatsUpdated, roomID, userID, payload); err != nil {
		log.Printf("Warning: failed to publish stats_updated for room %s: %v", roomID, err)
	}

	return &Result{Changed: true, Direction: direction, LikeCount: likes, DislikeCount: dislikes}, nil
}

// Like records a like for the item.
func (s *Service) Like(ctx context.Context, roomID, itemID, userID string) (*Result, error) {
	return s.SetEngagement(ctx, roomID, itemID, userID, models.DirectionLike)
}

// Dislike records a dislike for the item.
func (s *Service) Dislike(ctx context.Context, roomID, itemID, userID string) (*Result, error) {
	return s.SetEngagement(ctx, roomID, itemID, userID, models.DirectionDislike)
}

// Clear removes the user's engagement from the item.
func (s *Service) Clear(ctx context.Context, roomID, itemID, userID string) (*Result, error) {
	return s.SetEngagement(ctx, roomID, itemID, userID, models.DirectionNeutral)
}

// Counts returns the item's current like and dislike counts together with
// the caller's own direction.
func (s *Service) Counts(ctx context.Context, roomID, itemID, userID string) (*Result, error) {
	if _, err := s.items.GetItem(ctx, roomID, itemID); err != nil {
		return nil, err
	}
	direction, err := s.store.Direction(ctx, roomID, itemID, userID)
	if err != nil {
		return nil, err
	}
	likes, dislikes, err := s.store.Counts(ctx, roomID, itemID)
	if err != nil {
		return nil, err
	}
	return &Result{Direction: direction, LikeCount: likes, DislikeCount: dislikes}, nil
}

// UserStats returns a user's lifetime aggregate totals.
func (s *Service) UserStats(ctx context.Context, userID string) (*models.UserStats, error) {
	return s.stats.GetStats(ctx, userID)
}
