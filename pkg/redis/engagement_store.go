package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/listening-room-system/pkg/errs"
	"github.com/listening-room-system/pkg/models"
)

const (
	likesKeyFmt    = "room:%s:playlist:item:%s:likes"
	dislikesKeyFmt = "room:%s:playlist:item:%s:dislikes"
)

// EngagementStore keeps the per-item like and dislike member sets. A user id
// appears in at most one of the two sets; every write that adds to one set
// removes from the other in the same pipeline.
type EngagementStore struct {
	client *redis.Client
}

func NewEngagementStore(client *redis.Client) *EngagementStore {
	return &EngagementStore{client: client}
}

// Direction returns which set, if either, the user currently belongs to.
func (s *EngagementStore) Direction(ctx context.Context, roomID, itemID, userID string) (models.Direction, error) {
	likesKey := fmt.Sprintf(likesKeyFmt, roomID, itemID)
	dislikesKey := fmt.Sprintf(dislikesKeyFmt, roomID, itemID)

	pipe := s.client.Pipeline()
	liked := pipe.SIsMember(ctx, likesKey, userID)
	disliked := pipe.SIsMember(ctx, dislikesKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to read engagement for user %s: %w", userID, errs.ErrStoreUnavailable)
	}

	switch {
	case liked.Val():
		return models.DirectionLike, nil
	case disliked.Val():
		return models.DirectionDislike, nil
	default:
		return models.DirectionNeutral, nil
	}
}

// Apply moves the user's membership to match the requested direction.
func (s *EngagementStore) Apply(ctx context.Context, roomID, itemID, userID string, direction models.Direction) error {
	likesKey := fmt.Sprintf(likesKeyFmt, roomID, itemID)
	dislikesKey := fmt.Sprintf(dislikesKeyFmt, roomID, itemID)

	pipe := s.client.Pipeline()
	switch direction {
	case models.DirectionLike:
		pipe.SRem(ctx, dislikesKey, userID)
		pipe.SAdd(ctx, likesKey, userID)
	case models.DirectionDislike:
		pipe.SRem(ctx, likesKey, userID)
		pipe.SAdd(ctx, dislikesKey, userID)
	case models.DirectionNeutral:
		pipe.SRem(ctx, likesKey, userID)
		pipe.SRem(ctx, dislikesKey, userID)
	default:
		return fmt.Errorf("invalid direction %q: %w", direction, errs.ErrPreconditionFailed)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to apply %s for user %s: %w", direction, userID, errs.ErrStoreUnavailable)
	}
	return nil
}

// Counts returns the current like and dislike set sizes for an item.
func (s *EngagementStore) Counts(ctx context.Context, roomID, itemID string) (likes, dislikes int64, err error) {
	likesKey := fmt.Sprintf(likesKeyFmt, roomID, itemID)
	dislikesKey := fmt.Sprintf(dislikesKeyFmt, roomID, itemID)

	pipe := s.client.Pipeline()
	likeCount := pipe.SCard(ctx, likesKey)
	dislikeCount := pipe.SCard(ctx, dislikesKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to count engagement for item %s: %w", itemID, errs.ErrStoreUnavailable)
	}

	return likeCount.Val(), dislikeCount.Val(), nil
}
