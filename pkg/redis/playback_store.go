package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/listening-room-system/pkg/errs"
	"github.com/listening-room-system/pkg/models"
)

const playbackKeyFmt = "room:%s:playback"

// PlaybackStore holds the single per-room playback record. An absent record
// means nothing is playing. There is no pause state: a started track runs
// until it completes, is skipped, or playback is stopped.
type PlaybackStore struct {
	client *redis.Client
}

func NewPlaybackStore(client *redis.Client) *PlaybackStore {
	return &PlaybackStore{client: client}
}

// Set writes the room's playback record, replacing any previous one.
func (s *PlaybackStore) Set(ctx context.Context, roomID string, state *models.PlaybackState) error {
	if err := s.client.HSet(ctx, fmt.Sprintf(playbackKeyFmt, roomID), state).Err(); err != nil {
		return fmt.Errorf("failed to write playback state: %w", errs.ErrStoreUnavailable)
	}
	return nil
}

// Get returns the room's playback state, or nil if nothing is playing.
func (s *PlaybackStore) Get(ctx context.Context, roomID string) (*models.PlaybackState, error) {
	res := s.client.HGetAll(ctx, fmt.Sprintf(playbackKeyFmt, roomID))
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("failed to read playback state: %w", errs.ErrStoreUnavailable)
	}
	if len(res.Val()) == 0 {
		return nil, nil
	}

	var state models.PlaybackState
	if err := res.Scan(&state); err != nil {
		return nil, fmt.Errorf("failed to scan playback state: %w", err)
	}
	return &state, nil
}

// IsPlaying reports whether a playback record exists for the room.
func (s *PlaybackStore) IsPlaying(ctx context.Context, roomID string) (bool, error) {
	n, err := s.client.Exists(ctx, fmt.Sprintf(playbackKeyFmt, roomID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check playback state: %w", errs.ErrStoreUnavailable)
	}
	return n > 0, nil
}

// Clear removes the room's playback record. Reports whether a record was
// actually deleted, so stopping an already-stopped room stays a no-op.
func (s *PlaybackStore) Clear(ctx context.Context, roomID string) (bool, error) {
	n, err := s.client.Del(ctx, fmt.Sprintf(playbackKeyFmt, roomID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to clear playback state: %w", errs.ErrStoreUnavailable)
	}
	return n > 0, nil
}
