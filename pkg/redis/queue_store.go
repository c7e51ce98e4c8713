package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/listening-room-system/pkg/errs"
	"github.com/listening-room-system/pkg/models"
)

// Key layout:
//   room:{roomId}:playlist              ordered list of item ids (append-only)
//   room:{roomId}:playlist:seq          atomic sequence counter
//   room:{roomId}:playlist:item:{id}    item hash
const (
	playlistKeyFmt = "room:%s:playlist"
	sequenceKeyFmt = "room:%s:playlist:seq"
	itemKeyFmt     = "room:%s:playlist:item:%s"
)

// updateStatusScript flips an item's status only if it still holds the
// expected value, so two racing transitions cannot both apply.
var updateStatusScript = redis.NewScript(`
	local current = redis.call('HGET', KEYS[1], 'status')
	if current == ARGV[1] then
		redis.call('HSET', KEYS[1], 'status', ARGV[2])
		return 1
	end
	return 0
`)

// QueueStore is the ephemeral sequence-and-queue store: a per-room monotonic
// counter plus the ordered, append-only list of queued item ids.
type QueueStore struct {
	client *redis.Client
}

func NewQueueStore(client *redis.Client) *QueueStore {
	return &QueueStore{client: client}
}

// NextSequence atomically increments and returns the room's sequence counter.
// This is the only source of item ordering; never reimplement it with a
// read-then-write.
func (s *QueueStore) NextSequence(ctx context.Context, roomID string) (int64, error) {
	seq, err := s.client.Incr(ctx, fmt.Sprintf(sequenceKeyFmt, roomID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence counter: %w", errs.ErrStoreUnavailable)
	}
	return seq, nil
}

// AddItem stores the item hash and appends its id to the room's queue list.
func (s *QueueStore) AddItem(ctx context.Context, item *models.QueueItem) error {
	itemKey := fmt.Sprintf(itemKeyFmt, item.RoomID, item.ID)
	listKey := fmt.Sprintf(playlistKeyFmt, item.RoomID)

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, itemKey, item)
	pipe.RPush(ctx, listKey, item.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add queue item %s: %w", item.ID, errs.ErrStoreUnavailable)
	}
	return nil
}

func (s *QueueStore) GetItem(ctx context.Context, roomID, itemID string) (*models.QueueItem, error) {
	res := s.client.HGetAll(ctx, fmt.Sprintf(itemKeyFmt, roomID, itemID))
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("failed to get queue item %s: %w", itemID, errs.ErrStoreUnavailable)
	}
	if len(res.Val()) == 0 {
		return nil, fmt.Errorf("queue item %s: %w", itemID, errs.ErrNotFound)
	}

	var item models.QueueItem
	if err := res.Scan(&item); err != nil {
		return nil, fmt.Errorf("failed to scan queue item %s: %w", itemID, err)
	}
	return &item, nil
}

// ItemIDs returns the room's full queue list in insertion order.
func (s *QueueStore) ItemIDs(ctx context.Context, roomID string) ([]string, error) {
	ids, err := s.client.LRange(ctx, fmt.Sprintf(playlistKeyFmt, roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue list: %w", errs.ErrStoreUnavailable)
	}
	return ids, nil
}

// Items loads all queue items for a room, in insertion order.
func (s *QueueStore) Items(ctx context.Context, roomID string) ([]*models.QueueItem, error) {
	ids, err := s.ItemIDs(ctx, roomID)
	if err != nil {
		return nil, err
	}

	items := make([]*models.QueueItem, 0, len(ids))
	for _, id := range ids {
		item, err := s.GetItem(ctx, roomID, id)
		if err != nil {
			// Item hashes can expire independently of the list.
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// FirstQueued returns the QUEUED item with the lowest sequence number, or
// nil if the room has nothing waiting.
func (s *QueueStore) FirstQueued(ctx context.Context, roomID string) (*models.QueueItem, error) {
	items, err := s.Items(ctx, roomID)
	if err != nil {
		return nil, err
	}

	var first *models.QueueItem
	for _, item := range items {
		if item.Status != models.StatusQueued {
			continue
		}
		if first == nil || item.SequenceNumber < first.SequenceNumber {
			first = item
		}
	}
	return first, nil
}

// CurrentPlaying returns the item with status PLAYING, or nil if none.
func (s *QueueStore) CurrentPlaying(ctx context.Context, roomID string) (*models.QueueItem, error) {
	items, err := s.Items(ctx, roomID)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.Status == models.StatusPlaying {
			return item, nil
		}
	}
	return nil, nil
}

// UpdateStatus transitions an item from one status to another. The write is
// guarded server-side on the current status, so a transition that lost a race
// reports false rather than clobbering the winner's write.
func (s *QueueStore) UpdateStatus(ctx context.Context, roomID, itemID string, from, to models.TrackStatus) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("invalid status transition %s -> %s: %w", from, to, errs.ErrPreconditionFailed)
	}

	itemKey := fmt.Sprintf(itemKeyFmt, roomID, itemID)
	applied, err := updateStatusScript.Run(ctx, s.client, []string{itemKey}, string(from), string(to)).Int()
	if err != nil {
		return false, fmt.Errorf("failed to update status of item %s: %w", itemID, errs.ErrStoreUnavailable)
	}
	return applied == 1, nil
}
