package playback

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/listening-room-system/pkg/errs"
	"github.com/listening-room-system/pkg/events"
	"github.com/listening-room-system/pkg/models"
)

// QueueStore is the slice of the queue store the state machine needs.
type QueueStore interface {
	GetItem(ctx context.Context, roomID, itemID string) (*models.QueueItem, error)
	FirstQueued(ctx context.Context, roomID string) (*models.QueueItem, error)
	CurrentPlaying(ctx context.Context, roomID string) (*models.QueueItem, error)
	UpdateStatus(ctx context.Context, roomID, itemID string, from, to models.TrackStatus) (bool, error)
}

type PlaybackStore interface {
	Set(ctx context.Context, roomID string, state *models.PlaybackState) error
	Get(ctx context.Context, roomID string) (*models.PlaybackState, error)
	IsPlaying(ctx context.Context, roomID string) (bool, error)
	Clear(ctx context.Context, roomID string) (bool, error)
}

// Locker serializes playback transitions per room. The QUEUED check and the
// playback write span two keys, so they are not atomic on their own.
type Locker interface {
	Acquire(ctx context.Context, name string) (func(), error)
}

type Publisher interface {
	Publish(ctx context.Context, eventType events.EventType, roomID, userID string, payload interface{}) error
}

// Service owns the item lifecycle QUEUED -> PLAYING -> {PLAYED, SKIPPED} and
// the per-room playback record. It does not decide when a track ends; track
// completion is an external signal that arrives as a StartNext or Skip call.
type Service struct {
	queue    QueueStore
	playback PlaybackStore
	locks    Locker
	events   Publisher
}

func NewService(queue QueueStore, playback PlaybackStore, locks Locker, events Publisher) *Service {
	return &Service{
		queue:    queue,
		playback: playback,
		locks:    locks,
		events:   events,
	}
}

// StartResult carries what a caller needs to announce a playback change.
type StartResult struct {
	Started         bool         `json:"started"`
	ItemID          string       `json:"item_id,omitempty"`
	Track           models.Track `json:"track,omitempty"`
	StartedAtMs     int64        `json:"started_at_ms,omitempty"`
	TrackDurationMs int64        `json:"track_duration_ms,omitempty"`
}

// SkipResult reports the skipped item and, when the queue was not exhausted,
// the track that took its place.
type SkipResult struct {
	SkippedItemID string      `json:"skipped_item_id"`
	Next          StartResult `json:"next"`
}

// State is the read model for GetState.
type State struct {
	Playing         bool         `json:"playing"`
	ItemID          string       `json:"item_id,omitempty"`
	Track           models.Track `json:"track,omitempty"`
	StartedAtMs     int64        `json:"started_at_ms,omitempty"`
	TrackDurationMs int64        `json:"track_duration_ms,omitempty"`
	ElapsedMs       int64        `json:"elapsed_ms,omitempty"`
}

func lockName(roomID string) string {
	return "room:" + roomID + ":playback"
}

// StartNext starts the lowest-sequence QUEUED item. A room with nothing
// queued returns Started=false without error.
func (s *Service) StartNext(ctx context.Context, roomID string) (StartResult, error) {
	release, err := s.locks.Acquire(ctx, lockName(roomID))
	if err != nil {
		return StartResult{}, err
	}
	defer release()

	next, err := s.queue.FirstQueued(ctx, roomID)
	if err != nil {
		return StartResult{}, err
	}
	if next == nil {
		log.Printf("No queued tracks to start in room %s", roomID)
		return StartResult{}, nil
	}

	return s.startLocked(ctx, roomID, next)
}

// StartSpecific starts the given item. The item must currently be QUEUED.
func (s *Service) StartSpecific(ctx context.Context, roomID, itemID string) (StartResult, error) {
	release, err := s.locks.Acquire(ctx, lockName(roomID))
	if err != nil {
		return StartResult{}, err
	}
	defer release()

	item, err := s.queue.GetItem(ctx, roomID, itemID)
	if err != nil {
		return StartResult{}, err
	}
	if item.Status != models.StatusQueued {
		return StartResult{}, fmt.Errorf("item %s has status %s, only QUEUED items can start: %w",
			itemID, item.Status, errs.ErrPreconditionFailed)
	}

	return s.startLocked(ctx, roomID, item)
}

// startLocked performs the actual transition. Caller holds the room lock.
func (s *Service) startLocked(ctx context.Context, roomID string, item *models.QueueItem) (StartResult, error) {
	// A lingering PLAYING item can exist if a previous Stop half-failed;
	// retire it before starting the new one.
	prev, err := s.queue.CurrentPlaying(ctx, roomID)
	if err != nil {
		return StartResult{}, err
	}
	if prev != nil && prev.ID != item.ID {
		if ok, err := s.queue.UpdateStatus(ctx, roomID, prev.ID, models.StatusPlaying, models.StatusPlayed); err != nil || !ok {
			log.Printf("Warning: failed to retire previous track %s in room %s: ok=%v err=%v", prev.ID, roomID, ok, err)
		}
	}

	ok, err := s.queue.UpdateStatus(ctx, roomID, item.ID, models.StatusQueued, models.StatusPlaying)
	if err != nil {
		return StartResult{}, err
	}
	if !ok {
		return StartResult{}, fmt.Errorf("item %s is no longer QUEUED: %w", item.ID, errs.ErrPreconditionFailed)
	}

	now := time.Now().UnixMilli()
	state := &models.PlaybackState{
		CurrentItemID:   item.ID,
		StartedAtMs:     now,
		TrackDurationMs: item.DurationMs,
		UpdatedAtMs:     now,
	}
	if err := s.playback.Set(ctx, roomID, state); err != nil {
		return StartResult{}, err
	}

	result := StartResult{
		Started:         true,
		ItemID:          item.ID,
		Track:           item.Track(),
		StartedAtMs:     now,
		TrackDurationMs: item.DurationMs,
	}

	payload := events.TrackStartedPayload{
		ItemID:          item.ID,
		Track:           result.Track,
		StartedAtMs:     now,
		TrackDurationMs: item.DurationMs,
	}
	if err := s.events.Publish(ctx, events.EventTypeTrackStarted, roomID, item.AddedByID, payload); err != nil {
		log.Printf("Warning: failed to publish track_started for room %s: %v", roomID, err)
	}

	log.Printf("Started track %s in room %s (duration: %dms)", item.ID, roomID, item.DurationMs)
	return result, nil
}

// Skip marks the current track SKIPPED and starts the next queued item, or
// stops playback when the queue is exhausted.
func (s *Service) Skip(ctx context.Context, roomID string) (SkipResult, error) {
	release, err := s.locks.Acquire(ctx, lockName(roomID))
	if err != nil {
		return SkipResult{}, err
	}
	defer release()

	state, err := s.playback.Get(ctx, roomID)
	if err != nil {
		return SkipResult{}, err
	}
	if state == nil {
		return SkipResult{}, fmt.Errorf("no track is currently playing in room %s: %w", roomID, errs.ErrPreconditionFailed)
	}

	ok, err := s.queue.UpdateStatus(ctx, roomID, state.CurrentItemID, models.StatusPlaying, models.StatusSkipped)
	if err != nil {
		return SkipResult{}, err
	}
	if !ok {
		return SkipResult{}, fmt.Errorf("current item %s is not PLAYING: %w", state.CurrentItemID, errs.ErrPreconditionFailed)
	}

	result := SkipResult{SkippedItemID: state.CurrentItemID}

	next, err := s.queue.FirstQueued(ctx, roomID)
	if err != nil {
		return result, err
	}
	if next == nil {
		if err := s.stopLocked(ctx, roomID); err != nil {
			return result, err
		}
		log.Printf("Skipped track %s in room %s, queue exhausted, playback stopped", result.SkippedItemID, roomID)
		return result, nil
	}

	startResult, err := s.startLocked(ctx, roomID, next)
	if err != nil {
		return result, err
	}
	result.Next = startResult
	return result, nil
}

// Stop clears the room's playback record. Stopping an already-stopped room
// is a no-op.
func (s *Service) Stop(ctx context.Context, roomID string) error {
	release, err := s.locks.Acquire(ctx, lockName(roomID))
	if err != nil {
		return err
	}
	defer release()

	// Retire a still-PLAYING item so the record and the item statuses agree.
	current, err := s.queue.CurrentPlaying(ctx, roomID)
	if err != nil {
		return err
	}
	if current != nil {
		if ok, err := s.queue.UpdateStatus(ctx, roomID, current.ID, models.StatusPlaying, models.StatusPlayed); err != nil || !ok {
			log.Printf("Warning: failed to retire track %s while stopping room %s: ok=%v err=%v", current.ID, roomID, ok, err)
		}
	}

	return s.stopLocked(ctx, roomID)
}

func (s *Service) stopLocked(ctx context.Context, roomID string) error {
	cleared, err := s.playback.Clear(ctx, roomID)
	if err != nil {
		return err
	}
	if !cleared {
		return nil
	}

	payload := events.PlaybackStoppedPayload{StoppedAtMs: time.Now().UnixMilli()}
	if err := s.events.Publish(ctx, events.EventTypePlaybackStopped, roomID, "", payload); err != nil {
		log.Printf("Warning: failed to publish playback_stopped for room %s: %v", roomID, err)
	}
	return nil
}

// GetState returns the room's live playback view, including elapsed time so
// late joiners can seek to the right position.
func (s *Service) GetState(ctx context.Context, roomID string) (State, error) {
	state, err := s.playback.Get(ctx, roomID)
	if err != nil {
		return State{}, err
	}
	if state == nil {
		return State{Playing: false}, nil
	}

	result := State{
		Playing:         true,
		ItemID:          state.CurrentItemID,
		StartedAtMs:     state.StartedAtMs,
		TrackDurationMs: state.TrackDurationMs,
		ElapsedMs:       state.ElapsedMs(time.Now().UnixMilli()),
	}

	item, err := s.queue.GetItem(ctx, roomID, state.CurrentItemID)
	if err == nil {
		result.Track = item.Track()
	}
	return result, nil
}
