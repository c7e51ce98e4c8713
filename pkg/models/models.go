package models

import (
	"time"

	"github.com/google/uuid"
)

// Durable entities (MySQL via GORM).

type User struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:char(36)"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Room struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:char(36)"`
	Code      string    `json:"code" gorm:"unique"`
	HostID    uuid.UUID `json:"host_id" gorm:"type:char(36)"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RoomMember struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:char(36)"`
	RoomID    uuid.UUID `json:"room_id" gorm:"type:char(36);index:idx_room_user,unique"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:char(36);index:idx_room_user,unique"`
	Role      string    `json:"role"` // HOST or MEMBER
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserStats holds a user's lifetime like/dislike totals across all rooms
// where they were the track adder. Counters never go below zero.
type UserStats struct {
	UserID       uuid.UUID `json:"user_id" gorm:"primaryKey;type:char(36)"`
	TotalLike    int       `json:"total_like"`
	TotalDislike int       `json:"total_dislike"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ChatMessage struct {
	ID       uuid.UUID `json:"id" gorm:"primaryKey;type:char(36)"`
	RoomID   uuid.UUID `json:"room_id" gorm:"type:char(36);index"`
	SenderID uuid.UUID `json:"sender_id" gorm:"type:char(36)"`
	Content  string    `json:"content" gorm:"size:1000"`
	SentAt   time.Time `json:"sent_at" gorm:"index"`
}

// Runtime state (Redis). These carry redis scan tags so go-redis can map
// them to and from hashes directly.

type TrackStatus string

const (
	StatusQueued  TrackStatus = "QUEUED"
	StatusPlaying TrackStatus = "PLAYING"
	StatusPlayed  TrackStatus = "PLAYED"
	StatusSkipped TrackStatus = "SKIPPED"
)

// Terminal reports whether no further transitions are allowed from s.
func (s TrackStatus) Terminal() bool {
	return s == StatusPlayed || s == StatusSkipped
}

// CanTransitionTo validates a status change. QUEUED may only become PLAYING;
// PLAYING may become PLAYED or SKIPPED; PLAYED and SKIPPED are final.
func (s TrackStatus) CanTransitionTo(next TrackStatus) bool {
	switch s {
	case StatusQueued:
		return next == StatusPlaying
	case StatusPlaying:
		return next == StatusPlayed || next == StatusSkipped
	default:
		return false
	}
}

// Track is the metadata supplied by the client when enqueueing.
type Track struct {
	SourceID      string `json:"source_id"`
	SourceURI     string `json:"source_uri"`
	Name          string `json:"name"`
	Artist        string `json:"artist"`
	Album         string `json:"album"`
	DurationMs    int64  `json:"duration_ms"`
	AlbumImageURL string `json:"album_image_url,omitempty"`
}

// QueueItem is one entry in a room's playlist. Items are appended once and
// never removed; only Status changes afterwards.
type QueueItem struct {
	ID             string      `json:"id" redis:"id"`
	RoomID         string      `json:"room_id" redis:"room_id"`
	AddedByID      string      `json:"added_by_id" redis:"added_by_id"`
	SequenceNumber int64       `json:"sequence_number" redis:"sequence_number"`
	Status         TrackStatus `json:"status" redis:"status"`
	AddedAtMs      int64       `json:"added_at_ms" redis:"added_at_ms"`
	SourceID       string      `json:"source_id" redis:"source_id"`
	SourceURI      string      `json:"source_uri" redis:"source_uri"`
	Name           string      `json:"name" redis:"name"`
	Artist         string      `json:"artist" redis:"artist"`
	Album          string      `json:"album" redis:"album"`
	DurationMs     int64       `json:"duration_ms" redis:"duration_ms"`
	AlbumImageURL  string      `json:"album_image_url,omitempty" redis:"album_image_url"`
}

// Track returns the item's client-facing metadata.
func (q *QueueItem) Track() Track {
	return Track{
		SourceID:      q.SourceID,
		SourceURI:     q.SourceURI,
		Name:          q.Name,
		Artist:        q.Artist,
		Album:         q.Album,
		DurationMs:    q.DurationMs,
		AlbumImageURL: q.AlbumImageURL,
	}
}

// PlaybackState is the single per-room record describing what is playing.
// Absence of the record means nothing is playing.
type PlaybackState struct {
	CurrentItemID   string `json:"current_item_id" redis:"current_item_id"`
	StartedAtMs     int64  `json:"started_at_ms" redis:"started_at_ms"`
	TrackDurationMs int64  `json:"track_duration_ms" redis:"track_duration_ms"`
	UpdatedAtMs     int64  `json:"updated_at_ms" redis:"updated_at_ms"`
}

// ElapsedMs is how long the current track has been playing as of nowMs.
func (p *PlaybackState) ElapsedMs(nowMs int64) int64 {
	return nowMs - p.StartedAtMs
}

// Direction is a user's engagement with a queue item. NEUTRAL means the user
// appears in neither the like nor the dislike set.
type Direction string

const (
	DirectionLike    Direction = "LIKE"
	DirectionDislike Direction = "DISLIKE"
	DirectionNeutral Direction = "NEUTRAL"
)

func (d Direction) Valid() bool {
	return d == DirectionLike || d == DirectionDislike || d == DirectionNeutral
}

// StatsDelta is the change a direction transition implies for the track
// adder's aggregate totals.
type StatsDelta struct {
	Like    int
	Dislike int
}

// Inverse returns the compensating delta.
func (d StatsDelta) Inverse() StatsDelta {
	return StatsDelta{Like: -d.Like, Dislike: -d.Dislike}
}

func (d StatsDelta) IsZero() bool {
	return d.Like == 0 && d.Dislike == 0
}

// DeltaFor computes the aggregate change implied by moving a user from one
// direction to another. Same-direction transitions yield a zero delta.
func DeltaFor(current, requested Direction) StatsDelta {
	if current == requested {
		return StatsDelta{}
	}
	var delta StatsDelta
	switch current {
	case DirectionLike:
		delta.Like--
	case DirectionDislike:
		delta.Dislike--
	}
	switch requested {
	case DirectionLike:
		delta.Like++
	case DirectionDislike:
		delta.Dislike++
	}
	return delta
}
