package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type EventType string

const (
	EventTypeItemAdded       EventType = "item_added"
	EventTypeTrackStarted    EventType = "track_started"
	EventTypePlaybackStopped EventType = "playback_stopped"
	EventTypeStatsUpdated    EventType = "stats_updated"
	EventTypeChatMessage     EventType = "chat_message"
	EventTypeUserJoined      EventType = "user_joined"
	EventTypeUserLeft        EventType = "user_left"
)

// Event is the envelope broadcast to room subscribers. The runtime decides
// what to broadcast; delivery is the consumer's concern.
type Event struct {
	Type      EventType       `json:"type"`
	RoomID    string          `json:"room_id"`
	UserID    string          `json:"user_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type KafkaClient struct {
	writer *kafka.Writer
	reader *kafka.Reader
}

func NewKafkaClient(brokers []string, topic string, groupID string) *KafkaClient {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset,
	})

	return &KafkaClient{
		writer: writer,
		reader: reader,
	}
}

// Publish wraps the payload in an Event envelope and writes it, keyed by
// room id so per-room ordering survives partitioning.
func (k *KafkaClient) Publish(ctx context.Context, eventType EventType, roomID, userID string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := Event{
		Type:      eventType,
		RoomID:    roomID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Payload:   payloadJSON,
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(roomID),
		Value: eventJSON,
	}
	if roomID == "" {
		msg.Key = []byte(uuid.New().String())
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Consume reads events until ctx is cancelled, passing each to handler.
func (k *KafkaClient) Consume(ctx context.Context, handler func(Event) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := k.reader.ReadMessage(ctx)
			if err != nil {
				return fmt.Errorf("failed to read message: %w", err)
			}

			var event Event
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal event: %w", err)
			}

			if err := handler(event); err != nil {
				return fmt.Errorf("failed to handle event: %w", err)
			}
		}
	}
}

func (k *KafkaClient) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	if err := k.reader.Close(); err != nil {
		return fmt.Errorf("failed to close reader: %w", err)
	}
	return nil
}

// Event payload types.

type ItemAddedPayload struct {
	Item         interface{} `json:"item"`
	LikeCount    int64       `json:"like_count"`
	DislikeCount int64       `json:"dislike_count"`
	AutoStarted  bool        `json:"auto_started"`
}

type TrackStartedPayload struct {
	ItemID          string      `json:"item_id"`
	Track           interface{} `json:"track"`
	StartedAtMs     int64       `json:"started_at_ms"`
	TrackDurationMs int64       `json:"track_duration_ms"`
}

type PlaybackStoppedPayload struct {
	StoppedAtMs int64 `json:"stopped_at_ms"`
}

type StatsUpdatedPayload struct {
	ItemID       string `json:"item_id"`
	LikeCount    int64  `json:"like_count"`
	DislikeCount int64  `json:"dislike_count"`
}

type ChatMessagePayload struct {
	MessageID         string `json:"message_id"`
	SenderID          string `json:"sender_id"`
	SenderDisplayName string `json:"sender_display_name"`
	Content           string `json:"content"`
	SentAtMs          int64  `json:"sent_at_ms"`
}
