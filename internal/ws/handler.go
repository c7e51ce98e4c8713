package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/listening-room-system/internal/chat"
	"github.com/listening-room-system/pkg/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, implement proper origin checking
	},
}

type chatMessage struct {
	Content string `json:"content"`
}

// client wraps a connection with a write mutex: the broadcast loop and the
// per-connection read loop both write to it, and the websocket protocol
// allows only one concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Handler fans broadcast events out to the websocket connections of each
// room. One consume loop serves all rooms; it is started once via Run.
type Handler struct {
	// Map of roomID -> map of userID -> *client
	rooms  map[string]map[string]*client
	mu     sync.RWMutex
	events *events.KafkaClient
	chat   *chat.Service
}

func NewHandler(eventClient *events.KafkaClient, chatService *chat.Service) *Handler {
	return &Handler{
		rooms:  make(map[string]map[string]*client),
		events: eventClient,
		chat:   chatService,
	}
}

// Run consumes the event stream until ctx is cancelled, forwarding each event
// to the connections of its room.
func (h *Handler) Run(ctx context.Context) {
	err := h.events.Consume(ctx, func(event events.Event) error {
		h.broadcastToRoom(event.RoomID, event)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		log.Printf("Event consumer stopped: %v", err)
	}
}

func (h *Handler) HandleWebSocket(c *gin.Context) {
	roomID := c.Param("roomId")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room_id is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	userID := c.GetString("user_id") // Set by auth middleware
	cl := h.addConnection(roomID, userID, conn)
	defer h.removeConnection(roomID, userID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Failed to parse message: %v", err)
			continue
		}

		switch msg["type"] {
		case "chat":
			var chatMsg chatMessage
			if err := json.Unmarshal(message, &chatMsg); err != nil {
				log.Printf("Failed to parse chat message: %v", err)
				continue
			}
			h.handleChat(c.Request.Context(), roomID, userID, cl, chatMsg)
		}
	}
}

// handleChat routes an inbound chat message through the chat service. The
// broadcast to other members happens via the event stream; only errors are
// written back on the sender's connection.
func (h *Handler) handleChat(ctx context.Context, roomID, userID string, cl *client, msg chatMessage) {
	if _, err := h.chat.Send(ctx, roomID, userID, msg.Content); err != nil {
		reply, merr := json.Marshal(map[string]string{"type": "error", "error": err.Error()})
		if merr != nil {
			return
		}
		if werr := cl.write(reply); werr != nil {
			log.Printf("Failed to send error reply: %v", werr)
		}
	}
}

func (h *Handler) addConnection(roomID, userID string, conn *websocket.Conn) *client {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.rooms[roomID]; !exists {
		h.rooms[roomID] = make(map[string]*client)
	}
	cl := &client{conn: conn}
	h.rooms[roomID][userID] = cl

	h.broadcastToRoomLocked(roomID, map[string]interface{}{
		"type":    string(events.EventTypeUserJoined),
		"user_id": userID,
	})
	return cl
}

func (h *Handler) removeConnection(roomID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, exists := h.rooms[roomID]; exists {
		if cl, exists := room[userID]; exists {
			cl.conn.Close()
			delete(room, userID)
		}
		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}

	h.broadcastToRoomLocked(roomID, map[string]interface{}{
		"type":    string(events.EventTypeUserLeft),
		"user_id": userID,
	})
}

func (h *Handler) broadcastToRoom(roomID string, message interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.broadcastToRoomLocked(roomID, message)
}

// broadcastToRoomLocked requires the caller to hold mu (read or write).
func (h *Handler) broadcastToRoomLocked(roomID string, message interface{}) {
	room, exists := h.rooms[roomID]
	if !exists {
		return
	}

	messageJSON, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal message: %v", err)
		return
	}

	for _, cl := range room {
		if err := cl.write(messageJSON); err != nil {
			log.Printf("Failed to send message: %v", err)
		}
	}
}
