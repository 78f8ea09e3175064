package handlers

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/arnold/chore-tracker-api/internal/middleware"
	"github.com/arnold/chore-tracker-api/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// connection wraps a websocket connection with its user ID
type connection struct {
	conn   *websocket.Conn
	userID uuid.UUID
	mu     sync.Mutex // serializes writes
}

func (c *connection) write(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Hub manages WebSocket connections per family
type Hub struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[*connection]bool // familyID -> set of connections
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[uuid.UUID]map[*connection]bool)}
}

func (h *Hub) register(familyID uuid.UUID, conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[familyID] == nil {
		h.rooms[familyID] = make(map[*connection]bool)
	}
	h.rooms[familyID][conn] = true
	log.Printf("WS register: user %s joined family %s (total: %d)", conn.userID, familyID, len(h.rooms[familyID]))
}

func (h *Hub) unregister(familyID uuid.UUID, conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[familyID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, familyID)
		}
	}
}

// Connections reports how many clients are connected to a family room.
func (h *Hub) Connections(familyID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[familyID])
}

// Broadcast sends an event to all connections in a family room, excluding the sender
func (h *Hub) Broadcast(familyID, excludeUserID uuid.UUID, event services.Event) {
	h.mu.RLock()
	conns := make([]*connection, 0, len(h.rooms[familyID]))
	for c := range h.rooms[familyID] {
		if c.userID != excludeUserID {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return
	}

	msg, err := json.Marshal(event)
	if err != nil {
		log.Printf("WS broadcast marshal error: %v", err)
		return
	}

	for _, c := range conns {
		if err := c.write(msg); err != nil {
			log.Printf("WS write error: %v", err)
		}
	}
}

// WebSocketUpgrade checks the upgrade request and authenticates the caller
// via ?token=<jwt> or the Authorization header.
func (h *Handler) WebSocketUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		tokenString := c.Query("token")
		if tokenString == "" {
			tokenString, _ = middleware.BearerToken(c)
		}
		if tokenString == "" {
			return fail(c, fiber.StatusUnauthorized, "Missing authentication token")
		}

		user, err := h.Auth.Authenticate(tokenString)
		if err != nil {
			return fail(c, fiber.StatusUnauthorized, "Invalid or expired token")
		}
		if !user.HasFamily() {
			return fail(c, fiber.StatusBadRequest, "User does not belong to a family")
		}

		c.Locals("userId", user.ID)
		c.Locals("familyId", *user.FamilyID)
		return c.Next()
	}
}

// HandleWebSocket keeps a family connection open until the client leaves.
func (h *Handler) HandleWebSocket(c *websocket.Conn) {
	userID, ok := c.Locals("userId").(uuid.UUID)
	if !ok {
		c.Close()
		return
	}
	familyID, ok := c.Locals("familyId").(uuid.UUID)
	if !ok {
		c.Close()
		return
	}

	conn := &connection{conn: c, userID: userID}
	h.Hub.register(familyID, conn)
	defer h.Hub.unregister(familyID, conn)

	// Read until the client disconnects; incoming messages are keepalives.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}
