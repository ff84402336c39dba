package ws

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/locpham26/BoardGame-Server/internal/app"
	"github.com/locpham26/BoardGame-Server/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins
	},
}

// Handler upgrades HTTP requests to WebSocket connections and tracks which
// users are online, so invites can find their target.
type Handler struct {
	registry *app.Registry
	logger   *slog.Logger
	validate *validator.Validate

	online   map[string]*Client
	onlineMu sync.RWMutex
}

// NewHandler creates a WebSocket handler
func NewHandler(registry *app.Registry, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		logger:   logger,
		validate: validator.New(),
		online:   make(map[string]*Client),
	}
}

// ServeHTTP handles the WebSocket upgrade. The client identifies itself with
// a userName query parameter; one connection per name.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userName := r.URL.Query().Get("userName")
	if userName == "" {
		http.Error(w, "userName query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, h, uuid.NewString(), userName)
	h.addOnline(userName, client)

	h.logger.Info("client connected", "user", userName)

	// Greet the newcomer with the current open-room list.
	client.Send(domain.NewEvent(domain.EventRoomList, "", h.registry.List()))

	client.Run()

	h.logger.Info("client disconnected", "user", userName)
}

func (h *Handler) addOnline(userName string, client *Client) {
	h.onlineMu.Lock()
	defer h.onlineMu.Unlock()

	// A reconnect under the same name replaces the old connection.
	if old, ok := h.online[userName]; ok {
		old.Close()
	}
	h.online[userName] = client
}

// removeOnline drops the client from the online map. The pointer check keeps
// a replaced connection's teardown from evicting its successor.
func (h *Handler) removeOnline(client *Client) {
	h.onlineMu.Lock()
	defer h.onlineMu.Unlock()
	if current, ok := h.online[client.userName]; ok && current == client {
		delete(h.online, client.userName)
	}
}

func (h *Handler) findOnline(userName string) (*Client, bool) {
	h.onlineMu.RLock()
	defer h.onlineMu.RUnlock()
	client, ok := h.online[userName]
	return client, ok
}

// broadcastRoomList pushes the open-room list to every online client. Sent
// whenever a room is created, filled, started or torn down.
func (h *Handler) broadcastRoomList() {
	event := domain.NewEvent(domain.EventRoomList, "", h.registry.List())

	h.onlineMu.RLock()
	defer h.onlineMu.RUnlock()
	for _, client := range h.online {
		client.Send(event)
	}
}
