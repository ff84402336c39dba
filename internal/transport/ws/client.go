package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/locpham26/BoardGame-Server/internal/app"
	"github.com/locpham26/BoardGame-Server/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Size of the send channel buffer
	sendBufferSize = 256
)

// Client represents one WebSocket connection and the user behind it. A
// client is in at most one room at a time.
type Client struct {
	conn     *websocket.Conn
	handler  *Handler
	registry *app.Registry

	connID   string
	userName string

	// session is the room the client currently sits in; touched only by the
	// read pump.
	session *app.RoomSession

	send   chan []byte
	done   chan struct{}
	logger *slog.Logger
	mu     sync.Mutex
	closed bool
}

// NewClient creates a client for an upgraded connection
func NewClient(conn *websocket.Conn, handler *Handler, connID, userName string) *Client {
	return &Client{
		conn:     conn,
		handler:  handler,
		registry: handler.registry,
		connID:   connID,
		userName: userName,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		logger:   handler.logger,
	}
}

// Send implements app.ClientConnection
func (c *Client) Send(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.logger.Warn("send buffer full, message dropped", "user", c.userName)
		return nil
	}
}

// Close implements app.ClientConnection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)
	return c.conn.Close()
}

// Run starts the client's read and write pumps
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump pumps messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.leaveRoom()
		c.handler.removeOnline(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage decodes, validates and routes one inbound message
func (c *Client) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid message format")
		return
	}

	switch msg.Type {
	case MsgCreate:
		c.handleCreate(msg.Payload)
	case MsgJoin:
		c.handleJoin(msg.Payload)
	case MsgLeave:
		c.handleLeave(msg.Payload)
	case MsgDeleteRoom:
		c.handleDeleteRoom(msg.Payload)
	case MsgStart:
		c.handleStart(msg.Payload)
	case MsgSkipTurn:
		c.handleSkipTurn(msg.Payload)
	case MsgPlayerAction:
		c.handlePlayerAction(msg.Payload)
	case MsgSendMessage:
		c.handleSendMessage(msg.Payload)
	case MsgSearchRoom:
		c.handleSearchRoom(msg.Payload)
	case MsgShowRooms:
		c.Send(domain.NewEvent(domain.EventRoomList, "", c.registry.List()))
	case MsgKick:
		c.handleKick(msg.Payload)
	case MsgInvite:
		c.handleInvite(msg.Payload)
	case MsgTurnChange:
		// The authoritative clock never takes orders from a client.
		c.sendError(ErrCodeServerClock, "Phase changes are server-initiated; send skipTurn instead")
	default:
		c.sendError(ErrCodeInvalidMessage, "Unknown message type")
	}
}

// decode unmarshals and validates a payload into dst
func (c *Client) decode(raw json.RawMessage, dst interface{}) bool {
	if err := json.Unmarshal(raw, dst); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return false
	}
	if err := c.handler.validate.Struct(dst); err != nil {
		c.sendError(ErrCodeInvalidMessage, err.Error())
		return false
	}
	return true
}

func (c *Client) handleCreate(raw json.RawMessage) {
	var p CreatePayload
	if !c.decode(raw, &p) {
		return
	}

	if _, err := c.registry.Create(p.RoomID); err != nil {
		c.sendDomainError(err)
	}
}

func (c *Client) handleJoin(raw json.RawMessage) {
	var p JoinPayload
	if !c.decode(raw, &p) {
		return
	}

	session, err := c.registry.Find(p.RoomID)
	if err != nil {
		c.sendDomainError(err)
		return
	}

	// Register before joining so the join broadcasts reach this client too.
	session.RegisterClient(c.userName, c)
	if _, err := session.Join(c.connID, c.userName); err != nil {
		session.UnregisterClient(c.userName)
		c.sendDomainError(err)
		return
	}
	c.session = session

	c.handler.broadcastRoomList()
}

func (c *Client) handleLeave(raw json.RawMessage) {
	var p LeavePayload
	if !c.decode(raw, &p) {
		return
	}
	c.leaveRoom()
}

// leaveRoom removes the client from its current room, if any, tearing the
// room down when it empties.
func (c *Client) leaveRoom() {
	session := c.session
	if session == nil {
		return
	}
	c.session = nil

	session.UnregisterClient(c.userName)
	if empty := session.Leave(c.userName); empty {
		c.registry.Remove(session.RoomID())
	}

	c.handler.broadcastRoomList()
}

func (c *Client) handleDeleteRoom(raw json.RawMessage) {
	var p DeleteRoomPayload
	if !c.decode(raw, &p) {
		return
	}

	session, err := c.registry.Find(p.RoomID)
	if err != nil {
		c.sendDomainError(err)
		return
	}

	session.UnregisterClient(c.userName)
	session.Leave(c.userName)
	c.session = nil
	c.registry.Remove(p.RoomID)

	c.handler.broadcastRoomList()
}

func (c *Client) handleStart(raw json.RawMessage) {
	var p StartPayload
	if !c.decode(raw, &p) {
		return
	}

	session, err := c.registry.Find(p.RoomID)
	if err != nil {
		c.sendDomainError(err)
		return
	}

	if err := session.Start(); err != nil {
		c.sendDomainError(err)
		return
	}

	// The room just left the joinable list.
	c.handler.broadcastRoomList()
}

func (c *Client) handleSkipTurn(raw json.RawMessage) {
	var p SkipTurnPayload
	if !c.decode(raw, &p) {
		return
	}

	session, err := c.registry.Find(p.RoomID)
	if err != nil {
		c.sendDomainError(err)
		return
	}

	if err := session.RequestSkip(c.userName); err != nil {
		c.sendDomainError(err)
	}
}

func (c *Client) handlePlayerAction(raw json.RawMessage) {
	var p PlayerActionPayload
	if !c.decode(raw, &p) {
		return
	}

	session, err := c.registry.Find(p.RoomID)
	if err != nil {
		c.sendDomainError(err)
		return
	}

	if err := session.HandleAction(p.From, p.Target, domain.ActionType(p.Type)); err != nil {
		c.sendDomainError(err)
	}
}

func (c *Client) handleSendMessage(raw json.RawMessage) {
	var p SendMessagePayload
	if !c.decode(raw, &p) {
		return
	}

	session, err := c.registry.Find(p.RoomID)
	if err != nil {
		c.sendDomainError(err)
		return
	}

	session.SendChat(c.userName, p.Text, p.IsFromWolf)
}

func (c *Client) handleSearchRoom(raw json.RawMessage) {
	var p SearchRoomPayload
	if !c.decode(raw, &p) {
		return
	}

	c.Send(domain.NewEvent(domain.EventSearchedRoom, "", c.registry.Search(p.RoomID)))
}

func (c *Client) handleKick(raw json.RawMessage) {
	var p KickPayload
	if !c.decode(raw, &p) {
		return
	}

	session, err := c.registry.Find(p.RoomID)
	if err != nil {
		c.sendDomainError(err)
		return
	}

	if err := session.Kick(p.PlayerName); err != nil {
		c.sendDomainError(err)
	}
}

func (c *Client) handleInvite(raw json.RawMessage) {
	var p InvitePayload
	if !c.decode(raw, &p) {
		return
	}

	invited, ok := c.handler.findOnline(p.FriendName)
	if !ok {
		c.sendError(ErrCodePlayerNotFound, "Player is not online")
		return
	}

	invited.Send(domain.NewEvent(domain.EventInvited, p.RoomID, domain.InvitedPayload{
		Inviter: p.Inviter,
		RoomID:  p.RoomID,
	}))
}

// sendDomainError maps engine errors to wire error codes
func (c *Client) sendDomainError(err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		c.sendError(ErrCodeRoomNotFound, "Room not found")
	case errors.Is(err, domain.ErrDuplicateRoom):
		c.sendError(ErrCodeDuplicateRoom, "A room with this id is already open")
	case errors.Is(err, domain.ErrRoomFull):
		c.sendError(ErrCodeRoomFull, "Room is full")
	case errors.Is(err, domain.ErrNameTaken):
		c.sendError(ErrCodeNameTaken, "Name already taken in this room")
	case errors.Is(err, domain.ErrPlayerNotFound):
		c.sendError(ErrCodePlayerNotFound, "Player not found")
	case errors.Is(err, domain.ErrBadRosterSize):
		c.sendError(ErrCodeBadRosterSize, "The game cannot start with this number of players")
	case errors.Is(err, domain.ErrGameStarted), errors.Is(err, domain.ErrGameNotStarted),
		errors.Is(err, domain.ErrInvalidAction):
		c.sendError(ErrCodeInvalidAction, err.Error())
	default:
		c.sendError(ErrCodeInternalError, err.Error())
	}
}

// sendError reports a failure to this connection only
func (c *Client) sendError(code, message string) {
	c.Send(domain.NewEvent(domain.EventError, "", domain.ErrorPayload{
		Code:    code,
		Message: message,
	}))
}
