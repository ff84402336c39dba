package ws

import "encoding/json"

// MessageType represents the type of an inbound WebSocket message
type MessageType string

// Client → Server message types
const (
	MsgCreate       MessageType = "create"
	MsgJoin         MessageType = "join"
	MsgLeave        MessageType = "leave"
	MsgDeleteRoom   MessageType = "deleteRoom"
	MsgStart        MessageType = "start"
	MsgSkipTurn     MessageType = "skipTurn"
	MsgPlayerAction MessageType = "playerAction"
	MsgSendMessage  MessageType = "sendMessage"
	MsgSearchRoom   MessageType = "searchRoom"
	MsgShowRooms    MessageType = "showRooms"
	MsgKick         MessageType = "kick"
	MsgInvite       MessageType = "invite"
	MsgTurnChange   MessageType = "turnChange"
)

// ClientMessage is the envelope for every inbound message. Payloads stay raw
// until the type is known, then decode into one validated struct per type.
type ClientMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound payloads, validated before they reach the engine

// CreatePayload opens a new room
type CreatePayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

// JoinPayload seats the connection's user in a room
type JoinPayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

// LeavePayload leaves the current room
type LeavePayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

// DeleteRoomPayload removes the caller and closes the room
type DeleteRoomPayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

// StartPayload starts the game in a room
type StartPayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

// SkipTurnPayload requests a skip vote for the current phase
type SkipTurnPayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

// PlayerActionPayload carries a role-scoped action. Target is empty for skip.
type PlayerActionPayload struct {
	From   string `json:"from" validate:"required"`
	Target string `json:"target"`
	Type   string `json:"type" validate:"required,oneof=vote kill protect save poison check shoot skip"`
	RoomID string `json:"roomId" validate:"required"`
}

// SendMessagePayload is a chat line for the room
type SendMessagePayload struct {
	Text       string `json:"text" validate:"required"`
	IsFromWolf bool   `json:"isFromWolf"`
	RoomID     string `json:"roomId" validate:"required"`
}

// SearchRoomPayload filters the open-room list by id substring
type SearchRoomPayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

// KickPayload removes a player from the caller's room
type KickPayload struct {
	RoomID     string `json:"roomId" validate:"required"`
	PlayerName string `json:"playerName" validate:"required"`
}

// InvitePayload invites an online player to a room
type InvitePayload struct {
	Inviter    string `json:"inviter" validate:"required"`
	FriendName string `json:"friendName" validate:"required"`
	RoomID     string `json:"roomId" validate:"required"`
}

// Error codes
const (
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
	ErrCodeRoomNotFound   = "ROOM_NOT_FOUND"
	ErrCodeDuplicateRoom  = "DUPLICATE_ROOM"
	ErrCodeRoomFull       = "ROOM_FULL"
	ErrCodeNameTaken      = "NAME_TAKEN"
	ErrCodePlayerNotFound = "PLAYER_NOT_FOUND"
	ErrCodeBadRosterSize  = "BAD_ROSTER_SIZE"
	ErrCodeInvalidAction  = "INVALID_ACTION"
	ErrCodeNotInRoom      = "NOT_IN_ROOM"
	ErrCodeServerClock    = "SERVER_OWNED_CLOCK"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)
