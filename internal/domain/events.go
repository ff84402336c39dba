package domain

import "time"

// EventType names an outbound event produced by the engine
type EventType string

const (
	EventRoomList      EventType = "room"
	EventRoomPlayer    EventType = "roomPlayer"
	EventMessage       EventType = "message"
	EventChangeTurn    EventType = "changeTurn"
	EventCountDown     EventType = "countDown"
	EventHang          EventType = "hang"
	EventKill          EventType = "kill"
	EventWin           EventType = "win"
	EventReveal        EventType = "reveal"
	EventHunterShoot   EventType = "hunterShoot"
	EventDisable       EventType = "disable"
	EventLastProtected EventType = "lastProtected"
	EventKilledByWolf  EventType = "killedByWolf"
	EventKicked        EventType = "kicked"
	EventInvited       EventType = "invited"
	EventSearchedRoom  EventType = "searchedRoom"
	EventError         EventType = "error"
)

// GameEvent is one outbound event. PlayerName set means unicast to that
// player's connection; empty means broadcast to the whole room.
type GameEvent struct {
	Type       EventType   `json:"type"`
	RoomID     string      `json:"roomId"`
	PlayerName string      `json:"playerName,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// NewEvent creates a room-wide broadcast event
func NewEvent(eventType EventType, roomID string, payload interface{}) *GameEvent {
	return &GameEvent{
		Type:      eventType,
		RoomID:    roomID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// NewPlayerEvent creates an event unicast to a single player
func NewPlayerEvent(eventType EventType, roomID, playerName string, payload interface{}) *GameEvent {
	return &GameEvent{
		Type:       eventType,
		RoomID:     roomID,
		PlayerName: playerName,
		Payload:    payload,
		Timestamp:  time.Now(),
	}
}

// Payload types for outbound events

// ChangeTurnPayload announces a phase transition. Skipped marks transitions
// forced by a skip quorum rather than the phase timer.
type ChangeTurnPayload struct {
	RoomTurn Phase `json:"roomTurn"`
	Skipped  bool  `json:"skipped"`
}

// CountDownPayload carries the remaining whole seconds of the current phase
type CountDownPayload struct {
	Count int `json:"count"`
}

// HangPayload names the player hanged by the day vote; empty on a tie
type HangPayload struct {
	Name string `json:"name"`
}

// KillPayload reports the night's deaths; spared or absent targets are empty
type KillPayload struct {
	KilledPlayer   string `json:"killedPlayer"`
	PoisonedPlayer string `json:"poisonedPlayer"`
}

// WinPayload declares the winning faction
type WinPayload struct {
	Faction Faction `json:"faction"`
}

// RevealPayload answers the seer's check, unicast to the seer only
type RevealPayload struct {
	CheckTarget string `json:"checkTarget"`
	IsWolf      bool   `json:"isWolf"`
}

// HunterShootPayload names the player shot by the hunter
type HunterShootPayload struct {
	Name string `json:"name"`
}

// DisablePayload tells the acting client which controls to grey out
type DisablePayload struct {
	ActionTypes []ActionType `json:"actionTypes"`
}

// LastProtectedPayload announces whom the guard protected last night
type LastProtectedPayload struct {
	Name string `json:"name"`
}

// KilledByWolfPayload tells the witch whom the wolves chose tonight
type KilledByWolfPayload struct {
	Name string `json:"name"`
}

// MessagePayload is a chat line shown in the room
type MessagePayload struct {
	UserName   string `json:"userName"`
	Text       string `json:"text"`
	IsFromWolf bool   `json:"isFromWolf"`
}

// InvitedPayload is unicast to an invited online player
type InvitedPayload struct {
	Inviter string `json:"inviter"`
	RoomID  string `json:"roomId"`
}

// ErrorPayload reports a recovered failure to the requesting connection
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
