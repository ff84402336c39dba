package domain

import "errors"

// Domain errors
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrDuplicateRoom  = errors.New("a room with this id is already open")
	ErrRoomFull       = errors.New("room is full")
	ErrNameTaken      = errors.New("name already taken in this room")
	ErrPlayerNotFound = errors.New("player not found")
	ErrGameStarted    = errors.New("game already started")
	ErrGameNotStarted = errors.New("game has not started")
	ErrBadRosterSize  = errors.New("no role table for this roster size")
	ErrInvalidAction  = errors.New("action not allowed in the current phase")
)
