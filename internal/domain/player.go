package domain

import "time"

// Player represents a seated player in a room
type Player struct {
	// ConnID is the identity of the underlying connection, as handed to the
	// engine by the transport. The engine never validates it.
	ConnID string
	Name   string
	Role   Role
	Seat   int
	Alive  bool

	// Votes is the ledger of voter names currently targeting this player.
	// A voter name appears in at most one ledger across the whole roster.
	Votes []string

	// HasShot is set once the hunter has used the shot, so a second death
	// never opens another shoot phase.
	HasShot bool

	JoinedAt time.Time
}

// NewPlayer creates a player seated at the given position
func NewPlayer(connID, name string, seat int) *Player {
	return &Player{
		ConnID:   connID,
		Name:     name,
		Role:     "",
		Seat:     seat,
		Alive:    true,
		Votes:    []string{},
		JoinedAt: time.Now(),
	}
}

// ResetForNewGame clears everything a finished game left on the player
func (p *Player) ResetForNewGame() {
	p.Role = ""
	p.Alive = true
	p.Votes = []string{}
	p.HasShot = false
}
