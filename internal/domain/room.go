package domain

import (
	"time"

	"github.com/samber/lo"
)

// SeatCapacity is the fixed number of seats in a room
const SeatCapacity = 12

// Room represents one game session: its roster, phase and staged night state.
// The struct itself is not safe for concurrent use; the app layer serializes
// every mutation of a room.
type Room struct {
	ID      string
	Started bool
	Phase   Phase

	// Roster in join order. Seats are assigned first-free out of SeatCapacity
	// and reclaimed on leave.
	Players []*Player
	seats   [SeatCapacity]bool

	// Night immunity state, player names or empty. Cleared at the phase
	// boundaries described in the session's resolution rules, never carried
	// across games.
	ProtectedTarget string
	SavedTarget     string
	PoisonedTarget  string

	CreatedAt time.Time
}

// NewRoom creates an empty, not yet started room
func NewRoom(id string) *Room {
	return &Room{
		ID:        id,
		Players:   []*Player{},
		CreatedAt: time.Now(),
	}
}

// Join seats a new player at the first free seat. It fails once the game has
// started, when every seat is taken, or when the display name is already in
// use in this room.
func (r *Room) Join(connID, name string) (*Player, error) {
	if r.Started {
		return nil, ErrGameStarted
	}
	if _, err := r.FindPlayer(name); err == nil {
		return nil, ErrNameTaken
	}

	seat := -1
	for i, taken := range r.seats {
		if !taken {
			seat = i
			break
		}
	}
	if seat == -1 {
		return nil, ErrRoomFull
	}
	r.seats[seat] = true

	player := NewPlayer(connID, name, seat)
	r.Players = append(r.Players, player)
	return player, nil
}

// Leave removes the named player, frees the seat and retracts any vote the
// leaving player had cast. No-op when the player is absent.
func (r *Room) Leave(name string) {
	idx := lo.IndexOf(lo.Map(r.Players, func(p *Player, _ int) string { return p.Name }), name)
	if idx == -1 {
		return
	}

	seat := r.Players[idx].Seat
	if seat >= 0 && seat < SeatCapacity {
		r.seats[seat] = false
	}
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)
	Retract(r.Players, name)
}

// FindPlayer returns the player with the given display name
func (r *Room) FindPlayer(name string) (*Player, error) {
	player, found := lo.Find(r.Players, func(p *Player) bool { return p.Name == name })
	if !found {
		return nil, ErrPlayerNotFound
	}
	return player, nil
}

// LivingPlayers returns the players still alive, in seat order
func (r *Room) LivingPlayers() []*Player {
	return lo.Filter(r.Players, func(p *Player, _ int) bool { return p.Alive })
}

// LivingWolves returns the number of living wolf players
func (r *Room) LivingWolves() int {
	return lo.CountBy(r.Players, func(p *Player) bool { return p.Alive && p.Role.IsWolf() })
}

// LivingHumans returns the number of living non-wolf players
func (r *Room) LivingHumans() int {
	return lo.CountBy(r.Players, func(p *Player) bool { return p.Alive && !p.Role.IsWolf() })
}

// LivingWithRole returns the number of living players holding the given role
func (r *Room) LivingWithRole(role Role) int {
	return lo.CountBy(r.Players, func(p *Player) bool { return p.Alive && p.Role == role })
}

// Hunter returns the hunter of the current game, or nil before role
// assignment or in games without one.
func (r *Room) Hunter() *Player {
	hunter, found := lo.Find(r.Players, func(p *Player) bool { return p.Role == RoleHunter })
	if !found {
		return nil
	}
	return hunter
}

// Start assigns roles for the current roster and marks the game started.
// It fails when the roster size has no role table.
func (r *Room) Start() error {
	if r.Started {
		return ErrGameStarted
	}
	if err := AssignRoles(r.Players); err != nil {
		return err
	}
	r.Started = true
	r.ProtectedTarget = ""
	r.SavedTarget = ""
	r.PoisonedTarget = ""
	return nil
}

// Reset returns the room to its pre-game state so it can host another match:
// roles cleared, everyone alive, votes and immunity gone.
func (r *Room) Reset() {
	r.Started = false
	r.Phase = PhaseIdle
	r.ProtectedTarget = ""
	r.SavedTarget = ""
	r.PoisonedTarget = ""
	for _, p := range r.Players {
		p.ResetForNewGame()
	}
}

// Kill applies a night kill to the named player, sparing the current
// protected and saved targets. It returns the name of the player who actually
// died, or "" when the target was spared or absent.
func (r *Room) Kill(name string) string {
	target, err := r.FindPlayer(name)
	if err != nil {
		return ""
	}
	if target.Name == r.ProtectedTarget || target.Name == r.SavedTarget {
		return ""
	}
	target.Alive = false
	return target.Name
}

// Hang marks the named player dead with no immunity applied
func (r *Room) Hang(name string) {
	if target, err := r.FindPlayer(name); err == nil {
		target.Alive = false
	}
}

// ClearVotes empties every vote ledger in the room
func (r *Room) ClearVotes() {
	for _, p := range r.Players {
		p.Votes = []string{}
	}
}

// Protect stages the guard's protection for the coming night
func (r *Room) Protect(name string) {
	if name != r.ProtectedTarget {
		r.ProtectedTarget = name
	}
}

// Save stages the witch's save for the current night
func (r *Room) Save(name string) {
	if name != r.SavedTarget {
		r.SavedTarget = name
	}
}

// Poison stages the witch's poison for the current night
func (r *Room) Poison(name string) {
	r.PoisonedTarget = name
}

// Joinable reports whether the room should appear in the open-room list
func (r *Room) Joinable() bool {
	return !r.Started && len(r.Players) > 0
}

// PlayerView is the wire shape of a seated player
type PlayerView struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Role  Role     `json:"role"`
	Seat  int      `json:"pos"`
	Alive bool     `json:"isAlive"`
	Votes []string `json:"votes"`
}

// RoomView is the wire shape of a room, used for roomPlayer broadcasts and
// the open-room list. It is a copy taken under the session lock, so it stays
// stable while the room keeps mutating.
type RoomView struct {
	ID         string       `json:"id"`
	Started    bool         `json:"isStarted"`
	Turn       Phase        `json:"turn"`
	PlayerList []PlayerView `json:"playerList"`
}

// View snapshots the room for broadcasting
func (r *Room) View() RoomView {
	players := make([]PlayerView, 0, len(r.Players))
	for _, p := range r.Players {
		votes := make([]string, len(p.Votes))
		copy(votes, p.Votes)
		players = append(players, PlayerView{
			ID:    p.ConnID,
			Name:  p.Name,
			Role:  p.Role,
			Seat:  p.Seat,
			Alive: p.Alive,
			Votes: votes,
		})
	}
	return RoomView{
		ID:         r.ID,
		Started:    r.Started,
		Turn:       r.Phase,
		PlayerList: players,
	}
}
