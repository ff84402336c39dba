package app

import (
	"log/slog"
	"sync"
	"time"

	"github.com/locpham26/BoardGame-Server/internal/domain"
)

// AdminName is the sender shown on server-generated chat lines
const AdminName = "Admin"

// branchDelay is the pause before a conditional transition (win declared,
// hunter death) replaces the default successor.
const branchDelay = 3 * time.Second

// ClientConnection is a connected client as the session sees it
type ClientConnection interface {
	Send(message interface{}) error
	Close() error
}

// RoomSession wraps one room with its single-writer lock, its registered
// client connections, its broadcast queue and the phase timers. Every
// mutation of the room goes through the session mutex; the phase scheduler
// is the only code that advances the phase.
type RoomSession struct {
	room *domain.Room
	mu   sync.Mutex

	clients   map[string]ClientConnection // player name -> connection
	clientsMu sync.RWMutex

	scheduler Scheduler
	grace     time.Duration
	logger    *slog.Logger

	// Phase timer state, guarded by mu. gen tags every scheduled callback;
	// a callback whose gen no longer matches fires into a superseded phase
	// and must be dropped. At most one timeout and one tick are live.
	gen           uint64
	cancelTimeout CancelFunc
	cancelTick    CancelFunc

	// acted holds the names counted toward the current phase's skip quorum.
	// Reset on every phase entry; its size is the quorum counter.
	acted map[string]bool

	events    chan *domain.GameEvent
	done      chan struct{}
	closeOnce sync.Once
}

// NewRoomSession creates a session for the given room and starts its
// broadcast loop.
func NewRoomSession(room *domain.Room, scheduler Scheduler, grace time.Duration, logger *slog.Logger) *RoomSession {
	s := &RoomSession{
		room:      room,
		clients:   make(map[string]ClientConnection),
		scheduler: scheduler,
		grace:     grace,
		logger:    logger,
		acted:     make(map[string]bool),
		events:    make(chan *domain.GameEvent, 100),
		done:      make(chan struct{}),
	}
	go s.eventLoop()
	return s
}

// RoomID returns the room id
func (s *RoomSession) RoomID() string {
	return s.room.ID
}

// CreatedAt returns when the room was created
func (s *RoomSession) CreatedAt() time.Time {
	return s.room.CreatedAt
}

// PlayerCount returns the number of seated players
func (s *RoomSession) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.room.Players)
}

// View snapshots the room for broadcasting
func (s *RoomSession) View() domain.RoomView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room.View()
}

// Joinable reports whether the room belongs in the open-room list
func (s *RoomSession) Joinable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room.Joinable()
}

// RegisterClient binds a player name to its connection
func (s *RoomSession) RegisterClient(name string, client ClientConnection) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[name] = client
}

// UnregisterClient removes a player's connection
func (s *RoomSession) UnregisterClient(name string) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	delete(s.clients, name)
}

// Join seats a player and announces the join to the room
func (s *RoomSession) Join(connID, name string) (*domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, err := s.room.Join(connID, name)
	if err != nil {
		return nil, err
	}

	s.queueEvent(domain.NewEvent(domain.EventRoomPlayer, s.room.ID, s.room.View()))
	s.queueEvent(domain.NewEvent(domain.EventMessage, s.room.ID, domain.MessagePayload{
		UserName: AdminName,
		Text:     name + " has joined.",
	}))
	s.queueEvent(domain.NewPlayerEvent(domain.EventMessage, s.room.ID, name, domain.MessagePayload{
		UserName: AdminName,
		Text:     "Welcome",
	}))

	return player, nil
}

// Leave removes a player, retracting any vote they held, and reports whether
// the room is now empty (the caller then removes the room).
func (s *RoomSession) Leave(name string) (empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.room.FindPlayer(name); err != nil {
		return len(s.room.Players) == 0
	}

	s.room.Leave(name)
	delete(s.acted, name)

	s.queueEvent(domain.NewEvent(domain.EventRoomPlayer, s.room.ID, s.room.View()))
	s.queueEvent(domain.NewEvent(domain.EventMessage, s.room.ID, domain.MessagePayload{
		UserName: AdminName,
		Text:     name + " has left.",
	}))

	return len(s.room.Players) == 0
}

// Kick tells the named player's client it was removed from the room
func (s *RoomSession) Kick(name string) error {
	s.mu.Lock()
	if _, err := s.room.FindPlayer(name); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.queueEvent(domain.NewPlayerEvent(domain.EventKicked, s.room.ID, name, nil))
	return nil
}

// SendChat relays a chat line to the room
func (s *RoomSession) SendChat(userName, text string, isFromWolf bool) {
	s.queueEvent(domain.NewEvent(domain.EventMessage, s.room.ID, domain.MessagePayload{
		UserName:   userName,
		Text:       text,
		IsFromWolf: isFromWolf,
	}))
}

// Start assigns roles and kicks off the phase machine
func (s *RoomSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.room.Start(); err != nil {
		return err
	}

	s.queueEvent(domain.NewEvent(domain.EventRoomPlayer, s.room.ID, s.room.View()))
	s.enterPhaseLocked(domain.PhaseGameStart, false)
	return nil
}

// RequestSkip counts a skip request from the named player toward the current
// phase's quorum. A skip withdraws the requester's staged vote, so a phase
// everyone skipped resolves with no input.
func (s *RoomSession) RequestSkip(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipLocked(name)
}

// HandleAction validates and applies a role-scoped action against the
// current phase.
func (s *RoomSession) HandleAction(from, target string, action domain.ActionType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.room.Started {
		return domain.ErrGameNotStarted
	}
	if !s.room.Phase.Permits(action) {
		return domain.ErrInvalidAction
	}

	actor, err := s.room.FindPlayer(from)
	if err != nil {
		return err
	}
	// The hunter shoots from the grave; every other action needs a living actor.
	if !actor.Alive && action != domain.ActionShoot {
		return domain.ErrInvalidAction
	}
	if role := s.room.Phase.ActingRole(); role != "" && actor.Role != role {
		return domain.ErrInvalidAction
	}

	if action == domain.ActionSkip {
		if err := s.skipLocked(from); err != nil {
			return err
		}
		s.disable(from, domain.ActionVote, domain.ActionKill, domain.ActionSkip)
		return nil
	}

	victim, err := s.room.FindPlayer(target)
	if err != nil {
		return domain.ErrPlayerNotFound
	}

	switch action {
	case domain.ActionVote:
		domain.Cast(s.room.Players, victim, from)
		s.queueEvent(domain.NewEvent(domain.EventRoomPlayer, s.room.ID, s.room.View()))

	case domain.ActionKill:
		domain.Cast(s.room.Players, victim, from)
		s.disable(from, domain.ActionKill)
		s.queueEvent(domain.NewEvent(domain.EventRoomPlayer, s.room.ID, s.room.View()))
		s.acted[from] = true
		if len(s.acted) >= s.room.LivingWolves() {
			s.skipAdvanceLocked()
		}

	case domain.ActionProtect:
		s.room.Protect(victim.Name)
		s.disable(from, domain.ActionProtect)

	case domain.ActionSave:
		s.room.Save(victim.Name)
		s.disable(from, domain.ActionSave)

	case domain.ActionPoison:
		s.room.Poison(victim.Name)
		s.disable(from, domain.ActionPoison)

	case domain.ActionCheck:
		s.queueEvent(domain.NewPlayerEvent(domain.EventReveal, s.room.ID, from, domain.RevealPayload{
			CheckTarget: victim.Name,
			IsWolf:      victim.Role.IsWolf(),
		}))
		s.disable(from, domain.ActionCheck)

	case domain.ActionShoot:
		if actor.HasShot {
			return domain.ErrInvalidAction
		}
		victim.Alive = false
		actor.HasShot = true
		s.disable(from, domain.ActionShoot)
		s.queueEvent(domain.NewEvent(domain.EventHunterShoot, s.room.ID, domain.HunterShootPayload{Name: victim.Name}))
		s.queueEvent(domain.NewEvent(domain.EventRoomPlayer, s.room.ID, s.room.View()))
		if domain.EvaluateWin(s.room) != domain.FactionNone {
			// The shot just decided the game; replace the pending transition.
			s.cancelTimersLocked()
			s.scheduleAdvanceLocked(domain.PhaseGameEnd, branchDelay)
		}

	default:
		return domain.ErrInvalidAction
	}

	return nil
}

// skipLocked applies a skip request. Caller holds mu.
func (s *RoomSession) skipLocked(name string) error {
	if !s.room.Started {
		return domain.ErrGameNotStarted
	}

	phase := s.room.Phase
	actor, err := s.room.FindPlayer(name)
	if err != nil {
		return err
	}

	var quorum int
	switch {
	case phase == domain.PhaseVillager:
		if !actor.Alive {
			return domain.ErrInvalidAction
		}
		quorum = len(s.room.LivingPlayers())
	case phase == domain.PhaseShootDay || phase == domain.PhaseShootNight:
		// The acting hunter is usually dead here, so the quorum is simply one
		// request from them.
		if actor.Role != domain.RoleHunter {
			return domain.ErrInvalidAction
		}
		quorum = 1
	case phase.ActingRole() != "":
		if !actor.Alive || actor.Role != phase.ActingRole() {
			return domain.ErrInvalidAction
		}
		quorum = s.room.LivingWithRole(phase.ActingRole())
	default:
		// Announcement phases have no actors to wait for; a single request
		// moves the room along.
		s.skipAdvanceLocked()
		return nil
	}

	if s.acted[name] {
		return nil
	}
	s.acted[name] = true
	domain.Retract(s.room.Players, name)

	if len(s.acted) >= quorum {
		s.skipAdvanceLocked()
	}
	return nil
}

// skipAdvanceLocked moves to the default successor immediately. Caller holds mu.
func (s *RoomSession) skipAdvanceLocked() {
	next, _, ok := s.room.Phase.Next()
	if !ok {
		return
	}
	s.enterPhaseLocked(next, true)
}

// enterPhaseLocked is the single place the phase ever changes. It supersedes
// the previous phase's timers, announces the transition, runs the entered
// phase's resolution and schedules the next transition. Caller holds mu.
func (s *RoomSession) enterPhaseLocked(phase domain.Phase, skipped bool) {
	s.gen++
	s.cancelTimersLocked()
	s.acted = make(map[string]bool)
	s.room.Phase = phase

	s.queueEvent(domain.NewEvent(domain.EventChangeTurn, s.room.ID, domain.ChangeTurnPayload{
		RoomTurn: phase,
		Skipped:  skipped,
	}))

	if phase == domain.PhaseEnd {
		s.room.Reset()
		s.queueEvent(domain.NewEvent(domain.EventRoomPlayer, s.room.ID, s.room.View()))
		return
	}

	next, duration, ok := phase.Next()
	if !ok {
		s.logger.Warn("entered phase with no successor", "roomId", s.room.ID, "phase", phase)
		return
	}

	s.startCountdownLocked(duration)

	if branch, ok := s.resolveEntryLocked(phase); ok {
		s.scheduleAdvanceLocked(branch, branchDelay)
	} else {
		s.scheduleAdvanceLocked(next, duration+s.grace)
	}
}

// resolveEntryLocked runs the resolution tied to entering a phase and
// reports a conditional branch target when one replaces the default
// successor. Caller holds mu.
func (s *RoomSession) resolveEntryLocked(phase domain.Phase) (domain.Phase, bool) {
	switch phase {
	case domain.PhaseGuard:
		// Protection lasts exactly one night: announce it, then clear it so
		// the guard stages a fresh choice.
		s.queueEvent(domain.NewEvent(domain.EventLastProtected, s.room.ID, domain.LastProtectedPayload{
			Name: s.room.ProtectedTarget,
		}))
		s.room.ProtectedTarget = ""

	case domain.PhaseWitch:
		// Tell the witch whom the wolves chose; nothing is applied yet.
		chosen := ""
		if target, ok := domain.Resolve(s.room.LivingPlayers()); ok {
			chosen = target.Name
		}
		s.queueEvent(domain.NewEvent(domain.EventKilledByWolf, s.room.ID, domain.KilledByWolfPayload{Name: chosen}))

	case domain.PhaseDayStart:
		return s.resolveNightKillsLocked()

	case domain.PhaseDayEnd:
		return s.resolveHangVoteLocked()

	case domain.PhaseShootDay, domain.PhaseShootNight:
		s.queueEvent(domain.NewEvent(domain.EventRoomPlayer, s.room.ID, s.room.View()))

	case domain.PhaseGameEnd:
		s.queueEvent(domain.NewEvent(domain.EventWin, s.room.ID, domain.WinPayload{
			Faction: domain.EvaluateWin(s.room),
		}))
	}

	return domain.PhaseIdle, false
}

// resolveNightKillsLocked applies the wolves' pick and the witch's poison,
// each spared by the current protection or save. Caller holds mu.
func (s *RoomSession) resolveNightKillsLocked() (domain.Phase, bool) {
	killed := ""
	if target, ok := domain.Resolve(s.room.LivingPlayers()); ok {
		killed = s.room.Kill(target.Name)
	}
	poisoned := ""
	if s.room.PoisonedTarget != "" {
		poisoned = s.room.Kill(s.room.PoisonedTarget)
	}

	s.queueEvent(domain.NewEvent(domain.EventKill, s.room.ID, domain.KillPayload{
		KilledPlayer:   killed,
		PoisonedPlayer: poisoned,
	}))
	s.queueEvent(domain.NewEvent(domain.EventRoomPlayer, s.room.ID, s.room.View()))

	// Night input never leaks into the day vote.
	s.room.ClearVotes()
	s.room.SavedTarget = ""
	s.room.PoisonedTarget = ""

	if domain.EvaluateWin(s.room) != domain.FactionNone {
		return domain.PhaseGameEnd, true
	}
	hunter := s.room.Hunter()
	if hunter != nil && !hunter.HasShot && (hunter.Name == killed || hunter.Name == poisoned) {
		return domain.PhaseHunterDay, true
	}
	return domain.PhaseIdle, false
}

// resolveHangVoteLocked tallies the day vote and hangs the strict winner.
// No immunity applies to a hang. Caller holds mu.
func (s *RoomSession) resolveHangVoteLocked() (domain.Phase, bool) {
	hanged := ""
	if target, ok := domain.Resolve(s.room.LivingPlayers()); ok {
		hanged = target.Name
		s.room.Hang(hanged)
	}

	s.queueEvent(domain.NewEvent(domain.EventHang, s.room.ID, domain.HangPayload{Name: hanged}))

	if domain.EvaluateWin(s.room) != domain.FactionNone {
		return domain.PhaseGameEnd, true
	}

	s.room.ClearVotes()
	s.queueEvent(domain.NewEvent(domain.EventRoomPlayer, s.room.ID, s.room.View()))

	hunter := s.room.Hunter()
	if hunter != nil && !hunter.HasShot && hunter.Name == hanged {
		return domain.PhaseHunterNight, true
	}
	return domain.PhaseIdle, false
}

// startCountdownLocked broadcasts the remaining whole seconds once per
// second, counting duration-1 down to zero, then stops itself. Caller
// holds mu.
func (s *RoomSession) startCountdownLocked(duration time.Duration) {
	gen := s.gen
	count := int(duration/time.Second) - 1

	s.cancelTick = s.scheduler.Every(time.Second, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.gen {
			return
		}
		if count < 0 {
			if s.cancelTick != nil {
				s.cancelTick()
				s.cancelTick = nil
			}
			return
		}
		s.queueEvent(domain.NewEvent(domain.EventCountDown, s.room.ID, domain.CountDownPayload{Count: count}))
		count--
	})
}

// scheduleAdvanceLocked arms the single phase timeout. Caller holds mu.
func (s *RoomSession) scheduleAdvanceLocked(target domain.Phase, delay time.Duration) {
	gen := s.gen

	s.cancelTimeout = s.scheduler.After(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.gen {
			// A superseded phase's timer made it to the lock; dropping it
			// here is what keeps double resolution impossible.
			s.logger.Debug("dropping stale phase timer",
				"roomId", s.room.ID, "firedGen", gen, "currentGen", s.gen)
			return
		}
		s.enterPhaseLocked(target, false)
	})
}

// cancelTimersLocked stops the live timeout and tick, if any. Caller holds mu.
func (s *RoomSession) cancelTimersLocked() {
	if s.cancelTimeout != nil {
		s.cancelTimeout()
		s.cancelTimeout = nil
	}
	if s.cancelTick != nil {
		s.cancelTick()
		s.cancelTick = nil
	}
}

// disable tells the acting player's client to grey out controls
func (s *RoomSession) disable(name string, actions ...domain.ActionType) {
	s.queueEvent(domain.NewPlayerEvent(domain.EventDisable, s.room.ID, name, domain.DisablePayload{
		ActionTypes: actions,
	}))
}

// queueEvent adds an event to the broadcast queue without blocking the lock
func (s *RoomSession) queueEvent(event *domain.GameEvent) {
	select {
	case s.events <- event:
	default:
		s.logger.Warn("event queue full, dropping event", "roomId", s.room.ID, "type", event.Type)
	}
}

// eventLoop delivers queued events to clients
func (s *RoomSession) eventLoop() {
	for {
		select {
		case <-s.done:
			return
		case event := <-s.events:
			s.dispatchEvent(event)
		}
	}
}

// dispatchEvent sends one event: to a single player when addressed, to the
// whole room otherwise.
func (s *RoomSession) dispatchEvent(event *domain.GameEvent) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	if event.PlayerName != "" {
		if client, ok := s.clients[event.PlayerName]; ok {
			if err := client.Send(event); err != nil {
				s.logger.Debug("failed to send to client", "player", event.PlayerName, "error", err)
			}
		}
		return
	}

	for name, client := range s.clients {
		if err := client.Send(event); err != nil {
			s.logger.Debug("failed to send to client", "player", name, "error", err)
		}
	}
}

// Close cancels all pending timers and drops every client. After Close no
// callback can resurrect the room.
func (s *RoomSession) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.gen++
		s.cancelTimersLocked()
		s.mu.Unlock()

		close(s.done)

		s.clientsMu.Lock()
		for _, client := range s.clients {
			client.Close()
		}
		s.clients = make(map[string]ClientConnection)
		s.clientsMu.Unlock()
	})
}
