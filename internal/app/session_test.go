package app

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/locpham26/BoardGame-Server/internal/domain"
)

// manualScheduler arms timers without a clock; tests fire them by hand.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	fn        func()
	repeating bool
	stopped   bool
	fired     bool
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{}
}

func (m *manualScheduler) After(d time.Duration, fn func()) CancelFunc {
	t := &manualTimer{fn: fn}
	m.mu.Lock()
	m.timers = append(m.timers, t)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		t.stopped = true
		m.mu.Unlock()
	}
}

func (m *manualScheduler) Every(d time.Duration, fn func()) CancelFunc {
	t := &manualTimer{fn: fn, repeating: true}
	m.mu.Lock()
	m.timers = append(m.timers, t)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		t.stopped = true
		m.mu.Unlock()
	}
}

// fireTimeouts runs every armed one-shot once. Callbacks arm new timers, so
// the pending set is snapshotted before running.
func (m *manualScheduler) fireTimeouts() int {
	m.mu.Lock()
	var pending []*manualTimer
	for _, t := range m.timers {
		if !t.repeating && !t.stopped && !t.fired {
			t.fired = true
			pending = append(pending, t)
		}
	}
	m.mu.Unlock()

	for _, t := range pending {
		t.fn()
	}
	return len(pending)
}

// fireTick runs every live repeating timer once
func (m *manualScheduler) fireTick() {
	m.mu.Lock()
	var live []*manualTimer
	for _, t := range m.timers {
		if t.repeating && !t.stopped {
			live = append(live, t)
		}
	}
	m.mu.Unlock()

	for _, t := range live {
		t.fn()
	}
}

// pendingTimeout returns the raw callback of the latest armed one-shot, so a
// test can fire it even after the session cancelled it.
func (m *manualScheduler) pendingTimeout() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.timers) - 1; i >= 0; i-- {
		if !m.timers[i].repeating {
			return m.timers[i].fn
		}
	}
	return nil
}

// fakeConn records everything sent to one player
type fakeConn struct {
	mu     sync.Mutex
	events []*domain.GameEvent
	closed bool
}

func (f *fakeConn) Send(message interface{}) error {
	event, ok := message.(*domain.GameEvent)
	if !ok {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) eventsOfType(eventType domain.EventType) []*domain.GameEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []*domain.GameEvent
	for _, e := range f.events {
		if e.Type == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

func waitForEvent(t *testing.T, conn *fakeConn, eventType domain.EventType) *domain.GameEvent {
	t.Helper()
	var found *domain.GameEvent
	require.Eventually(t, func() bool {
		events := conn.eventsOfType(eventType)
		if len(events) == 0 {
			return false
		}
		found = events[len(events)-1]
		return true
	}, time.Second, 5*time.Millisecond, "waiting for %s event", eventType)
	return found
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestSession seats n players named player0..player{n-1}, each with a
// recording connection.
func newTestSession(t *testing.T, n int) (*RoomSession, *manualScheduler, []*fakeConn) {
	t.Helper()
	sch := newManualScheduler()
	s := NewRoomSession(domain.NewRoom("r1"), sch, 0, testLogger())
	t.Cleanup(s.Close)

	conns := make([]*fakeConn, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("player%d", i)
		conns[i] = &fakeConn{}
		s.RegisterClient(name, conns[i])
		_, err := s.Join(fmt.Sprintf("conn%d", i), name)
		require.NoError(t, err)
	}
	return s, sch, conns
}

// setRoles overwrites the shuffled assignment so tests know who is who
func setRoles(s *RoomSession, roles ...domain.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, role := range roles {
		s.room.Players[i].Role = role
	}
}

// enterPhase drops the session into a phase directly
func enterPhase(s *RoomSession, phase domain.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enterPhaseLocked(phase, false)
}

func currentPhase(s *RoomSession) domain.Phase {
	return s.View().Turn
}

func Test_Join_announces_and_leave_empties_the_room(t *testing.T) {
	s, _, conns := newTestSession(t, 2)

	event := waitForEvent(t, conns[0], domain.EventMessage)
	payload := event.Payload.(domain.MessagePayload)
	require.Equal(t, AdminName, payload.UserName)

	// The welcome line goes to the joiner alone.
	require.Eventually(t, func() bool {
		for _, e := range conns[0].eventsOfType(domain.EventMessage) {
			if e.Payload.(domain.MessagePayload).Text == "Welcome" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	for _, e := range conns[1].eventsOfType(domain.EventMessage) {
		require.NotEqual(t, "Welcome", e.Payload.(domain.MessagePayload).Text, "welcome must not reach the other player")
	}

	require.False(t, s.Leave("player0"))
	require.True(t, s.Leave("player1"))
}

func Test_Join_rejects_duplicate_names(t *testing.T) {
	s, _, _ := newTestSession(t, 1)

	_, err := s.Join("other-conn", "player0")
	require.ErrorIs(t, err, domain.ErrNameTaken)
}

func Test_Start_assigns_roles_and_opens_the_game(t *testing.T) {
	s, _, conns := newTestSession(t, 6)

	require.NoError(t, s.Start())

	view := s.View()
	require.True(t, view.Started)
	require.Equal(t, domain.PhaseGameStart, view.Turn)

	assigned := make([]domain.Role, 0, 6)
	for _, p := range view.PlayerList {
		assigned = append(assigned, p.Role)
	}
	expected, err := domain.RolesForSize(6)
	require.NoError(t, err)
	require.ElementsMatch(t, expected, assigned)

	event := waitForEvent(t, conns[0], domain.EventChangeTurn)
	require.Equal(t, domain.PhaseGameStart, event.Payload.(domain.ChangeTurnPayload).RoomTurn)

	require.ErrorIs(t, s.Start(), domain.ErrGameStarted)
}

func Test_Start_rejects_unplayable_roster_sizes(t *testing.T) {
	s, _, _ := newTestSession(t, 5)
	require.ErrorIs(t, s.Start(), domain.ErrBadRosterSize)
	require.False(t, s.View().Started)
}

func Test_phase_timer_walks_into_the_night(t *testing.T) {
	s, sch, conns := newTestSession(t, 6)
	require.NoError(t, s.Start())

	require.Equal(t, 1, sch.fireTimeouts())
	require.Equal(t, domain.PhaseNightStart, currentPhase(s))

	require.Equal(t, 1, sch.fireTimeouts())
	require.Equal(t, domain.PhaseGuard, currentPhase(s))

	// Entering the guard phase announces last night's protection.
	event := waitForEvent(t, conns[0], domain.EventLastProtected)
	require.Empty(t, event.Payload.(domain.LastProtectedPayload).Name)

	require.Equal(t, 1, sch.fireTimeouts())
	require.Equal(t, domain.PhaseWolf, currentPhase(s))
}

func Test_countdown_ticks_from_duration_to_zero(t *testing.T) {
	s, sch, conns := newTestSession(t, 6)
	require.NoError(t, s.Start())

	// gameStart lasts 5s: ticks broadcast 4,3,2,1,0 then stop.
	for i := 0; i < 7; i++ {
		sch.fireTick()
	}

	require.Eventually(t, func() bool {
		return len(conns[0].eventsOfType(domain.EventCountDown)) == 5
	}, time.Second, 5*time.Millisecond)

	counts := make([]int, 0, 5)
	for _, e := range conns[0].eventsOfType(domain.EventCountDown) {
		counts = append(counts, e.Payload.(domain.CountDownPayload).Count)
	}
	require.Equal(t, []int{4, 3, 2, 1, 0}, counts)
	require.Equal(t, domain.PhaseGameStart, currentPhase(s), "ticks never advance the phase")
}

func Test_wolf_kill_reaching_quorum_advances_to_the_witch(t *testing.T) {
	s, _, conns := newTestSession(t, 6)
	require.NoError(t, s.Start())
	setRoles(s, domain.RoleWolf, domain.RoleWitch, domain.RoleSeer, domain.RoleGuard, domain.RoleHunter, domain.RoleVillager)

	enterPhase(s, domain.PhaseWolf)
	require.NoError(t, s.HandleAction("player0", "player5", domain.ActionKill))

	require.Equal(t, domain.PhaseWitch, currentPhase(s))

	// The witch is told whom the wolves chose; nobody is dead yet.
	event := waitForEvent(t, conns[1], domain.EventKilledByWolf)
	require.Equal(t, "player5", event.Payload.(domain.KilledByWolfPayload).Name)

	victim, err := s.room.FindPlayer("player5")
	require.NoError(t, err)
	require.True(t, victim.Alive)
}

func Test_wolf_skipping_leaves_the_night_bloodless(t *testing.T) {
	s, _, conns := newTestSession(t, 6)
	require.NoError(t, s.Start())
	setRoles(s, domain.RoleWolf, domain.RoleWitch, domain.RoleSeer, domain.RoleGuard, domain.RoleHunter, domain.RoleVillager)

	enterPhase(s, domain.PhaseWolf)
	require.NoError(t, s.RequestSkip("player0"))
	require.Equal(t, domain.PhaseWitch, currentPhase(s))

	chosen := waitForEvent(t, conns[1], domain.EventKilledByWolf)
	require.Empty(t, chosen.Payload.(domain.KilledByWolfPayload).Name)

	require.NoError(t, s.RequestSkip("player1"))
	require.NoError(t, s.RequestSkip("player2"))
	require.Equal(t, domain.PhaseDayStart, currentPhase(s))

	kill := waitForEvent(t, conns[0], domain.EventKill)
	payload := kill.Payload.(domain.KillPayload)
	require.Empty(t, payload.KilledPlayer)
	require.Empty(t, payload.PoisonedPlayer)
	require.Len(t, s.View().PlayerList, 6)
	for _, p := range s.View().PlayerList {
		require.True(t, p.Alive)
	}
}

func Test_action_validation(t *testing.T) {
	s, _, _ := newTestSession(t, 6)

	require.ErrorIs(t, s.HandleAction("player0", "player1", domain.ActionVote), domain.ErrGameNotStarted)

	require.NoError(t, s.Start())
	setRoles(s, domain.RoleWolf, domain.RoleWitch, domain.RoleSeer, domain.RoleGuard, domain.RoleHunter, domain.RoleVillager)
	enterPhase(s, domain.PhaseWolf)

	require.ErrorIs(t, s.HandleAction("player0", "player1", domain.ActionVote), domain.ErrInvalidAction, "vote is a day action")
	require.ErrorIs(t, s.HandleAction("player5", "player1", domain.ActionKill), domain.ErrInvalidAction, "only the wolf kills")
	require.ErrorIs(t, s.HandleAction("ghost", "player1", domain.ActionKill), domain.ErrPlayerNotFound)
	require.ErrorIs(t, s.HandleAction("player0", "ghost", domain.ActionKill), domain.ErrPlayerNotFound)

	enterPhase(s, domain.PhaseNightStart)
	require.ErrorIs(t, s.HandleAction("player0", "player1", domain.ActionKill), domain.ErrInvalidAction, "announcement phases accept no actions")
}

func Test_skip_withdraws_the_vote_and_a_full_quorum_advances(t *testing.T) {
	s, _, conns := newTestSession(t, 6)
	require.NoError(t, s.Start())
	setRoles(s, domain.RoleWolf, domain.RoleWitch, domain.RoleSeer, domain.RoleGuard, domain.RoleHunter, domain.RoleVillager)

	enterPhase(s, domain.PhaseVillager)
	require.NoError(t, s.HandleAction("player0", "player5", domain.ActionVote))

	for i := 0; i < 6; i++ {
		require.NoError(t, s.RequestSkip(fmt.Sprintf("player%d", i)))
	}

	// Six skips meet the quorum; the skipper's earlier vote was withdrawn,
	// so the day ends with nobody on the gallows.
	require.Equal(t, domain.PhaseDayEnd, currentPhase(s))
	event := waitForEvent(t, conns[0], domain.EventHang)
	require.Empty(t, event.Payload.(domain.HangPayload).Name)

	victim, err := s.room.FindPlayer("player5")
	require.NoError(t, err)
	require.True(t, victim.Alive)
}

func Test_duplicate_skips_do_not_inflate_the_quorum(t *testing.T) {
	s, _, _ := newTestSession(t, 6)
	require.NoError(t, s.Start())
	setRoles(s, domain.RoleWolf, domain.RoleWitch, domain.RoleSeer, domain.RoleGuard, domain.RoleHunter, domain.RoleVillager)

	enterPhase(s, domain.PhaseVillager)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.RequestSkip("player0"))
	}
	require.Equal(t, domain.PhaseVillager, currentPhase(s), "one player skipping five times counts once")
}

func Test_protection_spares_the_wolf_target(t *testing.T) {
	s, _, conns := newTestSession(t, 6)
	require.NoError(t, s.Start())
	setRoles(s, domain.RoleWolf, domain.RoleWitch, domain.RoleSeer, domain.RoleGuard, domain.RoleHunter, domain.RoleVillager)

	enterPhase(s, domain.PhaseGuard)
	require.NoError(t, s.HandleAction("player3", "player5", domain.ActionProtect))
	require.NoError(t, s.RequestSkip("player3"))
	require.Equal(t, domain.PhaseWolf, currentPhase(s))

	require.NoError(t, s.HandleAction("player0", "player5", domain.ActionKill))
	require.Equal(t, domain.PhaseWitch, currentPhase(s))
	require.NoError(t, s.RequestSkip("player1"))
	require.NoError(t, s.RequestSkip("player2"))
	require.Equal(t, domain.PhaseDayStart, currentPhase(s))

	event := waitForEvent(t, conns[0], domain.EventKill)
	payload := event.Payload.(domain.KillPayload)
	require.Empty(t, payload.KilledPlayer, "protected target survives the night")

	victim, err := s.room.FindPlayer("player5")
	require.NoError(t, err)
	require.True(t, victim.Alive)
}

func Test_witch_poison_kills_alongside_the_wolves(t *testing.T) {
	s, _, conns := newTestSession(t, 6)
	require.NoError(t, s.Start())
	setRoles(s, domain.RoleWolf, domain.RoleWitch, domain.RoleSeer, domain.RoleGuard, domain.RoleHunter, domain.RoleVillager)

	enterPhase(s, domain.PhaseWolf)
	require.NoError(t, s.HandleAction("player0", "player5", domain.ActionKill))
	require.NoError(t, s.HandleAction("player1", "player2", domain.ActionPoison))
	require.NoError(t, s.RequestSkip("player1"))
	require.NoError(t, s.RequestSkip("player2"))
	require.Equal(t, domain.PhaseDayStart, currentPhase(s))

	event := waitForEvent(t, conns[0], domain.EventKill)
	payload := event.Payload.(domain.KillPayload)
	require.Equal(t, "player5", payload.KilledPlayer)
	require.Equal(t, "player2", payload.PoisonedPlayer)
}

func Test_seer_check_is_revealed_to_the_seer_only(t *testing.T) {
	s, _, conns := newTestSession(t, 6)
	require.NoError(t, s.Start())
	setRoles(s, domain.RoleWolf, domain.RoleWitch, domain.RoleSeer, domain.RoleGuard, domain.RoleHunter, domain.RoleVillager)

	enterPhase(s, domain.PhaseSeer)
	require.NoError(t, s.HandleAction("player2", "player0", domain.ActionCheck))

	event := waitForEvent(t, conns[2], domain.EventReveal)
	payload := event.Payload.(domain.RevealPayload)
	require.Equal(t, "player0", payload.CheckTarget)
	require.True(t, payload.IsWolf)

	require.Empty(t, conns[0].eventsOfType(domain.EventReveal), "the wolf never sees the reveal")
}

func Test_hanged_hunter_shoots_from_the_grave(t *testing.T) {
	s, sch, conns := newTestSession(t, 6)
	require.NoError(t, s.Start())
	setRoles(s, domain.RoleWolf, domain.RoleWitch, domain.RoleSeer, domain.RoleGuard, domain.RoleHunter, domain.RoleVillager)

	enterPhase(s, domain.PhaseVillager)
	for i := 0; i < 4; i++ {
		require.NoError(t, s.HandleAction(fmt.Sprintf("player%d", i), "player4", domain.ActionVote))
	}
	sch.fireTimeouts()
	require.Equal(t, domain.PhaseDayEnd, currentPhase(s))

	event := waitForEvent(t, conns[0], domain.EventHang)
	require.Equal(t, "player4", event.Payload.(domain.HangPayload).Name)

	// The hunter's death branches into the shoot phases.
	sch.fireTimeouts()
	require.Equal(t, domain.PhaseHunterNight, currentPhase(s))
	sch.fireTimeouts()
	require.Equal(t, domain.PhaseShootNight, currentPhase(s))

	require.NoError(t, s.HandleAction("player4", "player0", domain.ActionShoot))
	shot := waitForEvent(t, conns[0], domain.EventHunterShoot)
	require.Equal(t, "player0", shot.Payload.(domain.HunterShootPayload).Name)

	// Shooting the last wolf decides the game.
	sch.fireTimeouts()
	require.Equal(t, domain.PhaseGameEnd, currentPhase(s))
	win := waitForEvent(t, conns[0], domain.EventWin)
	require.Equal(t, domain.FactionHuman, win.Payload.(domain.WinPayload).Faction)

	require.ErrorIs(t, s.HandleAction("player4", "player1", domain.ActionShoot), domain.ErrInvalidAction, "the shot is single use")
}

func Test_night_killed_hunter_opens_a_day_shot(t *testing.T) {
	s, sch, _ := newTestSession(t, 6)
	require.NoError(t, s.Start())
	setRoles(s, domain.RoleWolf, domain.RoleWitch, domain.RoleSeer, domain.RoleGuard, domain.RoleHunter, domain.RoleVillager)

	enterPhase(s, domain.PhaseWolf)
	require.NoError(t, s.HandleAction("player0", "player4", domain.ActionKill))
	require.NoError(t, s.RequestSkip("player1"))
	require.NoError(t, s.RequestSkip("player2"))
	require.Equal(t, domain.PhaseDayStart, currentPhase(s))

	sch.fireTimeouts()
	require.Equal(t, domain.PhaseHunterDay, currentPhase(s))
	sch.fireTimeouts()
	require.Equal(t, domain.PhaseShootDay, currentPhase(s))
}

func Test_wolves_reaching_parity_end_the_game(t *testing.T) {
	s, sch, conns := newTestSession(t, 6)
	require.NoError(t, s.Start())
	setRoles(s, domain.RoleWolf, domain.RoleWitch, domain.RoleSeer, domain.RoleGuard, domain.RoleHunter, domain.RoleVillager)

	// Whittle the village down to wolf, hunter (shot spent) and villager.
	s.mu.Lock()
	s.room.Players[1].Alive = false
	s.room.Players[2].Alive = false
	s.room.Players[3].Alive = false
	s.room.Players[4].HasShot = true
	s.mu.Unlock()

	enterPhase(s, domain.PhaseWolf)
	require.NoError(t, s.HandleAction("player0", "player5", domain.ActionKill))
	sch.fireTimeouts() // witch -> seer
	sch.fireTimeouts() // seer -> dayStart, kill applied, parity reached
	require.Equal(t, domain.PhaseDayStart, currentPhase(s))

	sch.fireTimeouts()
	require.Equal(t, domain.PhaseGameEnd, currentPhase(s))
	win := waitForEvent(t, conns[0], domain.EventWin)
	require.Equal(t, domain.FactionWolf, win.Payload.(domain.WinPayload).Faction)

	// The terminal phase hands the room back for another game.
	sch.fireTimeouts()
	view := s.View()
	require.False(t, view.Started)
	require.Equal(t, domain.PhaseIdle, view.Turn)
	for _, p := range view.PlayerList {
		require.True(t, p.Alive)
		require.Empty(t, p.Role)
	}
}

func Test_tied_day_vote_hangs_nobody(t *testing.T) {
	s, sch, conns := newTestSession(t, 6)
	require.NoError(t, s.Start())
	setRoles(s, domain.RoleWolf, domain.RoleWitch, domain.RoleSeer, domain.RoleGuard, domain.RoleHunter, domain.RoleVillager)

	enterPhase(s, domain.PhaseVillager)
	require.NoError(t, s.HandleAction("player0", "player5", domain.ActionVote))
	require.NoError(t, s.HandleAction("player1", "player0", domain.ActionVote))
	sch.fireTimeouts()

	require.Equal(t, domain.PhaseDayEnd, currentPhase(s))
	event := waitForEvent(t, conns[0], domain.EventHang)
	require.Empty(t, event.Payload.(domain.HangPayload).Name)
}

func Test_stale_phase_timer_is_dropped(t *testing.T) {
	s, sch, _ := newTestSession(t, 6)
	require.NoError(t, s.Start())
	setRoles(s, domain.RoleWolf, domain.RoleWitch, domain.RoleSeer, domain.RoleGuard, domain.RoleHunter, domain.RoleVillager)

	enterPhase(s, domain.PhaseVillager)
	stale := sch.pendingTimeout() // would advance villager -> dayEnd

	enterPhase(s, domain.PhaseWolf)
	stale()

	require.Equal(t, domain.PhaseWolf, currentPhase(s), "a superseded timer must not advance the phase")
}

func Test_close_defuses_pending_timers_and_drops_clients(t *testing.T) {
	s, sch, conns := newTestSession(t, 6)
	require.NoError(t, s.Start())

	pending := sch.pendingTimeout()
	s.Close()
	pending()

	require.Equal(t, domain.PhaseGameStart, currentPhase(s))
	require.Eventually(t, func() bool {
		conns[0].mu.Lock()
		defer conns[0].mu.Unlock()
		return conns[0].closed
	}, time.Second, 5*time.Millisecond)
}

func Test_leaving_mid_vote_withdraws_the_ballot(t *testing.T) {
	s, _, _ := newTestSession(t, 6)
	require.NoError(t, s.Start())
	setRoles(s, domain.RoleWolf, domain.RoleWitch, domain.RoleSeer, domain.RoleGuard, domain.RoleHunter, domain.RoleVillager)

	enterPhase(s, domain.PhaseVillager)
	require.NoError(t, s.HandleAction("player0", "player5", domain.ActionVote))

	s.Leave("player0")

	victim, err := s.room.FindPlayer("player5")
	require.NoError(t, err)
	require.Empty(t, victim.Votes)
}
