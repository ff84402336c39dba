package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoomJoinRejectsDuplicateName(t *testing.T) {
	room := NewRoom("r1")

	_, err := room.Join("c1", "alice")
	require.NoError(t, err)

	_, err = room.Join("c2", "alice")
	require.ErrorIs(t, err, ErrNameTaken)
}

func TestRoomJoinRejectsWhenFull(t *testing.T) {
	room := NewRoom("r1")

	for i := 0; i < SeatCapacity; i++ {
		_, err := room.Join("c", fmt.Sprintf("player%d", i))
		require.NoError(t, err)
	}

	_, err := room.Join("c", "latecomer")
	require.ErrorIs(t, err, ErrRoomFull)
}

func TestRoomJoinRejectsAfterStart(t *testing.T) {
	room := NewRoom("r1")
	for i := 0; i < 6; i++ {
		_, err := room.Join("c", fmt.Sprintf("player%d", i))
		require.NoError(t, err)
	}
	require.NoError(t, room.Start())

	_, err := room.Join("c", "latecomer")
	require.ErrorIs(t, err, ErrGameStarted)
}

func TestRoomLeaveFreesSeatForReuse(t *testing.T) {
	room := NewRoom("r1")

	a, err := room.Join("c1", "alice")
	require.NoError(t, err)
	_, err = room.Join("c2", "bob")
	require.NoError(t, err)

	room.Leave("alice")
	require.Len(t, room.Players, 1)

	// The vacated seat 0 goes to the next joiner.
	c, err := room.Join("c3", "carol")
	require.NoError(t, err)
	require.Equal(t, a.Seat, c.Seat)
}

func TestRoomLeaveRetractsPendingVote(t *testing.T) {
	room := NewRoom("r1")
	_, err := room.Join("c1", "alice")
	require.NoError(t, err)
	bob, err := room.Join("c2", "bob")
	require.NoError(t, err)

	Cast(room.Players, bob, "alice")
	room.Leave("alice")

	require.Empty(t, bob.Votes)
}

func TestRoomKillHonoursImmunity(t *testing.T) {
	room := NewRoom("r1")
	for _, name := range []string{"alice", "bob", "carol"} {
		_, err := room.Join("c", name)
		require.NoError(t, err)
	}

	room.Protect("alice")
	require.Empty(t, room.Kill("alice"))
	alice, _ := room.FindPlayer("alice")
	require.True(t, alice.Alive)

	room.Save("bob")
	require.Empty(t, room.Kill("bob"))

	require.Equal(t, "carol", room.Kill("carol"))
	carol, _ := room.FindPlayer("carol")
	require.False(t, carol.Alive)
}

func TestRoomHangIgnoresImmunity(t *testing.T) {
	room := NewRoom("r1")
	_, err := room.Join("c1", "alice")
	require.NoError(t, err)

	room.Protect("alice")
	room.Hang("alice")

	alice, _ := room.FindPlayer("alice")
	require.False(t, alice.Alive)
}

func TestRoomKillAbsentTarget(t *testing.T) {
	room := NewRoom("r1")
	require.Empty(t, room.Kill("nobody"))
}

func TestRoomResetClearsGameState(t *testing.T) {
	room := NewRoom("r1")
	for i := 0; i < 6; i++ {
		_, err := room.Join("c", fmt.Sprintf("player%d", i))
		require.NoError(t, err)
	}
	require.NoError(t, room.Start())

	room.Phase = PhaseVillager
	room.Protect("player0")
	room.Hang("player1")
	Cast(room.Players, room.Players[0], "player2")

	room.Reset()

	require.False(t, room.Started)
	require.Equal(t, PhaseIdle, room.Phase)
	require.Empty(t, room.ProtectedTarget)
	for _, p := range room.Players {
		require.True(t, p.Alive)
		require.Empty(t, p.Role)
		require.Empty(t, p.Votes)
		require.False(t, p.HasShot)
	}

	// The same roster can start again.
	require.NoError(t, room.Start())
}

func TestRoomJoinable(t *testing.T) {
	room := NewRoom("r1")
	require.False(t, room.Joinable(), "empty room is not listed")

	for i := 0; i < 3; i++ {
		_, err := room.Join("c", fmt.Sprintf("player%d", i))
		require.NoError(t, err)
	}
	require.True(t, room.Joinable())

	require.NoError(t, room.Start())
	require.False(t, room.Joinable(), "started room is not listed")
}

func TestRoomViewIsASnapshot(t *testing.T) {
	room := NewRoom("r1")
	alice, err := room.Join("c1", "alice")
	require.NoError(t, err)
	bob, err := room.Join("c2", "bob")
	require.NoError(t, err)

	Cast(room.Players, bob, "alice")
	view := room.View()

	// Mutations after the snapshot must not show through.
	Cast(room.Players, alice, "bob")
	alice.Alive = false

	require.Len(t, view.PlayerList, 2)
	require.True(t, view.PlayerList[0].Alive)
	require.Equal(t, []string{"alice"}, view.PlayerList[1].Votes)
	require.Empty(t, view.PlayerList[0].Votes)
}
