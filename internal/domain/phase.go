package domain

import "time"

// Phase represents a step in the fixed turn sequence of a game
type Phase string

const (
	PhaseIdle        Phase = ""
	PhaseGameStart   Phase = "gameStart"
	PhaseNightStart  Phase = "nightStart"
	PhaseGuard       Phase = "guard"
	PhaseWolf        Phase = "wolf"
	PhaseWitch       Phase = "witch"
	PhaseSeer        Phase = "seer"
	PhaseDayStart    Phase = "dayStart"
	PhaseVillager    Phase = "villager"
	PhaseDayEnd      Phase = "dayEnd"
	PhaseHunterDay   Phase = "hunterDay"
	PhaseHunterNight Phase = "hunterNight"
	PhaseShootDay    Phase = "shootDay"
	PhaseShootNight  Phase = "shootNight"
	PhaseGameEnd     Phase = "gameEnd"
	PhaseEnd         Phase = "end"
)

// String returns the string representation of the phase
func (p Phase) String() string {
	return string(p)
}

// phaseEdge is one node of the phase graph: the unconditional successor and
// how long the phase lasts before the transition fires.
type phaseEdge struct {
	next     Phase
	duration time.Duration
}

var phaseGraph = map[Phase]phaseEdge{
	PhaseGameStart:   {PhaseNightStart, 5 * time.Second},
	PhaseNightStart:  {PhaseGuard, 3 * time.Second},
	PhaseGuard:       {PhaseWolf, 6 * time.Second},
	PhaseWolf:        {PhaseWitch, 6 * time.Second},
	PhaseWitch:       {PhaseSeer, 6 * time.Second},
	PhaseSeer:        {PhaseDayStart, 6 * time.Second},
	PhaseDayStart:    {PhaseVillager, 6 * time.Second},
	PhaseVillager:    {PhaseDayEnd, 10 * time.Second},
	PhaseDayEnd:      {PhaseNightStart, 6 * time.Second},
	PhaseHunterDay:   {PhaseShootDay, 6 * time.Second},
	PhaseHunterNight: {PhaseShootNight, 6 * time.Second},
	PhaseShootDay:    {PhaseVillager, 3 * time.Second},
	PhaseShootNight:  {PhaseNightStart, 3 * time.Second},
	PhaseGameEnd:     {PhaseEnd, 3 * time.Second},
}

// Next returns the default successor of a phase and the current phase's
// duration. The terminal phase (and any unknown phase) reports ok=false.
func (p Phase) Next() (next Phase, duration time.Duration, ok bool) {
	edge, found := phaseGraph[p]
	if !found {
		return PhaseIdle, 0, false
	}
	return edge.next, edge.duration, true
}

// ActingRole returns the role allowed to act during the phase. Phases with no
// acting role (transitions, announcements) return "".
func (p Phase) ActingRole() Role {
	switch p {
	case PhaseGuard:
		return RoleGuard
	case PhaseWolf:
		return RoleWolf
	case PhaseWitch:
		return RoleWitch
	case PhaseSeer:
		return RoleSeer
	case PhaseShootDay, PhaseShootNight:
		return RoleHunter
	default:
		return ""
	}
}

// PermittedActions returns the action types accepted while the phase is live.
func (p Phase) PermittedActions() []ActionType {
	switch p {
	case PhaseGuard:
		return []ActionType{ActionProtect, ActionSkip}
	case PhaseWolf:
		return []ActionType{ActionKill, ActionSkip}
	case PhaseWitch:
		return []ActionType{ActionSave, ActionPoison, ActionSkip}
	case PhaseSeer:
		return []ActionType{ActionCheck, ActionSkip}
	case PhaseVillager:
		return []ActionType{ActionVote, ActionSkip}
	case PhaseShootDay, PhaseShootNight:
		return []ActionType{ActionShoot, ActionSkip}
	default:
		return nil
	}
}

// Permits reports whether the action type is accepted during the phase.
func (p Phase) Permits(action ActionType) bool {
	for _, a := range p.PermittedActions() {
		if a == action {
			return true
		}
	}
	return false
}
