package domain

// ActionType is a role-scoped action a player can take during a phase
type ActionType string

const (
	ActionVote    ActionType = "vote"
	ActionKill    ActionType = "kill"
	ActionProtect ActionType = "protect"
	ActionSave    ActionType = "save"
	ActionPoison  ActionType = "poison"
	ActionCheck   ActionType = "check"
	ActionShoot   ActionType = "shoot"
	ActionSkip    ActionType = "skip"
)

// String returns the string representation of the action type
func (a ActionType) String() string {
	return string(a)
}

// SingleUse reports whether the action may only be taken once per phase, so
// the acting client is told to disable the control after using it.
func (a ActionType) SingleUse() bool {
	switch a {
	case ActionProtect, ActionSave, ActionPoison, ActionCheck, ActionShoot:
		return true
	default:
		return false
	}
}
