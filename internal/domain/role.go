package domain

import "math/rand"

// Role represents a player's secret role for one game
type Role string

const (
	RoleWolf     Role = "wolf"
	RoleVillager Role = "villager"
	RoleSeer     Role = "seer"
	RoleGuard    Role = "guard"
	RoleWitch    Role = "witch"
	RoleHunter   Role = "hunter"
)

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// IsWolf returns true if this role belongs to the wolf faction
func (r Role) IsWolf() bool {
	return r == RoleWolf
}

// Faction is the side a player wins with; membership is binary
type Faction string

const (
	FactionWolf  Faction = "wolf"
	FactionHuman Faction = "human"
	FactionNone  Faction = "" // game still ongoing
)

// roleTables maps roster size to the fixed role multiset for that size.
// Sizes without an entry cannot start a game.
var roleTables = map[int][]Role{
	3: {RoleWolf, RoleHunter, RoleWitch},
	4: {RoleWolf, RoleWitch, RoleHunter, RoleGuard},
	6: {RoleWolf, RoleHunter, RoleWitch, RoleVillager, RoleSeer, RoleGuard},
	7: {RoleWolf, RoleWolf, RoleVillager, RoleVillager, RoleVillager, RoleSeer, RoleGuard},
	8: {RoleWolf, RoleWolf, RoleVillager, RoleVillager, RoleVillager, RoleSeer, RoleGuard, RoleWitch},
}

// RolesForSize returns a copy of the role multiset for the given roster size.
func RolesForSize(size int) ([]Role, error) {
	table, ok := roleTables[size]
	if !ok {
		return nil, ErrBadRosterSize
	}
	roles := make([]Role, len(table))
	copy(roles, table)
	return roles, nil
}

// AssignRoles shuffles the role table for the roster size and binds one role
// per player positionally. Safe to re-run at the start of a new game on a
// reused room.
func AssignRoles(players []*Player) error {
	roles, err := RolesForSize(len(players))
	if err != nil {
		return err
	}

	rand.Shuffle(len(roles), func(i, j int) {
		roles[i], roles[j] = roles[j], roles[i]
	})

	for i, player := range players {
		player.Role = roles[i]
	}
	return nil
}
