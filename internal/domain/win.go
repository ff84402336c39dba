package domain

// EvaluateWin inspects living role counts and reports the winning faction,
// or FactionNone while the game is still ongoing. Wolves win as soon as they
// are no longer outnumbered; the village wins when the last wolf dies.
func EvaluateWin(r *Room) Faction {
	wolves := r.LivingWolves()
	humans := r.LivingHumans()

	switch {
	case wolves >= humans:
		return FactionWolf
	case wolves == 0:
		return FactionHuman
	default:
		return FactionNone
	}
}
