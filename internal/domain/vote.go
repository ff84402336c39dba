package domain

// Retract removes the voter's entry from whichever ledger currently holds it.
// Idempotent: a voter with no active vote is a no-op.
func Retract(players []*Player, voter string) {
	for _, p := range players {
		for i, v := range p.Votes {
			if v == voter {
				p.Votes = append(p.Votes[:i], p.Votes[i+1:]...)
				return
			}
		}
	}
}

// Cast records the voter's choice on the target's ledger. Any previous vote
// by the same voter is retracted first, so one voter holds exactly one entry
// across the whole roster.
func Cast(players []*Player, target *Player, voter string) {
	Retract(players, voter)
	target.Votes = append(target.Votes, voter)
}

// Resolve returns the player with strictly the most votes among the given
// players. A tie for the maximum, an empty roster, or a roster with no votes
// at all resolves to nobody. The tie check is a global
// maximum-with-multiplicity scan, not an adjacent-pair comparison.
func Resolve(players []*Player) (*Player, bool) {
	var winner *Player
	maxVotes := 0
	tied := false

	for _, p := range players {
		switch {
		case len(p.Votes) > maxVotes:
			winner = p
			maxVotes = len(p.Votes)
			tied = false
		case len(p.Votes) == maxVotes && maxVotes > 0:
			tied = true
		}
	}

	if winner == nil || tied {
		return nil, false
	}
	return winner, true
}
