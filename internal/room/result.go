package room

// Result is the deterministic outcome of a finished match.
type Result struct {
	IsTie    bool   `json:"isTie"`
	WinnerID string `json:"winnerId"`
	LoserID  string `json:"loserId"`
}

// ComputeResult scans the player list once, tracking the running
// max-score and min-score players. Ties are broken by join order: the
// first player encountered at a given score keeps the role. A room
// with a single remaining player is trivially a tie against itself.
func ComputeResult(r Room) Result {
	if len(r.Players) == 0 {
		return Result{IsTie: true}
	}
	winner, loser := r.Players[0], r.Players[0]
	for _, p := range r.Players {
		if p.Score > winner.Score {
			winner = p
		}
		if p.Score < loser.Score {
			loser = p
		}
	}
	return Result{
		IsTie:    winner.Score == loser.Score,
		WinnerID: winner.ID,
		LoserID:  loser.ID,
	}
}
