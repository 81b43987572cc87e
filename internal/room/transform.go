package room

// Transforms below are copy-on-write: each returns a new Room value
// with a freshly built player slice and never touches the receiver.

func (r Room) clonePlayers() []Player {
	players := make([]Player, len(r.Players))
	copy(players, r.Players)
	return players
}

// WithState returns a copy of the room in the given state.
func (r Room) WithState(s State) Room {
	r.Players = r.clonePlayers()
	r.State = s
	return r
}

// WithJoinedPlayer returns a copy of the room with the player seated
// at the end of the join order, NOT_READY with a zero score.
func (r Room) WithJoinedPlayer(p Identity) Room {
	players := make([]Player, 0, len(r.Players)+1)
	players = append(players, r.Players...)
	players = append(players, Player{ID: p.ID, Name: p.Name, Ready: NotReady, Score: 0})
	r.Players = players
	return r
}

// WithPlayerReady returns a copy of the room with one player's ready
// flag set. Unknown player ids leave the copy unchanged.
func (r Room) WithPlayerReady(playerID string) Room {
	players := r.clonePlayers()
	for i := range players {
		if players[i].ID == playerID {
			players[i].Ready = Ready
		}
	}
	r.Players = players
	return r
}

// WithAllPlayersNotReady returns a copy of the room with every ready
// flag cleared.
func (r Room) WithAllPlayersNotReady() Room {
	players := r.clonePlayers()
	for i := range players {
		players[i].Ready = NotReady
	}
	r.Players = players
	return r
}

// WithoutPlayer returns a copy of the room with the player removed,
// preserving join order of the rest.
func (r Room) WithoutPlayer(playerID string) Room {
	players := make([]Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.ID != playerID {
			players = append(players, p)
		}
	}
	r.Players = players
	return r
}

// WithPlayerScore returns a copy of the room with one player's score
// replaced (last write wins).
func (r Room) WithPlayerScore(playerID string, score int) Room {
	players := r.clonePlayers()
	for i := range players {
		if players[i].ID == playerID {
			players[i].Score = score
		}
	}
	r.Players = players
	return r
}

// WithZeroScores returns a copy of the room with every score reset.
func (r Room) WithZeroScores() Room {
	players := r.clonePlayers()
	for i := range players {
		players[i].Score = 0
	}
	r.Players = players
	return r
}
