package room

import (
	"github.com/google/uuid"
)

// State is the lifecycle state of a room.
type State string

const (
	StateCreated       State = "CREATED"
	StateGameStart     State = "GAME_START"
	StateGameInterrupt State = "GAME_INTERRUPT"
	StateGameEnd       State = "GAME_END"
)

// ReadyState marks whether a player has signalled readiness for the
// next match.
type ReadyState string

const (
	Ready    ReadyState = "READY"
	NotReady ReadyState = "NOT_READY"
)

const (
	DefaultInitialLevel = 1
	DefaultPlayerLimit  = 2
	DefaultMatchSec     = 60

	// MaxPlayerLimit bounds the creation-time player limit option.
	MaxPlayerLimit = 4
)

// Identity is the externally-authenticated player identity a session
// carries around.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Player is a seated room member.
type Player struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Ready ReadyState `json:"ready"`
	Score int        `json:"score"`
}

// Config is the immutable per-room match configuration.
type Config struct {
	InitialLevel int `json:"initialLevel" yaml:"initial_level"`
	PlayerLimit  int `json:"playerLimitNum" yaml:"player_limit"`
	MatchSec     int `json:"sec" yaml:"match_sec"`
}

// DefaultConfig returns the configuration applied when a room is
// created without explicit options.
func DefaultConfig() Config {
	return Config{
		InitialLevel: DefaultInitialLevel,
		PlayerLimit:  DefaultPlayerLimit,
		MatchSec:     DefaultMatchSec,
	}
}

// Room is the match aggregate. Instances are treated as immutable
// snapshots: every mutation goes through a With* transform that
// returns a new value, so a snapshot held by a concurrent reader is
// never changed underneath it.
type Room struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Host    Identity `json:"host"`
	Config  Config   `json:"config"`
	State   State    `json:"state"`
	Players []Player `json:"players"`
}

// New creates a room in CREATED state with the host pre-seated.
// Zero-valued config fields fall back to defaults.
func New(name string, host Identity, cfg Config) Room {
	if cfg.InitialLevel <= 0 {
		cfg.InitialLevel = DefaultInitialLevel
	}
	if cfg.PlayerLimit <= 0 {
		cfg.PlayerLimit = DefaultPlayerLimit
	}
	if cfg.MatchSec <= 0 {
		cfg.MatchSec = DefaultMatchSec
	}
	return Room{
		ID:     uuid.New().String(),
		Name:   name,
		Host:   host,
		Config: cfg,
		State:  StateCreated,
		Players: []Player{
			{ID: host.ID, Name: host.Name, Ready: NotReady, Score: 0},
		},
	}
}

// IsFull reports whether the room has reached its player limit.
func (r Room) IsFull() bool {
	return len(r.Players) >= r.Config.PlayerLimit
}

// IsEmpty reports whether no players remain.
func (r Room) IsEmpty() bool {
	return len(r.Players) == 0
}

// AllPlayersReady reports whether the room is full and every seated
// player has flagged READY. Both conditions gate the match start.
func (r Room) AllPlayersReady() bool {
	if !r.IsFull() {
		return false
	}
	for _, p := range r.Players {
		if p.Ready != Ready {
			return false
		}
	}
	return true
}

// HasPlayer reports whether the given player is seated in the room.
func (r Room) HasPlayer(playerID string) bool {
	for _, p := range r.Players {
		if p.ID == playerID {
			return true
		}
	}
	return false
}

// IsHost reports whether the given player owns the room lifecycle.
func (r Room) IsHost(playerID string) bool {
	return r.Host.ID == playerID
}
