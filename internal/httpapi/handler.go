// Package httpapi exposes the room directory over JSON: creating a
// room (the creator becomes host), listing active rooms, and joining
// an existing one. Each create/join response carries the session token
// the player uses to open its WebSocket connection.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/blockduel/blockduel/internal/room"
)

// TokenIssuer issues session tokens for seated players.
type TokenIssuer interface {
	Generate(playerID, playerName string, now time.Time) (string, error)
}

// Handler serves the room REST surface.
type Handler struct {
	repo   room.Repository
	tokens TokenIssuer
}

// NewHandler creates the REST handler.
func NewHandler(repo room.Repository, tokens TokenIssuer) *Handler {
	return &Handler{repo: repo, tokens: tokens}
}

// RegisterRoutes registers the REST routes on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/rooms", h.handleCreateRoom)
	mux.HandleFunc("GET /api/rooms", h.handleListRooms)
	mux.HandleFunc("POST /api/rooms/{id}/join", h.handleJoinRoom)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

type createRoomRequest struct {
	Name         string `json:"name"`
	PlayerName   string `json:"playerName"`
	InitialLevel int    `json:"initialLevel"`
	PlayerLimit  int    `json:"playerLimitNum"`
	MatchSec     int    `json:"sec"`
}

type seatResponse struct {
	Room   room.Room `json:"room"`
	Player room.Identity `json:"player"`
	Token  string    `json:"token"`
}

func (h *Handler) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.PlayerName == "" {
		writeError(w, http.StatusBadRequest, "name and playerName are required")
		return
	}
	if req.PlayerLimit != 0 && (req.PlayerLimit < 2 || req.PlayerLimit > room.MaxPlayerLimit) {
		writeError(w, http.StatusBadRequest, "playerLimitNum out of range")
		return
	}

	// Name uniqueness is checked against active rooms at creation
	// time; a racing create can still slip through, which the design
	// accepts.
	existing, err := h.repo.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}
	for _, rm := range existing {
		if rm.Name == req.Name {
			writeError(w, http.StatusConflict, room.ErrDuplicateName.Error())
			return
		}
	}

	host := room.Identity{ID: uuid.New().String(), Name: req.PlayerName}
	rm := room.New(req.Name, host, room.Config{
		InitialLevel: req.InitialLevel,
		PlayerLimit:  req.PlayerLimit,
		MatchSec:     req.MatchSec,
	})

	if err := h.repo.Create(r.Context(), rm); err != nil {
		log.Error().Err(err).Str("room_id", rm.ID).Msg("failed to create room")
		writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	token, err := h.tokens.Generate(host.ID, host.Name, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("failed to issue session token")
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	log.Info().Str("room_id", rm.ID).Str("name", rm.Name).Msg("room created")
	writeJSON(w, http.StatusCreated, seatResponse{Room: rm, Player: host, Token: token})
}

func (h *Handler) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.repo.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

type joinRoomRequest struct {
	PlayerName string `json:"playerName"`
}

func (h *Handler) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")

	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PlayerName == "" {
		writeError(w, http.StatusBadRequest, "playerName is required")
		return
	}

	rm, err := h.repo.Get(r.Context(), roomID)
	if errors.Is(err, room.ErrNotFound) {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load room")
		return
	}
	if rm.IsFull() {
		writeError(w, http.StatusConflict, room.ErrRoomFull.Error())
		return
	}
	if rm.State != room.StateCreated {
		writeError(w, http.StatusConflict, room.ErrInvalidStateTransition.Error())
		return
	}

	player := room.Identity{ID: uuid.New().String(), Name: req.PlayerName}
	if err := h.repo.Update(r.Context(), rm.WithJoinedPlayer(player)); err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to seat player")
		writeError(w, http.StatusInternalServerError, "failed to join room")
		return
	}

	token, err := h.tokens.Generate(player.ID, player.Name, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("failed to issue session token")
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	joined, err := h.repo.Get(r.Context(), roomID)
	if err != nil {
		joined = rm.WithJoinedPlayer(player)
	}

	log.Info().Str("room_id", roomID).Str("player", player.Name).Msg("player joined room")
	writeJSON(w, http.StatusOK, seatResponse{Room: joined, Player: player, Token: token})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
