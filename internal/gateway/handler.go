package gateway

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/blockduel/blockduel/internal/auth"
	"github.com/blockduel/blockduel/internal/room"
)

// Handler admits WebSocket connections to room sessions. Admission
// rejects before any room mutation: bad tokens, unknown rooms, players
// without a seat, and duplicate connections all fail here.
type Handler struct {
	verifier auth.Verifier
	repo     room.Repository
	manager  *ConnectionManager
}

// NewHandler creates the admission handler.
func NewHandler(verifier auth.Verifier, repo room.Repository, manager *ConnectionManager) *Handler {
	return &Handler{
		verifier: verifier,
		repo:     repo,
		manager:  manager,
	}
}

// HandleRoomConnection upgrades GET /ws/room?roomId=...&token=... into
// a room session.
func (h *Handler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	identity, err := h.verifier.Verify(token)
	if err != nil {
		log.Warn().Err(err).Msg("connection rejected: auth failed")
		http.Error(w, "auth failed", http.StatusUnauthorized)
		return
	}

	roomID := r.URL.Query().Get("roomId")
	if roomID == "" {
		http.Error(w, "roomId is required", http.StatusBadRequest)
		return
	}

	rm, err := h.repo.Get(r.Context(), roomID)
	if errors.Is(err, room.ErrNotFound) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("admission room lookup failed")
		http.Error(w, "room lookup failed", http.StatusInternalServerError)
		return
	}

	// The seat must already exist; a connection can never claim
	// another player's place in the room.
	if !rm.HasPlayer(identity.PlayerID) {
		http.Error(w, "player not in room", http.StatusForbidden)
		return
	}

	if h.manager.IsPlayerConnected(identity.PlayerID) {
		http.Error(w, "already connected", http.StatusConflict)
		return
	}

	if err := h.manager.Admit(w, r, roomID, identity.PlayerID, identity.PlayerName); err != nil {
		if errors.Is(err, ErrAlreadyConnected) {
			// Lost the registration race to a concurrent connect.
			return
		}
		log.Error().
			Err(err).
			Str("room_id", roomID).
			Str("player_id", identity.PlayerID).
			Msg("failed to admit connection")
	}
}

// RegisterRoutes registers the WebSocket routes on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/room", h.HandleRoomConnection)
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
