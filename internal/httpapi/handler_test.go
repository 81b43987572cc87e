package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockduel/blockduel/internal/auth"
	"github.com/blockduel/blockduel/internal/room"
)

func newTestServer(t *testing.T) (*http.ServeMux, *room.MemoryRepository, *auth.JWTManager) {
	t.Helper()

	repo := room.NewMemoryRepository()
	tokens := auth.NewJWTManager("test-secret", time.Hour)
	mux := http.NewServeMux()
	NewHandler(repo, tokens).RegisterRoutes(mux)
	return mux, repo, tokens
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeSeat(t *testing.T, rec *httptest.ResponseRecorder) seatResponse {
	t.Helper()
	var seat seatResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&seat))
	return seat
}

func TestCreateRoom(t *testing.T) {
	mux, repo, tokens := newTestServer(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/rooms", map[string]any{
		"name":       "duel",
		"playerName": "alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	seat := decodeSeat(t, rec)
	assert.Equal(t, "duel", seat.Room.Name)
	assert.Equal(t, room.StateCreated, seat.Room.State)
	assert.Equal(t, room.DefaultPlayerLimit, seat.Room.Config.PlayerLimit)
	assert.Equal(t, room.DefaultMatchSec, seat.Room.Config.MatchSec)
	require.Len(t, seat.Room.Players, 1)
	assert.Equal(t, seat.Player.ID, seat.Room.Host.ID)
	assert.Equal(t, "alice", seat.Player.Name)

	// The seat token resolves back to the host.
	id, err := tokens.Verify(seat.Token)
	require.NoError(t, err)
	assert.Equal(t, seat.Player.ID, id.PlayerID)
	assert.Equal(t, "alice", id.PlayerName)

	// And the room is persisted.
	stored, err := repo.Get(context.Background(), seat.Room.ID)
	require.NoError(t, err)
	assert.Equal(t, "duel", stored.Name)
}

func TestCreateRoom_CustomConfig(t *testing.T) {
	mux, _, _ := newTestServer(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/rooms", map[string]any{
		"name":           "duel",
		"playerName":     "alice",
		"initialLevel":   5,
		"playerLimitNum": 4,
		"sec":            120,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	seat := decodeSeat(t, rec)
	assert.Equal(t, 5, seat.Room.Config.InitialLevel)
	assert.Equal(t, 4, seat.Room.Config.PlayerLimit)
	assert.Equal(t, 120, seat.Room.Config.MatchSec)
}

func TestCreateRoom_Validation(t *testing.T) {
	mux, _, _ := newTestServer(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/rooms", map[string]any{"playerName": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/rooms", map[string]any{"name": "duel"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/rooms", map[string]any{
		"name":           "duel",
		"playerName":     "alice",
		"playerLimitNum": 7,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRoom_DuplicateName(t *testing.T) {
	mux, _, _ := newTestServer(t)

	body := map[string]any{"name": "duel", "playerName": "alice"}
	require.Equal(t, http.StatusCreated, doJSON(t, mux, http.MethodPost, "/api/rooms", body).Code)

	rec := doJSON(t, mux, http.MethodPost, "/api/rooms", map[string]any{
		"name":       "duel",
		"playerName": "bob",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListRooms(t *testing.T) {
	mux, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Rooms []room.Room `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Empty(t, body.Rooms)

	doJSON(t, mux, http.MethodPost, "/api/rooms", map[string]any{"name": "one", "playerName": "alice"})
	doJSON(t, mux, http.MethodPost, "/api/rooms", map[string]any{"name": "two", "playerName": "bob"})

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Len(t, body.Rooms, 2)
}

func TestJoinRoom(t *testing.T) {
	mux, _, tokens := newTestServer(t)

	created := decodeSeat(t, doJSON(t, mux, http.MethodPost, "/api/rooms", map[string]any{
		"name":       "duel",
		"playerName": "alice",
	}))

	rec := doJSON(t, mux, http.MethodPost, "/api/rooms/"+created.Room.ID+"/join", map[string]any{
		"playerName": "bob",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	seat := decodeSeat(t, rec)
	assert.Equal(t, "bob", seat.Player.Name)
	assert.NotEqual(t, created.Player.ID, seat.Player.ID)
	require.Len(t, seat.Room.Players, 2)

	id, err := tokens.Verify(seat.Token)
	require.NoError(t, err)
	assert.Equal(t, seat.Player.ID, id.PlayerID)
}

func TestJoinRoom_NotFound(t *testing.T) {
	mux, _, _ := newTestServer(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/rooms/nope/join", map[string]any{
		"playerName": "bob",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJoinRoom_Full(t *testing.T) {
	mux, _, _ := newTestServer(t)

	created := decodeSeat(t, doJSON(t, mux, http.MethodPost, "/api/rooms", map[string]any{
		"name":       "duel",
		"playerName": "alice",
	}))

	join := func(name string) *httptest.ResponseRecorder {
		return doJSON(t, mux, http.MethodPost, "/api/rooms/"+created.Room.ID+"/join", map[string]any{
			"playerName": name,
		})
	}

	require.Equal(t, http.StatusOK, join("bob").Code)
	assert.Equal(t, http.StatusConflict, join("carol").Code)
}

func TestJoinRoom_RejectedOnceMatchStarted(t *testing.T) {
	mux, repo, _ := newTestServer(t)

	created := decodeSeat(t, doJSON(t, mux, http.MethodPost, "/api/rooms", map[string]any{
		"name":           "duel",
		"playerName":     "alice",
		"playerLimitNum": 3,
	}))

	ctx := context.Background()
	rm, err := repo.Get(ctx, created.Room.ID)
	require.NoError(t, err)
	require.NoError(t, repo.Update(ctx, rm.WithState(room.StateGameStart)))

	rec := doJSON(t, mux, http.MethodPost, "/api/rooms/"+created.Room.ID+"/join", map[string]any{
		"playerName": "bob",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHealth(t *testing.T) {
	mux, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
