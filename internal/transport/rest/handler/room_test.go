package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chrolemist/scrumpoker/internal/model"
	"github.com/Chrolemist/scrumpoker/internal/service"
	"github.com/Chrolemist/scrumpoker/internal/store"
	"github.com/Chrolemist/scrumpoker/internal/transport/rest"
)

func newTestServer() http.Handler {
	svc := service.NewRoomService(store.NewMemoryStore(), nil)
	return rest.NewRouter(&rest.Container{RoomService: svc})
}

func doJSON(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decodeRoom(t *testing.T, w *httptest.ResponseRecorder) *model.Room {
	t.Helper()
	var room model.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	return &room
}

func TestGetRoomCreatesOnFirstRequest(t *testing.T) {
	srv := newTestServer()

	w := doJSON(t, srv, http.MethodGet, "/v1/rooms/TEAM1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	room := decodeRoom(t, w)
	require.Len(t, room.Stories, 1)
	assert.Equal(t, room.Stories[0].ID, room.ActiveStoryID)
}

func TestJoinAndVoteFlow(t *testing.T) {
	srv := newTestServer()

	w := doJSON(t, srv, http.MethodPost, "/v1/rooms/TEAM1/join", map[string]string{"name": "Alice"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Alice"}, decodeRoom(t, w).Players)

	w = doJSON(t, srv, http.MethodPost, "/v1/rooms/TEAM1/vote", map[string]any{"name": "Alice", "value": 5})
	require.Equal(t, http.StatusOK, w.Code)
	room := decodeRoom(t, w)
	assert.Equal(t, float64(5), room.Votes[room.ActiveStoryID]["Alice"])

	w = doJSON(t, srv, http.MethodPost, "/v1/rooms/TEAM1/reveal", nil)
	require.Equal(t, http.StatusOK, w.Code)
	room = decodeRoom(t, w)
	assert.True(t, room.RevealedFor[room.ActiveStoryID])

	w = doJSON(t, srv, http.MethodGet, "/v1/rooms/TEAM1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats service.VoteStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Votes)
	assert.True(t, stats.Consensus)
}

func TestStatsBeforeRevealConflicts(t *testing.T) {
	srv := newTestServer()

	w := doJSON(t, srv, http.MethodPost, "/v1/rooms/TEAM1/vote", map[string]any{"name": "Alice", "value": 5})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/v1/rooms/TEAM1/stats", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "not revealed")
}

func TestStoryLifecycle(t *testing.T) {
	srv := newTestServer()

	w := doJSON(t, srv, http.MethodPost, "/v1/rooms/TEAM1/stories", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	room := decodeRoom(t, w)
	require.Len(t, room.Stories, 2)
	second := room.Stories[1].ID

	w = doJSON(t, srv, http.MethodPut, "/v1/rooms/TEAM1/stories/"+second,
		map[string]any{"text": "Checkout flow", "focus": true})
	require.Equal(t, http.StatusOK, w.Code)
	room = decodeRoom(t, w)
	assert.Equal(t, "Checkout flow", room.StoryByID(second).Text)
	assert.Equal(t, second, room.ActiveStoryID)

	w = doJSON(t, srv, http.MethodDelete, "/v1/rooms/TEAM1/stories/"+second, nil)
	require.Equal(t, http.StatusOK, w.Code)
	room = decodeRoom(t, w)
	require.Len(t, room.Stories, 1)
	assert.NotEqual(t, second, room.ActiveStoryID)
}

func TestTimerValidation(t *testing.T) {
	srv := newTestServer()

	w := doJSON(t, srv, http.MethodPost, "/v1/rooms/TEAM1/timer/start", map[string]any{"seconds": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/v1/rooms/TEAM1/timer/start", map[string]any{"seconds": 90})
	require.Equal(t, http.StatusOK, w.Code)
	room := decodeRoom(t, w)
	require.NotNil(t, room.Timer.End)
	assert.Equal(t, float64(90), room.Timer.Duration)

	w = doJSON(t, srv, http.MethodPost, "/v1/rooms/TEAM1/timer/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decodeRoom(t, w).Timer.End)
}

func TestInvalidBodyRejected(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/v1/rooms/TEAM1/join", bytes.NewBufferString("{nope"))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScaleUpdate(t *testing.T) {
	srv := newTestServer()

	w := doJSON(t, srv, http.MethodPost, "/v1/rooms/TEAM1/scale", map[string]any{
		"mode":   "tshirt",
		"labels": []string{"S", "M", "L"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	room := decodeRoom(t, w)
	assert.Equal(t, model.ScaleModeTShirt, room.ScaleMode)
	assert.Equal(t, []string{"S", "M", "L"}, room.ScaleLabels)
}

func TestChatEndpoint(t *testing.T) {
	srv := newTestServer()

	for i := 0; i < 3; i++ {
		w := doJSON(t, srv, http.MethodPost, "/v1/rooms/TEAM1/chat",
			map[string]string{"name": "Alice", "text": fmt.Sprintf("hello %d", i)})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(t, srv, http.MethodGet, "/v1/rooms/TEAM1", nil)
	room := decodeRoom(t, w)
	require.Len(t, room.Chat, 3)
	assert.Equal(t, "hello 0", room.Chat[0].Text)
}

func TestHealth(t *testing.T) {
	srv := newTestServer()

	w := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
