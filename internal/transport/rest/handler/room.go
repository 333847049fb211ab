package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Chrolemist/scrumpoker/internal/model"
	"github.com/Chrolemist/scrumpoker/internal/service"
)

// RoomHandler exposes the room operations to polling clients.
type RoomHandler struct {
	roomSvc *service.RoomService
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(roomSvc *service.RoomService) *RoomHandler {
	return &RoomHandler{roomSvc: roomSvc}
}

// Get handles GET /v1/rooms/{code}. The optional last_update query parameter
// lets the snapshot cache serve repeat polls.
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	lastUpdate := 0.0
	if raw := r.URL.Query().Get("last_update"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			lastUpdate = parsed
		}
	}

	room, err := h.roomSvc.Snapshot(r.Context(), code, lastUpdate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// JoinRequest is the request body for joining a room
type JoinRequest struct {
	Name string `json:"name"`
}

// Join handles POST /v1/rooms/{code}/join
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := h.roomSvc.EnsurePlayer(r.Context(), code, req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// RenameRequest is the request body for renaming a player
type RenameRequest struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// RenamePlayer handles POST /v1/rooms/{code}/players/rename
func (h *RoomHandler) RenamePlayer(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := h.roomSvc.RenamePlayer(r.Context(), code, req.Old, req.New)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// VoteRequest is the request body for casting a vote. Value is a number in
// points mode and a label string in t-shirt mode.
type VoteRequest struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Vote handles POST /v1/rooms/{code}/vote
func (h *RoomHandler) Vote(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := h.roomSvc.CastVote(r.Context(), code, req.Name, req.Value)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// Reveal handles POST /v1/rooms/{code}/reveal
func (h *RoomHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	room, err := h.roomSvc.Reveal(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// Reset handles POST /v1/rooms/{code}/reset
func (h *RoomHandler) Reset(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	room, err := h.roomSvc.Reset(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// AddStory handles POST /v1/rooms/{code}/stories
func (h *RoomHandler) AddStory(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	room, err := h.roomSvc.AddStory(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// UpdateStoryRequest is the request body for editing a story. Focus also
// selects the story for voting.
type UpdateStoryRequest struct {
	Text  string `json:"text"`
	Focus bool   `json:"focus"`
}

// UpdateStory handles PUT /v1/rooms/{code}/stories/{storyId}
func (h *RoomHandler) UpdateStory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req UpdateStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := h.roomSvc.UpdateStory(r.Context(), vars["code"], vars["storyId"], req.Text, req.Focus)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// SelectStory handles POST /v1/rooms/{code}/stories/{storyId}/select
func (h *RoomHandler) SelectStory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	room, err := h.roomSvc.SelectStory(r.Context(), vars["code"], vars["storyId"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// DeleteStory handles DELETE /v1/rooms/{code}/stories/{storyId}
func (h *RoomHandler) DeleteStory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	room, err := h.roomSvc.DeleteStory(r.Context(), vars["code"], vars["storyId"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// TimerRequest is the request body for starting the timer
type TimerRequest struct {
	Seconds float64 `json:"seconds"`
}

// StartTimer handles POST /v1/rooms/{code}/timer/start
func (h *RoomHandler) StartTimer(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var req TimerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Seconds <= 0 {
		writeError(w, http.StatusBadRequest, "seconds must be positive")
		return
	}

	room, err := h.roomSvc.StartTimer(r.Context(), code, req.Seconds)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// StopTimer handles POST /v1/rooms/{code}/timer/stop
func (h *RoomHandler) StopTimer(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	room, err := h.roomSvc.StopTimer(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// PingRequest is the request body for pinging a player
type PingRequest struct {
	Name string `json:"name"`
}

// Ping handles POST /v1/rooms/{code}/ping
func (h *RoomHandler) Ping(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var req PingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := h.roomSvc.Ping(r.Context(), code, req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// ChatRequest is the request body for appending a chat message
type ChatRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// AppendChat handles POST /v1/rooms/{code}/chat
func (h *RoomHandler) AppendChat(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := h.roomSvc.AppendChat(r.Context(), code, req.Name, req.Text)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// Stats handles GET /v1/rooms/{code}/stats
func (h *RoomHandler) Stats(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	result, err := h.roomSvc.Stats(r.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrNotRevealed) || errors.Is(err, service.ErrCannotCompute) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ScaleRequest is the request body for changing the voting scale. Only the
// fields that are present are applied.
type ScaleRequest struct {
	Mode   string             `json:"mode,omitempty"`
	Scale  map[string]float64 `json:"scale,omitempty"`
	Labels []string           `json:"labels,omitempty"`
}

// UpdateScale handles POST /v1/rooms/{code}/scale
func (h *RoomHandler) UpdateScale(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var req ScaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var room *model.Room
	var err error
	if len(req.Scale) > 0 {
		if room, err = h.roomSvc.SetScale(r.Context(), code, req.Scale); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if len(req.Labels) > 0 {
		if room, err = h.roomSvc.SetScaleLabels(r.Context(), code, req.Labels); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if req.Mode != "" {
		if room, err = h.roomSvc.SetScaleMode(r.Context(), code, model.ScaleMode(req.Mode)); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if room == nil {
		if room, err = h.roomSvc.Snapshot(r.Context(), code, 0); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, room)
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
