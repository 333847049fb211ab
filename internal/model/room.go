package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ScaleMode selects which deck a room votes with.
type ScaleMode string

const (
	ScaleModePoints ScaleMode = "points"
	ScaleModeTShirt ScaleMode = "tshirt"
)

// DefaultScale returns the default point deck.
func DefaultScale() map[string]float64 {
	return map[string]float64{"XS": 1, "S": 2, "M": 3, "L": 5, "XL": 8}
}

// DefaultTShirtLabels returns the default t-shirt deck.
func DefaultTShirtLabels() []string {
	return []string{"XS", "S", "M", "L", "XL"}
}

// Story is one estimable work item within a room.
type Story struct {
	ID      string  `json:"id"`
	Text    string  `json:"text"`
	Created float64 `json:"created"`
}

// Timer holds the room countdown. End is a unix timestamp, nil when stopped.
type Timer struct {
	End      *float64 `json:"end"`
	Duration float64  `json:"duration"`
}

// ChatMessage is one entry in the room chat log.
type ChatMessage struct {
	Name string  `json:"name"`
	Text string  `json:"text"`
	TS   float64 `json:"ts"`
}

// Room is the shared document one estimation session mutates. It is keyed by a
// caller-supplied code and serialized as JSON; timestamps are unix seconds so
// documents written by older deployments keep decoding.
//
// Vote values are float64 in points mode and plain label strings in t-shirt
// mode, which is why the inner vote map is map[string]any.
type Room struct {
	SchemaVersion int                       `json:"schema_version"`
	Created       float64                   `json:"created"`
	Stories       []Story                   `json:"stories"`
	ActiveStoryID string                    `json:"active_story_id"`
	ScaleMode     ScaleMode                 `json:"scale_mode"`
	Scale         map[string]float64        `json:"scale"`
	ScaleLabels   []string                  `json:"scale_labels"`
	Votes         map[string]map[string]any `json:"votes"`
	RevealedFor   map[string]bool           `json:"revealed_for"`
	Timer         Timer                     `json:"timer"`
	Players       []string                  `json:"players"`
	Pings         map[string]float64        `json:"pings"`
	Chat          []ChatMessage             `json:"chat"`
	LastUpdate    float64                   `json:"last_update"`
}

// NewRoom returns a fresh room document. The schema migrator completes it
// (first story, active story id, schema version) the same way it completes
// documents loaded from storage, so both paths stay identical.
func NewRoom(now time.Time) *Room {
	return &Room{
		Created:     UnixSeconds(now),
		Stories:     []Story{},
		ScaleMode:   ScaleModePoints,
		Scale:       DefaultScale(),
		ScaleLabels: DefaultTShirtLabels(),
		Votes:       map[string]map[string]any{},
		RevealedFor: map[string]bool{},
		Players:     []string{},
		Pings:       map[string]float64{},
		Chat:        []ChatMessage{},
		LastUpdate:  UnixSeconds(now),
	}
}

// NewStory returns an empty story with a fresh id.
func NewStory(now time.Time) Story {
	return Story{ID: NewStoryID(), Text: "", Created: UnixSeconds(now)}
}

// NewStoryID returns an 8-char opaque story token.
func NewStoryID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// UnixSeconds converts t to unix seconds with sub-second precision.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// StoryByID returns the story with the given id, or nil.
func (r *Room) StoryByID(id string) *Story {
	for i := range r.Stories {
		if r.Stories[i].ID == id {
			return &r.Stories[i]
		}
	}
	return nil
}

// HasStory reports whether the given story id exists.
func (r *Room) HasStory(id string) bool {
	return r.StoryByID(id) != nil
}

// ActiveVotes returns the vote map for the active story, lazily created.
func (r *Room) ActiveVotes() map[string]any {
	if r.Votes == nil {
		r.Votes = map[string]map[string]any{}
	}
	votes, ok := r.Votes[r.ActiveStoryID]
	if !ok {
		votes = map[string]any{}
		r.Votes[r.ActiveStoryID] = votes
	}
	return votes
}

// NormalizePlayers drops empty names and collapses duplicates, keeping the
// first occurrence's position.
func (r *Room) NormalizePlayers() {
	seen := make(map[string]bool, len(r.Players))
	normalized := make([]string, 0, len(r.Players))
	for _, name := range r.Players {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		normalized = append(normalized, name)
	}
	r.Players = normalized
}

// Doc serializes the room to its raw document form.
func (r *Room) Doc() (map[string]any, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode room: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode room document: %w", err)
	}
	return doc, nil
}

// RoomFromDoc decodes a raw (already migrated) document into a Room.
func RoomFromDoc(doc map[string]any) (*Room, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode room document: %w", err)
	}
	var room Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	return &room, nil
}
