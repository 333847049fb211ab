package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Chrolemist/scrumpoker/internal/cache"
	"github.com/Chrolemist/scrumpoker/internal/model"
	"github.com/Chrolemist/scrumpoker/internal/schema"
	"github.com/Chrolemist/scrumpoker/internal/store"
)

// PingWindow is how long a ping stays visible before the read path expires it.
const PingWindow = time.Second

// ChatLimit caps the stored chat log; the oldest messages are dropped first.
const ChatLimit = 500

// RoomService is the operation surface over room documents. Every mutation
// runs as load -> migrate -> mutate -> bump last_update -> normalize players
// -> persist, under one process-wide lock so no two cycles interleave.
type RoomService struct {
	store     store.RoomStore
	snapshots cache.SnapshotCache
	now       func() time.Time
	mu        sync.Mutex
}

// NewRoomService creates a room service. snapshots may be nil to disable the
// read-path cache.
func NewRoomService(st store.RoomStore, snapshots cache.SnapshotCache) *RoomService {
	return &RoomService{store: st, snapshots: snapshots, now: time.Now}
}

// SetClock overrides the time source. Tests use this to drive timer and ping
// expiry deterministically.
func (s *RoomService) SetClock(now func() time.Time) {
	s.now = now
}

// Snapshot returns the current room state, creating the room on first
// reference. The read path is self-healing: expired pings are dropped and an
// expired timer reveals the active story before the snapshot is returned.
//
// lastUpdate is the caller's most recent known last_update value; when it
// matches a cached snapshot within the cache TTL, that snapshot is served
// without touching the store. Pass 0 to bypass the cache.
func (s *RoomService) Snapshot(ctx context.Context, code string, lastUpdate float64) (*model.Room, error) {
	if s.snapshots != nil && lastUpdate > 0 {
		cached, err := s.snapshots.Get(ctx, code, lastUpdate)
		if err != nil {
			logrus.WithError(err).WithField("room", code).Warn("snapshot cache read failed")
		}
		if cached != nil {
			return cached, nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room, dirty, err := s.loadLocked(ctx, code)
	if err != nil {
		return nil, err
	}
	if s.reconcile(room) {
		room.LastUpdate = model.UnixSeconds(s.now())
		room.NormalizePlayers()
		dirty = true
	}
	if dirty {
		if err := s.persistLocked(ctx, code, room); err != nil {
			return nil, err
		}
	}

	if s.snapshots != nil {
		if err := s.snapshots.Set(ctx, code, room); err != nil {
			logrus.WithError(err).WithField("room", code).Warn("snapshot cache write failed")
		}
	}
	return room, nil
}

// EnsurePlayer adds name to the room's player list. Idempotent; an empty name
// only touches the room.
func (s *RoomService) EnsurePlayer(ctx context.Context, code, name string) (*model.Room, error) {
	name = strings.TrimSpace(name)
	return s.update(ctx, code, func(r *model.Room) {
		if name == "" {
			return
		}
		for _, p := range r.Players {
			if p == name {
				return
			}
		}
		r.Players = append(r.Players, name)
	})
}

// RenamePlayer replaces oldName with newName in the player list, preserving
// position, and moves any votes cast under oldName. When newName has already
// voted for a story, the new identity wins and oldName's vote is discarded.
func (s *RoomService) RenamePlayer(ctx context.Context, code, oldName, newName string) (*model.Room, error) {
	oldName = strings.TrimSpace(oldName)
	newName = strings.TrimSpace(newName)
	if oldName == newName {
		return s.Snapshot(ctx, code, 0)
	}
	return s.update(ctx, code, func(r *model.Room) {
		replaced := false
		if oldName != "" {
			for i, p := range r.Players {
				if p == oldName {
					r.Players[i] = newName
					replaced = true
				}
			}
		}
		if !replaced && newName != "" {
			r.Players = append(r.Players, newName)
		}
		if oldName == "" || newName == "" {
			return
		}
		for _, votes := range r.Votes {
			old, voted := votes[oldName]
			if !voted {
				continue
			}
			if _, taken := votes[newName]; !taken {
				votes[newName] = old
			}
			delete(votes, oldName)
		}
	})
}

// AddStory appends a fresh empty story without changing the active story.
func (s *RoomService) AddStory(ctx context.Context, code string) (*model.Room, error) {
	return s.update(ctx, code, func(r *model.Room) {
		story := model.NewStory(s.now())
		r.Stories = append(r.Stories, story)
		r.Votes[story.ID] = map[string]any{}
		r.RevealedFor[story.ID] = false
	})
}

// UpdateStory sets the text of the given story. With focus set it also makes
// the story active. Unknown story ids are a silent no-op.
func (s *RoomService) UpdateStory(ctx context.Context, code, storyID, text string, focus bool) (*model.Room, error) {
	return s.update(ctx, code, func(r *model.Room) {
		story := r.StoryByID(storyID)
		if story == nil {
			return
		}
		story.Text = text
		if focus {
			r.ActiveStoryID = storyID
		}
	})
}

// SelectStory makes the given story active. Unknown story ids are a silent
// no-op.
func (s *RoomService) SelectStory(ctx context.Context, code, storyID string) (*model.Room, error) {
	return s.update(ctx, code, func(r *model.Room) {
		if r.HasStory(storyID) {
			r.ActiveStoryID = storyID
		}
	})
}

// DeleteStory removes the story along with its votes and reveal flag. If it
// was active, the first remaining story takes over; the story list is never
// left empty.
func (s *RoomService) DeleteStory(ctx context.Context, code, storyID string) (*model.Room, error) {
	return s.update(ctx, code, func(r *model.Room) {
		kept := r.Stories[:0]
		for _, story := range r.Stories {
			if story.ID != storyID {
				kept = append(kept, story)
			}
		}
		r.Stories = kept
		delete(r.Votes, storyID)
		delete(r.RevealedFor, storyID)
		if r.ActiveStoryID != storyID {
			return
		}
		if len(r.Stories) == 0 {
			story := model.NewStory(s.now())
			r.Stories = append(r.Stories, story)
			r.Votes[story.ID] = map[string]any{}
			r.RevealedFor[story.ID] = false
		}
		r.ActiveStoryID = r.Stories[0].ID
	})
}

// CastVote records player's vote for the active story, overwriting any prior
// vote. In points mode the value must coerce to a number; in t-shirt mode it
// is stored as the chosen label. Voting after reveal is allowed.
func (s *RoomService) CastVote(ctx context.Context, code, player string, value any) (*model.Room, error) {
	player = strings.TrimSpace(player)
	return s.update(ctx, code, func(r *model.Room) {
		if player == "" {
			return
		}
		if r.ScaleMode == model.ScaleModeTShirt {
			r.ActiveVotes()[player] = fmt.Sprint(value)
			return
		}
		points, ok := toFloat(value)
		if !ok {
			return
		}
		r.ActiveVotes()[player] = points
	})
}

// Reveal makes the active story's votes visible. Idempotent.
func (s *RoomService) Reveal(ctx context.Context, code string) (*model.Room, error) {
	return s.update(ctx, code, func(r *model.Room) {
		r.RevealedFor[r.ActiveStoryID] = true
	})
}

// Reset clears the active story's votes and reveal flag. Other stories are
// untouched.
func (s *RoomService) Reset(ctx context.Context, code string) (*model.Room, error) {
	return s.update(ctx, code, func(r *model.Room) {
		r.Votes[r.ActiveStoryID] = map[string]any{}
		r.RevealedFor[r.ActiveStoryID] = false
	})
}

// StartTimer starts (or restarts) the room countdown.
func (s *RoomService) StartTimer(ctx context.Context, code string, seconds float64) (*model.Room, error) {
	return s.update(ctx, code, func(r *model.Room) {
		end := model.UnixSeconds(s.now()) + seconds
		r.Timer = model.Timer{End: &end, Duration: seconds}
	})
}

// StopTimer clears the room countdown.
func (s *RoomService) StopTimer(ctx context.Context, code string) (*model.Room, error) {
	return s.update(ctx, code, func(r *model.Room) {
		r.Timer = model.Timer{End: nil, Duration: 0}
	})
}

// Ping marks player for attention; the mark expires after PingWindow.
func (s *RoomService) Ping(ctx context.Context, code, player string) (*model.Room, error) {
	player = strings.TrimSpace(player)
	return s.update(ctx, code, func(r *model.Room) {
		if player == "" {
			return
		}
		r.Pings[player] = model.UnixSeconds(s.now())
	})
}

// AppendChat appends a chat message. Empty names and empty trimmed texts are
// a silent no-op; the log is capped at ChatLimit messages, oldest first out.
func (s *RoomService) AppendChat(ctx context.Context, code, name, text string) (*model.Room, error) {
	name = strings.TrimSpace(name)
	text = strings.TrimSpace(text)
	return s.update(ctx, code, func(r *model.Room) {
		if name == "" || text == "" {
			return
		}
		r.Chat = append(r.Chat, model.ChatMessage{
			Name: name,
			Text: text,
			TS:   model.UnixSeconds(s.now()),
		})
		if len(r.Chat) > ChatLimit {
			r.Chat = r.Chat[len(r.Chat)-ChatLimit:]
		}
	})
}

// SetScaleMode switches the room between point and t-shirt voting. Unknown
// modes are a silent no-op.
func (s *RoomService) SetScaleMode(ctx context.Context, code string, mode model.ScaleMode) (*model.Room, error) {
	return s.update(ctx, code, func(r *model.Room) {
		if mode != model.ScaleModePoints && mode != model.ScaleModeTShirt {
			return
		}
		r.ScaleMode = mode
	})
}

// SetScale replaces the point deck. Entries with empty labels are dropped; an
// empty result leaves the deck unchanged.
func (s *RoomService) SetScale(ctx context.Context, code string, scale map[string]float64) (*model.Room, error) {
	cleaned := make(map[string]float64, len(scale))
	for label, value := range scale {
		if strings.TrimSpace(label) != "" {
			cleaned[label] = value
		}
	}
	return s.update(ctx, code, func(r *model.Room) {
		if len(cleaned) == 0 {
			return
		}
		r.Scale = cleaned
	})
}

// SetScaleLabels replaces the t-shirt deck. Empty labels are dropped; an
// empty result leaves the deck unchanged.
func (s *RoomService) SetScaleLabels(ctx context.Context, code string, labels []string) (*model.Room, error) {
	cleaned := make([]string, 0, len(labels))
	for _, label := range labels {
		if strings.TrimSpace(label) != "" {
			cleaned = append(cleaned, label)
		}
	}
	return s.update(ctx, code, func(r *model.Room) {
		if len(cleaned) == 0 {
			return
		}
		r.ScaleLabels = cleaned
	})
}

// Stats computes the derived statistics for the active story.
func (s *RoomService) Stats(ctx context.Context, code string) (*VoteStats, error) {
	room, err := s.Snapshot(ctx, code, 0)
	if err != nil {
		return nil, err
	}
	return ComputeStats(room)
}

// update runs one load-mutate-persist cycle under the service lock. This is
// the only path that changes a room document.
func (s *RoomService) update(ctx context.Context, code string, mutate func(*model.Room)) (*model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, _, err := s.loadLocked(ctx, code)
	if err != nil {
		return nil, err
	}
	mutate(room)
	room.LastUpdate = model.UnixSeconds(s.now())
	room.NormalizePlayers()
	if err := s.persistLocked(ctx, code, room); err != nil {
		return nil, err
	}
	return room, nil
}

// loadLocked fetches and migrates the room document, synthesizing a fresh
// room on first reference. The caller must hold s.mu. The bool reports
// whether migration changed the document.
func (s *RoomService) loadLocked(ctx context.Context, code string) (*model.Room, bool, error) {
	doc, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, false, fmt.Errorf("load room %q: %w", code, err)
	}
	now := s.now()
	if doc == nil {
		doc, err = model.NewRoom(now).Doc()
		if err != nil {
			return nil, false, err
		}
	}
	migrated := schema.Migrate(doc, now)
	if migrated {
		logrus.WithField("room", code).Debug("room document migrated")
	}
	room, err := model.RoomFromDoc(doc)
	if err != nil {
		return nil, false, fmt.Errorf("decode room %q: %w", code, err)
	}
	return room, migrated, nil
}

func (s *RoomService) persistLocked(ctx context.Context, code string, room *model.Room) error {
	doc, err := room.Doc()
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, code, doc); err != nil {
		return fmt.Errorf("save room %q: %w", code, err)
	}
	return nil
}

// reconcile applies the lazy time-based transitions: expired pings are
// dropped and an expired timer reveals the active story. Reports whether the
// room changed.
func (s *RoomService) reconcile(r *model.Room) bool {
	changed := false
	now := model.UnixSeconds(s.now())
	window := PingWindow.Seconds()
	for name, ts := range r.Pings {
		if now-ts >= window {
			delete(r.Pings, name)
			changed = true
		}
	}
	if r.Timer.End != nil && *r.Timer.End <= now && !r.RevealedFor[r.ActiveStoryID] {
		r.RevealedFor[r.ActiveStoryID] = true
		changed = true
	}
	return changed
}
