// Package schema upgrades room documents written by older deployments to the
// current shape. The migration is an ordered chain of idempotent steps over the
// raw JSON document, and the result is stamped with a schema version so the
// shape is explicit rather than inferred from which fields happen to exist.
package schema

import (
	"time"

	"github.com/Chrolemist/scrumpoker/internal/model"
)

// CurrentVersion is the schema version stamped on fully migrated documents.
const CurrentVersion = 3

type step struct {
	name  string
	apply func(doc map[string]any, now time.Time) bool
}

// Step order matters: the legacy single-story conversion must run before the
// container defaults and story invariants are enforced.
var steps = []step{
	{name: "single_story_to_multi", apply: migrateSingleStory},
	{name: "container_defaults", apply: ensureContainers},
	{name: "story_invariants", apply: ensureStoryInvariants},
}

// Migrate upgrades doc in place and reports whether anything changed. It is
// idempotent: a second call on the same document returns false. Callers use
// the return value for bookkeeping only; persistence never depends on it.
func Migrate(doc map[string]any, now time.Time) bool {
	changed := false
	for _, s := range steps {
		if s.apply(doc, now) {
			changed = true
		}
	}
	if docVersion(doc) != CurrentVersion {
		doc["schema_version"] = CurrentVersion
		changed = true
	}
	return changed
}

// migrateSingleStory converts the legacy single-story shape: a flat "story"
// text, a flat player->value "votes" map and a single "revealed" boolean.
func migrateSingleStory(doc map[string]any, now time.Time) bool {
	changed := false
	if _, ok := doc["stories"]; !ok {
		doc["stories"] = []any{}
		changed = true
	}
	if _, ok := doc["active_story_id"]; !ok {
		doc["active_story_id"] = nil
		changed = true
	}
	legacy, ok := doc["story"]
	if !ok {
		return changed
	}

	title, _ := legacy.(string)
	sid := model.NewStoryID()
	stories, _ := doc["stories"].([]any)
	doc["stories"] = append(stories, map[string]any{
		"id":      sid,
		"text":    title,
		"created": model.UnixSeconds(now),
	})
	doc["active_story_id"] = sid
	delete(doc, "story")

	// A flat vote map has scalar values; a per-story map has maps. Only the
	// former is re-keyed under the new story id.
	if votes, ok := doc["votes"].(map[string]any); ok && isFlatVoteMap(votes) {
		doc["votes"] = map[string]any{sid: votes}
	}
	if revealed, ok := doc["revealed"]; ok {
		flag, _ := revealed.(bool)
		doc["revealed_for"] = map[string]any{sid: flag}
		delete(doc, "revealed")
	}
	return true
}

// ensureContainers guarantees every container and scale field exists, and
// drops entries that cannot belong to the current shape (a per-story vote
// value that is not itself a map, a reveal flag that is not a boolean).
func ensureContainers(doc map[string]any, now time.Time) bool {
	changed := false
	for _, key := range []string{"votes", "revealed_for", "pings"} {
		if setDefaultMap(doc, key) {
			changed = true
		}
	}
	for _, key := range []string{"players", "chat"} {
		if setDefaultList(doc, key) {
			changed = true
		}
	}

	votes := doc["votes"].(map[string]any)
	for sid, v := range votes {
		if _, ok := v.(map[string]any); !ok {
			delete(votes, sid)
			changed = true
		}
	}
	revealed := doc["revealed_for"].(map[string]any)
	for sid, v := range revealed {
		if _, ok := v.(bool); !ok {
			delete(revealed, sid)
			changed = true
		}
	}

	if _, ok := doc["scale_mode"].(string); !ok {
		doc["scale_mode"] = string(model.ScaleModePoints)
		changed = true
	}
	if _, ok := doc["scale"].(map[string]any); !ok {
		scale := map[string]any{}
		for label, value := range model.DefaultScale() {
			scale[label] = value
		}
		doc["scale"] = scale
		changed = true
	}
	if _, ok := doc["scale_labels"].([]any); !ok {
		labels := []any{}
		for _, label := range model.DefaultTShirtLabels() {
			labels = append(labels, label)
		}
		doc["scale_labels"] = labels
		changed = true
	}
	if _, ok := doc["timer"].(map[string]any); !ok {
		doc["timer"] = map[string]any{"end": nil, "duration": 0}
		changed = true
	}
	if _, ok := doc["created"]; !ok {
		doc["created"] = model.UnixSeconds(now)
		changed = true
	}
	return changed
}

// ensureStoryInvariants guarantees a non-empty story list, a valid active
// story id, tracking entries for the active story and a "text" field on every
// story (renaming the legacy "title" field when present).
func ensureStoryInvariants(doc map[string]any, now time.Time) bool {
	changed := false
	raw, ok := doc["stories"].([]any)
	if !ok {
		raw = []any{}
		changed = true
	}
	stories := make([]any, 0, len(raw))
	for _, s := range raw {
		if _, ok := s.(map[string]any); ok {
			stories = append(stories, s)
		} else {
			changed = true
		}
	}
	if len(stories) == 0 {
		sid := model.NewStoryID()
		stories = append(stories, map[string]any{
			"id":      sid,
			"text":    "",
			"created": model.UnixSeconds(now),
		})
		doc["active_story_id"] = sid
		changed = true
	}
	doc["stories"] = stories

	ids := make(map[string]bool, len(stories))
	firstID := ""
	for _, s := range stories {
		story := s.(map[string]any)
		id, _ := story["id"].(string)
		if firstID == "" {
			firstID = id
		}
		ids[id] = true
		if _, ok := story["text"]; !ok {
			title, _ := story["title"].(string)
			story["text"] = title
			delete(story, "title")
			changed = true
		}
	}

	active, _ := doc["active_story_id"].(string)
	if !ids[active] {
		active = firstID
		doc["active_story_id"] = active
		changed = true
	}

	votes := doc["votes"].(map[string]any)
	if _, ok := votes[active]; !ok {
		votes[active] = map[string]any{}
		changed = true
	}
	revealed := doc["revealed_for"].(map[string]any)
	if _, ok := revealed[active]; !ok {
		revealed[active] = false
		changed = true
	}
	return changed
}

// isFlatVoteMap reports whether votes looks like the legacy player->value
// shape, i.e. no value is itself a map. An empty map counts as flat.
func isFlatVoteMap(votes map[string]any) bool {
	for _, v := range votes {
		if _, ok := v.(map[string]any); ok {
			return false
		}
	}
	return true
}

func setDefaultMap(doc map[string]any, key string) bool {
	if _, ok := doc[key].(map[string]any); ok {
		return false
	}
	doc[key] = map[string]any{}
	return true
}

func setDefaultList(doc map[string]any, key string) bool {
	if _, ok := doc[key].([]any); ok {
		return false
	}
	doc[key] = []any{}
	return true
}

func docVersion(doc map[string]any) int {
	switch v := doc["schema_version"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
