package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/montanaflynn/stats"

	"github.com/Chrolemist/scrumpoker/internal/model"
)

// ErrNotRevealed is returned when statistics are requested before the active
// story's votes are revealed or before anyone voted.
var ErrNotRevealed = errors.New("votes not revealed")

// ErrCannotCompute is returned when points-mode values cannot be coerced to
// numbers.
var ErrCannotCompute = errors.New("cannot compute statistics")

// VoteStats is derived from the active story's revealed votes; it is never
// stored. Mean and StdDev are set in points mode, Frequency in t-shirt mode.
type VoteStats struct {
	Mode      model.ScaleMode `json:"mode"`
	Votes     int             `json:"votes"`
	Consensus bool            `json:"consensus"`
	Mean      *float64        `json:"mean,omitempty"`
	StdDev    *float64        `json:"stdev,omitempty"`
	Frequency map[string]int  `json:"frequency,omitempty"`
}

// ComputeStats derives statistics for the room's active story. Votes must be
// revealed and non-empty.
func ComputeStats(room *model.Room) (*VoteStats, error) {
	votes := room.Votes[room.ActiveStoryID]
	if !room.RevealedFor[room.ActiveStoryID] || len(votes) == 0 {
		return nil, ErrNotRevealed
	}

	result := &VoteStats{Mode: room.ScaleMode, Votes: len(votes)}

	distinct := make(map[string]bool, len(votes))
	for _, v := range votes {
		distinct[fmt.Sprint(v)] = true
	}
	result.Consensus = len(distinct) == 1

	if room.ScaleMode == model.ScaleModeTShirt {
		freq := make(map[string]int, len(votes))
		for _, v := range votes {
			freq[fmt.Sprint(v)]++
		}
		result.Frequency = freq
		return result, nil
	}

	values := make([]float64, 0, len(votes))
	for _, v := range votes {
		f, ok := toFloat(v)
		if !ok {
			return nil, ErrCannotCompute
		}
		values = append(values, f)
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return nil, ErrCannotCompute
	}
	stdev, err := stats.StandardDeviationPopulation(values)
	if err != nil {
		return nil, ErrCannotCompute
	}
	result.Mean = &mean
	result.StdDev = &stdev
	return result, nil
}

// toFloat coerces the loosely typed vote values that survive a JSON round
// trip (float64, json.Number, numeric strings).
func toFloat(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case json.Number:
		f, err := value.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(value, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
