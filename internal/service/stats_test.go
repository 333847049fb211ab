package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chrolemist/scrumpoker/internal/model"
)

func TestStats_PointsMode(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CastVote(ctx, "TEAM1", "Alice", float64(1))
	require.NoError(t, err)
	_, err = svc.CastVote(ctx, "TEAM1", "Bob", float64(2))
	require.NoError(t, err)
	_, err = svc.CastVote(ctx, "TEAM1", "Carol", float64(3))
	require.NoError(t, err)
	_, err = svc.Reveal(ctx, "TEAM1")
	require.NoError(t, err)

	result, err := svc.Stats(ctx, "TEAM1")
	require.NoError(t, err)

	assert.Equal(t, 3, result.Votes)
	assert.False(t, result.Consensus)
	require.NotNil(t, result.Mean)
	require.NotNil(t, result.StdDev)
	assert.InDelta(t, 2.0, *result.Mean, 1e-9)
	assert.InDelta(t, 0.8165, *result.StdDev, 1e-4)
	assert.Nil(t, result.Frequency)
}

func TestStats_Consensus(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		_, err := svc.CastVote(ctx, "TEAM1", name, float64(5))
		require.NoError(t, err)
	}
	_, err := svc.Reveal(ctx, "TEAM1")
	require.NoError(t, err)

	result, err := svc.Stats(ctx, "TEAM1")
	require.NoError(t, err)
	assert.True(t, result.Consensus)

	_, err = svc.CastVote(ctx, "TEAM1", "D", float64(3))
	require.NoError(t, err)
	result, err = svc.Stats(ctx, "TEAM1")
	require.NoError(t, err)
	assert.False(t, result.Consensus)
}

func TestStats_TShirtFrequency(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.SetScaleMode(ctx, "TEAM1", model.ScaleModeTShirt)
	require.NoError(t, err)
	for name, label := range map[string]string{"A": "M", "B": "M", "C": "L"} {
		_, err := svc.CastVote(ctx, "TEAM1", name, label)
		require.NoError(t, err)
	}
	_, err = svc.Reveal(ctx, "TEAM1")
	require.NoError(t, err)

	result, err := svc.Stats(ctx, "TEAM1")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"M": 2, "L": 1}, result.Frequency)
	assert.Nil(t, result.Mean)
	assert.False(t, result.Consensus)
}

func TestStats_NotRevealed(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CastVote(ctx, "TEAM1", "Alice", float64(5))
	require.NoError(t, err)

	_, err = svc.Stats(ctx, "TEAM1")
	assert.ErrorIs(t, err, ErrNotRevealed)
}

func TestStats_NoVotes(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Reveal(ctx, "TEAM1")
	require.NoError(t, err)

	_, err = svc.Stats(ctx, "TEAM1")
	assert.ErrorIs(t, err, ErrNotRevealed)
}

func TestComputeStats_NonNumericPointsValue(t *testing.T) {
	room := &model.Room{
		ActiveStoryID: "s1",
		ScaleMode:     model.ScaleModePoints,
		Votes: map[string]map[string]any{
			"s1": {"Alice": "not a number"},
		},
		RevealedFor: map[string]bool{"s1": true},
	}

	_, err := ComputeStats(room)
	assert.ErrorIs(t, err, ErrCannotCompute)
}

func TestComputeStats_NumericStringCoerces(t *testing.T) {
	room := &model.Room{
		ActiveStoryID: "s1",
		ScaleMode:     model.ScaleModePoints,
		Votes: map[string]map[string]any{
			"s1": {"Alice": "5", "Bob": float64(5)},
		},
		RevealedFor: map[string]bool{"s1": true},
	}

	result, err := ComputeStats(room)
	require.NoError(t, err)
	require.NotNil(t, result.Mean)
	assert.InDelta(t, 5.0, *result.Mean, 1e-9)
}
