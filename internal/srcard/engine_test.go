package srcard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func TestComputeNext_CorrectRunsPreparedInterval(t *testing.T) {
	card := ComputeNext(NewCard(), true, t0)

	require.NotNil(t, card.LastTimerIndex)
	assert.Equal(t, 0, *card.LastTimerIndex)
	assert.Equal(t, 15, card.CurrentInterval)
	assert.Equal(t, 1, card.IntervalIndex)
	assert.Equal(t, -1, card.BaselineIndex, "baseline moves only on consolidation")
	assert.Equal(t, 1, card.SuccessStreak)
	assert.Equal(t, t0.Add(15*time.Second), card.NextDue)
	assert.Equal(t, StatusLearning, card.Status)
}

func TestComputeNext_WrongFallsBackToBaseline(t *testing.T) {
	card := NewCard()
	for i := 0; i < 3; i++ {
		card = ConsolidateBaseline(ComputeNext(card, true, t0))
	}
	// three consolidated successes: baseline at 60s, prepared at 120s
	assert.Equal(t, 2, card.BaselineIndex)
	assert.Equal(t, 3, card.IntervalIndex)

	card = ComputeNext(card, false, t0)
	assert.Equal(t, 2, *card.LastTimerIndex)
	assert.Equal(t, 60, card.CurrentInterval)
	assert.Equal(t, 3, card.IntervalIndex)
	assert.Equal(t, 0, card.SuccessStreak)
	assert.Equal(t, 1, card.Lapses)
	assert.Equal(t, StatusRelearning, card.Status)

	// consolidation after a miss is a no-op
	assert.Equal(t, 2, ConsolidateBaseline(card).BaselineIndex)
}

func TestComputeNext_WrongOnFreshCardUsesShortestInterval(t *testing.T) {
	card := ComputeNext(NewCard(), false, t0)
	assert.Equal(t, 0, *card.LastTimerIndex)
	assert.Equal(t, 1, card.IntervalIndex)
}

func TestComputeNext_CapsAtLongestInterval(t *testing.T) {
	card := NewCard()
	for i := 0; i < 10; i++ {
		card = ConsolidateBaseline(ComputeNext(card, true, t0))
	}
	assert.Equal(t, len(Intervals)-1, card.IntervalIndex)
	assert.Equal(t, 240, card.CurrentInterval)
	assert.Equal(t, 10, card.SuccessStreak)
}

func TestComputeNext_DoesNotMutateInput(t *testing.T) {
	card := NewCard()
	_ = ComputeNext(card, true, t0)
	assert.Equal(t, 0, card.SuccessStreak)
	assert.Nil(t, card.LastTimerIndex)
}
