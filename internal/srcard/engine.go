// Package srcard implements the interval progression of spaced-retrieval
// prompts. A correct answer runs the timer at the prepared interval and
// prepares the next one; the baseline only moves once that timer has
// finished. A wrong answer falls back to the baseline interval.
package srcard

import (
	"apphasia/exercise-engine/internal/domain"
	"time"
)

const (
	StatusLearning   = "learning"
	StatusRelearning = "relearning"
)

// Intervals are the retrieval delays in seconds, shortest first.
var Intervals = []int{15, 30, 60, 120, 240}

// NewCard returns the state of a prompt that was never attempted.
func NewCard() *domain.SRCard {
	return &domain.SRCard{
		IntervalIndex: 0,
		BaselineIndex: -1,
		Status:        StatusLearning,
	}
}

// ComputeNext returns the card state after an answer given at now.
// The input card is not modified.
func ComputeNext(card *domain.SRCard, correct bool, now time.Time) *domain.SRCard {
	if card == nil {
		card = NewCard()
	}
	next := *card
	last := len(Intervals) - 1

	prepared := clamp(card.IntervalIndex, 0, last)
	var timer int
	if correct {
		timer = prepared
		next.SuccessStreak = card.SuccessStreak + 1
		next.IntervalIndex = min(prepared+1, last)
		next.Status = StatusLearning
	} else {
		timer = clamp(card.BaselineIndex, 0, last)
		next.SuccessStreak = 0
		next.Lapses = card.Lapses + 1
		next.IntervalIndex = min(timer+1, last)
		next.Status = StatusRelearning
	}

	next.LastAnswerCorrect = correct
	next.LastTimerIndex = &timer
	next.CurrentInterval = Intervals[timer]
	next.NextDue = now.Add(time.Duration(Intervals[timer]) * time.Second)
	return &next
}

// ConsolidateBaseline promotes the baseline once the timer of a correct
// answer has run out. Cards whose last answer was wrong are returned as is.
func ConsolidateBaseline(card *domain.SRCard) *domain.SRCard {
	if card == nil || !card.LastAnswerCorrect || card.LastTimerIndex == nil {
		return card
	}
	next := *card
	next.BaselineIndex = *card.LastTimerIndex
	return &next
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
