package service

import (
	"apphasia/exercise-engine/internal/repository"
	"context"
	"fmt"
)

const (
	PriorityModeScan    = "scan"
	PriorityModeCounter = "counter"
)

// PrioritySource hands out the priority of a patient's next assignment.
type PrioritySource interface {
	Next(ctx context.Context, patientID string) (int, error)
}

// ScanPriority reads the patient's highest priority and adds one.
// Two concurrent assignments for the same patient may receive the same
// value; selection stays deterministic because pending items are also
// ordered by assignment time and exercise ID.
type ScanPriority struct {
	assignments repository.AssignmentRepository
}

func NewScanPriority(assignments repository.AssignmentRepository) *ScanPriority {
	return &ScanPriority{assignments: assignments}
}

func (p *ScanPriority) Next(ctx context.Context, patientID string) (int, error) {
	max, err := p.assignments.MaxPriority(ctx, patientID)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// CounterPriority advances a per-patient counter atomically. The highest
// stored priority is used as the floor so patients assigned before the
// counter existed keep increasing values.
type CounterPriority struct {
	assignments repository.AssignmentRepository
	counters    repository.CounterRepository
}

func NewCounterPriority(assignments repository.AssignmentRepository, counters repository.CounterRepository) *CounterPriority {
	return &CounterPriority{assignments: assignments, counters: counters}
}

func (p *CounterPriority) Next(ctx context.Context, patientID string) (int, error) {
	floor, err := p.assignments.MaxPriority(ctx, patientID)
	if err != nil {
		return 0, err
	}
	return p.counters.Advance(ctx, "priority/"+patientID, floor)
}

// NewPrioritySource builds the source named by mode. Empty means scan.
func NewPrioritySource(mode string, assignments repository.AssignmentRepository, counters repository.CounterRepository) (PrioritySource, error) {
	switch mode {
	case "", PriorityModeScan:
		return NewScanPriority(assignments), nil
	case PriorityModeCounter:
		if counters == nil {
			return nil, fmt.Errorf("priority mode %q needs a counter repository", mode)
		}
		return NewCounterPriority(assignments, counters), nil
	default:
		return nil, fmt.Errorf("unknown priority mode %q", mode)
	}
}
