package memory

import (
	"apphasia/exercise-engine/internal/domain"
	"apphasia/exercise-engine/internal/repository"
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

type assignmentRepository struct {
	mu          sync.RWMutex
	assignments map[string]domain.Assignment
	// seq records first insertion order, the last tie-break of listings.
	seq   map[string]int
	nextN int
}

// NewAssignmentRepository creates an empty in-memory assignment store.
func NewAssignmentRepository() repository.AssignmentRepository {
	return &assignmentRepository{
		assignments: map[string]domain.Assignment{},
		seq:         map[string]int{},
	}
}

func (r *assignmentRepository) Put(ctx context.Context, assignment *domain.Assignment) error {
	if assignment.PatientID == "" || assignment.ExerciseID == "" {
		return errors.New("assignment requires patientId and exerciseId")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	assignment.ID = domain.AssignmentID(assignment.PatientID, assignment.ExerciseID)
	now := time.Now().UTC()
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = now
	}
	assignment.UpdatedAt = now
	if _, ok := r.seq[assignment.ID]; !ok {
		r.nextN++
		r.seq[assignment.ID] = r.nextN
	}
	r.assignments[assignment.ID] = *assignment
	return nil
}

func (r *assignmentRepository) Get(ctx context.Context, patientID, exerciseID string) (*domain.Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.assignments[domain.AssignmentID(patientID, exerciseID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *assignmentRepository) ListByPatient(ctx context.Context, patientID string, f repository.AssignmentFilter) ([]domain.Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.Assignment{}
	for _, a := range r.assignments {
		if a.PatientID != patientID {
			continue
		}
		if f.Context != "" && a.Context != f.Context {
			continue
		}
		if f.Verb != "" && a.Verb != f.Verb {
			continue
		}
		if f.State != "" && a.State != f.State {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return r.seq[out[i].ID] < r.seq[out[j].ID]
	})
	return out, nil
}

func (r *assignmentRepository) Update(ctx context.Context, assignment *domain.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := domain.AssignmentID(assignment.PatientID, assignment.ExerciseID)
	stored, ok := r.assignments[id]
	if !ok {
		return repository.ErrNotFound
	}
	stored.State = assignment.State
	stored.Priority = assignment.Priority
	stored.TimesCompleted = assignment.TimesCompleted
	stored.LastCompletedAt = assignment.LastCompletedAt
	stored.SRCard = assignment.SRCard
	stored.UpdatedAt = time.Now().UTC()
	assignment.UpdatedAt = stored.UpdatedAt
	r.assignments[id] = stored
	return nil
}

func (r *assignmentRepository) MaxPriority(ctx context.Context, patientID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	max := 0
	for _, a := range r.assignments {
		if a.PatientID == patientID && a.Priority > max {
			max = a.Priority
		}
	}
	return max, nil
}

func (r *assignmentRepository) SyncExerciseRefs(ctx context.Context, exerciseID, exerciseContext, verb string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := 0
	now := time.Now().UTC()
	for id, a := range r.assignments {
		if a.ExerciseID != exerciseID || (a.Context == exerciseContext && a.Verb == verb) {
			continue
		}
		a.Context = exerciseContext
		a.Verb = verb
		a.UpdatedAt = now
		r.assignments[id] = a
		changed++
	}
	return changed, nil
}
