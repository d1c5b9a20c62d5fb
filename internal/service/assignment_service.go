package service

import (
	"apphasia/exercise-engine/internal/domain"
	"apphasia/exercise-engine/internal/logger"
	"apphasia/exercise-engine/internal/repository"
	"apphasia/exercise-engine/internal/srcard"
	"context"
	"errors"
)

// AssignmentService writes and completes a patient's assignments.
type AssignmentService interface {
	// Assign creates or overwrites the patient's assignment for exerciseID.
	// An empty exerciseContext is resolved from the catalog.
	Assign(ctx context.Context, patientID, exerciseID, exerciseContext string) (*domain.Assignment, error)
	// Complete marks the assignment completed. success feeds the priority policy and may be nil.
	Complete(ctx context.Context, patientID, exerciseID, exerciseContext string, success *bool) (*domain.Assignment, error)
	// RecordSRAttempt advances the spaced-retrieval card and records the completion.
	RecordSRAttempt(ctx context.Context, patientID, exerciseID string, correct bool) (*domain.Assignment, error)
	ListAssignments(ctx context.Context, patientID string, filter repository.AssignmentFilter) ([]domain.Assignment, error)
	// SyncExercise moves every assignment of the exercise to its current catalog context and verb.
	SyncExercise(ctx context.Context, exercise *domain.CatalogExercise) (int, error)
}

type assignmentService struct {
	exerciseRepo   repository.ExerciseRepository
	assignmentRepo repository.AssignmentRepository
	priorities     PrioritySource
	policy         PriorityAdjustmentPolicy
	now            Clock
	log            *logger.Logger
}

// NewAssignmentService creates the assignment writer and completion recorder.
// A nil clock uses the system time.
func NewAssignmentService(
	exerciseRepo repository.ExerciseRepository,
	assignmentRepo repository.AssignmentRepository,
	priorities PrioritySource,
	policy PriorityAdjustmentPolicy,
	now Clock,
	log *logger.Logger,
) AssignmentService {
	if now == nil {
		now = systemClock
	}
	if policy == "" {
		policy = PolicyNone
	}
	return &assignmentService{
		exerciseRepo:   exerciseRepo,
		assignmentRepo: assignmentRepo,
		priorities:     priorities,
		policy:         policy,
		now:            now,
		log:            log.With("component", "assignments"),
	}
}

func (s *assignmentService) Assign(ctx context.Context, patientID, exerciseID, exerciseContext string) (*domain.Assignment, error) {
	if patientID == "" || exerciseID == "" {
		return nil, invalid("patient ID and exercise ID are required")
	}

	exercise, err := s.exerciseRepo.GetByID(ctx, exerciseID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		exercise = nil
	}

	if exerciseContext == "" {
		if exercise == nil {
			return nil, &PreconditionError{ExerciseID: exerciseID, Reason: "exercise is not in the catalog"}
		}
		if exercise.Context == "" {
			return nil, &PreconditionError{ExerciseID: exerciseID, Reason: "catalog entry has no context"}
		}
		exerciseContext = exercise.Context
	}
	if exercise == nil {
		s.log.Warn("assigning exercise missing from the catalog", "patient_id", patientID, "exercise_id", exerciseID)
	}

	priority, err := s.priorities.Next(ctx, patientID)
	if err != nil {
		return nil, err
	}

	personalized := exercise != nil && exercise.Personalized
	assignment := &domain.Assignment{
		PatientID:    patientID,
		ExerciseID:   exerciseID,
		Context:      exerciseContext,
		State:        domain.StatePending,
		Priority:     priority,
		Personalized: &personalized,
		AssignedAt:   s.now(),
	}
	if exercise != nil {
		assignment.Verb = exercise.Verb
		assignment.TherapyType = exercise.TherapyType
		if exercise.TherapyType == domain.TherapySR {
			assignment.SRCard = srcard.NewCard()
		}
	}

	if err := s.assignmentRepo.Put(ctx, assignment); err != nil {
		return nil, err
	}
	s.log.Debug("exercise assigned", "patient_id", patientID, "exercise_id", exerciseID, "priority", priority)
	return assignment, nil
}

func (s *assignmentService) SyncExercise(ctx context.Context, exercise *domain.CatalogExercise) (int, error) {
	changed, err := s.assignmentRepo.SyncExerciseRefs(ctx, exercise.ID, exercise.Context, exercise.Verb)
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		s.log.Info("assignments follow catalog edit", "exercise_id", exercise.ID, "context", exercise.Context, "verb", exercise.Verb, "assignments", changed)
	}
	return changed, nil
}

func (s *assignmentService) Complete(ctx context.Context, patientID, exerciseID, exerciseContext string, success *bool) (*domain.Assignment, error) {
	assignment, err := s.get(ctx, patientID, exerciseID)
	if err != nil {
		return nil, err
	}
	if exerciseContext != "" && assignment.Context != exerciseContext {
		return nil, notFound("exercise %s is not assigned to patient %s in context %q", exerciseID, patientID, exerciseContext)
	}

	s.markCompleted(assignment, success)
	if err := s.update(ctx, assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

func (s *assignmentService) RecordSRAttempt(ctx context.Context, patientID, exerciseID string, correct bool) (*domain.Assignment, error) {
	assignment, err := s.get(ctx, patientID, exerciseID)
	if err != nil {
		return nil, err
	}
	if assignment.TherapyType == "" {
		// Records written without the denormalized type.
		if exercise, err := s.exerciseRepo.GetByID(ctx, exerciseID); err == nil {
			assignment.TherapyType = exercise.TherapyType
		}
	}
	if assignment.TherapyType != domain.TherapySR {
		return nil, invalid("exercise %s is not a spaced-retrieval exercise", exerciseID)
	}

	now := s.now()
	card := assignment.SRCard
	if card != nil && !now.Before(card.NextDue) {
		card = srcard.ConsolidateBaseline(card)
	}
	assignment.SRCard = srcard.ComputeNext(card, correct, now)

	s.markCompleted(assignment, &correct)
	if err := s.update(ctx, assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

func (s *assignmentService) ListAssignments(ctx context.Context, patientID string, filter repository.AssignmentFilter) ([]domain.Assignment, error) {
	if patientID == "" {
		return nil, invalid("patient ID is required")
	}
	return s.assignmentRepo.ListByPatient(ctx, patientID, filter)
}

func (s *assignmentService) markCompleted(assignment *domain.Assignment, success *bool) {
	now := s.now()
	assignment.State = domain.StateCompleted
	assignment.LastCompletedAt = &now
	assignment.TimesCompleted++
	assignment.Priority = s.policy.Adjust(assignment.Priority, success)
}

func (s *assignmentService) get(ctx context.Context, patientID, exerciseID string) (*domain.Assignment, error) {
	assignment, err := s.assignmentRepo.Get(ctx, patientID, exerciseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("exercise %s is not assigned to patient %s", exerciseID, patientID)
		}
		return nil, err
	}
	return assignment, nil
}

func (s *assignmentService) update(ctx context.Context, assignment *domain.Assignment) error {
	if err := s.assignmentRepo.Update(ctx, assignment); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("exercise %s is not assigned to patient %s", assignment.ExerciseID, assignment.PatientID)
		}
		return err
	}
	return nil
}
