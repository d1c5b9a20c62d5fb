package service

import (
	"apphasia/exercise-engine/internal/domain"
	"apphasia/exercise-engine/internal/logger"
	"apphasia/exercise-engine/internal/repository"
	"context"
	"errors"
	"sort"
)

// SelectionSource tells which path of the selection produced the exercise.
type SelectionSource string

const (
	SourcePending SelectionSource = "pending"
	SourceNew     SelectionSource = "new"
	SourceReview  SelectionSource = "review"
)

// Selection is the exercise to present next together with the assignment it belongs to.
type Selection struct {
	Exercise   *domain.CatalogExercise
	Assignment *domain.Assignment
	Source     SelectionSource
}

// VerbHighlight is one verb of a context. Highlight marks verbs the patient
// has pending personalized work for.
type VerbHighlight struct {
	Verb      string `json:"verb"`
	Highlight bool   `json:"highlight"`
}

// SelectionService decides what a patient practices next.
type SelectionService interface {
	// SelectExercise returns pending work first, then a newly assigned unseen
	// exercise, then the least recently completed one. An empty verb means
	// the whole context.
	SelectExercise(ctx context.Context, patientID, exerciseContext, verb string) (*Selection, error)
	// ListVerbsForContext lists the distinct VNEST verbs of a context the
	// patient can be offered, sorted.
	ListVerbsForContext(ctx context.Context, exerciseContext, patientID string) ([]VerbHighlight, error)
}

type selectionService struct {
	exerciseRepo   repository.ExerciseRepository
	assignmentRepo repository.AssignmentRepository
	assigner       AssignmentService
	pick           Picker
	log            *logger.Logger
}

// NewSelectionService creates the selection engine. A nil picker chooses uniformly.
func NewSelectionService(
	exerciseRepo repository.ExerciseRepository,
	assignmentRepo repository.AssignmentRepository,
	assigner AssignmentService,
	pick Picker,
	log *logger.Logger,
) SelectionService {
	if pick == nil {
		pick = uniformPicker
	}
	return &selectionService{
		exerciseRepo:   exerciseRepo,
		assignmentRepo: assignmentRepo,
		assigner:       assigner,
		pick:           pick,
		log:            log.With("component", "selection"),
	}
}

type candidate struct {
	assignment   domain.Assignment
	exercise     *domain.CatalogExercise
	personalized bool
}

func (s *selectionService) SelectExercise(ctx context.Context, patientID, exerciseContext, verb string) (*Selection, error) {
	if patientID == "" || exerciseContext == "" {
		return nil, invalid("patient ID and context are required")
	}

	// The whole assignment set decides what counts as already seen.
	all, err := s.assignmentRepo.ListByPatient(ctx, patientID, repository.AssignmentFilter{})
	if err != nil {
		return nil, err
	}
	catalog := newCatalogCache(s.exerciseRepo)

	var pending, completed []candidate
	assigned := make(map[string]struct{}, len(all))
	for _, a := range all {
		assigned[a.ExerciseID] = struct{}{}
		if a.Context != exerciseContext {
			continue
		}
		ex, err := catalog.get(ctx, a.ExerciseID)
		if err != nil {
			return nil, err
		}
		if ex == nil {
			s.log.Debug("skipping assignment with dangling exercise", "patient_id", patientID, "exercise_id", a.ExerciseID)
			continue
		}
		if verb != "" && verbOf(a, ex) != verb {
			continue
		}
		c := candidate{assignment: a, exercise: ex, personalized: resolvePersonalized(a, ex)}
		switch a.State {
		case domain.StatePending:
			pending = append(pending, c)
		case domain.StateCompleted:
			completed = append(completed, c)
		}
	}

	if len(pending) > 0 {
		sort.SliceStable(pending, func(i, j int) bool { return pendingLess(pending[i], pending[j]) })
		top := pending[0]
		return &Selection{Exercise: top.exercise, Assignment: &top.assignment, Source: SourcePending}, nil
	}

	unseen, err := s.exerciseRepo.Find(ctx, repository.ExerciseFilter{Context: exerciseContext, Verb: verb})
	if err != nil {
		return nil, err
	}
	fresh := unseen[:0]
	for _, ex := range unseen {
		if _, ok := assigned[ex.ID]; ok {
			continue
		}
		if !ex.OfferableTo(patientID) {
			continue
		}
		fresh = append(fresh, ex)
	}
	if len(fresh) > 0 {
		chosen := fresh[s.pick(len(fresh))]
		assignment, err := s.assigner.Assign(ctx, patientID, chosen.ID, exerciseContext)
		if err != nil {
			return nil, err
		}
		s.log.Info("assigned new exercise", "patient_id", patientID, "exercise_id", chosen.ID, "context", exerciseContext, "candidates", len(fresh))
		return &Selection{Exercise: &chosen, Assignment: assignment, Source: SourceNew}, nil
	}

	review := completed[:0]
	for _, c := range completed {
		if c.assignment.LastCompletedAt != nil {
			review = append(review, c)
		}
	}
	if len(review) > 0 {
		sort.SliceStable(review, func(i, j int) bool {
			ti, tj := *review[i].assignment.LastCompletedAt, *review[j].assignment.LastCompletedAt
			if !ti.Equal(tj) {
				return ti.Before(tj)
			}
			return review[i].assignment.ExerciseID < review[j].assignment.ExerciseID
		})
		oldest := review[0]
		return &Selection{Exercise: oldest.exercise, Assignment: &oldest.assignment, Source: SourceReview}, nil
	}

	if verb != "" {
		return nil, notFound("no exercises available for context %q and verb %q", exerciseContext, verb)
	}
	return nil, notFound("no exercises available for context %q", exerciseContext)
}

func (s *selectionService) ListVerbsForContext(ctx context.Context, exerciseContext, patientID string) ([]VerbHighlight, error) {
	if exerciseContext == "" {
		return nil, invalid("context is required")
	}

	exercises, err := s.exerciseRepo.Find(ctx, repository.ExerciseFilter{Context: exerciseContext, TherapyType: domain.TherapyVNEST})
	if err != nil {
		return nil, err
	}
	// Private entries only count for their owner; without a patient none do.
	verbs := map[string]bool{}
	for _, ex := range exercises {
		if ex.Verb == "" {
			continue
		}
		if ex.Visibility == domain.VisibilityPrivate && (patientID == "" || !ex.OfferableTo(patientID)) {
			continue
		}
		verbs[ex.Verb] = false
	}

	if patientID != "" {
		pending, err := s.assignmentRepo.ListByPatient(ctx, patientID, repository.AssignmentFilter{
			Context: exerciseContext,
			State:   domain.StatePending,
		})
		if err != nil {
			return nil, err
		}
		catalog := newCatalogCache(s.exerciseRepo)
		for _, a := range pending {
			ex, err := catalog.get(ctx, a.ExerciseID)
			if err != nil {
				return nil, err
			}
			if ex == nil || ex.TherapyType != domain.TherapyVNEST || ex.Context != exerciseContext {
				continue
			}
			if _, ok := verbs[ex.Verb]; ok && resolvePersonalized(a, ex) {
				verbs[ex.Verb] = true
			}
		}
	}

	out := make([]VerbHighlight, 0, len(verbs))
	for verb, highlight := range verbs {
		out = append(out, VerbHighlight{Verb: verb, Highlight: highlight})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Verb < out[j].Verb })
	return out, nil
}

// pendingLess orders personalized work first, then by priority, then by
// assignment time and exercise ID so duplicate priorities stay deterministic.
func pendingLess(a, b candidate) bool {
	if a.personalized != b.personalized {
		return a.personalized
	}
	if a.assignment.Priority != b.assignment.Priority {
		return a.assignment.Priority < b.assignment.Priority
	}
	if !a.assignment.AssignedAt.Equal(b.assignment.AssignedAt) {
		return a.assignment.AssignedAt.Before(b.assignment.AssignedAt)
	}
	return a.assignment.ExerciseID < b.assignment.ExerciseID
}

// resolvePersonalized prefers the flag copied at assignment time and falls
// back to the catalog entry for older records.
func resolvePersonalized(a domain.Assignment, ex *domain.CatalogExercise) bool {
	if a.Personalized != nil {
		return *a.Personalized
	}
	return ex.Personalized
}

func verbOf(a domain.Assignment, ex *domain.CatalogExercise) string {
	if a.Verb != "" {
		return a.Verb
	}
	return ex.Verb
}

// catalogCache memoizes catalog lookups for one call. Missing entries map to nil.
type catalogCache struct {
	repo    repository.ExerciseRepository
	entries map[string]*domain.CatalogExercise
}

func newCatalogCache(repo repository.ExerciseRepository) *catalogCache {
	return &catalogCache{repo: repo, entries: map[string]*domain.CatalogExercise{}}
}

func (c *catalogCache) get(ctx context.Context, id string) (*domain.CatalogExercise, error) {
	if ex, ok := c.entries[id]; ok {
		return ex, nil
	}
	ex, err := c.repo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		ex = nil
	}
	c.entries[id] = ex
	return ex, nil
}
