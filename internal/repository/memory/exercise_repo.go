package memory

import (
	"apphasia/exercise-engine/internal/domain"
	"apphasia/exercise-engine/internal/repository"
	"context"
	"sort"
	"sync"
	"time"
)

type exerciseRepository struct {
	mu        sync.RWMutex
	exercises map[string]domain.CatalogExercise
}

// NewExerciseRepository creates an empty in-memory catalog.
func NewExerciseRepository() repository.ExerciseRepository {
	return &exerciseRepository{exercises: map[string]domain.CatalogExercise{}}
}

func (r *exerciseRepository) Create(ctx context.Context, exercise *domain.CatalogExercise) error {
	if err := exercise.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.exercises[exercise.ID]; ok {
		return repository.ErrConflict
	}
	now := time.Now().UTC()
	exercise.CreatedAt = now
	exercise.UpdatedAt = now
	r.exercises[exercise.ID] = *exercise
	return nil
}

func (r *exerciseRepository) Save(ctx context.Context, exercise *domain.CatalogExercise) error {
	if err := exercise.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if exercise.CreatedAt.IsZero() {
		exercise.CreatedAt = now
	}
	exercise.UpdatedAt = now
	r.exercises[exercise.ID] = *exercise
	return nil
}

func (r *exerciseRepository) GetByID(ctx context.Context, id string) (*domain.CatalogExercise, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exercise, ok := r.exercises[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &exercise, nil
}

func (r *exerciseRepository) Find(ctx context.Context, f repository.ExerciseFilter) ([]domain.CatalogExercise, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.CatalogExercise{}
	for _, ex := range r.exercises {
		if f.Context != "" && ex.Context != f.Context {
			continue
		}
		if f.Verb != "" && ex.Verb != f.Verb {
			continue
		}
		if f.TherapyType != "" && ex.TherapyType != f.TherapyType {
			continue
		}
		if f.Reviewed != nil && ex.Reviewed != *f.Reviewed {
			continue
		}
		out = append(out, ex)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Reviewed != out[j].Reviewed {
			return !out[i].Reviewed
		}
		if out[i].Verb != out[j].Verb {
			return out[i].Verb < out[j].Verb
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *exerciseRepository) Update(ctx context.Context, exercise *domain.CatalogExercise) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.exercises[exercise.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Context = exercise.Context
	stored.Verb = exercise.Verb
	stored.VNEST = exercise.VNEST
	stored.SR = exercise.SR
	stored.AdaptationNote = exercise.AdaptationNote
	stored.UpdatedAt = time.Now().UTC()
	r.exercises[exercise.ID] = stored
	return nil
}

func (r *exerciseRepository) SetReviewed(ctx context.Context, id string, reviewed bool) error {
	return r.mutate(id, func(ex *domain.CatalogExercise) { ex.Reviewed = reviewed })
}

func (r *exerciseRepository) SetArchiveKey(ctx context.Context, id, key string) error {
	return r.mutate(id, func(ex *domain.CatalogExercise) { ex.ArchiveKey = key })
}

func (r *exerciseRepository) mutate(id string, fn func(*domain.CatalogExercise)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.exercises[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&stored)
	stored.UpdatedAt = time.Now().UTC()
	r.exercises[id] = stored
	return nil
}

// Delete removes an entry. The engine never deletes catalog entries; tests
// use it to produce dangling assignment references.
func Delete(repo repository.ExerciseRepository, id string) {
	if r, ok := repo.(*exerciseRepository); ok {
		r.mu.Lock()
		delete(r.exercises, id)
		r.mu.Unlock()
	}
}
