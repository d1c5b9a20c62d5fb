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

type patientRepository struct {
	mu       sync.RWMutex
	patients map[string]domain.Patient
	// seq breaks ties between patients created within the same clock tick.
	seq   map[string]int
	nextN int
}

// NewPatientRepository creates an empty in-memory patient store.
func NewPatientRepository() repository.PatientRepository {
	return &patientRepository{patients: map[string]domain.Patient{}, seq: map[string]int{}}
}

func (r *patientRepository) GetByID(ctx context.Context, id string) (*domain.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *patientRepository) Upsert(ctx context.Context, patient *domain.Patient) error {
	if patient.ID == "" {
		return errors.New("patient ID is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := r.patients[patient.ID]; ok {
		patient.CreatedAt = existing.CreatedAt
		if patient.ProfileNotes == "" {
			patient.ProfileNotes = existing.ProfileNotes
		}
		if patient.StructuredProfile == nil {
			patient.StructuredProfile = existing.StructuredProfile
		}
	} else {
		patient.CreatedAt = now
		r.nextN++
		r.seq[patient.ID] = r.nextN
	}
	patient.UpdatedAt = now
	r.patients[patient.ID] = *patient
	return nil
}

func (r *patientRepository) List(ctx context.Context) ([]domain.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Patient, 0, len(r.patients))
	for _, p := range r.patients {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return r.seq[out[i].ID] < r.seq[out[j].ID]
	})
	return out, nil
}
