package repository

import (
	"apphasia/exercise-engine/internal/domain"
	"context"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrConflict     = RepositoryError("already exists")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// ExerciseFilter holds equality filters for catalog scans. Empty fields are ignored.
type ExerciseFilter struct {
	Context     string
	Verb        string
	TherapyType domain.TherapyType
	Reviewed    *bool
}

// ExerciseRepository defines the interface for the exercise catalog.
type ExerciseRepository interface {
	Create(ctx context.Context, exercise *domain.CatalogExercise) error
	// Save inserts or fully replaces the exercise with the same ID.
	Save(ctx context.Context, exercise *domain.CatalogExercise) error
	GetByID(ctx context.Context, id string) (*domain.CatalogExercise, error)
	Find(ctx context.Context, filter ExerciseFilter) ([]domain.CatalogExercise, error)
	Update(ctx context.Context, exercise *domain.CatalogExercise) error
	SetReviewed(ctx context.Context, id string, reviewed bool) error
	SetArchiveKey(ctx context.Context, id, key string) error
}

// AssignmentFilter narrows a patient's assignment scan. Empty fields are ignored.
type AssignmentFilter struct {
	Context string
	Verb    string
	State   domain.AssignmentState
}

// AssignmentRepository defines the interface for per-patient assignment records.
type AssignmentRepository interface {
	// Put writes the assignment keyed by (patient, exercise), overwriting any previous record.
	Put(ctx context.Context, assignment *domain.Assignment) error
	Get(ctx context.Context, patientID, exerciseID string) (*domain.Assignment, error)
	ListByPatient(ctx context.Context, patientID string, filter AssignmentFilter) ([]domain.Assignment, error)
	Update(ctx context.Context, assignment *domain.Assignment) error
	// MaxPriority returns the highest priority among all the patient's assignments, 0 if none.
	MaxPriority(ctx context.Context, patientID string) (int, error)
	// SyncExerciseRefs rewrites the context and verb copied onto every
	// assignment of exerciseID, across all patients, and returns how many changed.
	SyncExerciseRefs(ctx context.Context, exerciseID, exerciseContext, verb string) (int, error)
}

// PatientRepository defines the interface for patient profiles.
type PatientRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Patient, error)
	// Upsert writes name and profile. Empty ProfileNotes and a nil
	// StructuredProfile leave the stored values untouched.
	Upsert(ctx context.Context, patient *domain.Patient) error
	// List returns every patient, oldest first.
	List(ctx context.Context) ([]domain.Patient, error)
}

// CounterRepository hands out monotonically increasing sequence values.
type CounterRepository interface {
	// Advance atomically sets the counter to max(current, floor)+1 and returns it.
	Advance(ctx context.Context, key string, floor int) (int, error)
}
