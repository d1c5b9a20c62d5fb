package api

import (
	"apphasia/exercise-engine/internal/domain"
	"apphasia/exercise-engine/internal/service"
	"time"
)

// ExerciseResponse is the DTO for returning a catalog exercise.
type ExerciseResponse struct {
	ID              string               `json:"id"`
	TherapyType     domain.TherapyType   `json:"therapyType"`
	Context         string               `json:"context"`
	Verb            string               `json:"verb,omitempty"`
	Visibility      domain.Visibility    `json:"visibility"`
	Reviewed        bool                 `json:"reviewed"`
	CreatedBy       string               `json:"createdBy,omitempty"`
	Personalized    bool                 `json:"personalized"`
	OwnerPatientID  *string              `json:"ownerPatientId,omitempty"`
	BaseReferenceID *string              `json:"baseReferenceId,omitempty"`
	AdaptationNote  string               `json:"adaptationNote,omitempty"`
	VNEST           *domain.VNESTContent `json:"vnest,omitempty"`
	SR              *domain.SRContent    `json:"sr,omitempty"`
	Archived        bool                 `json:"archived"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

// MapExerciseToResponse converts a domain.CatalogExercise to ExerciseResponse DTO.
func MapExerciseToResponse(ex *domain.CatalogExercise) ExerciseResponse {
	if ex == nil {
		return ExerciseResponse{}
	}
	return ExerciseResponse{
		ID:              ex.ID,
		TherapyType:     ex.TherapyType,
		Context:         ex.Context,
		Verb:            ex.Verb,
		Visibility:      ex.Visibility,
		Reviewed:        ex.Reviewed,
		CreatedBy:       ex.CreatedBy,
		Personalized:    ex.Personalized,
		OwnerPatientID:  ex.OwnerPatientID,
		BaseReferenceID: ex.BaseReferenceID,
		AdaptationNote:  ex.AdaptationNote,
		VNEST:           ex.VNEST,
		SR:              ex.SR,
		Archived:        ex.ArchiveKey != "",
		CreatedAt:       ex.CreatedAt,
		UpdatedAt:       ex.UpdatedAt,
	}
}

func MapExercisesToResponse(exercises []domain.CatalogExercise) []ExerciseResponse {
	responses := make([]ExerciseResponse, len(exercises))
	for i := range exercises {
		responses[i] = MapExerciseToResponse(&exercises[i])
	}
	return responses
}

// AssignmentResponse is the DTO for a patient's assignment record.
type AssignmentResponse struct {
	ExerciseID      string                 `json:"exerciseId"`
	Context         string                 `json:"context"`
	Verb            string                 `json:"verb,omitempty"`
	TherapyType     domain.TherapyType     `json:"therapyType,omitempty"`
	State           domain.AssignmentState `json:"state"`
	Priority        int                    `json:"priority"`
	TimesCompleted  int                    `json:"timesCompleted"`
	LastCompletedAt *time.Time             `json:"lastCompletedAt,omitempty"`
	Personalized    bool                   `json:"personalized"`
	SRCard          *domain.SRCard         `json:"srCard,omitempty"`
	AssignedAt      time.Time              `json:"assignedAt"`
}

func MapAssignmentToResponse(a *domain.Assignment) AssignmentResponse {
	if a == nil {
		return AssignmentResponse{}
	}
	return AssignmentResponse{
		ExerciseID:      a.ExerciseID,
		Context:         a.Context,
		Verb:            a.Verb,
		TherapyType:     a.TherapyType,
		State:           a.State,
		Priority:        a.Priority,
		TimesCompleted:  a.TimesCompleted,
		LastCompletedAt: a.LastCompletedAt,
		Personalized:    a.Personalized != nil && *a.Personalized,
		SRCard:          a.SRCard,
		AssignedAt:      a.AssignedAt,
	}
}

func MapAssignmentsToResponse(assignments []domain.Assignment) []AssignmentResponse {
	responses := make([]AssignmentResponse, len(assignments))
	for i := range assignments {
		responses[i] = MapAssignmentToResponse(&assignments[i])
	}
	return responses
}

// SelectionResponse is what the practice screen receives.
type SelectionResponse struct {
	Source     service.SelectionSource `json:"source"`
	Exercise   ExerciseResponse        `json:"exercise"`
	Assignment AssignmentResponse      `json:"assignment"`
}

type PatientResponse struct {
	ID                string                    `json:"id"`
	Name              string                    `json:"name"`
	Profile           map[string]any            `json:"profile,omitempty"`
	ProfileNotes      string                    `json:"profileNotes,omitempty"`
	StructuredProfile *domain.StructuredProfile `json:"structuredProfile,omitempty"`
	CreatedAt         time.Time                 `json:"createdAt"`
	UpdatedAt         time.Time                 `json:"updatedAt"`
}

func MapPatientToResponse(p *domain.Patient) PatientResponse {
	if p == nil {
		return PatientResponse{}
	}
	return PatientResponse{
		ID:                p.ID,
		Name:              p.Name,
		Profile:           p.Profile,
		ProfileNotes:      p.ProfileNotes,
		StructuredProfile: p.StructuredProfile,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func MapPatientsToResponse(patients []domain.Patient) []PatientResponse {
	responses := make([]PatientResponse, len(patients))
	for i := range patients {
		responses[i] = MapPatientToResponse(&patients[i])
	}
	return responses
}
