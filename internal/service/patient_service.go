package service

import (
	"apphasia/exercise-engine/internal/domain"
	"apphasia/exercise-engine/internal/generation"
	"apphasia/exercise-engine/internal/logger"
	"apphasia/exercise-engine/internal/repository"
	"context"
	"errors"
	"maps"
	"strings"
)

// PatientService manages the profiles personalization reads from.
type PatientService interface {
	GetPatient(ctx context.Context, patientID string) (*domain.Patient, error)
	// ListPatients returns every patient, oldest first.
	ListPatients(ctx context.Context) ([]domain.Patient, error)
	UpsertPatient(ctx context.Context, patientID, name string, profile map[string]any) (*domain.Patient, error)
	// StructureProfile turns free-text notes into a structured profile, stores
	// both and merges the sections into Profile. The patient is created if missing.
	StructureProfile(ctx context.Context, patientID, rawText string) (*domain.Patient, error)
}

type patientService struct {
	patientRepo repository.PatientRepository
	generator   generation.Client
	log         *logger.Logger
}

func NewPatientService(patientRepo repository.PatientRepository, generator generation.Client, log *logger.Logger) PatientService {
	return &patientService{
		patientRepo: patientRepo,
		generator:   generator,
		log:         log.With("component", "patients"),
	}
}

func (s *patientService) GetPatient(ctx context.Context, patientID string) (*domain.Patient, error) {
	patient, err := s.patientRepo.GetByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("patient %s not found", patientID)
		}
		return nil, err
	}
	return patient, nil
}

func (s *patientService) ListPatients(ctx context.Context) ([]domain.Patient, error) {
	return s.patientRepo.List(ctx)
}

func (s *patientService) UpsertPatient(ctx context.Context, patientID, name string, profile map[string]any) (*domain.Patient, error) {
	if err := validatePatientID(patientID); err != nil {
		return nil, err
	}
	patient := &domain.Patient{ID: patientID, Name: strings.TrimSpace(name), Profile: profile}
	if err := s.patientRepo.Upsert(ctx, patient); err != nil {
		return nil, err
	}
	return s.GetPatient(ctx, patientID)
}

func (s *patientService) StructureProfile(ctx context.Context, patientID, rawText string) (*domain.Patient, error) {
	if err := validatePatientID(patientID); err != nil {
		return nil, err
	}
	rawText = strings.TrimSpace(rawText)
	if rawText == "" {
		return nil, invalid("profile text is required")
	}

	patient, err := s.patientRepo.GetByID(ctx, patientID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		patient = &domain.Patient{ID: patientID}
	}

	structured, err := s.generator.StructureProfile(ctx, patientID, rawText)
	if err == nil {
		generation.NormalizeProfile(structured)
		err = generation.ValidateProfile(structured)
	}
	if err != nil {
		return nil, &UpstreamGenerationError{Op: "structure patient profile", Err: err}
	}

	profile := map[string]any{}
	maps.Copy(profile, patient.Profile)
	maps.Copy(profile, structured.ProfileFields())
	patient.Profile = profile
	patient.ProfileNotes = rawText
	patient.StructuredProfile = structured
	if patient.Name == "" {
		patient.Name = structured.Personal.Name
	}

	if err := s.patientRepo.Upsert(ctx, patient); err != nil {
		return nil, err
	}
	s.log.Info("patient profile structured", "patient_id", patientID,
		"family", len(structured.Family), "routines", len(structured.Routines), "objects", len(structured.Objects))
	return s.GetPatient(ctx, patientID)
}

func validatePatientID(patientID string) error {
	if strings.TrimSpace(patientID) == "" {
		return invalid("patient ID is required")
	}
	if strings.Contains(patientID, "/") {
		return invalid("patient ID cannot contain '/'")
	}
	return nil
}
