package service

import (
	"apphasia/exercise-engine/internal/domain"
	"apphasia/exercise-engine/internal/generation"
	"apphasia/exercise-engine/internal/logger"
	"apphasia/exercise-engine/internal/repository"
	"apphasia/exercise-engine/internal/storage"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	createdByGenerator = "IA"
	maxIDAttempts      = 3
)

// ExerciseUpdate holds the fields a therapist may edit. Nil fields are kept.
type ExerciseUpdate struct {
	Context *string
	Verb    *string
	VNEST   *domain.VNESTContent
	SR      *domain.SRContent
}

// ExerciseService authors catalog content and serves the review workflow.
type ExerciseService interface {
	CreateVNEST(ctx context.Context, exerciseContext string, level domain.Level, visibility domain.Visibility, createdBy string) (*domain.CatalogExercise, error)
	// Personalize adapts a VNEST exercise to a patient and assigns the result.
	// Repeating it for the same pair overwrites the earlier adaptation.
	Personalize(ctx context.Context, baseExerciseID, patientID string) (*domain.CatalogExercise, *domain.Assignment, error)
	// CreateSRForPatient writes recall prompts from the patient's profile and assigns each one.
	CreateSRForPatient(ctx context.Context, patientID string) ([]domain.CatalogExercise, error)
	ListExercises(ctx context.Context, filter repository.ExerciseFilter) ([]domain.CatalogExercise, error)
	GetExercise(ctx context.Context, id string) (*domain.CatalogExercise, error)
	UpdateExercise(ctx context.Context, id string, update ExerciseUpdate) (*domain.CatalogExercise, error)
	MarkReviewed(ctx context.Context, id string, reviewed bool) (*domain.CatalogExercise, error)
	// ArchiveURL returns a presigned link to the archived generation output.
	ArchiveURL(ctx context.Context, id string) (string, error)
}

type exerciseService struct {
	exerciseRepo  repository.ExerciseRepository
	patientRepo   repository.PatientRepository
	assigner      AssignmentService
	generator     generation.Client
	fileStorage   storage.FileStorage
	presignExpiry time.Duration
	log           *logger.Logger
}

// NewExerciseService creates a new instance of exerciseService.
func NewExerciseService(
	exerciseRepo repository.ExerciseRepository,
	patientRepo repository.PatientRepository,
	assigner AssignmentService,
	generator generation.Client,
	fileStorage storage.FileStorage,
	presignExpiry time.Duration,
	log *logger.Logger,
) ExerciseService {
	if fileStorage == nil {
		fileStorage = storage.NewNoopStorage()
	}
	return &exerciseService{
		exerciseRepo:  exerciseRepo,
		patientRepo:   patientRepo,
		assigner:      assigner,
		generator:     generator,
		fileStorage:   fileStorage,
		presignExpiry: presignExpiry,
		log:           log.With("component", "exercises"),
	}
}

func (s *exerciseService) CreateVNEST(ctx context.Context, exerciseContext string, level domain.Level, visibility domain.Visibility, createdBy string) (*domain.CatalogExercise, error) {
	exerciseContext = strings.TrimSpace(exerciseContext)
	if exerciseContext == "" {
		return nil, invalid("context is required")
	}
	if level != "" && !level.Valid() {
		return nil, invalid("unknown level %q", level)
	}
	if visibility == "" {
		visibility = domain.VisibilityPublic
	}
	if visibility != domain.VisibilityPublic && visibility != domain.VisibilityPrivate {
		return nil, invalid("unknown visibility %q", visibility)
	}
	if createdBy == "" {
		createdBy = createdByGenerator
	}

	result, err := s.generator.GenerateVNEST(ctx, exerciseContext, level)
	if err == nil {
		err = generation.ValidateVNEST(result.Verb, &result.Content)
	}
	if err != nil {
		return nil, &UpstreamGenerationError{Op: "generate VNEST exercise", Err: err}
	}

	content := result.Content
	exercise := &domain.CatalogExercise{
		TherapyType: domain.TherapyVNEST,
		Context:     exerciseContext,
		Verb:        result.Verb,
		Visibility:  visibility,
		CreatedBy:   createdBy,
		VNEST:       &content,
	}
	if err := s.create(ctx, exercise); err != nil {
		return nil, err
	}
	s.log.Info("VNEST exercise created", "exercise_id", exercise.ID, "context", exerciseContext, "verb", exercise.Verb)

	s.archive(ctx, exercise)
	return exercise, nil
}

func (s *exerciseService) Personalize(ctx context.Context, baseExerciseID, patientID string) (*domain.CatalogExercise, *domain.Assignment, error) {
	if baseExerciseID == "" || patientID == "" {
		return nil, nil, invalid("exercise ID and patient ID are required")
	}
	base, err := s.GetExercise(ctx, baseExerciseID)
	if err != nil {
		return nil, nil, err
	}
	if base.TherapyType != domain.TherapyVNEST || base.VNEST == nil {
		return nil, nil, invalid("only VNEST exercises can be personalized")
	}
	patient, err := s.patient(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.generator.PersonalizeVNEST(ctx, base, patient.Profile)
	if err == nil {
		err = generation.ValidateVNEST(result.Verb, &result.Content)
	}
	if err != nil {
		return nil, nil, &UpstreamGenerationError{Op: "personalize exercise " + baseExerciseID, Err: err}
	}

	content := result.Content
	owner, baseRef := patientID, base.ID
	exercise := &domain.CatalogExercise{
		ID:              base.ID + "_" + patientID,
		TherapyType:     domain.TherapyVNEST,
		Context:         base.Context,
		Verb:            result.Verb,
		Visibility:      domain.VisibilityPrivate,
		CreatedBy:       createdByGenerator,
		Personalized:    true,
		OwnerPatientID:  &owner,
		BaseReferenceID: &baseRef,
		AdaptationNote:  result.AdaptationNote,
		VNEST:           &content,
	}
	if err := s.exerciseRepo.Save(ctx, exercise); err != nil {
		return nil, nil, err
	}
	s.log.Info("exercise personalized", "exercise_id", exercise.ID, "base_id", base.ID, "patient_id", patientID)
	s.archive(ctx, exercise)

	assignment, err := s.assigner.Assign(ctx, patientID, exercise.ID, exercise.Context)
	if err != nil {
		return nil, nil, err
	}
	return exercise, assignment, nil
}

func (s *exerciseService) CreateSRForPatient(ctx context.Context, patientID string) ([]domain.CatalogExercise, error) {
	if patientID == "" {
		return nil, invalid("patient ID is required")
	}
	patient, err := s.patient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if len(patient.Profile) == 0 {
		return nil, invalid("patient %s has no profile to build prompts from", patientID)
	}

	items, err := s.generator.GenerateSR(ctx, patient.Profile)
	if err == nil {
		err = generation.ValidateSR(items)
	}
	if err != nil {
		return nil, &UpstreamGenerationError{Op: "generate SR prompts", Err: err}
	}

	created := make([]domain.CatalogExercise, 0, len(items))
	for _, item := range items {
		owner, baseRef := patientID, "profile/"+patientID
		exercise := &domain.CatalogExercise{
			TherapyType:     domain.TherapySR,
			Context:         domain.SRContext,
			Visibility:      domain.VisibilityPrivate,
			CreatedBy:       createdByGenerator,
			Personalized:    true,
			OwnerPatientID:  &owner,
			BaseReferenceID: &baseRef,
			SR:              &domain.SRContent{Question: item.Question, Answer: item.Answer},
		}
		if err := s.create(ctx, exercise); err != nil {
			return nil, err
		}
		s.archive(ctx, exercise)
		if _, err := s.assigner.Assign(ctx, patientID, exercise.ID, exercise.Context); err != nil {
			return nil, err
		}
		created = append(created, *exercise)
	}
	s.log.Info("SR prompts created", "patient_id", patientID, "count", len(created))
	return created, nil
}

func (s *exerciseService) ListExercises(ctx context.Context, filter repository.ExerciseFilter) ([]domain.CatalogExercise, error) {
	return s.exerciseRepo.Find(ctx, filter)
}

func (s *exerciseService) GetExercise(ctx context.Context, id string) (*domain.CatalogExercise, error) {
	exercise, err := s.exerciseRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("exercise %s not found", id)
		}
		return nil, err
	}
	return exercise, nil
}

func (s *exerciseService) UpdateExercise(ctx context.Context, id string, update ExerciseUpdate) (*domain.CatalogExercise, error) {
	exercise, err := s.GetExercise(ctx, id)
	if err != nil {
		return nil, err
	}
	prevContext, prevVerb := exercise.Context, exercise.Verb

	if update.Context != nil {
		c := strings.TrimSpace(*update.Context)
		if c == "" {
			return nil, invalid("context cannot be empty")
		}
		exercise.Context = c
	}
	if update.Verb != nil {
		exercise.Verb = strings.ToLower(strings.TrimSpace(*update.Verb))
	}

	switch exercise.TherapyType {
	case domain.TherapyVNEST:
		if update.SR != nil {
			return nil, invalid("VNEST exercise cannot carry SR content")
		}
		if update.VNEST != nil {
			content := normalizeVNEST(*update.VNEST)
			if content.Level == "" && exercise.VNEST != nil {
				content.Level = exercise.VNEST.Level
			}
			exercise.VNEST = &content
		}
		if err := generation.ValidateVNEST(exercise.Verb, exercise.VNEST); err != nil {
			return nil, invalid("%v", err)
		}
	case domain.TherapySR:
		if update.VNEST != nil {
			return nil, invalid("SR exercise cannot carry VNEST content")
		}
		if update.SR != nil {
			sr := domain.SRContent{Question: strings.TrimSpace(update.SR.Question), Answer: strings.TrimSpace(update.SR.Answer)}
			if sr.Question == "" || sr.Answer == "" {
				return nil, invalid("SR question and answer are required")
			}
			exercise.SR = &sr
		}
	}

	if err := s.exerciseRepo.Update(ctx, exercise); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("exercise %s not found", id)
		}
		return nil, err
	}

	// Assignments carry their own copy of context and verb; selection filters on them.
	if exercise.Context != prevContext || exercise.Verb != prevVerb {
		if _, err := s.assigner.SyncExercise(ctx, exercise); err != nil {
			return nil, err
		}
	}
	return exercise, nil
}

func (s *exerciseService) MarkReviewed(ctx context.Context, id string, reviewed bool) (*domain.CatalogExercise, error) {
	if err := s.exerciseRepo.SetReviewed(ctx, id, reviewed); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("exercise %s not found", id)
		}
		return nil, err
	}
	return s.GetExercise(ctx, id)
}

func (s *exerciseService) ArchiveURL(ctx context.Context, id string) (string, error) {
	exercise, err := s.GetExercise(ctx, id)
	if err != nil {
		return "", err
	}
	if exercise.ArchiveKey == "" {
		return "", notFound("exercise %s has no archived generation output", id)
	}
	return s.fileStorage.GeneratePresignedDownloadURL(ctx, exercise.ArchiveKey, s.presignExpiry)
}

// create inserts the exercise under a fresh ID, retrying on collisions.
func (s *exerciseService) create(ctx context.Context, exercise *domain.CatalogExercise) error {
	var err error
	for range maxIDAttempts {
		exercise.ID = newExerciseID()
		if err = s.exerciseRepo.Create(ctx, exercise); !errors.Is(err, repository.ErrConflict) {
			return err
		}
	}
	return err
}

// archive stores the exercise as JSON in object storage. Failures are
// logged and never fail the caller.
func (s *exerciseService) archive(ctx context.Context, exercise *domain.CatalogExercise) {
	body, err := json.Marshal(exercise)
	if err != nil {
		s.log.Warn("could not encode exercise for archive", "exercise_id", exercise.ID, "error", err)
		return
	}
	key := archiveKey(exercise)
	if err := s.fileStorage.PutObject(ctx, key, "application/json", body); err != nil {
		if !errors.Is(err, storage.ErrStorageDisabled) {
			s.log.Warn("archiving exercise failed", "exercise_id", exercise.ID, "key", key, "error", err)
		}
		return
	}
	if err := s.exerciseRepo.SetArchiveKey(ctx, exercise.ID, key); err != nil {
		s.log.Warn("recording archive key failed", "exercise_id", exercise.ID, "error", err)
		return
	}
	exercise.ArchiveKey = key
}

func (s *exerciseService) patient(ctx context.Context, patientID string) (*domain.Patient, error) {
	patient, err := s.patientRepo.GetByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("patient %s not found", patientID)
		}
		return nil, err
	}
	return patient, nil
}

func archiveKey(exercise *domain.CatalogExercise) string {
	return fmt.Sprintf("archive/%s/%s.json", exercise.TherapyType, exercise.ID)
}

// newExerciseID returns a short catalog ID such as "E4A2B7".
func newExerciseID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "E" + strings.ToUpper(hex[:6])
}

func normalizeVNEST(c domain.VNESTContent) domain.VNESTContent {
	trimQ := func(q domain.Question) domain.Question {
		opts := make([]string, 0, len(q.Options))
		for _, o := range q.Options {
			opts = append(opts, strings.TrimSpace(o))
		}
		return domain.Question{Options: opts, Correct: strings.TrimSpace(q.Correct)}
	}
	out := domain.VNESTContent{Level: c.Level}
	for _, p := range c.Pairs {
		out.Pairs = append(out.Pairs, domain.Pair{
			Subject: strings.TrimSpace(p.Subject),
			Object:  strings.TrimSpace(p.Object),
			Expansions: domain.Expansions{
				Where: trimQ(p.Expansions.Where),
				When:  trimQ(p.Expansions.When),
				Why:   trimQ(p.Expansions.Why),
			},
		})
	}
	for _, st := range c.Sentences {
		out.Sentences = append(out.Sentences, domain.Sentence{Text: strings.TrimSpace(st.Text), Correct: st.Correct})
	}
	return out
}
