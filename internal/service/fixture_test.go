package service

import (
	"apphasia/exercise-engine/internal/domain"
	"apphasia/exercise-engine/internal/generation"
	"apphasia/exercise-engine/internal/logger"
	"apphasia/exercise-engine/internal/repository"
	"apphasia/exercise-engine/internal/repository/memory"
	"apphasia/exercise-engine/internal/storage"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// recordingStorage keeps archived objects in memory.
type recordingStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut error
}

func newRecordingStorage() *recordingStorage {
	return &recordingStorage{objects: map[string][]byte{}}
}

func (s *recordingStorage) PutObject(ctx context.Context, key, contentType string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut != nil {
		return s.failPut
	}
	s.objects[key] = body
	return nil
}

func (s *recordingStorage) GeneratePresignedDownloadURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	return "https://archive.example/" + key + "?expires=" + expires.String(), nil
}

var _ storage.FileStorage = (*recordingStorage)(nil)

type fixture struct {
	exercises   repository.ExerciseRepository
	assignments repository.AssignmentRepository
	patients    repository.PatientRepository
	clock       *fakeClock
	generator   *generation.MockClient
	archive     *recordingStorage

	assigner  AssignmentService
	selector  SelectionService
	authoring ExerciseService
	profiles  PatientService
}

type fixtureOpts struct {
	policy PriorityAdjustmentPolicy
	mode   string
	pick   Picker
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()
	f := &fixture{
		exercises:   memory.NewExerciseRepository(),
		assignments: memory.NewAssignmentRepository(),
		patients:    memory.NewPatientRepository(),
		clock:       newFakeClock(),
		generator:   generation.NewMock(),
		archive:     newRecordingStorage(),
	}
	if opts.pick == nil {
		opts.pick = func(n int) int { return 0 }
	}
	priorities, err := NewPrioritySource(opts.mode, f.assignments, memory.NewCounterRepository())
	require.NoError(t, err)

	log := logger.NewNop()
	f.assigner = NewAssignmentService(f.exercises, f.assignments, priorities, opts.policy, f.clock.Now, log)
	f.selector = NewSelectionService(f.exercises, f.assignments, f.assigner, opts.pick, log)
	f.authoring = NewExerciseService(f.exercises, f.patients, f.assigner, f.generator, f.archive, 10*time.Minute, log)
	f.profiles = NewPatientService(f.patients, f.generator, log)
	return f
}

func vnestContent(verb string) *domain.VNESTContent {
	c := domain.VNESTContent{Level: domain.LevelEasy}
	q := domain.Question{Options: []string{"a", "b", "c", "d"}, Correct: "a"}
	c.Pairs = []domain.Pair{{Subject: "cocinero", Object: "pan", Expansions: domain.Expansions{Where: q, When: q, Why: q}}}
	for i := 0; i < domain.SentenceCount; i++ {
		c.Sentences = append(c.Sentences, domain.Sentence{Text: "El cocinero va a " + verb, Correct: i%2 == 0})
	}
	return &c
}

func (f *fixture) seed(t *testing.T, id, exerciseContext, verb string, mods ...func(*domain.CatalogExercise)) {
	t.Helper()
	ex := &domain.CatalogExercise{
		ID:          id,
		TherapyType: domain.TherapyVNEST,
		Context:     exerciseContext,
		Verb:        verb,
		Visibility:  domain.VisibilityPublic,
		VNEST:       vnestContent(verb),
	}
	for _, m := range mods {
		m(ex)
	}
	require.NoError(t, f.exercises.Create(context.Background(), ex))
}

func personalizedFor(patientID string) func(*domain.CatalogExercise) {
	return func(ex *domain.CatalogExercise) {
		owner, base := patientID, "BASE"
		ex.Visibility = domain.VisibilityPrivate
		ex.Personalized = true
		ex.OwnerPatientID = &owner
		ex.BaseReferenceID = &base
	}
}

func boolPtr(b bool) *bool { return &b }
