package service

import (
	"apphasia/exercise-engine/internal/domain"
	"apphasia/exercise-engine/internal/generation"
	"apphasia/exercise-engine/internal/logger"
	"apphasia/exercise-engine/internal/repository"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenGenerator returns content that breaks the sentence cardinality.
type brokenGenerator struct {
	generation.MockClient
}

func (g *brokenGenerator) GenerateVNEST(ctx context.Context, exerciseContext string, level domain.Level) (*generation.VNESTResult, error) {
	res, err := g.MockClient.GenerateVNEST(ctx, exerciseContext, level)
	if err != nil {
		return nil, err
	}
	res.Content.Sentences = res.Content.Sentences[:9]
	return res, nil
}

func TestCreateVNEST(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})

	ex, err := f.authoring.CreateVNEST(ctx, " cocina ", domain.LevelMedium, "", "")
	require.NoError(t, err)
	assert.Regexp(t, `^E[0-9A-F]{6}$`, ex.ID)
	assert.Equal(t, "cocina", ex.Context)
	assert.Equal(t, domain.VisibilityPublic, ex.Visibility)
	assert.Equal(t, "IA", ex.CreatedBy)
	assert.False(t, ex.Reviewed)
	assert.Equal(t, domain.LevelMedium, ex.VNEST.Level)

	stored, err := f.exercises.GetByID(ctx, ex.ID)
	require.NoError(t, err)
	key := "archive/VNEST/" + ex.ID + ".json"
	assert.Equal(t, key, stored.ArchiveKey)

	var archived domain.CatalogExercise
	require.NoError(t, json.Unmarshal(f.archive.objects[key], &archived))
	assert.Equal(t, ex.ID, archived.ID)

	url, err := f.authoring.ArchiveURL(ctx, ex.ID)
	require.NoError(t, err)
	assert.Contains(t, url, key)
}

func TestCreateVNEST_InvalidInput(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	_, err := f.authoring.CreateVNEST(context.Background(), "", "", "", "")
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, err = f.authoring.CreateVNEST(context.Background(), "cocina", "extremo", "", "")
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, err = f.authoring.CreateVNEST(context.Background(), "cocina", "", "shared", "")
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestCreateVNEST_MalformedOutputPersistsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})
	f.authoring = NewExerciseService(f.exercises, f.patients, f.assigner, &brokenGenerator{}, f.archive, 0, logger.NewNop())

	_, err := f.authoring.CreateVNEST(ctx, "cocina", "", "", "")
	assert.ErrorIs(t, err, ErrUpstreamGeneration)
	assert.ErrorIs(t, err, generation.ErrMalformed)

	all, err := f.exercises.Find(ctx, repository.ExerciseFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, f.archive.objects)
}

func TestCreateVNEST_UpstreamUnavailable(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.generator.Err = generation.ErrUnavailable

	_, err := f.authoring.CreateVNEST(context.Background(), "cocina", "", "", "")
	var ue *UpstreamGenerationError
	require.ErrorAs(t, err, &ue)
	assert.ErrorIs(t, err, generation.ErrUnavailable)
}

func TestCreateVNEST_ArchiveFailureDoesNotFail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})
	f.archive.failPut = errors.New("bucket offline")

	ex, err := f.authoring.CreateVNEST(ctx, "cocina", "", "", "")
	require.NoError(t, err)
	assert.Empty(t, ex.ArchiveKey)

	_, err = f.authoring.ArchiveURL(ctx, ex.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPersonalize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})
	f.seed(t, "E1A2B3", "cocina", "cortar")
	_, err := f.profiles.UpsertPatient(ctx, "P", "Ana", map[string]any{"name": "Ana", "hobby": "jardinería"})
	require.NoError(t, err)

	ex, a, err := f.authoring.Personalize(ctx, "E1A2B3", "P")
	require.NoError(t, err)
	assert.Equal(t, "E1A2B3_P", ex.ID)
	assert.True(t, ex.Personalized)
	assert.Equal(t, domain.VisibilityPrivate, ex.Visibility)
	assert.Equal(t, "P", *ex.OwnerPatientID)
	assert.Equal(t, "E1A2B3", *ex.BaseReferenceID)
	assert.Equal(t, "Ana", ex.VNEST.Pairs[0].Subject)

	assert.Equal(t, "cocina", a.Context)
	assert.Equal(t, domain.StatePending, a.State)
	assert.True(t, *a.Personalized)

	// Personalized pending work is served before the generic base.
	_, err = f.assigner.Assign(ctx, "P", "E1A2B3", "")
	require.NoError(t, err)
	sel, err := f.selector.SelectExercise(ctx, "P", "cocina", "")
	require.NoError(t, err)
	assert.Equal(t, "E1A2B3_P", sel.Exercise.ID)

	// Repeating overwrites the same entry.
	_, _, err = f.authoring.Personalize(ctx, "E1A2B3", "P")
	require.NoError(t, err)
	all, err := f.exercises.Find(ctx, repository.ExerciseFilter{Context: "cocina"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// Another patient never gets it as new work.
	_, err = f.assigner.Complete(ctx, "P", "E1A2B3_P", "cocina", nil)
	require.NoError(t, err)
	sel, err = f.selector.SelectExercise(ctx, "Q", "cocina", "")
	require.NoError(t, err)
	assert.Equal(t, "E1A2B3", sel.Exercise.ID)
}

func TestPersonalize_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})
	f.seed(t, "E1", "cocina", "cortar")

	_, _, err := f.authoring.Personalize(ctx, "NOPE", "P")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = f.authoring.Personalize(ctx, "E1", "P")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.profiles.UpsertPatient(ctx, "P", "Ana", map[string]any{"name": "Ana"})
	require.NoError(t, err)
	f.generator.Err = generation.ErrUnavailable
	_, _, err = f.authoring.Personalize(ctx, "E1", "P")
	assert.ErrorIs(t, err, ErrUpstreamGeneration)

	_, err = f.exercises.GetByID(ctx, "E1_P")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.assignments.Get(ctx, "P", "E1_P")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateSRForPatient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})
	_, err := f.profiles.UpsertPatient(ctx, "P", "Ana", map[string]any{"ciudad": "Cali", "hija": "Lucía"})
	require.NoError(t, err)

	created, err := f.authoring.CreateSRForPatient(ctx, "P")
	require.NoError(t, err)
	require.Len(t, created, 2)

	for _, ex := range created {
		assert.Equal(t, domain.TherapySR, ex.TherapyType)
		assert.Equal(t, domain.VisibilityPrivate, ex.Visibility)
		assert.True(t, ex.OwnedBy("P"))

		a, err := f.assignments.Get(ctx, "P", ex.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SRContext, a.Context)
		assert.NotNil(t, a.SRCard)
	}

	sel, err := f.selector.SelectExercise(ctx, "P", domain.SRContext, "")
	require.NoError(t, err)
	assert.Equal(t, SourcePending, sel.Source)
	assert.NotNil(t, sel.Exercise.SR)
}

func TestCreateSRForPatient_NeedsProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})

	_, err := f.authoring.CreateSRForPatient(ctx, "P")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.profiles.UpsertPatient(ctx, "P", "Ana", nil)
	require.NoError(t, err)
	_, err = f.authoring.CreateSRForPatient(ctx, "P")
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestUpdateExercise(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})
	f.seed(t, "E1", "cocina", "cortar")

	content := *vnestContent("cortar")
	content.Level = ""
	content.Pairs[0].Subject = "  panadero  "
	content.Pairs[0].Expansions.Where = domain.Question{Options: []string{" horno ", "mar", "luna", "cielo"}, Correct: "horno "}
	ctxName := "panadería"
	ex, err := f.authoring.UpdateExercise(ctx, "E1", ExerciseUpdate{Context: &ctxName, VNEST: &content})
	require.NoError(t, err)
	assert.Equal(t, "panadería", ex.Context)
	assert.Equal(t, "panadero", ex.VNEST.Pairs[0].Subject)
	assert.Equal(t, "horno", ex.VNEST.Pairs[0].Expansions.Where.Correct)
	assert.Equal(t, domain.LevelEasy, ex.VNEST.Level)

	short := *vnestContent("cortar")
	short.Sentences = short.Sentences[:9]
	_, err = f.authoring.UpdateExercise(ctx, "E1", ExerciseUpdate{VNEST: &short})
	assert.ErrorIs(t, err, ErrValidationFailed)

	stored, err := f.exercises.GetByID(ctx, "E1")
	require.NoError(t, err)
	assert.Len(t, stored.VNEST.Sentences, domain.SentenceCount)

	_, err = f.authoring.UpdateExercise(ctx, "E1", ExerciseUpdate{SR: &domain.SRContent{Question: "q", Answer: "a"}})
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = f.authoring.UpdateExercise(ctx, "NOPE", ExerciseUpdate{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateExercise_AssignmentsFollowVerbAndContextEdits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})
	f.seed(t, "PX", "kitchen", "peel", personalizedFor("P"))
	f.seed(t, "A", "kitchen", "stir")

	_, err := f.assigner.Assign(ctx, "P", "PX", "")
	require.NoError(t, err)
	_, err = f.assigner.Assign(ctx, "Q", "PX", "")
	require.NoError(t, err)

	verb := "cortar"
	_, err = f.authoring.UpdateExercise(ctx, "PX", ExerciseUpdate{Verb: &verb})
	require.NoError(t, err)

	verbs, err := f.selector.ListVerbsForContext(ctx, "kitchen", "P")
	require.NoError(t, err)
	assert.Contains(t, verbs, VerbHighlight{Verb: "cortar", Highlight: true})

	sel, err := f.selector.SelectExercise(ctx, "P", "kitchen", "cortar")
	require.NoError(t, err)
	assert.Equal(t, "PX", sel.Exercise.ID)
	assert.Equal(t, SourcePending, sel.Source)
	assert.Equal(t, "cortar", sel.Assignment.Verb)

	_, err = f.selector.SelectExercise(ctx, "P", "kitchen", "peel")
	assert.ErrorIs(t, err, ErrNotFound)

	garden := "garden"
	_, err = f.authoring.UpdateExercise(ctx, "PX", ExerciseUpdate{Context: &garden})
	require.NoError(t, err)

	sel, err = f.selector.SelectExercise(ctx, "P", "garden", "")
	require.NoError(t, err)
	assert.Equal(t, "PX", sel.Exercise.ID)
	assert.Equal(t, SourcePending, sel.Source)

	// Other patients holding the exercise move too.
	other, err := f.assignments.Get(ctx, "Q", "PX")
	require.NoError(t, err)
	assert.Equal(t, "garden", other.Context)
	assert.Equal(t, "cortar", other.Verb)

	// The kitchen no longer serves it.
	sel, err = f.selector.SelectExercise(ctx, "P", "kitchen", "")
	require.NoError(t, err)
	assert.Equal(t, "A", sel.Exercise.ID)
}

func TestMarkReviewedAndList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})
	f.seed(t, "E1", "cocina", "cortar")
	f.seed(t, "E2", "cocina", "batir")

	ex, err := f.authoring.MarkReviewed(ctx, "E2", true)
	require.NoError(t, err)
	assert.True(t, ex.Reviewed)

	reviewed := false
	pending, err := f.authoring.ListExercises(ctx, repository.ExerciseFilter{Reviewed: &reviewed})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "E1", pending[0].ID)

	_, err = f.authoring.MarkReviewed(ctx, "NOPE", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertPatient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})

	p, err := f.profiles.UpsertPatient(ctx, "P", " Ana ", map[string]any{"hobby": "pintar"})
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.Name)
	assert.Equal(t, "pintar", p.Profile["hobby"])

	_, err = f.profiles.UpsertPatient(ctx, "a/b", "X", nil)
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = f.profiles.GetPatient(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStructureProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})

	_, err := f.profiles.UpsertPatient(ctx, "P", "", map[string]any{"hobby": "pintar"})
	require.NoError(t, err)

	p, err := f.profiles.StructureProfile(ctx, "P", "nombre: Ana\nciudad: Cali\nPasea al perro cada tarde")
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.Name)
	assert.Equal(t, "nombre: Ana\nciudad: Cali\nPasea al perro cada tarde", p.ProfileNotes)
	require.NotNil(t, p.StructuredProfile)
	assert.Equal(t, "Cali", p.StructuredProfile.Personal.City)
	assert.Equal(t, "pintar", p.Profile["hobby"])
	assert.Equal(t, "Cali", p.Profile["city"])
	assert.Contains(t, p.Profile, "routines")

	// A later plain profile edit keeps the notes.
	p, err = f.profiles.UpsertPatient(ctx, "P", "Ana", p.Profile)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ProfileNotes)
	assert.NotNil(t, p.StructuredProfile)

	// The structured sections feed SR generation.
	cards, err := f.authoring.CreateSRForPatient(ctx, "P")
	require.NoError(t, err)
	assert.NotEmpty(t, cards)

	created, err := f.profiles.StructureProfile(ctx, "NEW", "nombre: Luis")
	require.NoError(t, err)
	assert.Equal(t, "Luis", created.Name)
}

func TestStructureProfile_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})

	_, err := f.profiles.StructureProfile(ctx, "P", "   ")
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = f.profiles.StructureProfile(ctx, "a/b", "nombre: Ana")
	assert.ErrorIs(t, err, ErrValidationFailed)

	f.generator.Err = generation.ErrUnavailable
	_, err = f.profiles.StructureProfile(ctx, "P", "nombre: Ana")
	assert.ErrorIs(t, err, ErrUpstreamGeneration)
	assert.ErrorIs(t, err, generation.ErrUnavailable)

	_, err = f.profiles.GetPatient(ctx, "P")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPatients(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})

	for _, id := range []string{"zeta", "alfa", "mid"} {
		_, err := f.profiles.UpsertPatient(ctx, id, id, nil)
		require.NoError(t, err)
	}
	patients, err := f.profiles.ListPatients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 3)
	assert.Equal(t, []string{"zeta", "alfa", "mid"}, []string{patients[0].ID, patients[1].ID, patients[2].ID})
}
