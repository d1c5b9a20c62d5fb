package mongo

import (
	"apphasia/exercise-engine/internal/domain"
	"apphasia/exercise-engine/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const exerciseCollectionName = "exercises"

// mongoExerciseRepository implements repository.ExerciseRepository
type mongoExerciseRepository struct {
	collection *mongo.Collection
}

// NewMongoExerciseRepository creates a new catalog repository backed by MongoDB.
func NewMongoExerciseRepository(db *mongo.Database) repository.ExerciseRepository {
	return &mongoExerciseRepository{
		collection: db.Collection(exerciseCollectionName),
	}
}

// Create inserts a new catalog exercise. The caller chooses the ID.
func (r *mongoExerciseRepository) Create(ctx context.Context, exercise *domain.CatalogExercise) error {
	if err := exercise.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	exercise.CreatedAt = now
	exercise.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, exercise)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrConflict
		}
		return err
	}
	return nil
}

// Save inserts the exercise or replaces the stored one with the same ID.
// Personalizing the same base exercise twice for a patient lands here.
func (r *mongoExerciseRepository) Save(ctx context.Context, exercise *domain.CatalogExercise) error {
	if err := exercise.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if exercise.CreatedAt.IsZero() {
		exercise.CreatedAt = now
	}
	exercise.UpdatedAt = now

	filter := bson.M{"_id": exercise.ID}
	_, err := r.collection.ReplaceOne(ctx, filter, exercise, options.Replace().SetUpsert(true))
	return err
}

// GetByID retrieves a catalog exercise by its ID.
func (r *mongoExerciseRepository) GetByID(ctx context.Context, id string) (*domain.CatalogExercise, error) {
	var exercise domain.CatalogExercise
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&exercise)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &exercise, nil
}

// Find scans the catalog with equality filters.
// Unreviewed exercises come first, then by verb, then by ID.
func (r *mongoExerciseRepository) Find(ctx context.Context, f repository.ExerciseFilter) ([]domain.CatalogExercise, error) {
	exercises := []domain.CatalogExercise{}
	findOptions := options.Find().SetSort(bson.D{
		{Key: "reviewed", Value: 1},
		{Key: "verb", Value: 1},
		{Key: "_id", Value: 1},
	})

	cursor, err := r.collection.Find(ctx, exerciseFilterDoc(f), findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &exercises); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return exercises, nil
}

func exerciseFilterDoc(f repository.ExerciseFilter) bson.M {
	filter := bson.M{}
	if f.Context != "" {
		filter["context"] = f.Context
	}
	if f.Verb != "" {
		filter["verb"] = f.Verb
	}
	if f.TherapyType != "" {
		filter["therapyType"] = f.TherapyType
	}
	if f.Reviewed != nil {
		filter["reviewed"] = *f.Reviewed
	}
	return filter
}

// Update modifies the editable parts of an exercise: verb, context and payload.
// Ownership and personalization metadata never change after creation.
func (r *mongoExerciseRepository) Update(ctx context.Context, exercise *domain.CatalogExercise) error {
	if exercise.ID == "" {
		return errors.New("exercise ID is required for update")
	}

	filter := bson.M{"_id": exercise.ID}
	update := bson.M{
		"$set": bson.M{
			"context":        exercise.Context,
			"verb":           exercise.Verb,
			"vnest":          exercise.VNEST,
			"sr":             exercise.SR,
			"adaptationNote": exercise.AdaptationNote,
			"updatedAt":      time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetReviewed flips the therapist approval flag.
func (r *mongoExerciseRepository) SetReviewed(ctx context.Context, id string, reviewed bool) error {
	return r.setFields(ctx, id, bson.M{"reviewed": reviewed})
}

// SetArchiveKey records where the exercise payload was archived.
func (r *mongoExerciseRepository) SetArchiveKey(ctx context.Context, id, key string) error {
	return r.setFields(ctx, id, bson.M{"archiveKey": key})
}

func (r *mongoExerciseRepository) setFields(ctx context.Context, id string, fields bson.M) error {
	fields["updatedAt"] = time.Now().UTC()
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureExerciseIndexes creates necessary indexes for the exercises collection.
func EnsureExerciseIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Selection scans by context, optionally narrowed by verb
			Keys:    bson.D{{Key: "context", Value: 1}, {Key: "verb", Value: 1}},
			Options: options.Index(),
		},
		{
			// Verb inventory scans VNEST entries of a context
			Keys:    bson.D{{Key: "therapyType", Value: 1}, {Key: "context", Value: 1}},
			Options: options.Index(),
		},
		{
			// Review queue
			Keys:    bson.D{{Key: "reviewed", Value: 1}, {Key: "verb", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "ownerPatientId", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
