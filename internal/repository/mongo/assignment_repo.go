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

const assignmentCollectionName = "assignments"

// mongoAssignmentRepository implements repository.AssignmentRepository.
// Every document is keyed "<patientId>/<exerciseId>", which scopes the
// records per patient and keeps a single record per exercise.
type mongoAssignmentRepository struct {
	collection *mongo.Collection
}

// NewMongoAssignmentRepository creates a new Assignment repository backed by MongoDB.
func NewMongoAssignmentRepository(db *mongo.Database) repository.AssignmentRepository {
	return &mongoAssignmentRepository{
		collection: db.Collection(assignmentCollectionName),
	}
}

// Put writes the assignment, replacing any earlier record for the same exercise.
func (r *mongoAssignmentRepository) Put(ctx context.Context, assignment *domain.Assignment) error {
	if assignment.PatientID == "" || assignment.ExerciseID == "" {
		return errors.New("assignment requires patientId and exerciseId")
	}

	assignment.ID = domain.AssignmentID(assignment.PatientID, assignment.ExerciseID)
	now := time.Now().UTC()
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = now
	}
	assignment.UpdatedAt = now

	filter := bson.M{"_id": assignment.ID}
	_, err := r.collection.ReplaceOne(ctx, filter, assignment, options.Replace().SetUpsert(true))
	return err
}

// Get retrieves a patient's assignment for one exercise.
func (r *mongoAssignmentRepository) Get(ctx context.Context, patientID, exerciseID string) (*domain.Assignment, error) {
	var assignment domain.Assignment
	filter := bson.M{"_id": domain.AssignmentID(patientID, exerciseID)}

	err := r.collection.FindOne(ctx, filter).Decode(&assignment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &assignment, nil
}

// ListByPatient retrieves a patient's assignments, sorted by priority then exercise ID.
func (r *mongoAssignmentRepository) ListByPatient(ctx context.Context, patientID string, f repository.AssignmentFilter) ([]domain.Assignment, error) {
	assignments := []domain.Assignment{}
	filter := bson.M{"patientId": patientID}
	if f.Context != "" {
		filter["context"] = f.Context
	}
	if f.Verb != "" {
		filter["verb"] = f.Verb
	}
	if f.State != "" {
		filter["state"] = f.State
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "priority", Value: 1}, {Key: "exerciseId", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}

// Update modifies the lifecycle fields of an existing assignment.
func (r *mongoAssignmentRepository) Update(ctx context.Context, assignment *domain.Assignment) error {
	if assignment.PatientID == "" || assignment.ExerciseID == "" {
		return errors.New("assignment requires patientId and exerciseId")
	}

	assignment.UpdatedAt = time.Now().UTC()
	filter := bson.M{"_id": domain.AssignmentID(assignment.PatientID, assignment.ExerciseID)}
	update := bson.M{
		"$set": bson.M{
			"state":           assignment.State,
			"priority":        assignment.Priority,
			"timesCompleted":  assignment.TimesCompleted,
			"lastCompletedAt": assignment.LastCompletedAt,
			"srCard":          assignment.SRCard,
			"updatedAt":       assignment.UpdatedAt,
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

// MaxPriority returns the highest priority the patient holds, 0 when none.
func (r *mongoAssignmentRepository) MaxPriority(ctx context.Context, patientID string) (int, error) {
	var top struct {
		Priority int `bson:"priority"`
	}
	findOptions := options.FindOne().
		SetSort(bson.D{{Key: "priority", Value: -1}}).
		SetProjection(bson.M{"priority": 1})

	err := r.collection.FindOne(ctx, bson.M{"patientId": patientID}, findOptions).Decode(&top)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, err
	}
	return top.Priority, nil
}

// SyncExerciseRefs copies an edited catalog context and verb onto the assignments of that exercise.
func (r *mongoAssignmentRepository) SyncExerciseRefs(ctx context.Context, exerciseID, exerciseContext, verb string) (int, error) {
	filter := bson.M{
		"exerciseId": exerciseID,
		"$or": bson.A{
			bson.M{"context": bson.M{"$ne": exerciseContext}},
			bson.M{"verb": bson.M{"$ne": verb}},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"context":   exerciseContext,
			"verb":      verb,
			"updatedAt": time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return int(result.ModifiedCount), nil
}

// EnsureAssignmentIndexes creates necessary indexes for the assignments collection.
func EnsureAssignmentIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Selection: a patient's assignments in one context
			Keys:    bson.D{{Key: "patientId", Value: 1}, {Key: "context", Value: 1}, {Key: "state", Value: 1}},
			Options: options.Index(),
		},
		{
			// Next priority lookup
			Keys:    bson.D{{Key: "patientId", Value: 1}, {Key: "priority", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "patientId", Value: 1}, {Key: "exerciseId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Catalog edits fan out to every patient holding the exercise
			Keys:    bson.D{{Key: "exerciseId", Value: 1}},
			Options: options.Index(),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
