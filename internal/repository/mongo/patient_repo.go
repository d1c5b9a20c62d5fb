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

const patientCollectionName = "patients"

// mongoPatientRepository implements the repository.PatientRepository interface using MongoDB.
type mongoPatientRepository struct {
	collection *mongo.Collection
}

// NewMongoPatientRepository creates a new instance of mongoPatientRepository.
func NewMongoPatientRepository(db *mongo.Database) repository.PatientRepository {
	return &mongoPatientRepository{
		collection: db.Collection(patientCollectionName),
	}
}

// GetByID retrieves a patient by ID.
func (r *mongoPatientRepository) GetByID(ctx context.Context, id string) (*domain.Patient, error) {
	var patient domain.Patient
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&patient)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &patient, nil
}

// Upsert creates the patient or replaces its name and profile. The profile
// notes and their structured form are only written when present.
func (r *mongoPatientRepository) Upsert(ctx context.Context, patient *domain.Patient) error {
	if patient.ID == "" {
		return errors.New("patient ID is required")
	}

	now := time.Now().UTC()
	patient.UpdatedAt = now
	filter := bson.M{"_id": patient.ID}
	set := bson.M{
		"name":      patient.Name,
		"profile":   patient.Profile,
		"updatedAt": now,
	}
	if patient.ProfileNotes != "" {
		set["profileNotes"] = patient.ProfileNotes
	}
	if patient.StructuredProfile != nil {
		set["structuredProfile"] = patient.StructuredProfile
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"createdAt": now},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// List returns all patients in creation order, the way the therapist dashboard shows them.
func (r *mongoPatientRepository) List(ctx context.Context) ([]domain.Patient, error) {
	patients := []domain.Patient{}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &patients); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return patients, nil
}

// EnsurePatientIndexes creates necessary indexes for the patients collection.
func EnsurePatientIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		// Dashboard listing
		Keys:    bson.D{{Key: "createdAt", Value: 1}},
		Options: options.Index(),
	})
	return err
}
