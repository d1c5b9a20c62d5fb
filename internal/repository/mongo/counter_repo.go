package mongo

import (
	"apphasia/exercise-engine/internal/repository"
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const counterCollectionName = "patient_counters"

type mongoCounterRepository struct {
	collection *mongo.Collection
}

// NewMongoCounterRepository creates a sequence counter store backed by MongoDB.
func NewMongoCounterRepository(db *mongo.Database) repository.CounterRepository {
	return &mongoCounterRepository{
		collection: db.Collection(counterCollectionName),
	}
}

// Advance runs a single pipeline update, seq = max(seq, floor) + 1, so two
// concurrent callers can never observe the same value.
func (r *mongoCounterRepository) Advance(ctx context.Context, key string, floor int) (int, error) {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "seq", Value: bson.D{
				{Key: "$add", Value: bson.A{
					bson.D{{Key: "$max", Value: bson.A{"$seq", floor}}},
					1,
				}},
			}},
		}}},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc struct {
		Seq int `bson:"seq"`
	}
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": key}, update, opts).Decode(&doc); err != nil {
		return 0, err
	}
	return doc.Seq, nil
}
