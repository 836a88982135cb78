package callsRepo

import (
	"cabgo/models"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Create inserts a finished call record and returns its ID.
func (r *mongoCallRepo) Create(ctx context.Context, record models.CallRecord) (string, error) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	record.CreatedAt = time.Now()

	_, err := r.coll.InsertOne(ctx, record)
	if err != nil {
		return "", err
	}
	return record.ID, nil
}

// GetByID returns a call record by its ID.
func (r *mongoCallRepo) GetByID(ctx context.Context, id string) (*models.CallRecord, error) {
	var record models.CallRecord
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&record)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetBySessionID returns the most recent record for a call session.
func (r *mongoCallRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.CallRecord, error) {
	opts := options.FindOne().SetSort(bson.M{"createdAt": -1})
	var record models.CallRecord
	err := r.coll.FindOne(ctx, bson.M{"sessionId": sessionID}, opts).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetByLanguage fetches all records for calls held in a specific language.
func (r *mongoCallRepo) GetByLanguage(ctx context.Context, lang models.Language) ([]models.CallRecord, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"language": lang})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []models.CallRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteByID removes a call record by ID.
func (r *mongoCallRepo) DeleteByID(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return errors.New("call record not found")
	}
	return nil
}
