package callsRepo

import (
	"cabgo/database"
	"cabgo/models"
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

type CallRecordRepository interface {
	Create(ctx context.Context, record models.CallRecord) (string, error)
	GetByID(ctx context.Context, id string) (*models.CallRecord, error)
	GetBySessionID(ctx context.Context, sessionID string) (*models.CallRecord, error)
	GetByLanguage(ctx context.Context, lang models.Language) ([]models.CallRecord, error)
	DeleteByID(ctx context.Context, id string) error
}

type mongoCallRepo struct {
	coll *mongo.Collection
}

// NewMongoCallRepo returns a new CallRecordRepository instance using MongoDB.
func NewMongoCallRepo() CallRecordRepository {
	db := database.MongoClient.Database("cabgo")
	return &mongoCallRepo{
		coll: db.Collection("call_records"),
	}
}
