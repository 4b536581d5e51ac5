package repositories

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sa3tha/sa3tha_backend/models"
)

type CatalogRepository struct {
	services    *mongo.Collection
	subServices *mongo.Collection
}

func NewCatalogRepository(db *mongo.Database) *CatalogRepository {
	return &CatalogRepository{
		services:    db.Collection(ServicesCollection),
		subServices: db.Collection(SubServicesCollection),
	}
}

func (r *CatalogRepository) FindService(ctx context.Context, id primitive.ObjectID) (*models.Service, error) {
	var service models.Service
	err := r.services.FindOne(ctx, bson.M{"_id": id}).Decode(&service)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &service, nil
}

func (r *CatalogRepository) FindSubService(ctx context.Context, id primitive.ObjectID) (*models.SubService, error) {
	var sub models.SubService
	err := r.subServices.FindOne(ctx, bson.M{"_id": id}).Decode(&sub)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// SubServiceIDsByService lists the ids of every sub-service under serviceID
func (r *CatalogRepository) SubServiceIDsByService(ctx context.Context, serviceID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cursor, err := r.subServices.Find(ctx,
		bson.M{"service": serviceID},
		options.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}
