package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sa3tha/sa3tha_backend/models"
)

type ContactRepository struct {
	collection *mongo.Collection
}

func NewContactRepository(db *mongo.Database) *ContactRepository {
	return &ContactRepository{
		collection: db.Collection(ContactsCollection),
	}
}

func (r *ContactRepository) Insert(ctx context.Context, c *models.ContactRequest) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, c)
	return err
}

func (r *ContactRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.ContactRequest, error) {
	var c models.ContactRequest
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ApplyExpertResponse records the expert's answer only if no answer exists yet
func (r *ContactRepository) ApplyExpertResponse(ctx context.Context, id primitive.ObjectID, hasDeal bool, at time.Time) (bool, error) {
	filter := bson.M{
		"_id":            id,
		"status":         models.ContactInitiated,
		"expertResponse": bson.M{"$exists": false},
	}
	update := bson.M{"$set": bson.M{
		"expertResponse":   hasDeal,
		"expertResponseAt": at,
		"updatedAt":        at,
	}}
	return r.updateOne(ctx, filter, update)
}

// ApplyCustomerResponse moves an initiated contact to its terminal status
func (r *ContactRepository) ApplyCustomerResponse(ctx context.Context, id primitive.ObjectID, upd models.CustomerResponseUpdate) (bool, error) {
	set := bson.M{
		"status":             upd.Status,
		"customerResponseAt": upd.RespondedAt,
		"updatedAt":          upd.RespondedAt,
	}
	if upd.DealDate != nil {
		set["dealDate"] = *upd.DealDate
	}
	if upd.NoDeal {
		set["customerConfirmedNoDeal"] = true
	}
	filter := bson.M{"_id": id, "status": models.ContactInitiated}
	return r.updateOne(ctx, filter, bson.M{"$set": set})
}

func (r *ContactRepository) MarkReviewed(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	filter := bson.M{
		"_id":        id,
		"status":     models.ContactConfirmed,
		"isReviewed": bson.M{"$ne": true},
	}
	update := bson.M{"$set": bson.M{"isReviewed": true, "updatedAt": at}}
	return r.updateOne(ctx, filter, update)
}

func (r *ContactRepository) FindDueExpertChecks(ctx context.Context, createdBefore time.Time, limit int64) ([]models.ContactRequest, error) {
	filter := bson.M{
		"status":            models.ContactInitiated,
		"createdAt":         bson.M{"$lte": createdBefore},
		"expertCheckSentAt": bson.M{"$exists": false},
	}
	return r.find(ctx, filter, limit)
}

// ClaimExpertCheck stamps expertCheckSentAt if it is still unset. Only the
// caller that wins the claim may send the expert prompt.
func (r *ContactRepository) ClaimExpertCheck(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	at = at.Truncate(time.Millisecond)
	filter := bson.M{"_id": id, "expertCheckSentAt": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{"expertCheckSentAt": at, "updatedAt": at}}
	return r.updateOne(ctx, filter, update)
}

// ReleaseExpertCheck undoes a claim made at `at` so the next tick retries
func (r *ContactRepository) ReleaseExpertCheck(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	filter := bson.M{"_id": id, "expertCheckSentAt": at.Truncate(time.Millisecond)}
	_, err := r.collection.UpdateOne(ctx, filter, bson.M{"$unset": bson.M{"expertCheckSentAt": ""}})
	return err
}

func (r *ContactRepository) FindDueReviewRequests(ctx context.Context, dealBefore time.Time, limit int64) ([]models.ContactRequest, error) {
	filter := bson.M{
		"status":                  models.ContactConfirmed,
		"dealDate":                bson.M{"$lte": dealBefore},
		"customerReviewRequested": bson.M{"$ne": true},
	}
	return r.find(ctx, filter, limit)
}

func (r *ContactRepository) ClaimReviewRequest(ctx context.Context, id primitive.ObjectID) (bool, error) {
	filter := bson.M{"_id": id, "customerReviewRequested": bson.M{"$ne": true}}
	update := bson.M{"$set": bson.M{"customerReviewRequested": true, "updatedAt": time.Now()}}
	return r.updateOne(ctx, filter, update)
}

func (r *ContactRepository) ReleaseReviewRequest(ctx context.Context, id primitive.ObjectID) error {
	filter := bson.M{"_id": id, "customerReviewRequested": true}
	_, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"customerReviewRequested": false}})
	return err
}

func (r *ContactRepository) FindStaleInitiated(ctx context.Context, createdBefore time.Time) ([]models.ContactRequest, error) {
	filter := bson.M{
		"status":    models.ContactInitiated,
		"createdAt": bson.M{"$lt": createdBefore},
	}
	return r.find(ctx, filter, 0)
}

func (r *ContactRepository) find(ctx context.Context, filter bson.M, limit int64) ([]models.ContactRequest, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if limit > 0 {
		findOptions.SetLimit(limit)
	}

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var contacts []models.ContactRequest
	if err := cursor.All(ctx, &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

func (r *ContactRepository) updateOne(ctx context.Context, filter, update bson.M) (bool, error) {
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.MatchedCount == 1, nil
}
