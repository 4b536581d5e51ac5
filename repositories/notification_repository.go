package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sa3tha/sa3tha_backend/models"
)

type NotificationRepository struct {
	collection *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{
		collection: db.Collection(NotificationsCollection),
	}
}

func (r *NotificationRepository) Insert(ctx context.Context, n *models.Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, n)
	return err
}

// DeleteByKey removes every outstanding prompt matching key
func (r *NotificationRepository) DeleteByKey(ctx context.Context, key models.DedupKey) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{
		"recipient":      key.RecipientID,
		"data.contactId": key.ContactID,
		"data.type":      string(key.Type),
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// ListByRecipient returns one page, newest first, and the recipient's total
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipient primitive.ObjectID, skip, limit int64) ([]models.Notification, int64, error) {
	filter := bson.M{"recipient": recipient}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	notifications := []models.Notification{}
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}
