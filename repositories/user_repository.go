package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sa3tha/sa3tha_backend/models"
)

const maxRatingAttempts = 5

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		collection: db.Collection(UsersCollection),
	}
}

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindExperts(ctx context.Context, q ExpertQuery) ([]models.User, error) {
	cursor, err := r.collection.Aggregate(ctx, buildExpertPipeline(q))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var experts []models.User
	if err := cursor.All(ctx, &experts); err != nil {
		return nil, err
	}
	return experts, nil
}

func (r *UserRepository) RecordLastSearch(ctx context.Context, id primitive.ObjectID, search models.LastSearch) error {
	return r.set(ctx, id, bson.M{"lastSearch": search})
}

func (r *UserRepository) ClearLastSearch(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$unset": bson.M{"lastSearch": ""},
			"$set":   bson.M{"updatedAt": time.Now()},
		},
	)
	return err
}

func (r *UserRepository) SetFCMToken(ctx context.Context, id primitive.ObjectID, token string) error {
	return r.set(ctx, id, bson.M{"fcmToken": token})
}

// SetLocation stores the governorate at the top level and, when point is
// set, a bare GeoJSON point under location
func (r *UserRepository) SetLocation(ctx context.Context, id primitive.ObjectID, point *models.GeoPoint, governorate string) error {
	update := bson.M{}
	set := bson.M{"updatedAt": time.Now()}
	if governorate != "" {
		set["governorate"] = governorate
	} else {
		update["$unset"] = bson.M{"governorate": ""}
	}
	if point != nil {
		set["location"] = models.NewUserLocation(*point, "")
	} else {
		unset, _ := update["$unset"].(bson.M)
		if unset == nil {
			unset = bson.M{}
		}
		unset["location.governorate"] = ""
		update["$unset"] = unset
	}
	update["$set"] = set

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetAvailability(ctx context.Context, id primitive.ObjectID, available bool) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "role": models.RoleExpert},
		bson.M{"$set": bson.M{"expertProfile.isAvailable": available, "updatedAt": time.Now()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyRating folds rating into the expert's running average. The update is
// conditional on the count read, and retried when another review got there first.
func (r *UserRepository) ApplyRating(ctx context.Context, expertID primitive.ObjectID, rating int) (models.RatingSummary, error) {
	for attempt := 0; attempt < maxRatingAttempts; attempt++ {
		expert, err := r.FindByID(ctx, expertID)
		if err != nil {
			return models.RatingSummary{}, err
		}
		if !expert.IsExpert() {
			return models.RatingSummary{}, ErrNotFound
		}

		var oldAvg float64
		var oldCount int
		if expert.ExpertProfile != nil {
			oldAvg = expert.ExpertProfile.AverageRating
			oldCount = expert.ExpertProfile.RatingCount
		}
		newAvg, newCount := models.IncrementalAverage(oldAvg, oldCount, rating)

		filter := bson.M{"_id": expertID, "expertProfile.ratingCount": oldCount}
		if oldCount == 0 {
			filter = bson.M{"_id": expertID, "$or": bson.A{
				bson.M{"expertProfile.ratingCount": 0},
				bson.M{"expertProfile.ratingCount": bson.M{"$exists": false}},
			}}
		}
		result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
			"expertProfile.averageRating": newAvg,
			"expertProfile.ratingCount":   newCount,
			"updatedAt":                   time.Now(),
		}})
		if err != nil {
			return models.RatingSummary{}, err
		}
		if result.MatchedCount == 1 {
			return models.RatingSummary{AverageRating: newAvg, RatingCount: newCount}, nil
		}
	}
	return models.RatingSummary{}, ErrWriteConflict
}

// FindSuggestionCandidates returns users with a recorded search whose last
// suggestion is older than suggestedBefore (or who never got one)
func (r *UserRepository) FindSuggestionCandidates(ctx context.Context, suggestedBefore time.Time) ([]models.User, error) {
	filter := bson.M{
		"lastSearch.timestamp": bson.M{"$exists": true},
		"$or": bson.A{
			bson.M{"lastSuggestionSentAt": bson.M{"$exists": false}},
			bson.M{"lastSuggestionSentAt": nil},
			bson.M{"lastSuggestionSentAt": bson.M{"$lte": suggestedBefore}},
		},
	}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) MarkSuggestionSent(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return r.set(ctx, id, bson.M{"lastSuggestionSentAt": at})
}

func (r *UserRepository) set(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	fields["updatedAt"] = time.Now()
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
