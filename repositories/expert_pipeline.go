package repositories

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sa3tha/sa3tha_backend/models"
)

// ExpertQuery selects available experts offering a set of sub-services.
// Near and Governorate are mutually exclusive; Near wins when both are set.
type ExpertQuery struct {
	SubServiceIDs []primitive.ObjectID
	Near          *models.GeoPoint
	MaxDistanceKm float64
	Governorate   string
	SortByRating  bool
	Limit         int64
}

// buildExpertPipeline translates q into an aggregation. $geoNear must be the
// first stage, so the expert filter rides in its query field.
func buildExpertPipeline(q ExpertQuery) mongo.Pipeline {
	match := bson.M{
		"role":                      models.RoleExpert,
		"expertProfile.isAvailable": true,
	}
	if len(q.SubServiceIDs) > 0 {
		match["expertProfile.serviceTypes.subServiceId"] = bson.M{"$in": q.SubServiceIDs}
	}

	var pipeline mongo.Pipeline
	switch {
	case q.Near != nil:
		pipeline = append(pipeline, bson.D{{Key: "$geoNear", Value: bson.M{
			"near": bson.M{
				"type":        "Point",
				"coordinates": bson.A{q.Near.Lon, q.Near.Lat},
			},
			"distanceField":      "distance",
			"maxDistance":        q.MaxDistanceKm * 1000,
			"distanceMultiplier": 0.001,
			"spherical":          true,
			"key":                "location",
			"query":              match,
		}}})
	case q.Governorate != "":
		match["$or"] = bson.A{
			bson.M{"governorate": q.Governorate},
			bson.M{"location.governorate": q.Governorate},
		}
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	default:
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	}

	if q.SortByRating {
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: bson.D{
			{Key: "expertProfile.averageRating", Value: -1},
			{Key: "_id", Value: 1},
		}}})
	}
	if q.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: q.Limit}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$project", Value: bson.M{
		"fcmToken": 0,
		"distance": 0,
	}}})
	return pipeline
}
