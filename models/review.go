package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Review model, at most one per contact request
type Review struct {
	ID               primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	CustomerID       primitive.ObjectID `json:"customer" bson:"customer"`
	ExpertID         primitive.ObjectID `json:"expert" bson:"expert"`
	ContactRequestID primitive.ObjectID `json:"contactRequest" bson:"contactRequest"`
	Rating           int                `json:"rating" bson:"rating"`
	Comment          string             `json:"comment,omitempty" bson:"comment,omitempty"`
	CreatedAt        time.Time          `json:"createdAt" bson:"createdAt"`
}

// RatingSummary is an expert's aggregated rating after a review
type RatingSummary struct {
	AverageRating float64 `json:"averageRating"`
	RatingCount   int     `json:"ratingCount"`
}
