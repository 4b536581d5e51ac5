package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Service is a top-level catalog entry (e.g. Home Maintenance)
type Service struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	Icon        string             `json:"icon,omitempty" bson:"icon,omitempty"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
}

// SubService belongs to exactly one Service
type SubService struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	ArabicName  string             `json:"arabicName,omitempty" bson:"arabicName,omitempty"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	ServiceID   primitive.ObjectID `json:"service" bson:"service"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
}

// DisplayName prefers the Arabic name used in push copy
func (s *SubService) DisplayName() string {
	if s.ArabicName != "" {
		return s.ArabicName
	}
	return s.Name
}
