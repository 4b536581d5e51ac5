// models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role of an account
type Role string

const (
	RoleCustomer Role = "customer"
	RoleExpert   Role = "expert"
	RoleAdmin    Role = "admin"
)

// User model. Customers and experts share the collection; expert-only data
// lives under ExpertProfile.
type User struct {
	ID                   primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name                 string             `json:"name" bson:"name"`
	Phone                string             `json:"phone,omitempty" bson:"phone,omitempty"`
	Whatsapp             string             `json:"whatsapp,omitempty" bson:"whatsapp,omitempty"`
	Email                string             `json:"email,omitempty" bson:"email,omitempty"`
	ImageURL             string             `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
	Role                 Role               `json:"role" bson:"role"`
	FCMToken             string             `json:"-" bson:"fcmToken,omitempty"`
	Location             *UserLocation      `json:"location,omitempty" bson:"location,omitempty"`
	Governorate          string             `json:"governorate,omitempty" bson:"governorate,omitempty"`
	ExpertProfile        *ExpertProfile     `json:"expertProfile,omitempty" bson:"expertProfile,omitempty"`
	LastSearch           *LastSearch        `json:"lastSearch,omitempty" bson:"lastSearch,omitempty"`
	LastSuggestionSentAt *time.Time         `json:"lastSuggestionSentAt,omitempty" bson:"lastSuggestionSentAt,omitempty"`
	CreatedAt            time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt            time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// IsExpert reports whether the user holds the expert role
func (u *User) IsExpert() bool {
	return u != nil && u.Role == RoleExpert
}

// Region returns the user's governorate. Older documents kept it inside the
// location subdocument.
func (u *User) Region() string {
	if u == nil {
		return ""
	}
	if u.Governorate != "" {
		return u.Governorate
	}
	if u.Location != nil {
		return u.Location.Governorate
	}
	return ""
}

// UserLocation is a GeoJSON point plus the governorate it resolved to.
// Coordinates are [longitude, latitude] so the 2dsphere index can use them.
// On users the governorate lives on User.Governorate: the 2dsphere index
// rejects a location without coordinates.
type UserLocation struct {
	Type        string    `json:"type,omitempty" bson:"type,omitempty"`
	Coordinates []float64 `json:"coordinates,omitempty" bson:"coordinates,omitempty"`
	Governorate string    `json:"governorate,omitempty" bson:"governorate,omitempty"`
}

// Point returns the stored coordinates, if any
func (l *UserLocation) Point() (GeoPoint, bool) {
	if l == nil || len(l.Coordinates) != 2 {
		return GeoPoint{}, false
	}
	return GeoPoint{Lon: l.Coordinates[0], Lat: l.Coordinates[1]}, true
}

// GeoPoint is a longitude/latitude pair
type GeoPoint struct {
	Lon float64 `json:"lon" bson:"lon"`
	Lat float64 `json:"lat" bson:"lat"`
}

// NewUserLocation builds a GeoJSON location for p
func NewUserLocation(p GeoPoint, governorate string) *UserLocation {
	return &UserLocation{
		Type:        "Point",
		Coordinates: []float64{p.Lon, p.Lat},
		Governorate: governorate,
	}
}

// ExpertProfile holds the expert's offer. Price and experience are tracked per
// offered sub-service; the rating is aggregated for the expert as a whole.
type ExpertProfile struct {
	ServiceTypes  []ExpertService `json:"serviceTypes" bson:"serviceTypes"`
	Description   string          `json:"description,omitempty" bson:"description,omitempty"`
	IsAvailable   bool            `json:"isAvailable" bson:"isAvailable"`
	AverageRating float64         `json:"averageRating" bson:"averageRating"`
	RatingCount   int             `json:"ratingCount" bson:"ratingCount"`
}

// ExpertService is one sub-service offered by an expert
type ExpertService struct {
	SubServiceID        primitive.ObjectID `json:"subServiceId" bson:"subServiceId"`
	AveragePricePerHour float64            `json:"averagePricePerHour" bson:"averagePricePerHour"`
	YearsExperience     int                `json:"yearsExperience" bson:"yearsExperience"`
}

// Offers reports whether the expert offers any of the given sub-services
func (p *ExpertProfile) Offers(subServiceIDs []primitive.ObjectID) bool {
	if p == nil {
		return false
	}
	for _, st := range p.ServiceTypes {
		for _, id := range subServiceIDs {
			if st.SubServiceID == id {
				return true
			}
		}
	}
	return false
}

// LastSearch is the customer's most recent filtered expert search. It anchors
// the hourly suggestion pass.
type LastSearch struct {
	Service    *primitive.ObjectID `json:"service,omitempty" bson:"service,omitempty"`
	SubService *primitive.ObjectID `json:"subService,omitempty" bson:"subService,omitempty"`
	Timestamp  time.Time           `json:"timestamp" bson:"timestamp"`
}

// IncrementalAverage folds one rating into a running mean
func IncrementalAverage(oldAvg float64, oldCount int, rating int) (float64, int) {
	newCount := oldCount + 1
	return (oldAvg*float64(oldCount) + float64(rating)) / float64(newCount), newCount
}

// ExpertSummary is the public view of an expert returned by searches
type ExpertSummary struct {
	ID            primitive.ObjectID `json:"id"`
	Name          string             `json:"name"`
	ImageURL      string             `json:"imageUrl,omitempty"`
	Governorate   string             `json:"governorate,omitempty"`
	ExpertProfile *ExpertProfile     `json:"expertProfile,omitempty"`
	DistanceKm    *float64           `json:"distanceKm,omitempty"`
}

// ExpertContact is what a customer receives after opening a contact request
type ExpertContact struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Phone string             `json:"phone,omitempty"`
	Email string             `json:"email,omitempty"`
}
