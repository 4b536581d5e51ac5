package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Actor is the authenticated caller, taken from the verified token
type Actor struct {
	ID   primitive.ObjectID
	Role Role
}
