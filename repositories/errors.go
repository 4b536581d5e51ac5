package repositories

import "errors"

var (
	// ErrNotFound is returned when a looked-up document does not exist
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned when a unique index rejects an insert
	ErrDuplicate = errors.New("duplicate document")
	// ErrWriteConflict is returned when an optimistic update keeps losing races
	ErrWriteConflict = errors.New("concurrent write conflict")
)

// Collection names, shared with config.SetupCollections
const (
	UsersCollection         = "users"
	ContactsCollection      = "contactrequests"
	NotificationsCollection = "notifications"
	ReviewsCollection       = "reviews"
	ServicesCollection      = "services"
	SubServicesCollection   = "subservices"
)
