package services

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sa3tha/sa3tha_backend/apperr"
	"github.com/sa3tha/sa3tha_backend/models"
	"github.com/sa3tha/sa3tha_backend/repositories"
)

// ContactStore persists contact requests. Every Apply/Mark/Claim method is a
// conditional write and reports whether its guard matched.
type ContactStore interface {
	Insert(ctx context.Context, c *models.ContactRequest) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.ContactRequest, error)
	ApplyExpertResponse(ctx context.Context, id primitive.ObjectID, hasDeal bool, at time.Time) (bool, error)
	ApplyCustomerResponse(ctx context.Context, id primitive.ObjectID, upd models.CustomerResponseUpdate) (bool, error)
	MarkReviewed(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error)
	FindDueExpertChecks(ctx context.Context, createdBefore time.Time, limit int64) ([]models.ContactRequest, error)
	ClaimExpertCheck(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error)
	ReleaseExpertCheck(ctx context.Context, id primitive.ObjectID, at time.Time) error
	FindDueReviewRequests(ctx context.Context, dealBefore time.Time, limit int64) ([]models.ContactRequest, error)
	ClaimReviewRequest(ctx context.Context, id primitive.ObjectID) (bool, error)
	ReleaseReviewRequest(ctx context.Context, id primitive.ObjectID) error
	FindStaleInitiated(ctx context.Context, createdBefore time.Time) ([]models.ContactRequest, error)
}

type NotificationStore interface {
	Insert(ctx context.Context, n *models.Notification) error
	DeleteByKey(ctx context.Context, key models.DedupKey) (int64, error)
	ListByRecipient(ctx context.Context, recipient primitive.ObjectID, skip, limit int64) ([]models.Notification, int64, error)
}

type UserStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindExperts(ctx context.Context, q repositories.ExpertQuery) ([]models.User, error)
	RecordLastSearch(ctx context.Context, id primitive.ObjectID, search models.LastSearch) error
	ClearLastSearch(ctx context.Context, id primitive.ObjectID) error
	SetFCMToken(ctx context.Context, id primitive.ObjectID, token string) error
	SetLocation(ctx context.Context, id primitive.ObjectID, point *models.GeoPoint, governorate string) error
	SetAvailability(ctx context.Context, id primitive.ObjectID, available bool) error
	ApplyRating(ctx context.Context, expertID primitive.ObjectID, rating int) (models.RatingSummary, error)
	FindSuggestionCandidates(ctx context.Context, suggestedBefore time.Time) ([]models.User, error)
	MarkSuggestionSent(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

type ReviewStore interface {
	Insert(ctx context.Context, r *models.Review) error
}

type CatalogStore interface {
	FindService(ctx context.Context, id primitive.ObjectID) (*models.Service, error)
	FindSubService(ctx context.Context, id primitive.ObjectID) (*models.SubService, error)
	SubServiceIDsByService(ctx context.Context, serviceID primitive.ObjectID) ([]primitive.ObjectID, error)
}

// TxRunner runs fn so that its writes apply together or not at all
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// RegionLookup maps a point to a governorate name
type RegionLookup interface {
	Resolve(lon, lat float64) (string, bool)
}

// storeErr converts a store failure into an apperr. Errors that already carry
// a kind pass through unchanged.
func storeErr(op, notFoundMsg string, err error) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, repositories.ErrNotFound):
		return apperr.NotFound(notFoundMsg).WithOp(op)
	case errors.Is(err, repositories.ErrDuplicate):
		return apperr.Wrap(apperr.KindConflict, "already exists", err).WithOp(op)
	default:
		return apperr.Internal("storage failure", err).WithOp(op)
	}
}
