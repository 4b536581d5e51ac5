package services

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/sa3tha/sa3tha_backend/apperr"
	"github.com/sa3tha/sa3tha_backend/models"
	"github.com/sa3tha/sa3tha_backend/repositories"
)

const MaxReviewCommentLength = 500

type CreateContactInput struct {
	ExpertID     primitive.ObjectID
	SubServiceID primitive.ObjectID
	Location     *models.GeoPoint
}

// CustomerResponseInput carries exactly one of DealDate or ConfirmNoDeal
type CustomerResponseInput struct {
	DealDate      *time.Time
	ConfirmNoDeal bool
}

type ReviewInput struct {
	Rating  int
	Comment string
}

// ContactLifecycle owns every transition of a contact request. Each
// transition applies its guarded write, the retraction of the answered
// prompt and the recording of the next prompt in one transaction, then
// delivers the new prompt after commit.
type ContactLifecycle struct {
	contacts   ContactStore
	users      UserStore
	reviews    ReviewStore
	catalog    CatalogStore
	tx         TxRunner
	dispatcher *NotificationDispatcher
	regions    RegionLookup
	logger     *zap.Logger
	Now        func() time.Time
}

func NewContactLifecycle(
	contacts ContactStore,
	users UserStore,
	reviews ReviewStore,
	catalog CatalogStore,
	tx TxRunner,
	dispatcher *NotificationDispatcher,
	regions RegionLookup,
	logger *zap.Logger,
) *ContactLifecycle {
	return &ContactLifecycle{
		contacts:   contacts,
		users:      users,
		reviews:    reviews,
		catalog:    catalog,
		tx:         tx,
		dispatcher: dispatcher,
		regions:    regions,
		logger:     logger,
		Now:        time.Now,
	}
}

// Create opens an initiated contact between actor and an expert
func (l *ContactLifecycle) Create(ctx context.Context, actor models.Actor, in CreateContactInput) (*models.ContactRequest, *models.ExpertContact, error) {
	const op = "contact.Create"

	if in.ExpertID.IsZero() || in.SubServiceID.IsZero() {
		return nil, nil, apperr.Validation("expert and sub-service are required").WithOp(op)
	}
	if in.ExpertID == actor.ID {
		return nil, nil, apperr.Validation("cannot contact yourself").WithOp(op)
	}

	expert, err := l.users.FindByID(ctx, in.ExpertID)
	if err != nil {
		return nil, nil, storeErr(op, "expert not found", err)
	}
	if !expert.IsExpert() {
		return nil, nil, apperr.NotFound("expert not found").WithOp(op)
	}
	if _, err := l.catalog.FindSubService(ctx, in.SubServiceID); err != nil {
		return nil, nil, storeErr(op, "sub-service not found", err)
	}

	now := l.Now()
	contact := &models.ContactRequest{
		ID:         primitive.NewObjectID(),
		CustomerID: actor.ID,
		ExpertID:   expert.ID,
		SubService: in.SubServiceID,
		Status:     models.ContactInitiated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if in.Location != nil {
		var governorate string
		if l.regions != nil {
			governorate, _ = l.regions.Resolve(in.Location.Lon, in.Location.Lat)
		}
		contact.Location = models.NewUserLocation(*in.Location, governorate)
	}

	if err := l.contacts.Insert(ctx, contact); err != nil {
		return nil, nil, storeErr(op, "", err)
	}

	l.logger.Info("contact request created",
		zap.String("contact_id", contact.ID.Hex()),
		zap.String("customer_id", actor.ID.Hex()),
		zap.String("expert_id", expert.ID.Hex()))

	return contact, &models.ExpertContact{
		ID:    expert.ID,
		Name:  expert.Name,
		Phone: expert.Phone,
		Email: expert.Email,
	}, nil
}

// ExpertRespond records whether the expert reached a deal and prompts the
// customer to confirm it
func (l *ContactLifecycle) ExpertRespond(ctx context.Context, actor models.Actor, contactID primitive.ObjectID, hasDeal bool) (*models.ContactRequest, error) {
	const op = "contact.ExpertRespond"

	contact, err := l.load(ctx, op, contactID)
	if err != nil {
		return nil, err
	}
	if contact.ExpertID != actor.ID {
		return nil, apperr.Forbidden("only the contacted expert can respond").WithOp(op)
	}
	if contact.ExpertAnswer() != models.ExpertUnanswered || contact.Status != models.ContactInitiated {
		return nil, apperr.Conflict("expert response already recorded").WithOp(op)
	}

	expert, err := l.users.FindByID(ctx, contact.ExpertID)
	if err != nil {
		return nil, storeErr(op, "expert not found", err)
	}
	customer, err := l.users.FindByID(ctx, contact.CustomerID)
	if err != nil {
		return nil, storeErr(op, "customer not found", err)
	}

	prompt, err := CustomerFollowupMessage(contact, expert.Name, hasDeal)
	if err != nil {
		return nil, apperr.Internal("failed to render notification", err).WithOp(op)
	}

	now := l.Now()
	var recorded *models.Notification
	err = l.tx.WithTransaction(ctx, func(ctx context.Context) error {
		applied, err := l.contacts.ApplyExpertResponse(ctx, contact.ID, hasDeal, now)
		if err != nil {
			return storeErr(op, "contact not found", err)
		}
		if !applied {
			return apperr.Conflict("expert response already recorded").WithOp(op)
		}
		if err := l.dispatcher.Retract(ctx, models.DedupKey{
			RecipientID: contact.ExpertID,
			ContactID:   contact.ID.Hex(),
			Type:        models.NotificationExpertFollowup,
		}); err != nil {
			return err
		}
		recorded, err = l.dispatcher.Record(ctx, prompt)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.dispatcher.Deliver(ctx, recorded, customer.FCMToken)

	l.logger.Info("expert responded",
		zap.String("contact_id", contact.ID.Hex()),
		zap.Bool("has_deal", hasDeal))

	answer := hasDeal
	contact.ExpertResponse = &answer
	contact.ExpertResponseAt = &now
	contact.UpdatedAt = now
	return contact, nil
}

// CustomerRespond closes the dialogue: a deal date confirms the contact,
// confirmNoDeal denies it
func (l *ContactLifecycle) CustomerRespond(ctx context.Context, actor models.Actor, contactID primitive.ObjectID, in CustomerResponseInput) (*models.ContactRequest, error) {
	const op = "contact.CustomerRespond"

	switch {
	case in.DealDate == nil && !in.ConfirmNoDeal:
		return nil, apperr.Validation("either dealDate or confirmNoDeal is required").WithOp(op)
	case in.DealDate != nil && in.ConfirmNoDeal:
		return nil, apperr.Validation("dealDate and confirmNoDeal are mutually exclusive").WithOp(op)
	}

	contact, err := l.load(ctx, op, contactID)
	if err != nil {
		return nil, err
	}
	if contact.CustomerID != actor.ID {
		return nil, apperr.Forbidden("only the contact's customer can respond").WithOp(op)
	}
	if contact.Status != models.ContactInitiated {
		return nil, apperr.Conflict("customer response already recorded").WithOp(op)
	}

	now := l.Now()
	upd := models.CustomerResponseUpdate{RespondedAt: now}
	if in.DealDate != nil {
		upd.Status = models.ContactConfirmed
		upd.DealDate = in.DealDate
	} else {
		upd.Status = models.ContactDenied
		upd.NoDeal = true
	}

	err = l.tx.WithTransaction(ctx, func(ctx context.Context) error {
		applied, err := l.contacts.ApplyCustomerResponse(ctx, contact.ID, upd)
		if err != nil {
			return storeErr(op, "contact not found", err)
		}
		if !applied {
			return apperr.Conflict("customer response already recorded").WithOp(op)
		}
		if err := l.dispatcher.Retract(ctx, models.DedupKey{
			RecipientID: contact.CustomerID,
			ContactID:   contact.ID.Hex(),
			Type:        models.NotificationCustomerFollowup,
		}); err != nil {
			return err
		}
		// a closed contact no longer takes the expert's answer
		return l.dispatcher.Retract(ctx, models.DedupKey{
			RecipientID: contact.ExpertID,
			ContactID:   contact.ID.Hex(),
			Type:        models.NotificationExpertFollowup,
		})
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("customer responded",
		zap.String("contact_id", contact.ID.Hex()),
		zap.String("status", string(upd.Status)))

	contact.Status = upd.Status
	contact.DealDate = upd.DealDate
	contact.CustomerConfirmedNoDeal = upd.NoDeal
	contact.CustomerResponseAt = &now
	contact.UpdatedAt = now
	return contact, nil
}

// SubmitReview stores the customer's rating of a confirmed contact and folds
// it into the expert's average
func (l *ContactLifecycle) SubmitReview(ctx context.Context, actor models.Actor, contactID primitive.ObjectID, in ReviewInput) (*models.Review, models.RatingSummary, error) {
	const op = "contact.SubmitReview"

	if in.Rating < 1 || in.Rating > 5 {
		return nil, models.RatingSummary{}, apperr.Validation("rating must be between 1 and 5").WithOp(op)
	}
	if utf8.RuneCountInString(in.Comment) > MaxReviewCommentLength {
		return nil, models.RatingSummary{}, apperr.Validation("comment must be at most 500 characters").WithOp(op)
	}

	contact, err := l.load(ctx, op, contactID)
	if err != nil {
		return nil, models.RatingSummary{}, err
	}
	if contact.CustomerID != actor.ID {
		return nil, models.RatingSummary{}, apperr.Forbidden("only the contact's customer can review").WithOp(op)
	}
	if contact.Status != models.ContactConfirmed {
		return nil, models.RatingSummary{}, apperr.Conflict("only confirmed contacts can be reviewed").WithOp(op)
	}
	if contact.IsReviewed {
		return nil, models.RatingSummary{}, apperr.Conflict("contact already reviewed").WithOp(op)
	}

	now := l.Now()
	review := &models.Review{
		ID:               primitive.NewObjectID(),
		CustomerID:       contact.CustomerID,
		ExpertID:         contact.ExpertID,
		ContactRequestID: contact.ID,
		Rating:           in.Rating,
		Comment:          in.Comment,
		CreatedAt:        now,
	}

	var summary models.RatingSummary
	err = l.tx.WithTransaction(ctx, func(ctx context.Context) error {
		applied, err := l.contacts.MarkReviewed(ctx, contact.ID, now)
		if err != nil {
			return storeErr(op, "contact not found", err)
		}
		if !applied {
			return apperr.Conflict("contact already reviewed").WithOp(op)
		}
		if err := l.reviews.Insert(ctx, review); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return apperr.Conflict("contact already reviewed").WithOp(op)
			}
			return storeErr(op, "", err)
		}
		summary, err = l.users.ApplyRating(ctx, contact.ExpertID, in.Rating)
		if err != nil {
			if errors.Is(err, repositories.ErrWriteConflict) {
				return apperr.Wrap(apperr.KindConflict, "rating update contended, retry", err).WithOp(op)
			}
			return storeErr(op, "expert not found", err)
		}
		return l.dispatcher.Retract(ctx, models.DedupKey{
			RecipientID: contact.CustomerID,
			ContactID:   contact.ID.Hex(),
			Type:        models.NotificationReviewRequest,
		})
	})
	if err != nil {
		return nil, models.RatingSummary{}, err
	}

	l.logger.Info("review submitted",
		zap.String("contact_id", contact.ID.Hex()),
		zap.String("expert_id", contact.ExpertID.Hex()),
		zap.Int("rating", in.Rating),
		zap.Float64("average_rating", summary.AverageRating))

	return review, summary, nil
}

func (l *ContactLifecycle) load(ctx context.Context, op string, id primitive.ObjectID) (*models.ContactRequest, error) {
	if id.IsZero() {
		return nil, apperr.NotFound("contact request not found").WithOp(op)
	}
	contact, err := l.contacts.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(op, "contact request not found", err)
	}
	return contact, nil
}
