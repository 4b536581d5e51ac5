package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ContactStatus of a contact request
type ContactStatus string

const (
	ContactInitiated ContactStatus = "initiated"
	ContactConfirmed ContactStatus = "confirmed"
	ContactDenied    ContactStatus = "denied"
	// ContactDisputed is reserved; no transition reaches it yet.
	ContactDisputed ContactStatus = "disputed"
)

// IsTerminal reports whether the customer/expert dialogue is over
func (s ContactStatus) IsTerminal() bool {
	return s == ContactConfirmed || s == ContactDenied
}

// ContactRequest is one negotiation between a customer and an expert over a
// sub-service. It is never deleted.
type ContactRequest struct {
	ID         primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	CustomerID primitive.ObjectID `json:"customer" bson:"customer"`
	ExpertID   primitive.ObjectID `json:"expert" bson:"expert"`
	SubService primitive.ObjectID `json:"service" bson:"service"`
	Location   *UserLocation      `json:"location,omitempty" bson:"location,omitempty"`
	Status     ContactStatus      `json:"status" bson:"status"`

	ExpertResponse    *bool      `json:"expertResponse,omitempty" bson:"expertResponse,omitempty"`
	ExpertResponseAt  *time.Time `json:"expertResponseAt,omitempty" bson:"expertResponseAt,omitempty"`
	ExpertCheckSentAt *time.Time `json:"expertCheckSentAt,omitempty" bson:"expertCheckSentAt,omitempty"`

	DealDate                *time.Time `json:"dealDate,omitempty" bson:"dealDate,omitempty"`
	CustomerConfirmedNoDeal bool       `json:"customerConfirmedNoDeal" bson:"customerConfirmedNoDeal"`
	CustomerResponseAt      *time.Time `json:"customerResponseAt,omitempty" bson:"customerResponseAt,omitempty"`

	IsReviewed              bool `json:"isReviewed" bson:"isReviewed"`
	CustomerReviewRequested bool `json:"customerReviewRequested" bson:"customerReviewRequested"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// ExpertAnswer is the expert side of the dialogue
type ExpertAnswer int

const (
	ExpertUnanswered ExpertAnswer = iota
	ExpertDeal
	ExpertNoDeal
)

func (a ExpertAnswer) String() string {
	switch a {
	case ExpertDeal:
		return "deal"
	case ExpertNoDeal:
		return "no_deal"
	default:
		return "unanswered"
	}
}

// CustomerAnswer is the customer side of the dialogue
type CustomerAnswer int

const (
	CustomerPending CustomerAnswer = iota
	CustomerConfirmed
	CustomerDenied
)

func (a CustomerAnswer) String() string {
	switch a {
	case CustomerConfirmed:
		return "confirmed"
	case CustomerDenied:
		return "denied"
	default:
		return "pending"
	}
}

// ExpertAnswer derives the expert-side state from the persisted fields
func (c *ContactRequest) ExpertAnswer() ExpertAnswer {
	if c.ExpertResponse == nil {
		return ExpertUnanswered
	}
	if *c.ExpertResponse {
		return ExpertDeal
	}
	return ExpertNoDeal
}

// CustomerAnswer derives the customer-side state from the persisted fields
func (c *ContactRequest) CustomerAnswer() CustomerAnswer {
	switch {
	case c.Status == ContactConfirmed && c.DealDate != nil:
		return CustomerConfirmed
	case c.Status == ContactDenied:
		return CustomerDenied
	default:
		return CustomerPending
	}
}

// CustomerResponseUpdate is the field set written when a customer answers
// the deal prompt. Exactly one branch applies.
type CustomerResponseUpdate struct {
	Status      ContactStatus
	DealDate    *time.Time
	NoDeal      bool
	RespondedAt time.Time
}
