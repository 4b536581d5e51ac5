package controllers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sa3tha/sa3tha_backend/apperr"
	"github.com/sa3tha/sa3tha_backend/models"
	"github.com/sa3tha/sa3tha_backend/services"
	"github.com/sa3tha/sa3tha_backend/utils"
)

type ContactController struct {
	lifecycle *services.ContactLifecycle
}

func NewContactController(lifecycle *services.ContactLifecycle) *ContactController {
	return &ContactController{lifecycle: lifecycle}
}

// CreateContactRequest opens a contact with an expert. Coordinates are
// [longitude, latitude].
type CreateContactRequest struct {
	ExpertID     string    `json:"expertId" validate:"required,len=24,hexadecimal"`
	SubServiceID string    `json:"subServiceId" validate:"required,len=24,hexadecimal"`
	Coordinates  []float64 `json:"coordinates,omitempty" validate:"omitempty,len=2"`
}

type ExpertResponseRequest struct {
	HasDeal *bool `json:"hasDeal" validate:"required"`
}

type CustomerResponseRequest struct {
	DealDate      *time.Time `json:"dealDate,omitempty"`
	ConfirmNoDeal bool       `json:"confirmNoDeal,omitempty"`
}

type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment,omitempty"`
}

// CreateContact handles POST /api/contacts
func (cc *ContactController) CreateContact(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, err)
	}

	var req CreateContactRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	in := services.CreateContactInput{}
	if in.ExpertID, err = services.ParseObjectID("expertId", req.ExpertID); err != nil {
		return respondError(c, err)
	}
	if in.SubServiceID, err = services.ParseObjectID("subServiceId", req.SubServiceID); err != nil {
		return respondError(c, err)
	}
	if len(req.Coordinates) == 2 {
		p, err := pointFromCoordinates(req.Coordinates)
		if err != nil {
			return respondError(c, err)
		}
		in.Location = p
	}

	contact, expert, err := cc.lifecycle.Create(c.Request().Context(), actor, in)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Contact request created",
		Data: map[string]interface{}{
			"contactRequest": contact,
			"expert":         expert,
		},
	})
}

// ExpertResponse handles POST /api/contacts/:id/expert-response
func (cc *ContactController) ExpertResponse(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := pathObjectID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req ExpertResponseRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	contact, err := cc.lifecycle.ExpertRespond(c.Request().Context(), actor, id, *req.HasDeal)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Response recorded",
		Data:    contact,
	})
}

// CustomerResponse handles POST /api/contacts/:id/customer-response
func (cc *ContactController) CustomerResponse(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := pathObjectID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req CustomerResponseRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	contact, err := cc.lifecycle.CustomerRespond(c.Request().Context(), actor, id, services.CustomerResponseInput{
		DealDate:      req.DealDate,
		ConfirmNoDeal: req.ConfirmNoDeal,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Response recorded",
		Data:    contact,
	})
}

// SubmitReview handles POST /api/contacts/:id/review
func (cc *ContactController) SubmitReview(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := pathObjectID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req ReviewRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	review, summary, err := cc.lifecycle.SubmitReview(c.Request().Context(), actor, id, services.ReviewInput{
		Rating:  req.Rating,
		Comment: utils.SanitizeInput(req.Comment),
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Review submitted",
		Data: map[string]interface{}{
			"review":        review,
			"averageRating": summary.AverageRating,
			"ratingCount":   summary.RatingCount,
		},
	})
}

func pointFromCoordinates(coords []float64) (*models.GeoPoint, error) {
	lon, lat := coords[0], coords[1]
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return nil, apperr.Validation("coordinates out of range")
	}
	return &models.GeoPoint{Lon: lon, Lat: lat}, nil
}
