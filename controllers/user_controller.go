package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sa3tha/sa3tha_backend/apperr"
	"github.com/sa3tha/sa3tha_backend/models"
	"github.com/sa3tha/sa3tha_backend/services"
	"github.com/sa3tha/sa3tha_backend/utils"
)

type UserController struct {
	profile *services.UserProfileService
}

func NewUserController(profile *services.UserProfileService) *UserController {
	return &UserController{profile: profile}
}

// FCMTokenUpdateRequest represents the request body for updating FCM tokens
type FCMTokenUpdateRequest struct {
	FCMToken string `json:"fcmToken" validate:"required"`
}

// LocationUpdateRequest sets the user's point ([longitude, latitude]) and/or
// governorate id
type LocationUpdateRequest struct {
	Coordinates []float64 `json:"coordinates,omitempty" validate:"omitempty,len=2"`
	Governorate *int      `json:"governorate,omitempty" validate:"omitempty,min=1,max=27"`
}

// UpdateFCMToken handles PUT /api/users/fcm-token
func (uc *UserController) UpdateFCMToken(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, err)
	}

	var req FCMTokenUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	token, ok := utils.SanitizeToken(req.FCMToken)
	if !ok {
		return respondError(c, apperr.Validation("invalid fcmToken"))
	}

	if err := uc.profile.UpdateFCMToken(c.Request().Context(), actor, token); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "FCM token updated successfully",
	})
}

// UpdateLocation handles PUT /api/users/location
func (uc *UserController) UpdateLocation(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, err)
	}

	var req LocationUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	in := services.LocationInput{GovernorateID: req.Governorate}
	if len(req.Coordinates) == 2 {
		if in.Point, err = pointFromCoordinates(req.Coordinates); err != nil {
			return respondError(c, err)
		}
	}

	location, err := uc.profile.UpdateLocation(c.Request().Context(), actor, in)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Location updated successfully",
		Data:    location,
	})
}

// DisableSuggestions handles POST /api/users/suggestions/disable
func (uc *UserController) DisableSuggestions(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := uc.profile.DisableSuggestions(c.Request().Context(), actor); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Expert suggestions disabled",
	})
}
