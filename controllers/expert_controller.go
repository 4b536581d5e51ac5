package controllers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sa3tha/sa3tha_backend/apperr"
	"github.com/sa3tha/sa3tha_backend/middleware"
	"github.com/sa3tha/sa3tha_backend/models"
	"github.com/sa3tha/sa3tha_backend/services"
)

type ExpertController struct {
	matcher *services.ExpertMatcher
	profile *services.UserProfileService
}

func NewExpertController(matcher *services.ExpertMatcher, profile *services.UserProfileService) *ExpertController {
	return &ExpertController{matcher: matcher, profile: profile}
}

type AvailabilityRequest struct {
	IsAvailable *bool `json:"isAvailable" validate:"required"`
}

// NearExperts handles GET /api/experts/near.
// Query: lat, long, range (km), governorate (name or id), serviceId, subServiceId.
func (ec *ExpertController) NearExperts(c echo.Context) error {
	filter, err := searchFilterFromQuery(c)
	if err != nil {
		return respondError(c, err)
	}

	var actor *models.Actor
	if a, ok := middleware.ActorFromContext(c); ok {
		actor = &a
	}

	experts, err := ec.matcher.FindNear(c.Request().Context(), actor, filter)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Experts retrieved successfully",
		Data: map[string]interface{}{
			"experts": experts,
			"count":   len(experts),
		},
	})
}

// SetAvailability handles PUT /api/experts/availability
func (ec *ExpertController) SetAvailability(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, err)
	}

	var req AvailabilityRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	if err := ec.profile.SetAvailability(c.Request().Context(), actor, *req.IsAvailable); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Availability updated",
		Data:    map[string]bool{"isAvailable": *req.IsAvailable},
	})
}

func searchFilterFromQuery(c echo.Context) (services.SearchFilter, error) {
	var f services.SearchFilter

	latRaw, lonRaw := c.QueryParam("lat"), c.QueryParam("long")
	if (latRaw == "") != (lonRaw == "") {
		return f, apperr.Validation("lat and long must be provided together")
	}
	if latRaw != "" {
		lat, err := strconv.ParseFloat(latRaw, 64)
		if err != nil || lat < -90 || lat > 90 {
			return f, apperr.Validation("lat must be a number between -90 and 90")
		}
		lon, err := strconv.ParseFloat(lonRaw, 64)
		if err != nil || lon < -180 || lon > 180 {
			return f, apperr.Validation("long must be a number between -180 and 180")
		}
		f.Point = &models.GeoPoint{Lon: lon, Lat: lat}
	}

	if raw := c.QueryParam("range"); raw != "" {
		radius, err := strconv.ParseFloat(raw, 64)
		if err != nil || radius <= 0 {
			return f, apperr.Validation("range must be a positive number of kilometers")
		}
		f.RadiusKm = &radius
	}

	if raw := c.QueryParam("governorate"); raw != "" {
		if id, err := strconv.Atoi(raw); err == nil {
			name := models.GovernorateNameByID(id)
			if name == "" {
				return f, apperr.Validation("unknown governorate")
			}
			f.Governorate = name
		} else {
			f.Governorate = raw
		}
	}

	if raw := c.QueryParam("serviceId"); raw != "" {
		id, err := services.ParseObjectID("serviceId", raw)
		if err != nil {
			return f, err
		}
		f.ServiceID = &id
	}
	if raw := c.QueryParam("subServiceId"); raw != "" {
		id, err := services.ParseObjectID("subServiceId", raw)
		if err != nil {
			return f, err
		}
		f.SubServiceID = &id
	}

	return f, nil
}
