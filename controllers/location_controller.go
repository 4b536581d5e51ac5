package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sa3tha/sa3tha_backend/models"
)

// GetGovernorates handles GET /api/locations/governorates
func GetGovernorates(c echo.Context) error {
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Governorates retrieved successfully",
		Data:    models.Governorates,
	})
}
