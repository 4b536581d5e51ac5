package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sa3tha/sa3tha_backend/models"
	"github.com/sa3tha/sa3tha_backend/services"
)

type NotificationController struct {
	dispatcher *services.NotificationDispatcher
}

func NewNotificationController(dispatcher *services.NotificationDispatcher) *NotificationController {
	return &NotificationController{dispatcher: dispatcher}
}

// GetNotifications handles GET /api/notifications?page=&limit=
func (nc *NotificationController) GetNotifications(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, err)
	}
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return respondError(c, err)
	}
	limit, err := queryInt(c, "limit", services.DefaultPageSize)
	if err != nil {
		return respondError(c, err)
	}

	result, err := nc.dispatcher.ListForRecipient(c.Request().Context(), actor.ID, page, limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Notifications retrieved successfully",
		Data:    result,
	})
}
