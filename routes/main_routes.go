package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sa3tha/sa3tha_backend/controllers"
	"github.com/sa3tha/sa3tha_backend/middleware"
	"github.com/sa3tha/sa3tha_backend/models"
	"github.com/sa3tha/sa3tha_backend/websocket"
)

// Handlers groups the controllers mounted under /api
type Handlers struct {
	Contacts      *controllers.ContactController
	Experts       *controllers.ExpertController
	Notifications *controllers.NotificationController
	Users         *controllers.UserController
	Hub           *websocket.Hub
	// HealthCheck reports database reachability; nil skips the check
	HealthCheck func(ctx context.Context) error
}

// SetupRoutes configures all API routes by calling individual route registration functions
func SetupRoutes(e *echo.Echo, h Handlers, jwtSecret string) {
	e.Match([]string{"GET", "HEAD"}, "/health", healthHandler(h.HealthCheck))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	requireAuth := middleware.RequireAuth(jwtSecret)

	RegisterContactRoutes(e, h.Contacts, requireAuth)
	RegisterExpertRoutes(e, h.Experts, jwtSecret)
	RegisterNotificationRoutes(e, h.Notifications, h.Hub, requireAuth)
	RegisterUserRoutes(e, h.Users, requireAuth)
	RegisterLocationRoutes(e)
}

func healthHandler(check func(ctx context.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		status := map[string]string{"status": "healthy", "database": "connected"}
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				status["status"] = "degraded"
				status["database"] = "unreachable"
				return c.JSON(http.StatusServiceUnavailable, status)
			}
		}
		return c.JSON(http.StatusOK, status)
	}
}

// RegisterLocationRoutes registers the public governorate catalogue
func RegisterLocationRoutes(e *echo.Echo) {
	e.GET("/api/locations/governorates", controllers.GetGovernorates)
}

// RegisterContactRoutes registers the contact lifecycle endpoints
func RegisterContactRoutes(e *echo.Echo, cc *controllers.ContactController, requireAuth echo.MiddlewareFunc) {
	contactGroup := e.Group("/api/contacts", requireAuth)
	contactGroup.POST("", cc.CreateContact)
	contactGroup.POST("/:id/expert-response", cc.ExpertResponse)
	contactGroup.POST("/:id/customer-response", cc.CustomerResponse)
	contactGroup.POST("/:id/review", cc.SubmitReview)
}

// RegisterExpertRoutes registers expert search and availability
func RegisterExpertRoutes(e *echo.Echo, ec *controllers.ExpertController, jwtSecret string) {
	expertGroup := e.Group("/api/experts")
	expertGroup.GET("/near", ec.NearExperts, middleware.OptionalAuth(jwtSecret))
	expertGroup.PUT("/availability", ec.SetAvailability,
		middleware.RequireAuth(jwtSecret),
		middleware.RequireRole(models.RoleExpert))
}

// RegisterNotificationRoutes registers the inbox and its realtime socket
func RegisterNotificationRoutes(e *echo.Echo, nc *controllers.NotificationController, hub *websocket.Hub, requireAuth echo.MiddlewareFunc) {
	e.GET("/api/notifications", nc.GetNotifications, requireAuth)
	if hub != nil {
		e.GET("/api/ws", func(c echo.Context) error {
			actor, _ := middleware.ActorFromContext(c)
			return websocket.HandleWebSocket(c, hub, actor.ID.Hex())
		}, requireAuth)
	}
}

// RegisterUserRoutes registers the profile fields used by follow-ups
func RegisterUserRoutes(e *echo.Echo, uc *controllers.UserController, requireAuth echo.MiddlewareFunc) {
	userGroup := e.Group("/api/users", requireAuth)
	userGroup.PUT("/fcm-token", uc.UpdateFCMToken)
	userGroup.PUT("/location", uc.UpdateLocation)
	userGroup.POST("/suggestions/disable", uc.DisableSuggestions)
}
