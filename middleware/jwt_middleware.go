// middleware/jwt_middleware.go
package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sa3tha/sa3tha_backend/models"
)

const actorContextKey = "actor"

// JwtCustomClaims carried by access tokens. Tokens are issued by the auth
// service; this backend only verifies them.
type JwtCustomClaims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.StandardClaims
}

// Valid implements the Claims interface; a zero ExpiresAt never expires
func (c JwtCustomClaims) Valid() error {
	now := time.Now().Unix()
	if c.ExpiresAt > 0 && now > c.ExpiresAt {
		return errors.New("token is expired")
	}
	if c.NotBefore > 0 && now < c.NotBefore {
		return errors.New("token used before valid")
	}
	return nil
}

func jwtConfig(secret string, skipper middleware.Skipper) middleware.JWTConfig {
	if skipper == nil {
		skipper = middleware.DefaultSkipper
	}
	return middleware.JWTConfig{
		Skipper:    skipper,
		Claims:     &JwtCustomClaims{},
		SigningKey: []byte(secret),
		SuccessHandler: func(c echo.Context) {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return
			}
			claims, ok := token.Claims.(*JwtCustomClaims)
			if !ok {
				return
			}
			id, err := primitive.ObjectIDFromHex(claims.UserID)
			if err != nil {
				return
			}
			c.Set(actorContextKey, models.Actor{ID: id, Role: models.Role(claims.Role)})
		},
		ErrorHandler: func(err error) error {
			log.Printf("JWT middleware error: %v", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "Please provide valid credentials")
		},
	}
}

// RequireAuth rejects requests without a valid token naming a user
func RequireAuth(secret string) echo.MiddlewareFunc {
	verify := middleware.JWTWithConfig(jwtConfig(secret, nil))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(func(c echo.Context) error {
			if _, ok := ActorFromContext(c); !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token subject")
			}
			return next(c)
		})
	}
}

// OptionalAuth verifies a token when one is sent and lets anonymous
// requests through
func OptionalAuth(secret string) echo.MiddlewareFunc {
	return middleware.JWTWithConfig(jwtConfig(secret, func(c echo.Context) bool {
		return strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization)) == ""
	}))
}

// RequireRole allows only actors holding one of roles
func RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFromContext(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, models.Response{
					Status:  http.StatusUnauthorized,
					Message: "Authentication required",
				})
			}
			for _, role := range roles {
				if actor.Role == role {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, models.Response{
				Status:  http.StatusForbidden,
				Message: "Access denied for your role",
			})
		}
	}
}

// ActorFromContext returns the caller set by RequireAuth/OptionalAuth
func ActorFromContext(c echo.Context) (models.Actor, bool) {
	actor, ok := c.Get(actorContextKey).(models.Actor)
	return actor, ok
}
