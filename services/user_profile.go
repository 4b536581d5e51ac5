package services

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/sa3tha/sa3tha_backend/apperr"
	"github.com/sa3tha/sa3tha_backend/models"
)

// LocationInput updates a user's location. GovernorateID, when set, wins over
// the governorate resolved from Point.
type LocationInput struct {
	Point         *models.GeoPoint
	GovernorateID *int
}

// UserProfileService handles the profile fields the follow-up engine reads:
// device token, location, availability and the suggestion anchor
type UserProfileService struct {
	users   UserStore
	regions RegionLookup
	logger  *zap.Logger
}

func NewUserProfileService(users UserStore, regions RegionLookup, logger *zap.Logger) *UserProfileService {
	return &UserProfileService{users: users, regions: regions, logger: logger}
}

func (s *UserProfileService) UpdateFCMToken(ctx context.Context, actor models.Actor, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.Validation("fcmToken is required").WithOp("profile.UpdateFCMToken")
	}
	if err := s.users.SetFCMToken(ctx, actor.ID, token); err != nil {
		return storeErr("profile.UpdateFCMToken", "user not found", err)
	}
	return nil
}

// UpdateLocation stores the point and its governorate. A point outside every
// governorate keeps the previously stored governorate. The returned view
// carries both; storage keeps the governorate outside the GeoJSON point.
func (s *UserProfileService) UpdateLocation(ctx context.Context, actor models.Actor, in LocationInput) (*models.UserLocation, error) {
	const op = "profile.UpdateLocation"

	if in.Point == nil && in.GovernorateID == nil {
		return nil, apperr.Validation("coordinates or governorate is required").WithOp(op)
	}

	var explicit string
	if in.GovernorateID != nil {
		explicit = models.GovernorateNameByID(*in.GovernorateID)
		if explicit == "" {
			return nil, apperr.Validation("unknown governorate").WithOp(op)
		}
	}

	user, err := s.users.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, storeErr(op, "user not found", err)
	}

	governorate := user.Region()
	point := in.Point
	if point == nil {
		if p, ok := user.Location.Point(); ok {
			point = &p
		}
	} else if s.regions != nil {
		if region, ok := s.regions.Resolve(point.Lon, point.Lat); ok {
			governorate = region
		} else {
			s.logger.Info("location outside known governorates",
				zap.String("user_id", actor.ID.Hex()),
				zap.Float64("lon", point.Lon),
				zap.Float64("lat", point.Lat))
		}
	}
	if explicit != "" {
		governorate = explicit
	}

	if err := s.users.SetLocation(ctx, actor.ID, point, governorate); err != nil {
		return nil, storeErr(op, "user not found", err)
	}

	if point == nil {
		return &models.UserLocation{Governorate: governorate}, nil
	}
	return models.NewUserLocation(*point, governorate), nil
}

// DisableSuggestions clears the last search so no suggestion is sent
func (s *UserProfileService) DisableSuggestions(ctx context.Context, actor models.Actor) error {
	if err := s.users.ClearLastSearch(ctx, actor.ID); err != nil {
		return storeErr("profile.DisableSuggestions", "user not found", err)
	}
	return nil
}

func (s *UserProfileService) SetAvailability(ctx context.Context, actor models.Actor, available bool) error {
	if actor.Role != models.RoleExpert {
		return apperr.Forbidden("only experts can change availability").WithOp("profile.SetAvailability")
	}
	if err := s.users.SetAvailability(ctx, actor.ID, available); err != nil {
		return storeErr("profile.SetAvailability", "expert not found", err)
	}
	return nil
}

// ParseObjectID parses a hex id, reporting a validation error for field
func ParseObjectID(field, hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("invalid " + field)
	}
	return id, nil
}
