package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/sa3tha/sa3tha_backend/apperr"
	"github.com/sa3tha/sa3tha_backend/geo"
	"github.com/sa3tha/sa3tha_backend/models"
	"github.com/sa3tha/sa3tha_backend/repositories"
)

const (
	// DefaultSearchRadiusKm applies when a point has no radius and does not
	// resolve to any governorate
	DefaultSearchRadiusKm = 10.0
	SuggestionRadiusKm    = 50.0
	SuggestionLimit       = 5
)

// SearchFilter is an expert search. Every field is optional.
type SearchFilter struct {
	Point        *models.GeoPoint
	Governorate  string
	ServiceID    *primitive.ObjectID
	SubServiceID *primitive.ObjectID
	RadiusKm     *float64
}

type anchorKind int

const (
	anchorNone anchorKind = iota
	anchorPoint
	anchorRegion
)

type searchAnchor struct {
	kind        anchorKind
	point       models.GeoPoint
	region      string
	fromProfile bool
	// profileRegion is the caller's stored governorate, tried when a profile
	// point does not resolve
	profileRegion string
}

// ExpertMatcher ranks available experts for a search
type ExpertMatcher struct {
	users   UserStore
	catalog CatalogStore
	regions RegionLookup
	logger  *zap.Logger
	Now     func() time.Time
}

func NewExpertMatcher(users UserStore, catalog CatalogStore, regions RegionLookup, logger *zap.Logger) *ExpertMatcher {
	return &ExpertMatcher{
		users:   users,
		catalog: catalog,
		regions: regions,
		logger:  logger,
		Now:     time.Now,
	}
}

// FindNear answers an on-demand browse. actor is nil for anonymous callers.
//
// Anchor precedence: explicit point, explicit governorate, the caller's
// stored point, the caller's stored governorate, none. A radius with a point
// ranks by distance; a point without a radius is resolved to its governorate
// and matched exactly.
func (m *ExpertMatcher) FindNear(ctx context.Context, actor *models.Actor, f SearchFilter) ([]models.ExpertSummary, error) {
	const op = "matcher.FindNear"

	if f.Governorate != "" && !models.IsKnownGovernorate(f.Governorate) {
		return nil, apperr.Validation("unknown governorate").WithOp(op)
	}
	if f.RadiusKm != nil && *f.RadiusKm <= 0 {
		return nil, apperr.Validation("range must be positive").WithOp(op)
	}

	var caller *models.User
	if actor != nil {
		u, err := m.users.FindByID(ctx, actor.ID)
		switch {
		case err == nil:
			caller = u
		case errors.Is(err, repositories.ErrNotFound):
			// unknown token subject browses anonymously
		default:
			return nil, storeErr(op, "", err)
		}
	}

	subServiceIDs, err := m.subServiceFilter(ctx, f.ServiceID, f.SubServiceID)
	if err != nil {
		return nil, err
	}

	if caller != nil && caller.Role == models.RoleCustomer && (f.ServiceID != nil || f.SubServiceID != nil) {
		m.recordLastSearch(ctx, caller.ID, f)
	}

	// a service with no sub-services cannot match anyone
	if subServiceIDs != nil && len(subServiceIDs) == 0 {
		return []models.ExpertSummary{}, nil
	}

	anchor := resolveAnchor(f, caller)
	q := repositories.ExpertQuery{SubServiceIDs: subServiceIDs}

	if anchor.kind == anchorPoint {
		if f.RadiusKm != nil {
			return m.byDistance(ctx, op, q, anchor.point, *f.RadiusKm)
		}
		if region, ok := m.resolve(anchor.point); ok {
			anchor = searchAnchor{kind: anchorRegion, region: region}
		} else if anchor.fromProfile && anchor.profileRegion != "" {
			anchor = searchAnchor{kind: anchorRegion, region: anchor.profileRegion}
		} else {
			return m.byDistance(ctx, op, q, anchor.point, DefaultSearchRadiusKm)
		}
	}

	if anchor.kind == anchorRegion {
		q.Governorate = anchor.region
	}
	q.SortByRating = true

	experts, err := m.users.FindExperts(ctx, q)
	if err != nil {
		return nil, storeErr(op, "", err)
	}
	summaries := make([]models.ExpertSummary, 0, len(experts))
	for i := range experts {
		summaries = append(summaries, toSummary(&experts[i], nil))
	}
	sortByRating(summaries)
	return summaries, nil
}

// Suggest runs the top-N search behind the proactive suggestion: the user's
// last search filter, anchored on their stored governorate or else on their
// stored point within SuggestionRadiusKm
func (m *ExpertMatcher) Suggest(ctx context.Context, user *models.User) ([]models.ExpertSummary, error) {
	const op = "matcher.Suggest"

	if user == nil || user.LastSearch == nil {
		return []models.ExpertSummary{}, nil
	}
	subServiceIDs, err := m.subServiceFilter(ctx, user.LastSearch.Service, user.LastSearch.SubService)
	if err != nil {
		return nil, err
	}
	if subServiceIDs != nil && len(subServiceIDs) == 0 {
		return []models.ExpertSummary{}, nil
	}

	q := repositories.ExpertQuery{
		SubServiceIDs: subServiceIDs,
		SortByRating:  true,
		Limit:         SuggestionLimit,
	}
	var origin *models.GeoPoint
	if region := user.Region(); region != "" {
		q.Governorate = region
	} else if p, ok := user.Location.Point(); ok {
		q.Near = &p
		q.MaxDistanceKm = SuggestionRadiusKm
		origin = &p
	}

	experts, err := m.users.FindExperts(ctx, q)
	if err != nil {
		return nil, storeErr(op, "", err)
	}

	summaries := make([]models.ExpertSummary, 0, len(experts))
	for i := range experts {
		if experts[i].ID == user.ID {
			continue
		}
		var dist *float64
		if origin != nil {
			if p, ok := experts[i].Location.Point(); ok {
				d := geo.DistanceKm(origin.Lon, origin.Lat, p.Lon, p.Lat)
				if d > SuggestionRadiusKm {
					continue
				}
				dist = &d
			}
		}
		summaries = append(summaries, toSummary(&experts[i], dist))
	}
	sortByRating(summaries)
	if len(summaries) > SuggestionLimit {
		summaries = summaries[:SuggestionLimit]
	}
	return summaries, nil
}

func (m *ExpertMatcher) byDistance(ctx context.Context, op string, q repositories.ExpertQuery, origin models.GeoPoint, radiusKm float64) ([]models.ExpertSummary, error) {
	q.Near = &origin
	q.MaxDistanceKm = radiusKm

	experts, err := m.users.FindExperts(ctx, q)
	if err != nil {
		return nil, storeErr(op, "", err)
	}

	summaries := make([]models.ExpertSummary, 0, len(experts))
	for i := range experts {
		p, ok := experts[i].Location.Point()
		if !ok {
			continue
		}
		d := geo.DistanceKm(origin.Lon, origin.Lat, p.Lon, p.Lat)
		if d > radiusKm {
			continue
		}
		summaries = append(summaries, toSummary(&experts[i], &d))
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return *summaries[i].DistanceKm < *summaries[j].DistanceKm
	})
	return summaries, nil
}

// subServiceFilter returns nil when no service constraint applies
func (m *ExpertMatcher) subServiceFilter(ctx context.Context, serviceID, subServiceID *primitive.ObjectID) ([]primitive.ObjectID, error) {
	if subServiceID != nil {
		return []primitive.ObjectID{*subServiceID}, nil
	}
	if serviceID == nil {
		return nil, nil
	}
	ids, err := m.catalog.SubServiceIDsByService(ctx, *serviceID)
	if err != nil {
		return nil, storeErr("matcher.subServiceFilter", "service not found", err)
	}
	if ids == nil {
		ids = []primitive.ObjectID{}
	}
	return ids, nil
}

func (m *ExpertMatcher) recordLastSearch(ctx context.Context, userID primitive.ObjectID, f SearchFilter) {
	err := m.users.RecordLastSearch(ctx, userID, models.LastSearch{
		Service:    f.ServiceID,
		SubService: f.SubServiceID,
		Timestamp:  m.Now(),
	})
	if err != nil {
		m.logger.Warn("failed to record last search",
			zap.String("user_id", userID.Hex()),
			zap.Error(err))
	}
}

func (m *ExpertMatcher) resolve(p models.GeoPoint) (string, bool) {
	if m.regions == nil {
		return "", false
	}
	return m.regions.Resolve(p.Lon, p.Lat)
}

func resolveAnchor(f SearchFilter, caller *models.User) searchAnchor {
	if f.Point != nil {
		return searchAnchor{kind: anchorPoint, point: *f.Point}
	}
	if f.Governorate != "" {
		return searchAnchor{kind: anchorRegion, region: f.Governorate}
	}
	if caller != nil {
		if p, ok := caller.Location.Point(); ok {
			return searchAnchor{
				kind:          anchorPoint,
				point:         p,
				fromProfile:   true,
				profileRegion: caller.Region(),
			}
		}
		if region := caller.Region(); region != "" {
			return searchAnchor{kind: anchorRegion, region: region}
		}
	}
	return searchAnchor{kind: anchorNone}
}

func sortByRating(summaries []models.ExpertSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return rating(summaries[i]) > rating(summaries[j])
	})
}

func rating(s models.ExpertSummary) float64 {
	if s.ExpertProfile == nil {
		return 0
	}
	return s.ExpertProfile.AverageRating
}

func toSummary(u *models.User, distanceKm *float64) models.ExpertSummary {
	s := models.ExpertSummary{
		ID:            u.ID,
		Name:          u.Name,
		ImageURL:      u.ImageURL,
		ExpertProfile: u.ExpertProfile,
		DistanceKm:    distanceKm,
		Governorate:   u.Region(),
	}
	return s
}
