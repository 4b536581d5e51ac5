package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sa3tha/sa3tha_backend/geo"
	"github.com/sa3tha/sa3tha_backend/models"
	"github.com/sa3tha/sa3tha_backend/repositories"
)

type Users struct {
	mu    sync.Mutex
	byID  map[primitive.ObjectID]models.User
	order []primitive.ObjectID
}

func NewUsers() *Users {
	return &Users{byID: make(map[primitive.ObjectID]models.User)}
}

// Put stores u, assigning an id when missing, and returns the id
func (s *Users) Put(u models.User) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if _, ok := s.byID[u.ID]; !ok {
		s.order = append(s.order, u.ID)
	}
	s.byID[u.ID] = u
	return u.ID
}

// Get is a test helper
func (s *Users) Get(id primitive.ObjectID) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id]
}

func (s *Users) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (s *Users) FindExperts(_ context.Context, q repositories.ExpertQuery) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.User
	for _, id := range s.order {
		u := s.byID[id]
		if !u.IsExpert() || u.ExpertProfile == nil || !u.ExpertProfile.IsAvailable {
			continue
		}
		if len(q.SubServiceIDs) > 0 && !u.ExpertProfile.Offers(q.SubServiceIDs) {
			continue
		}
		switch {
		case q.Near != nil:
			p, ok := u.Location.Point()
			if !ok || geo.DistanceKm(q.Near.Lon, q.Near.Lat, p.Lon, p.Lat) > q.MaxDistanceKm {
				continue
			}
		case q.Governorate != "":
			if u.Region() != q.Governorate {
				continue
			}
		}
		u.FCMToken = ""
		out = append(out, u)
	}

	if q.SortByRating {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].ExpertProfile.AverageRating > out[j].ExpertProfile.AverageRating
		})
	}
	if q.Limit > 0 && int64(len(out)) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Users) RecordLastSearch(_ context.Context, id primitive.ObjectID, search models.LastSearch) error {
	return s.update(id, func(u *models.User) { u.LastSearch = &search })
}

func (s *Users) ClearLastSearch(_ context.Context, id primitive.ObjectID) error {
	return s.update(id, func(u *models.User) { u.LastSearch = nil })
}

func (s *Users) SetFCMToken(_ context.Context, id primitive.ObjectID, token string) error {
	return s.update(id, func(u *models.User) { u.FCMToken = token })
}

func (s *Users) SetLocation(_ context.Context, id primitive.ObjectID, point *models.GeoPoint, governorate string) error {
	return s.update(id, func(u *models.User) {
		u.Governorate = governorate
		if point != nil {
			u.Location = models.NewUserLocation(*point, "")
		} else if u.Location != nil {
			loc := *u.Location
			loc.Governorate = ""
			u.Location = &loc
		}
	})
}

func (s *Users) SetAvailability(_ context.Context, id primitive.ObjectID, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok || !u.IsExpert() {
		return repositories.ErrNotFound
	}
	profile := models.ExpertProfile{}
	if u.ExpertProfile != nil {
		profile = *u.ExpertProfile
	}
	profile.IsAvailable = available
	u.ExpertProfile = &profile
	s.byID[id] = u
	return nil
}

func (s *Users) ApplyRating(_ context.Context, expertID primitive.ObjectID, rating int) (models.RatingSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[expertID]
	if !ok || !u.IsExpert() {
		return models.RatingSummary{}, repositories.ErrNotFound
	}
	profile := models.ExpertProfile{}
	if u.ExpertProfile != nil {
		profile = *u.ExpertProfile
	}
	profile.AverageRating, profile.RatingCount = models.IncrementalAverage(profile.AverageRating, profile.RatingCount, rating)
	u.ExpertProfile = &profile
	s.byID[expertID] = u
	return models.RatingSummary{AverageRating: profile.AverageRating, RatingCount: profile.RatingCount}, nil
}

func (s *Users) FindSuggestionCandidates(_ context.Context, suggestedBefore time.Time) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, id := range s.order {
		u := s.byID[id]
		if u.LastSearch == nil {
			continue
		}
		if u.LastSuggestionSentAt != nil && u.LastSuggestionSentAt.After(suggestedBefore) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *Users) MarkSuggestionSent(_ context.Context, id primitive.ObjectID, at time.Time) error {
	return s.update(id, func(u *models.User) { u.LastSuggestionSentAt = &at })
}

func (s *Users) update(id primitive.ObjectID, apply func(u *models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	apply(&u)
	s.byID[id] = u
	return nil
}
