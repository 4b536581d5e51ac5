// Package memstore holds in-memory implementations of the repository
// capabilities. They honour the same conditional-update guards as the Mongo
// repositories and back the service and scheduler tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sa3tha/sa3tha_backend/models"
	"github.com/sa3tha/sa3tha_backend/repositories"
)

type Contacts struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.ContactRequest
}

func NewContacts() *Contacts {
	return &Contacts{byID: make(map[primitive.ObjectID]models.ContactRequest)}
}

func (s *Contacts) Insert(_ context.Context, c *models.ContactRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	s.byID[c.ID] = *c
	return nil
}

func (s *Contacts) FindByID(_ context.Context, id primitive.ObjectID) (*models.ContactRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

// Get is a test helper returning the stored contact
func (s *Contacts) Get(id primitive.ObjectID) models.ContactRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id]
}

func (s *Contacts) ApplyExpertResponse(_ context.Context, id primitive.ObjectID, hasDeal bool, at time.Time) (bool, error) {
	return s.update(id, func(c *models.ContactRequest) bool {
		if c.Status != models.ContactInitiated || c.ExpertResponse != nil {
			return false
		}
		answer := hasDeal
		c.ExpertResponse = &answer
		c.ExpertResponseAt = &at
		c.UpdatedAt = at
		return true
	})
}

func (s *Contacts) ApplyCustomerResponse(_ context.Context, id primitive.ObjectID, upd models.CustomerResponseUpdate) (bool, error) {
	return s.update(id, func(c *models.ContactRequest) bool {
		if c.Status != models.ContactInitiated {
			return false
		}
		c.Status = upd.Status
		respondedAt := upd.RespondedAt
		c.CustomerResponseAt = &respondedAt
		c.UpdatedAt = upd.RespondedAt
		if upd.DealDate != nil {
			d := *upd.DealDate
			c.DealDate = &d
		}
		if upd.NoDeal {
			c.CustomerConfirmedNoDeal = true
		}
		return true
	})
}

func (s *Contacts) MarkReviewed(_ context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	return s.update(id, func(c *models.ContactRequest) bool {
		if c.Status != models.ContactConfirmed || c.IsReviewed {
			return false
		}
		c.IsReviewed = true
		c.UpdatedAt = at
		return true
	})
}

func (s *Contacts) FindDueExpertChecks(_ context.Context, createdBefore time.Time, limit int64) ([]models.ContactRequest, error) {
	return s.find(limit, func(c *models.ContactRequest) bool {
		return c.Status == models.ContactInitiated &&
			!c.CreatedAt.After(createdBefore) &&
			c.ExpertCheckSentAt == nil
	}), nil
}

func (s *Contacts) ClaimExpertCheck(_ context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	at = at.Truncate(time.Millisecond)
	return s.update(id, func(c *models.ContactRequest) bool {
		if c.ExpertCheckSentAt != nil {
			return false
		}
		c.ExpertCheckSentAt = &at
		c.UpdatedAt = at
		return true
	})
}

func (s *Contacts) ReleaseExpertCheck(_ context.Context, id primitive.ObjectID, at time.Time) error {
	at = at.Truncate(time.Millisecond)
	_, err := s.update(id, func(c *models.ContactRequest) bool {
		if c.ExpertCheckSentAt == nil || !c.ExpertCheckSentAt.Equal(at) {
			return false
		}
		c.ExpertCheckSentAt = nil
		return true
	})
	return err
}

func (s *Contacts) FindDueReviewRequests(_ context.Context, dealBefore time.Time, limit int64) ([]models.ContactRequest, error) {
	return s.find(limit, func(c *models.ContactRequest) bool {
		return c.Status == models.ContactConfirmed &&
			c.DealDate != nil && !c.DealDate.After(dealBefore) &&
			!c.CustomerReviewRequested
	}), nil
}

func (s *Contacts) ClaimReviewRequest(_ context.Context, id primitive.ObjectID) (bool, error) {
	return s.update(id, func(c *models.ContactRequest) bool {
		if c.CustomerReviewRequested {
			return false
		}
		c.CustomerReviewRequested = true
		return true
	})
}

func (s *Contacts) ReleaseReviewRequest(_ context.Context, id primitive.ObjectID) error {
	_, err := s.update(id, func(c *models.ContactRequest) bool {
		if !c.CustomerReviewRequested {
			return false
		}
		c.CustomerReviewRequested = false
		return true
	})
	return err
}

func (s *Contacts) FindStaleInitiated(_ context.Context, createdBefore time.Time) ([]models.ContactRequest, error) {
	return s.find(0, func(c *models.ContactRequest) bool {
		return c.Status == models.ContactInitiated && c.CreatedAt.Before(createdBefore)
	}), nil
}

func (s *Contacts) update(id primitive.ObjectID, apply func(c *models.ContactRequest) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return false, nil
	}
	if !apply(&c) {
		return false, nil
	}
	s.byID[id] = c
	return true, nil
}

func (s *Contacts) find(limit int64, match func(c *models.ContactRequest) bool) []models.ContactRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ContactRequest
	for _, c := range s.byID {
		c := c
		if match(&c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() < out[j].ID.Hex()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out
}
