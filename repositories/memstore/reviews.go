package memstore

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sa3tha/sa3tha_backend/models"
	"github.com/sa3tha/sa3tha_backend/repositories"
)

type Reviews struct {
	mu        sync.Mutex
	byContact map[primitive.ObjectID]models.Review
}

func NewReviews() *Reviews {
	return &Reviews{byContact: make(map[primitive.ObjectID]models.Review)}
}

func (s *Reviews) Insert(_ context.Context, r *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byContact[r.ContactRequestID]; exists {
		return repositories.ErrDuplicate
	}
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	s.byContact[r.ContactRequestID] = *r
	return nil
}

// Len is a test helper
func (s *Reviews) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byContact)
}
