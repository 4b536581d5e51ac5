package memstore

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sa3tha/sa3tha_backend/models"
)

type Notifications struct {
	mu    sync.Mutex
	items []models.Notification

	// InsertErr, when set, fails every Insert
	InsertErr error
}

func NewNotifications() *Notifications {
	return &Notifications{}
}

func (s *Notifications) Insert(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return s.InsertErr
	}
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	s.items = append(s.items, *n)
	return nil
}

func (s *Notifications) DeleteByKey(_ context.Context, key models.DedupKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.items[:0]
	var deleted int64
	for _, n := range s.items {
		n := n
		if n.RecipientID == key.RecipientID && n.ContactID() == key.ContactID && n.Type() == key.Type {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	s.items = kept
	return deleted, nil
}

func (s *Notifications) ListByRecipient(_ context.Context, recipient primitive.ObjectID, skip, limit int64) ([]models.Notification, int64, error) {
	mine := s.ForRecipient(recipient)
	sort.SliceStable(mine, func(i, j int) bool {
		return mine[i].CreatedAt.After(mine[j].CreatedAt)
	})
	total := int64(len(mine))
	if skip >= total {
		return []models.Notification{}, total, nil
	}
	end := skip + limit
	if end > total {
		end = total
	}
	return mine[skip:end], total, nil
}

// ForRecipient is a test helper returning every stored notification for id
// in insertion order
func (s *Notifications) ForRecipient(id primitive.ObjectID) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Notification{}
	for _, n := range s.items {
		if n.RecipientID == id {
			out = append(out, n)
		}
	}
	return out
}

// Len is a test helper
func (s *Notifications) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
