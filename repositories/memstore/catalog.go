package memstore

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sa3tha/sa3tha_backend/models"
	"github.com/sa3tha/sa3tha_backend/repositories"
)

type Catalog struct {
	mu          sync.Mutex
	services    map[primitive.ObjectID]models.Service
	subServices []models.SubService
}

func NewCatalog() *Catalog {
	return &Catalog{services: make(map[primitive.ObjectID]models.Service)}
}

func (s *Catalog) PutService(svc models.Service) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if svc.ID.IsZero() {
		svc.ID = primitive.NewObjectID()
	}
	s.services[svc.ID] = svc
	return svc.ID
}

func (s *Catalog) PutSubService(sub models.SubService) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ID.IsZero() {
		sub.ID = primitive.NewObjectID()
	}
	s.subServices = append(s.subServices, sub)
	return sub.ID
}

func (s *Catalog) FindService(_ context.Context, id primitive.ObjectID) (*models.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &svc, nil
}

func (s *Catalog) FindSubService(_ context.Context, id primitive.ObjectID) (*models.SubService, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subServices {
		if sub.ID == id {
			sub := sub
			return &sub, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s *Catalog) SubServiceIDsByService(_ context.Context, serviceID primitive.ObjectID) ([]primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []primitive.ObjectID{}
	for _, sub := range s.subServices {
		if sub.ServiceID == serviceID {
			ids = append(ids, sub.ID)
		}
	}
	return ids, nil
}
