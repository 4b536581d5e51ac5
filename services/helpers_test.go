package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/sa3tha/sa3tha_backend/models"
	"github.com/sa3tha/sa3tha_backend/repositories/memstore"
)

type pushed struct {
	token string
	msg   PushMessage
}

type fakePusher struct {
	mu   sync.Mutex
	sent []pushed
	err  error
}

func (p *fakePusher) Push(_ context.Context, token string, msg PushMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, pushed{token: token, msg: msg})
	return nil
}

func (p *fakePusher) tokens() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []string{}
	for _, s := range p.sent {
		out = append(out, s.token)
	}
	return out
}

type fakeRealtime struct {
	mu    sync.Mutex
	users []string
}

func (r *fakeRealtime) SendToUser(userID string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
}

type regionFunc func(lon, lat float64) (string, bool)

func (f regionFunc) Resolve(lon, lat float64) (string, bool) { return f(lon, lat) }

type fixture struct {
	contacts      *memstore.Contacts
	users         *memstore.Users
	notifications *memstore.Notifications
	reviews       *memstore.Reviews
	catalog       *memstore.Catalog
	pusher        *fakePusher
	realtime      *fakeRealtime
	dispatcher    *NotificationDispatcher
	lifecycle     *ContactLifecycle

	now        time.Time
	customer   models.Actor
	expert     models.Actor
	serviceID  primitive.ObjectID
	subService primitive.ObjectID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		contacts:      memstore.NewContacts(),
		users:         memstore.NewUsers(),
		notifications: memstore.NewNotifications(),
		reviews:       memstore.NewReviews(),
		catalog:       memstore.NewCatalog(),
		pusher:        &fakePusher{},
		realtime:      &fakeRealtime{},
		now:           time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	f.serviceID = f.catalog.PutService(models.Service{Name: "Home Maintenance", Icon: "https://cdn.example/home.png"})
	f.subService = f.catalog.PutSubService(models.SubService{Name: "Plumbing", ArabicName: "سباكة", ServiceID: f.serviceID})

	customerID := f.users.Put(models.User{Name: "Mona", Role: models.RoleCustomer, FCMToken: "customer-token"})
	expertID := f.users.Put(models.User{
		Name:     "Ahmed",
		Phone:    "+201000000000",
		Email:    "ahmed@example.com",
		Role:     models.RoleExpert,
		FCMToken: "expert-token",
		ExpertProfile: &models.ExpertProfile{
			ServiceTypes:  []models.ExpertService{{SubServiceID: f.subService, AveragePricePerHour: 150, YearsExperience: 4}},
			IsAvailable:   true,
			AverageRating: 4.0,
			RatingCount:   3,
		},
	})
	f.customer = models.Actor{ID: customerID, Role: models.RoleCustomer}
	f.expert = models.Actor{ID: expertID, Role: models.RoleExpert}

	logger := zap.NewNop()
	f.dispatcher = NewNotificationDispatcher(f.notifications, f.pusher, f.realtime, logger)
	f.dispatcher.Now = clock

	regions := regionFunc(func(lon, lat float64) (string, bool) { return "القاهرة", true })
	f.lifecycle = NewContactLifecycle(f.contacts, f.users, f.reviews, f.catalog, &memstore.Tx{}, f.dispatcher, regions, logger)
	f.lifecycle.Now = clock
	return f
}

func (f *fixture) createContact(t *testing.T) *models.ContactRequest {
	t.Helper()
	contact, _, err := f.lifecycle.Create(context.Background(), f.customer, CreateContactInput{
		ExpertID:     f.expert.ID,
		SubServiceID: f.subService,
	})
	if err != nil {
		t.Fatalf("create contact: %v", err)
	}
	return contact
}

func (f *fixture) notificationsOf(recipient primitive.ObjectID, typ models.NotificationType, contactID primitive.ObjectID) []models.Notification {
	var out []models.Notification
	for _, n := range f.notifications.ForRecipient(recipient) {
		if n.Type() == typ && n.ContactID() == contactID.Hex() {
			out = append(out, n)
		}
	}
	return out
}
