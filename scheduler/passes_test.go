package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/sa3tha/sa3tha_backend/models"
	"github.com/sa3tha/sa3tha_backend/repositories/memstore"
	"github.com/sa3tha/sa3tha_backend/services"
)

type recordingPusher struct {
	tokens []string
}

func (p *recordingPusher) Push(_ context.Context, token string, _ services.PushMessage) error {
	p.tokens = append(p.tokens, token)
	return nil
}

type passFixture struct {
	contacts      *memstore.Contacts
	users         *memstore.Users
	notifications *memstore.Notifications
	catalog       *memstore.Catalog
	pusher        *recordingPusher
	passes        *Passes

	t0         time.Time
	now        time.Time
	customer   primitive.ObjectID
	expert     primitive.ObjectID
	service    primitive.ObjectID
	subService primitive.ObjectID
}

func newPassFixture(t *testing.T) *passFixture {
	t.Helper()
	f := &passFixture{
		contacts:      memstore.NewContacts(),
		users:         memstore.NewUsers(),
		notifications: memstore.NewNotifications(),
		catalog:       memstore.NewCatalog(),
		pusher:        &recordingPusher{},
		t0:            time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	f.now = f.t0
	clock := func() time.Time { return f.now }

	f.service = f.catalog.PutService(models.Service{Name: "Home", Icon: "https://cdn.example/home.png"})
	f.subService = f.catalog.PutSubService(models.SubService{Name: "Plumbing", ArabicName: "سباكة", ServiceID: f.service})
	f.customer = f.users.Put(models.User{Name: "Mona", Role: models.RoleCustomer, FCMToken: "customer-token"})
	f.expert = f.users.Put(models.User{
		Name:          "Ahmed",
		Role:          models.RoleExpert,
		FCMToken:      "expert-token",
		Governorate:   "القاهرة",
		ExpertProfile: &models.ExpertProfile{
			ServiceTypes:  []models.ExpertService{{SubServiceID: f.subService}},
			IsAvailable:   true,
			AverageRating: 4.5,
		},
	})

	logger := zap.NewNop()
	dispatcher := services.NewNotificationDispatcher(f.notifications, f.pusher, nil, logger)
	dispatcher.Now = clock
	matcher := services.NewExpertMatcher(f.users, f.catalog, nil, logger)
	matcher.Now = clock

	f.passes = NewPasses(f.contacts, f.users, f.catalog, dispatcher, matcher, logger)
	f.passes.Now = clock
	return f
}

func (f *passFixture) insertContact(t *testing.T, c models.ContactRequest) primitive.ObjectID {
	t.Helper()
	if c.CustomerID.IsZero() {
		c.CustomerID = f.customer
	}
	if c.ExpertID.IsZero() {
		c.ExpertID = f.expert
	}
	if c.Status == "" {
		c.Status = models.ContactInitiated
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = f.t0
	}
	c.SubService = f.subService
	require.NoError(t, f.contacts.Insert(context.Background(), &c))
	return c.ID
}

func (f *passFixture) prompts(recipient primitive.ObjectID, typ models.NotificationType) []models.Notification {
	var out []models.Notification
	for _, n := range f.notifications.ForRecipient(recipient) {
		if n.Type() == typ {
			out = append(out, n)
		}
	}
	return out
}

func TestExpertCheck_FiresAfterFifteenMinutesOnce(t *testing.T) {
	f := newPassFixture(t)
	ctx := context.Background()
	id := f.insertContact(t, models.ContactRequest{})

	f.now = f.t0.Add(14 * time.Minute)
	res, err := f.passes.ExpertCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, PassResult{}, res)
	assert.Nil(t, f.contacts.Get(id).ExpertCheckSentAt)
	assert.Empty(t, f.prompts(f.expert, models.NotificationExpertFollowup))

	f.now = f.t0.Add(16 * time.Minute)
	res, err = f.passes.ExpertCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, PassResult{Scanned: 1, Dispatched: 1}, res)

	stamp := f.contacts.Get(id).ExpertCheckSentAt
	require.NotNil(t, stamp)
	assert.True(t, stamp.Equal(f.now))
	prompts := f.prompts(f.expert, models.NotificationExpertFollowup)
	require.Len(t, prompts, 1)
	assert.Equal(t, id.Hex(), prompts[0].ContactID())
	assert.Equal(t, services.ActionConfirmDeal, prompts[0].Data["action"])
	assert.Equal(t, []string{"expert-token"}, f.pusher.tokens)

	f.now = f.t0.Add(17 * time.Minute)
	res, err = f.passes.ExpertCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Scanned, "stamped contacts are never selected again")
	assert.Len(t, f.prompts(f.expert, models.NotificationExpertFollowup), 1)
}

func TestExpertCheck_SkipsAnsweredAndClosedContacts(t *testing.T) {
	f := newPassFixture(t)
	f.insertContact(t, models.ContactRequest{Status: models.ContactDenied})
	sent := f.t0
	f.insertContact(t, models.ContactRequest{ExpertCheckSentAt: &sent})

	f.now = f.t0.Add(time.Hour)
	res, err := f.passes.ExpertCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Scanned)
}

func TestExpertCheck_StaleSnapshotCannotDoubleSend(t *testing.T) {
	f := newPassFixture(t)
	ctx := context.Background()
	id := f.insertContact(t, models.ContactRequest{})
	f.now = f.t0.Add(20 * time.Minute)

	snapshot := f.contacts.Get(id)
	sent, err := f.passes.expertCheck(ctx, &snapshot, f.now)
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = f.passes.expertCheck(ctx, &snapshot, f.now.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Len(t, f.prompts(f.expert, models.NotificationExpertFollowup), 1)
}

func TestExpertCheck_RecordFailureReleasesStamp(t *testing.T) {
	f := newPassFixture(t)
	ctx := context.Background()
	id := f.insertContact(t, models.ContactRequest{})
	f.now = f.t0.Add(20 * time.Minute)

	f.notifications.InsertErr = errors.New("write concern timeout")
	res, err := f.passes.ExpertCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, PassResult{Scanned: 1, Failed: 1}, res)
	assert.Nil(t, f.contacts.Get(id).ExpertCheckSentAt)
	assert.Empty(t, f.pusher.tokens)

	f.notifications.InsertErr = nil
	f.now = f.now.Add(time.Minute)
	res, err = f.passes.ExpertCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dispatched)
	assert.NotNil(t, f.contacts.Get(id).ExpertCheckSentAt)
}

func TestExpertCheck_OneBadContactDoesNotStopTheScan(t *testing.T) {
	f := newPassFixture(t)
	orphan := f.insertContact(t, models.ContactRequest{ExpertID: primitive.NewObjectID()})
	good := f.insertContact(t, models.ContactRequest{CreatedAt: f.t0.Add(time.Second)})
	f.now = f.t0.Add(30 * time.Minute)

	res, err := f.passes.ExpertCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PassResult{Scanned: 2, Dispatched: 1, Failed: 1}, res)
	assert.Nil(t, f.contacts.Get(orphan).ExpertCheckSentAt)
	assert.NotNil(t, f.contacts.Get(good).ExpertCheckSentAt)
}

func TestReviewRequest_AfterTwentyFourHoursOnce(t *testing.T) {
	f := newPassFixture(t)
	ctx := context.Background()
	f.now = f.t0.Add(72 * time.Hour)

	oldDeal := f.now.Add(-25 * time.Hour)
	recentDeal := f.now.Add(-23 * time.Hour)
	due := f.insertContact(t, models.ContactRequest{Status: models.ContactConfirmed, DealDate: &oldDeal})
	notYet := f.insertContact(t, models.ContactRequest{Status: models.ContactConfirmed, DealDate: &recentDeal})
	f.insertContact(t, models.ContactRequest{Status: models.ContactDenied, CustomerConfirmedNoDeal: true})

	res, err := f.passes.ReviewRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, PassResult{Scanned: 1, Dispatched: 1}, res)
	assert.True(t, f.contacts.Get(due).CustomerReviewRequested)
	assert.False(t, f.contacts.Get(notYet).CustomerReviewRequested)

	prompts := f.prompts(f.customer, models.NotificationReviewRequest)
	require.Len(t, prompts, 1)
	assert.Equal(t, due.Hex(), prompts[0].ContactID())
	assert.Equal(t, f.expert.Hex(), prompts[0].Data["expertId"])
	assert.Equal(t, "نرجو تقييم الخبير Ahmed لمساعدتنا في تحسين الخدمة.", prompts[0].Body)
	assert.Equal(t, []string{"customer-token"}, f.pusher.tokens)

	res, err = f.passes.ReviewRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Scanned)
}

func TestStaleAudit_IsReadOnly(t *testing.T) {
	f := newPassFixture(t)
	old := f.insertContact(t, models.ContactRequest{})
	f.insertContact(t, models.ContactRequest{CreatedAt: f.t0.Add(10 * time.Minute)})
	f.now = f.t0.Add(20 * time.Minute)

	before := f.contacts.Get(old)
	res, err := f.passes.StaleAudit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Scanned)
	assert.Equal(t, before, f.contacts.Get(old))
	assert.Equal(t, 0, f.notifications.Len())
}

func TestSuggestions_SendsTopExpertsAndRespectsCooldown(t *testing.T) {
	f := newPassFixture(t)
	ctx := context.Background()
	f.now = f.t0.Add(2 * time.Hour)

	searcher := f.users.Put(models.User{
		Name:        "Hana",
		Role:        models.RoleCustomer,
		FCMToken:    "hana-token",
		Governorate: "القاهرة",
		LastSearch:  &models.LastSearch{SubService: &f.subService, Timestamp: f.t0},
	})

	res, err := f.passes.Suggestions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dispatched)

	prompts := f.prompts(searcher, models.NotificationExpertSuggestions)
	require.Len(t, prompts, 1)
	assert.Equal(t, "وجدنا لك 1 خبراء متخصصين في سباكة. اضغط لمشاهدة التفاصيل.", prompts[0].Body)
	assert.Equal(t, "https://cdn.example/home.png", prompts[0].ImageURL)
	assert.Equal(t, f.subService.Hex(), prompts[0].Data["subServiceId"])

	var ids []string
	require.NoError(t, json.Unmarshal([]byte(prompts[0].Data["expertIds"]), &ids))
	assert.Equal(t, []string{f.expert.Hex()}, ids)

	stamp := f.users.Get(searcher).LastSuggestionSentAt
	require.NotNil(t, stamp)
	assert.True(t, stamp.Equal(f.now))

	f.now = f.now.Add(30 * time.Minute)
	res, err = f.passes.Suggestions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Dispatched)
	assert.Len(t, f.prompts(searcher, models.NotificationExpertSuggestions), 1)

	f.now = f.now.Add(time.Hour)
	res, err = f.passes.Suggestions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dispatched)
}

func TestSuggestions_MissingCatalogEntryFallsBackToGenericName(t *testing.T) {
	f := newPassFixture(t)
	f.now = f.t0.Add(2 * time.Hour)

	retired := primitive.NewObjectID()
	offering := f.users.Put(models.User{
		Name:        "Karim",
		Role:        models.RoleExpert,
		Governorate: "القاهرة",
		ExpertProfile: &models.ExpertProfile{
			ServiceTypes: []models.ExpertService{{SubServiceID: retired}},
			IsAvailable:  true,
		},
	})
	searcher := f.users.Put(models.User{
		Role:        models.RoleCustomer,
		FCMToken:    "hana-token",
		Governorate: "القاهرة",
		LastSearch:  &models.LastSearch{SubService: &retired, Timestamp: f.t0},
	})

	res, err := f.passes.Suggestions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dispatched)
	assert.Zero(t, res.Failed)

	prompts := f.prompts(searcher, models.NotificationExpertSuggestions)
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0].Body, fallbackServiceName)
	assert.Empty(t, prompts[0].ImageURL)
	assert.Contains(t, prompts[0].Data["expertIds"], offering.Hex())
	assert.NotNil(t, f.users.Get(searcher).LastSuggestionSentAt)
}

func TestSuggestions_ExpiredSearchIsCleared(t *testing.T) {
	f := newPassFixture(t)
	f.now = f.t0.Add(25 * time.Hour)
	searcher := f.users.Put(models.User{
		Role:        models.RoleCustomer,
		Governorate: "القاهرة",
		LastSearch:  &models.LastSearch{SubService: &f.subService, Timestamp: f.t0},
	})

	res, err := f.passes.Suggestions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Dispatched)
	assert.Nil(t, f.users.Get(searcher).LastSearch)
	assert.Equal(t, 0, f.notifications.Len())
}

func TestSuggestions_NoMatchSendsNothing(t *testing.T) {
	f := newPassFixture(t)
	f.now = f.t0.Add(time.Hour)
	searcher := f.users.Put(models.User{
		Role:        models.RoleCustomer,
		Governorate: "أسوان",
		LastSearch:  &models.LastSearch{SubService: &f.subService, Timestamp: f.t0},
	})

	res, err := f.passes.Suggestions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Dispatched)
	assert.Nil(t, f.users.Get(searcher).LastSuggestionSentAt)
}
