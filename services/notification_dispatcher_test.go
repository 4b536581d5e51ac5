package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sa3tha/sa3tha_backend/apperr"
	"github.com/sa3tha/sa3tha_backend/models"
)

func TestDispatch_RecordsWithoutToken(t *testing.T) {
	f := newFixture(t)
	recipient := primitive.NewObjectID()

	n, err := f.dispatcher.Dispatch(context.Background(), Message{
		RecipientID: recipient,
		Title:       "hello",
		Body:        "world",
		Data:        map[string]string{"type": string(models.NotificationGeneral)},
	})
	require.NoError(t, err)

	stored := f.notifications.ForRecipient(recipient)
	require.Len(t, stored, 1)
	assert.Equal(t, n.ID, stored[0].ID)
	assert.Equal(t, f.now, stored[0].CreatedAt)
	assert.Empty(t, f.pusher.tokens())
	assert.Equal(t, []string{recipient.Hex()}, f.realtime.users)
}

func TestDispatch_PushFailureKeepsRecord(t *testing.T) {
	f := newFixture(t)
	f.pusher.err = errors.New("invalid registration token")
	recipient := primitive.NewObjectID()

	_, err := f.dispatcher.Dispatch(context.Background(), Message{
		RecipientID: recipient,
		Title:       "t",
		Body:        "b",
		Data:        map[string]string{"type": string(models.NotificationGeneral)},
		PushToken:   "stale-token",
	})
	require.NoError(t, err)
	assert.Len(t, f.notifications.ForRecipient(recipient), 1)
}

func TestRecord_CorrelatedPromptsAreDeduplicated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contact := f.createContact(t)

	for i := 0; i < 3; i++ {
		msg, err := ExpertFollowupMessage(contact, "")
		require.NoError(t, err)
		_, err = f.dispatcher.Record(ctx, msg)
		require.NoError(t, err)
	}
	assert.Len(t, f.notificationsOf(f.expert.ID, models.NotificationExpertFollowup, contact.ID), 1)
}

func TestRecord_GeneralNotificationsAccumulate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	recipient := primitive.NewObjectID()

	for i := 0; i < 2; i++ {
		_, err := f.dispatcher.Record(ctx, Message{
			RecipientID: recipient,
			Title:       "news",
			Data:        map[string]string{"type": string(models.NotificationGeneral), "contactId": "same"},
		})
		require.NoError(t, err)
	}
	assert.Len(t, f.notifications.ForRecipient(recipient), 2)
}

func TestRecord_RejectsMalformedData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.dispatcher.Record(ctx, Message{RecipientID: primitive.NewObjectID(), Data: map[string]string{}})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.dispatcher.Record(ctx, Message{
		RecipientID: primitive.NewObjectID(),
		Data:        map[string]string{"type": string(models.NotificationReviewRequest)},
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, 0, f.notifications.Len())
}

func TestListForRecipient_Paginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	recipient := primitive.NewObjectID()

	base := f.now
	for i := 0; i < 5; i++ {
		f.now = base.Add(time.Duration(i) * time.Minute)
		_, err := f.dispatcher.Record(ctx, Message{
			RecipientID: recipient,
			Title:       string(rune('a' + i)),
			Data:        map[string]string{"type": string(models.NotificationGeneral)},
		})
		require.NoError(t, err)
	}

	page, err := f.dispatcher.ListForRecipient(ctx, recipient, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.TotalNotifications)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 1, page.CurrentPage)
	require.Len(t, page.Notifications, 2)
	assert.Equal(t, "e", page.Notifications[0].Title)
	assert.Equal(t, "d", page.Notifications[1].Title)

	last, err := f.dispatcher.ListForRecipient(ctx, recipient, 3, 2)
	require.NoError(t, err)
	require.Len(t, last.Notifications, 1)
	assert.Equal(t, "a", last.Notifications[0].Title)

	defaults, err := f.dispatcher.ListForRecipient(ctx, recipient, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, defaults.CurrentPage)
	assert.Len(t, defaults.Notifications, 5)
}

func TestBuildFCMMessage_CarriesImageAndType(t *testing.T) {
	sentAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	msg := buildFCMMessage("tok", PushMessage{
		Title:    "title",
		Body:     "body",
		ImageURL: "https://cdn.example/icon.png",
		Data:     map[string]string{"type": "expert_suggestions"},
	}, sentAt)

	assert.Equal(t, "tok", msg.Token)
	assert.Equal(t, "https://cdn.example/icon.png", msg.Notification.ImageURL)
	assert.Equal(t, "https://cdn.example/icon.png", msg.Android.Notification.ImageURL)
	assert.Equal(t, "expert_suggestions", msg.APNS.Payload.Aps.Category)
	assert.True(t, msg.APNS.Payload.Aps.MutableContent)
	assert.Equal(t, "2024-05-01T10:00:00Z", msg.Data["timestamp"])
}

func TestSuggestionsMessage(t *testing.T) {
	service := primitive.NewObjectID()
	user := &models.User{
		ID:         primitive.NewObjectID(),
		FCMToken:   "tok",
		LastSearch: &models.LastSearch{Service: &service},
	}

	msg, err := SuggestionsMessage(user, &models.Service{Icon: "icon.png"}, "سباكة", `["a","b"]`, 2)
	require.NoError(t, err)
	assert.Equal(t, "وجدنا لك 2 خبراء متخصصين في سباكة. اضغط لمشاهدة التفاصيل.", msg.Body)
	assert.Equal(t, "icon.png", msg.ImageURL)
	assert.Equal(t, "tok", msg.PushToken)
	assert.Equal(t, service.Hex(), msg.Data["serviceId"])
	assert.Equal(t, `["a","b"]`, msg.Data["expertIds"])
	assert.Equal(t, string(models.NotificationExpertSuggestions), msg.Data["type"])
}
