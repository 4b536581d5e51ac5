package services

import (
	"context"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/sa3tha/sa3tha_backend/apperr"
	"github.com/sa3tha/sa3tha_backend/models"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var (
	notificationsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sa3tha_notifications_recorded_total",
		Help: "Notifications durably recorded, by type",
	}, []string{"type"})

	notificationsRetracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sa3tha_notifications_retracted_total",
		Help: "Pending prompts deleted because they were answered or superseded",
	}, []string{"type"})

	pushDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sa3tha_push_deliveries_total",
		Help: "Push delivery attempts, by outcome (sent, failed, no_token)",
	}, []string{"outcome"})
)

// Message is one notification to dispatch. PushToken is optional; without it
// the notification is only recorded.
type Message struct {
	RecipientID primitive.ObjectID
	Title       string
	Body        string
	ImageURL    string
	Data        map[string]string
	PushToken   string
}

// Realtime mirrors recorded notifications to connected clients
type Realtime interface {
	SendToUser(userID string, payload interface{})
}

// NotificationDispatcher records notifications and delivers them by push
// and websocket. Recording is authoritative; delivery is best-effort.
type NotificationDispatcher struct {
	notifications NotificationStore
	pusher        Pusher
	realtime      Realtime
	logger        *zap.Logger
	Now           func() time.Time
}

func NewNotificationDispatcher(notifications NotificationStore, pusher Pusher, realtime Realtime, logger *zap.Logger) *NotificationDispatcher {
	return &NotificationDispatcher{
		notifications: notifications,
		pusher:        pusher,
		realtime:      realtime,
		logger:        logger,
		Now:           time.Now,
	}
}

// Dispatch records msg and then attempts delivery. Only a recording failure
// is returned.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, msg Message) (*models.Notification, error) {
	n, err := d.Record(ctx, msg)
	if err != nil {
		return nil, err
	}
	d.Deliver(ctx, n, msg.PushToken)
	return n, nil
}

// Record durably stores msg. For correlated prompts any outstanding prompt
// with the same (recipient, contactId, type) is deleted first, so at most one
// exists. Call it inside the transaction of the transition that caused it.
func (d *NotificationDispatcher) Record(ctx context.Context, msg Message) (*models.Notification, error) {
	notifType := models.NotificationType(msg.Data["type"])
	if notifType == "" {
		return nil, apperr.Validation("notification data must carry a type").WithOp("dispatcher.Record")
	}
	if notifType.Correlated() {
		if msg.Data["contactId"] == "" {
			return nil, apperr.Validation("follow-up notification must carry a contactId").WithOp("dispatcher.Record")
		}
		if err := d.Retract(ctx, models.DedupKey{
			RecipientID: msg.RecipientID,
			ContactID:   msg.Data["contactId"],
			Type:        notifType,
		}); err != nil {
			return nil, err
		}
	}

	n := &models.Notification{
		ID:          primitive.NewObjectID(),
		RecipientID: msg.RecipientID,
		Title:       msg.Title,
		Body:        msg.Body,
		ImageURL:    msg.ImageURL,
		Data:        msg.Data,
		CreatedAt:   d.Now(),
	}
	if err := d.notifications.Insert(ctx, n); err != nil {
		return nil, apperr.Internal("failed to record notification", err).WithOp("dispatcher.Record")
	}
	notificationsRecorded.WithLabelValues(string(notifType)).Inc()
	return n, nil
}

// Retract deletes the outstanding prompt identified by key
func (d *NotificationDispatcher) Retract(ctx context.Context, key models.DedupKey) error {
	deleted, err := d.notifications.DeleteByKey(ctx, key)
	if err != nil {
		return apperr.Internal("failed to delete notification", err).WithOp("dispatcher.Retract")
	}
	if deleted > 0 {
		notificationsRetracted.WithLabelValues(string(key.Type)).Add(float64(deleted))
	}
	return nil
}

// Deliver pushes n to token and mirrors it to the realtime hub. Failures are
// logged and swallowed.
func (d *NotificationDispatcher) Deliver(ctx context.Context, n *models.Notification, token string) {
	if d.realtime != nil {
		d.realtime.SendToUser(n.RecipientID.Hex(), map[string]interface{}{
			"type":         "notification",
			"notification": n,
		})
	}

	if token == "" {
		pushDeliveries.WithLabelValues("no_token").Inc()
		d.logger.Debug("no push token, notification recorded only",
			zap.String("recipient_id", n.RecipientID.Hex()),
			zap.String("notification_type", string(n.Type())))
		return
	}
	if d.pusher == nil {
		pushDeliveries.WithLabelValues("failed").Inc()
		d.logger.Warn("push transport not configured",
			zap.String("recipient_id", n.RecipientID.Hex()))
		return
	}

	err := d.pusher.Push(ctx, token, PushMessage{
		Title:    n.Title,
		Body:     n.Body,
		ImageURL: n.ImageURL,
		Data:     n.Data,
	})
	if err != nil {
		pushDeliveries.WithLabelValues("failed").Inc()
		d.logger.Warn("push delivery failed",
			zap.String("recipient_id", n.RecipientID.Hex()),
			zap.String("notification_type", string(n.Type())),
			zap.Error(err))
		return
	}
	pushDeliveries.WithLabelValues("sent").Inc()
}

// ListForRecipient returns page (1-based) of the recipient's inbox, newest first
func (d *NotificationDispatcher) ListForRecipient(ctx context.Context, recipient primitive.ObjectID, page, limit int) (*models.NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	skip := int64(page-1) * int64(limit)
	items, total, err := d.notifications.ListByRecipient(ctx, recipient, skip, int64(limit))
	if err != nil {
		return nil, apperr.Internal("failed to load notifications", err).WithOp("dispatcher.ListForRecipient")
	}
	if items == nil {
		items = []models.Notification{}
	}

	return &models.NotificationPage{
		Notifications:      items,
		CurrentPage:        page,
		TotalPages:         int(math.Ceil(float64(total) / float64(limit))),
		TotalNotifications: total,
	}, nil
}
