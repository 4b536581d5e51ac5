package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationType discriminates notification payloads
type NotificationType string

const (
	NotificationExpertFollowup    NotificationType = "expert_followup"
	NotificationCustomerFollowup  NotificationType = "customer_followup"
	NotificationReviewRequest     NotificationType = "review_request"
	NotificationExpertSuggestions NotificationType = "expert_suggestions"
	NotificationGeneral           NotificationType = "general_notification"
)

// Correlated reports whether notifications of this type are pending prompts
// keyed by contact id
func (t NotificationType) Correlated() bool {
	switch t {
	case NotificationExpertFollowup, NotificationCustomerFollowup, NotificationReviewRequest:
		return true
	}
	return false
}

// Notification model. Data always carries "type"; follow-up prompts also
// carry "contactId".
type Notification struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	RecipientID primitive.ObjectID `json:"recipient" bson:"recipient"`
	Title       string             `json:"title" bson:"title"`
	Body        string             `json:"body" bson:"body"`
	ImageURL    string             `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
	Data        map[string]string  `json:"data,omitempty" bson:"data,omitempty"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
}

// Type returns the data discriminator
func (n *Notification) Type() NotificationType {
	return NotificationType(n.Data["type"])
}

// ContactID returns the correlation id, empty for general notifications
func (n *Notification) ContactID() string {
	return n.Data["contactId"]
}

// DedupKey identifies one outstanding prompt
type DedupKey struct {
	RecipientID primitive.ObjectID
	ContactID   string
	Type        NotificationType
}

// NotificationPage is one page of a recipient's inbox
type NotificationPage struct {
	Notifications      []Notification `json:"notifications"`
	CurrentPage        int            `json:"currentPage"`
	TotalPages         int            `json:"totalPages"`
	TotalNotifications int64          `json:"totalNotifications"`
}
