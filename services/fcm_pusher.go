package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
)

// Pusher delivers one push message to one device token
type Pusher interface {
	Push(ctx context.Context, token string, msg PushMessage) error
}

type PushMessage struct {
	Title    string
	Body     string
	ImageURL string
	Data     map[string]string
}

// FCMPusher sends through Firebase Cloud Messaging
type FCMPusher struct {
	app *firebase.App
}

func NewFCMPusher(app *firebase.App) *FCMPusher {
	return &FCMPusher{app: app}
}

func (p *FCMPusher) Push(ctx context.Context, token string, msg PushMessage) error {
	if p == nil || p.app == nil {
		return errors.New("firebase app not initialized")
	}
	if token == "" {
		return errors.New("empty FCM token")
	}

	client, err := p.app.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging client: %w", err)
	}

	if _, err := client.Send(ctx, buildFCMMessage(token, msg, time.Now())); err != nil {
		return fmt.Errorf("failed to send FCM notification: %w", err)
	}
	return nil
}

func buildFCMMessage(token string, msg PushMessage, sentAt time.Time) *messaging.Message {
	data := make(map[string]string, len(msg.Data)+1)
	for k, v := range msg.Data {
		data[k] = v
	}
	data["timestamp"] = sentAt.Format(time.RFC3339)

	badge := 1
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title:    msg.Title,
			Body:     msg.Body,
			ImageURL: msg.ImageURL,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:     "default",
				ChannelID: "sa3tha_fcm_channel",
				ImageURL:  msg.ImageURL,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: msg.Title,
						Body:  msg.Body,
					},
					Sound:          "default",
					Badge:          &badge,
					MutableContent: msg.ImageURL != "",
					Category:       data["type"],
				},
			},
		},
	}
}
