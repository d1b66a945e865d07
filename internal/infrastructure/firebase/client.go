package firebase

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"ledgerlink/internal/domain/notification"
)

// Client implements notification.Notifier using Firebase Cloud Messaging.
// Messages go to the per-user topic, so no device token registry is needed
// on this side; the app subscribes its devices to the topic.
type Client struct {
	msgClient *messaging.Client
}

var _ notification.Notifier = (*Client)(nil)

// NewClient initializes a Firebase app and returns an FCM client.
func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging client: %w", err)
	}

	return &Client{msgClient: msgClient}, nil
}

// Notify sends msg to the user's topic.
func (c *Client) Notify(ctx context.Context, msg notification.Message) error {
	topic := notification.UserTopic(msg.UserID)

	id, err := c.msgClient.Send(ctx, &messaging.Message{
		Topic: topic,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
	})
	if err != nil {
		if messaging.IsInvalidArgument(err) {
			return fmt.Errorf("invalid FCM message for topic %s: %w", topic, err)
		}
		return fmt.Errorf("failed to send FCM message: %w", err)
	}

	log.Printf("FCM %s sent to %s (id=%s)", msg.Kind, topic, id)
	return nil
}
