package services

import (
	"context"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/arnold/chore-tracker-api/internal/models"
	"github.com/google/uuid"
	"google.golang.org/api/option"
	"gorm.io/gorm"
)

// PushService handles sending push notifications via Firebase Cloud Messaging
type PushService struct {
	db     *gorm.DB
	client *messaging.Client
}

// NewPushService initializes the Firebase push notification service.
// Without a service account, or if Firebase fails to start, the returned
// service silently drops messages.
func NewPushService(ctx context.Context, db *gorm.DB, serviceAccountPath string) *PushService {
	p := &PushService{db: db}
	if serviceAccountPath == "" {
		log.Println("FCM: No service account configured, push notifications disabled")
		return p
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		log.Printf("FCM: Failed to initialize Firebase app: %v", err)
		return p
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		log.Printf("FCM: Failed to get messaging client: %v", err)
		return p
	}

	p.client = client
	log.Println("FCM: Push notifications enabled")
	return p
}

func (p *PushService) Enabled() bool {
	return p.client != nil
}

// SendToUser sends a push notification to a user by their ID.
// No-op if push is not configured or user has no FCM token.
func (p *PushService) SendToUser(userID uuid.UUID, title, body string, data map[string]string) {
	if p.client == nil {
		return
	}

	var user models.User
	if err := p.db.Select("fcm_token").First(&user, "id = ?", userID).Error; err != nil {
		return
	}

	if user.FCMToken == "" {
		return
	}

	msg := &messaging.Message{
		Token: user.FCMToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	if _, err := p.client.Send(context.Background(), msg); err != nil {
		log.Printf("FCM: Failed to send to user %s: %v", userID, err)
	}
}
