package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/arnold/chore-tracker-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event types sent to connected family clients
const (
	EventMemberJoined  = "member_joined"
	EventTaskCreated   = "task_created"
	EventTaskUpdated   = "task_updated"
	EventTaskDeleted   = "task_deleted"
	EventStatusChanged = "task_status_changed"
)

// Event is the JSON message broadcast to a family's live connections.
type Event struct {
	Type     string      `json:"type"`
	FamilyID string      `json:"familyId"`
	UserID   string      `json:"userId"`
	Data     interface{} `json:"data,omitempty"`
}

// Broadcaster fans events out to live clients of a family.
type Broadcaster interface {
	Broadcast(familyID, excludeUserID uuid.UUID, event Event)
}

// Pusher delivers a device push notification.
type Pusher interface {
	SendToUser(userID uuid.UUID, title, body string, data map[string]string)
}

// Notifier records activity and notifications and fans them out to push and
// live connections. A nil Notifier does nothing.
type Notifier struct {
	db   *gorm.DB
	push Pusher
	hub  Broadcaster
}

func NewNotifier(db *gorm.DB, push Pusher, hub Broadcaster) *Notifier {
	return &Notifier{db: db, push: push, hub: hub}
}

// LogActivity appends to the family activity feed. Failures are logged, not returned.
func (n *Notifier) LogActivity(ctx context.Context, familyID, userID uuid.UUID, action string, targetID *uuid.UUID, metadata map[string]interface{}) {
	if n == nil {
		return
	}
	activity := models.Activity{
		FamilyID:   familyID,
		UserID:     userID,
		ActionType: action,
		TargetID:   targetID,
		Metadata:   encodeMetadata(metadata),
	}
	if err := n.db.WithContext(ctx).Create(&activity).Error; err != nil {
		log.Printf("Activity: failed to log %s for family %s: %v", action, familyID, err)
	}
}

// Notify stores an in-app notification for each user except exclude and pushes it.
func (n *Notifier) Notify(ctx context.Context, userIDs []uuid.UUID, exclude uuid.UUID, notifType, title, body string, metadata map[string]interface{}) {
	if n == nil {
		return
	}

	var pushData map[string]string
	if metadata != nil {
		pushData = make(map[string]string, len(metadata)+1)
		for k, v := range metadata {
			pushData[k] = fmt.Sprintf("%v", v)
		}
		pushData["type"] = notifType
	}
	encoded := encodeMetadata(metadata)

	for _, userID := range userIDs {
		if userID == exclude {
			continue
		}
		notif := models.Notification{
			UserID:   userID,
			Type:     notifType,
			Title:    title,
			Body:     body,
			Metadata: encoded,
		}
		if err := n.db.WithContext(ctx).Create(&notif).Error; err != nil {
			log.Printf("Notification: failed to store %s for user %s: %v", notifType, userID, err)
			continue
		}
		if n.push != nil {
			go n.push.SendToUser(userID, title, body, pushData)
		}
	}
}

// NotifySupervisor notifies the supervisor of a family.
func (n *Notifier) NotifySupervisor(ctx context.Context, familyID, exclude uuid.UUID, notifType, title, body string, metadata map[string]interface{}) {
	if n == nil {
		return
	}
	var family models.Family
	if err := n.db.WithContext(ctx).Select("supervisor_id").First(&family, "id = ?", familyID).Error; err != nil {
		log.Printf("Notification: supervisor lookup for family %s: %v", familyID, err)
		return
	}
	n.Notify(ctx, []uuid.UUID{family.SupervisorID}, exclude, notifType, title, body, metadata)
}

// Broadcast sends a live event to the family room, excluding the actor.
func (n *Notifier) Broadcast(familyID, actorID uuid.UUID, eventType string, data interface{}) {
	if n == nil || n.hub == nil {
		return
	}
	n.hub.Broadcast(familyID, actorID, Event{
		Type:     eventType,
		FamilyID: familyID.String(),
		UserID:   actorID.String(),
		Data:     data,
	})
}

// ListNotifications returns a page of the user's notifications with total and unread counts.
func (n *Notifier) ListNotifications(ctx context.Context, userID uuid.UUID, page Page) ([]models.Notification, int64, int64, error) {
	db := n.db.WithContext(ctx)

	notifications := []models.Notification{}
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, 0, fmt.Errorf("list notifications: %w", err)
	}

	var total, unread int64
	if err := db.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, 0, fmt.Errorf("count notifications: %w", err)
	}
	if err := db.Model(&models.Notification{}).Where("user_id = ? AND read = ?", userID, false).Count(&unread).Error; err != nil {
		return nil, 0, 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return notifications, total, unread, nil
}

func (n *Notifier) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	result := n.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true)
	if result.Error != nil {
		return fmt.Errorf("mark notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound("Notification not found")
	}
	return nil
}

func (n *Notifier) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	err := n.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true).Error
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

func encodeMetadata(metadata map[string]interface{}) *string {
	if metadata == nil {
		return nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}
