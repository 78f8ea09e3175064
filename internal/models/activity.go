package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Activity action types
const (
	ActionFamilyCreated = "family_created"
	ActionMemberJoined  = "member_joined"
	ActionTaskCreated   = "task_created"
	ActionTaskUpdated   = "task_updated"
	ActionTaskDeleted   = "task_deleted"
	ActionTaskStatus    = "task_status_changed"
	ActionProofSubmit   = "proof_submitted"
)

type Activity struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	FamilyID   uuid.UUID  `json:"familyId" gorm:"type:uuid;index;not null"`
	UserID     uuid.UUID  `json:"userId" gorm:"type:uuid;not null"`
	ActionType string     `json:"actionType" gorm:"not null"`
	TargetID   *uuid.UUID `json:"targetId" gorm:"type:uuid"` // task ID or user ID depending on action
	Metadata   *string    `json:"metadata"`
	CreatedAt  time.Time  `json:"createdAt"`

	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
