package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RewardHistory records stars credited to a user for a completed task.
// At most one row exists per (task, user).
type RewardHistory struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID `json:"userId" gorm:"type:uuid;uniqueIndex:idx_reward_task_user;not null"`
	TaskID      uuid.UUID `json:"taskId" gorm:"type:uuid;uniqueIndex:idx_reward_task_user;not null"`
	StarsEarned int       `json:"starsEarned" gorm:"not null"`
	Timestamp   time.Time `json:"timestamp" gorm:"not null"`
}

func (r *RewardHistory) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	return nil
}
