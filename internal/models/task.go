package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskStatus is the closed set of task lifecycle states.
type TaskStatus string

const (
	StatusPending     TaskStatus = "Pending"
	StatusForApproval TaskStatus = "For_Approval"
	StatusCompleted   TaskStatus = "Completed"
	StatusRejected    TaskStatus = "Rejected"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusForApproval, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

const (
	MinRewardValue = 0
	MaxRewardValue = 5
)

type Task struct {
	ID               uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Title            string         `json:"title" gorm:"not null"`
	Description      string         `json:"description"`
	RewardValue      int            `json:"rewardValue" gorm:"not null;default:0"`
	DueDate          time.Time      `json:"dueDate" gorm:"not null"`
	NotificationTime *time.Time     `json:"notificationTime"`
	FamilyID         uuid.UUID      `json:"familyId" gorm:"type:uuid;index;not null"`
	CreatedBy        uuid.UUID      `json:"createdBy" gorm:"type:uuid"`
	Status           TaskStatus     `json:"status" gorm:"type:varchar(16);index;not null;default:'Pending'"`
	ProofImage       *string        `json:"proofImage"`
	ProofNotes       *string        `json:"proofNotes"`
	CompletedAt      *time.Time     `json:"completedAt"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	Assignees        []TaskAssignee `json:"-" gorm:"foreignKey:TaskID"`
	AssignTo         []uuid.UUID    `json:"assignTo" gorm:"-"`
}

// TaskAssignee is one row of the task/user assignment join table.
type TaskAssignee struct {
	TaskID uuid.UUID `json:"taskId" gorm:"type:uuid;primaryKey"`
	UserID uuid.UUID `json:"userId" gorm:"type:uuid;primaryKey;index"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	for i := range t.Assignees {
		t.Assignees[i].TaskID = t.ID
	}
	return nil
}

func (t *Task) AfterCreate(tx *gorm.DB) error {
	t.syncAssignTo()
	return nil
}

func (t *Task) AfterFind(tx *gorm.DB) error {
	t.syncAssignTo()
	return nil
}

func (t *Task) syncAssignTo() {
	ids := make([]uuid.UUID, 0, len(t.Assignees))
	for _, a := range t.Assignees {
		ids = append(ids, a.UserID)
	}
	t.AssignTo = ids
}

// IsAssignee reports whether the user is on the task's assignee list.
// Assignees must be loaded.
func (t *Task) IsAssignee(userID uuid.UUID) bool {
	for _, a := range t.Assignees {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

// AssigneeList accepts either a single id or an array of ids.
type AssigneeList []uuid.UUID

func (l *AssigneeList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var ids []uuid.UUID
		if err := json.Unmarshal(data, &ids); err != nil {
			return err
		}
		*l = ids
		return nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*l = AssigneeList{id}
	return nil
}

// Task DTOs
type CreateTaskRequest struct {
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	RewardValue      *int         `json:"rewardValue"`
	DueDate          string       `json:"dueDate"`
	NotificationTime string       `json:"notificationTime"`
	AssignTo         AssigneeList `json:"assignTo"`
}

type UpdateTaskRequest struct {
	Title            *string      `json:"title"`
	Description      *string      `json:"description"`
	RewardValue      *int         `json:"rewardValue"`
	DueDate          *string      `json:"dueDate"`
	NotificationTime *string      `json:"notificationTime"`
	AssignTo         AssigneeList `json:"assignTo"`
	Status           *string      `json:"status"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}
