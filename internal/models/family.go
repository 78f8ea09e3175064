package models

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	InviteCodeLength   = 6
	inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type Family struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	FamilyName   string         `json:"familyName" gorm:"not null"`
	InviteCode   string         `json:"inviteCode,omitempty" gorm:"size:6;uniqueIndex;not null"`
	SupervisorID uuid.UUID      `json:"supervisorId" gorm:"type:uuid;index;not null"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`

	Supervisor User `json:"-" gorm:"foreignKey:SupervisorID"`
}

func (f *Family) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.InviteCode == "" {
		code, err := GenerateInviteCode()
		if err != nil {
			return err
		}
		f.InviteCode = code
	}
	return nil
}

// GenerateInviteCode returns a random 6-character uppercase alphanumeric code.
func GenerateInviteCode() (string, error) {
	max := big.NewInt(int64(len(inviteCodeAlphabet)))
	b := make([]byte, InviteCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = inviteCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// Family DTOs
type CreateFamilyRequest struct {
	FamilyName string `json:"familyName"`
}

type JoinFamilyRequest struct {
	InviteCode string `json:"inviteCode"`
}

type SupervisorInfo struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"fullName"`
	Email    string    `json:"email"`
}

type FamilyDetails struct {
	ID          uuid.UUID      `json:"id"`
	FamilyName  string         `json:"familyName"`
	InviteCode  string         `json:"inviteCode,omitempty"`
	Supervisor  SupervisorInfo `json:"supervisor"`
	MemberCount int64          `json:"memberCount"`
}
