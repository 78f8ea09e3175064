package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleSupervisor Role = "Supervisor"
	RoleMember     Role = "Member"
)

// ParseRole accepts any casing of a known role and returns the canonical value.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "supervisor":
		return RoleSupervisor, true
	case "member":
		return RoleMember, true
	}
	return "", false
}

func (r Role) Valid() bool {
	switch r {
	case RoleSupervisor, RoleMember:
		return true
	}
	return false
}

type User struct {
	ID                   uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Email                string         `json:"email" gorm:"uniqueIndex;not null"`
	Password             string         `json:"-" gorm:"not null"`
	FullName             string         `json:"fullName" gorm:"not null"`
	Role                 Role           `json:"role" gorm:"type:varchar(16);not null;default:'Member'"`
	FamilyID             *uuid.UUID     `json:"familyId" gorm:"type:uuid;index"`
	StarTotal            int            `json:"starTotal" gorm:"not null;default:0"`
	ResetPasswordToken   *string        `json:"-"`
	ResetPasswordExpires *time.Time     `json:"-"`
	FCMToken             string         `json:"-" gorm:"column:fcm_token"`
	CreatedAt            time.Time      `json:"createdAt"`
	UpdatedAt            time.Time      `json:"updatedAt"`
	DeletedAt            gorm.DeletedAt `json:"-" gorm:"index"`
}

// NormalizeEmail lowercases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = NormalizeEmail(u.Email)
	if u.Role == "" {
		u.Role = RoleMember
	}
	return nil
}

func (u *User) IsSupervisor() bool {
	return u.Role == RoleSupervisor
}

func (u *User) HasFamily() bool {
	return u.FamilyID != nil && *u.FamilyID != uuid.Nil
}

// Auth DTOs
type RegisterRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
}

type DeviceTokenRequest struct {
	Token string `json:"token"`
}

type AuthResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	User    User   `json:"user"`
}

// MemberInfo is the projection returned by the family member list.
type MemberInfo struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	StarTotal int       `json:"starTotal"`
}
