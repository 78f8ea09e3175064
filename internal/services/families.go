package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arnold/chore-tracker-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const inviteCodeAttempts = 10

var errInviteCodeExhausted = errors.New("could not generate a unique invite code")

// FamilyService handles family creation, invite codes and membership.
type FamilyService struct {
	db       *gorm.DB
	notifier *Notifier
}

func NewFamilyService(db *gorm.DB, notifier *Notifier) *FamilyService {
	return &FamilyService{db: db, notifier: notifier}
}

// CreateFamily creates a family supervised by the caller and moves the caller into it.
func (s *FamilyService) CreateFamily(ctx context.Context, user *models.User, req models.CreateFamilyRequest) (*models.Family, error) {
	switch user.Role {
	case models.RoleSupervisor:
	case models.RoleMember:
		return nil, forbidden("Only supervisors can create a family")
	default:
		return nil, forbidden("Unknown role")
	}
	if user.HasFamily() {
		return nil, conflict("User already belongs to a family")
	}
	name := strings.TrimSpace(req.FamilyName)
	if name == "" {
		return nil, validation("Family name is required")
	}

	family := models.Family{
		FamilyName:   name,
		SupervisorID: user.ID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := uniqueInviteCode(tx)
		if err != nil {
			return err
		}
		family.InviteCode = code
		if err := tx.Create(&family).Error; err != nil {
			return fmt.Errorf("create family: %w", err)
		}
		return assignFamily(tx, user.ID, family.ID)
	})
	if err != nil {
		return nil, err
	}
	user.FamilyID = &family.ID

	s.notifier.LogActivity(ctx, family.ID, user.ID, models.ActionFamilyCreated, &family.ID, map[string]interface{}{
		"familyName": family.FamilyName,
	})
	return &family, nil
}

// JoinFamily moves the caller into the family owning the invite code.
func (s *FamilyService) JoinFamily(ctx context.Context, user *models.User, req models.JoinFamilyRequest) (*models.Family, error) {
	if user.HasFamily() {
		return nil, conflict("User already belongs to a family")
	}
	code := strings.ToUpper(strings.TrimSpace(req.InviteCode))
	if code == "" {
		return nil, validation("Invite code is required")
	}

	db := s.db.WithContext(ctx)

	var family models.Family
	if err := db.Where("invite_code = ?", code).First(&family).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Invalid invite code")
		}
		return nil, fmt.Errorf("lookup invite code: %w", err)
	}

	if err := assignFamily(db, user.ID, family.ID); err != nil {
		return nil, err
	}
	user.FamilyID = &family.ID

	s.notifier.LogActivity(ctx, family.ID, user.ID, models.ActionMemberJoined, &user.ID, nil)
	members, err := s.memberIDs(ctx, family.ID)
	if err == nil {
		s.notifier.Notify(ctx, members, user.ID, models.NotifyMemberJoined,
			"New member joined",
			user.FullName+" joined "+family.FamilyName,
			map[string]interface{}{"familyId": family.ID.String()},
		)
	}
	s.notifier.Broadcast(family.ID, user.ID, EventMemberJoined, map[string]interface{}{
		"fullName": user.FullName,
	})
	return &family, nil
}

// GetDetails returns the caller's family. The invite code is only included for supervisors.
func (s *FamilyService) GetDetails(ctx context.Context, user *models.User) (*models.FamilyDetails, error) {
	if !user.HasFamily() {
		return nil, validation("User does not belong to a family")
	}
	db := s.db.WithContext(ctx)

	var family models.Family
	if err := db.Preload("Supervisor").First(&family, "id = ?", *user.FamilyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Family not found")
		}
		return nil, fmt.Errorf("get family: %w", err)
	}

	var count int64
	if err := db.Model(&models.User{}).Where("family_id = ?", family.ID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}

	details := &models.FamilyDetails{
		ID:         family.ID,
		FamilyName: family.FamilyName,
		Supervisor: models.SupervisorInfo{
			ID:       family.Supervisor.ID,
			FullName: family.Supervisor.FullName,
			Email:    family.Supervisor.Email,
		},
		MemberCount: count,
	}
	if user.IsSupervisor() {
		details.InviteCode = family.InviteCode
	}
	return details, nil
}

// ListMembers returns everyone sharing the caller's family.
func (s *FamilyService) ListMembers(ctx context.Context, user *models.User) ([]models.MemberInfo, error) {
	if !user.HasFamily() {
		return nil, validation("User does not belong to a family")
	}
	members := []models.MemberInfo{}
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Select("id", "full_name", "email", "role", "star_total").
		Where("family_id = ?", *user.FamilyID).
		Order("created_at ASC").
		Scan(&members).Error
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// RegenerateInviteCode replaces the family's invite code. Only the family's supervisor may do this.
func (s *FamilyService) RegenerateInviteCode(ctx context.Context, user *models.User) (string, error) {
	if !user.HasFamily() {
		return "", validation("User does not belong to a family")
	}

	var code string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var family models.Family
		err := tx.Where("id = ? AND supervisor_id = ?", *user.FamilyID, user.ID).First(&family).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return forbidden("Only the family supervisor can regenerate the invite code")
			}
			return fmt.Errorf("get family: %w", err)
		}
		code, err = uniqueInviteCode(tx)
		if err != nil {
			return err
		}
		return tx.Model(&family).Update("invite_code", code).Error
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

// ListActivity returns a page of the caller's family activity feed.
func (s *FamilyService) ListActivity(ctx context.Context, user *models.User, page Page) ([]models.Activity, int64, error) {
	if !user.HasFamily() {
		return nil, 0, validation("User does not belong to a family")
	}
	db := s.db.WithContext(ctx)

	activities := []models.Activity{}
	err := db.Where("family_id = ?", *user.FamilyID).
		Preload("User").
		Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&activities).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list activity: %w", err)
	}

	var total int64
	if err := db.Model(&models.Activity{}).Where("family_id = ?", *user.FamilyID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count activity: %w", err)
	}
	return activities, total, nil
}

func (s *FamilyService) memberIDs(ctx context.Context, familyID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("family_id = ?", familyID).
		Pluck("id", &ids).Error
	return ids, err
}

// assignFamily sets a user's family only if they have none yet.
func assignFamily(db *gorm.DB, userID, familyID uuid.UUID) error {
	result := db.Model(&models.User{}).
		Where("id = ? AND family_id IS NULL", userID).
		Update("family_id", familyID)
	if result.Error != nil {
		return fmt.Errorf("assign family: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return conflict("User already belongs to a family")
	}
	return nil
}

func uniqueInviteCode(db *gorm.DB) (string, error) {
	for i := 0; i < inviteCodeAttempts; i++ {
		code, err := models.GenerateInviteCode()
		if err != nil {
			return "", fmt.Errorf("generate invite code: %w", err)
		}
		var count int64
		if err := db.Unscoped().Model(&models.Family{}).Where("invite_code = ?", code).Count(&count).Error; err != nil {
			return "", fmt.Errorf("check invite code: %w", err)
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", errInviteCodeExhausted
}
