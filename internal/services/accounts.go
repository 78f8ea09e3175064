package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/arnold/chore-tracker-api/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 6

// Mailer sends account notices. EmailService implements it.
type Mailer interface {
	SendWelcomeEmail(ctx context.Context, toEmail, toName string) error
	SendPasswordChangedEmail(ctx context.Context, toEmail, toName string) error
}

// AccountService handles signup, login and password reset.
type AccountService struct {
	db                  *gorm.DB
	mailer              Mailer
	hashCost            int
	firstUserSupervisor bool
}

type AccountOption func(*AccountService)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) AccountOption {
	return func(s *AccountService) { s.hashCost = cost }
}

// WithFirstUserSupervisor makes the very first registered account a Supervisor.
func WithFirstUserSupervisor(enabled bool) AccountOption {
	return func(s *AccountService) { s.firstUserSupervisor = enabled }
}

func NewAccountService(db *gorm.DB, mailer Mailer, opts ...AccountOption) *AccountService {
	s := &AccountService{
		db:       db,
		mailer:   mailer,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AccountService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	email := models.NormalizeEmail(req.Email)
	if req.FullName == "" || email == "" || req.Password == "" {
		return nil, validation("Full name, email and password are required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, validation(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}

	role := models.RoleMember
	if req.Role != "" {
		r, ok := models.ParseRole(req.Role)
		if !ok {
			return nil, validation("Role must be Supervisor or Member")
		}
		role = r
	}

	db := s.db.WithContext(ctx)

	if s.firstUserSupervisor {
		var count int64
		if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("count users: %w", err)
		}
		if count == 0 {
			role = models.RoleSupervisor
		}
	}

	var existing models.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, conflict("This email is already registered")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hashed, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:    email,
		Password: hashed,
		FullName: req.FullName,
		Role:     role,
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, conflict("This email is already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.notify(func(ctx context.Context) error {
		return s.mailer.SendWelcomeEmail(ctx, user.Email, user.FullName)
	})

	return &user, nil
}

// Login returns the user matching the credentials. Unknown email and wrong
// password produce the same error.
func (s *AccountService) Login(ctx context.Context, req models.LoginRequest) (*models.User, error) {
	email := models.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, validation("Please provide an email and password")
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(ErrInvalidCredentials, "Invalid credentials")
		}
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, newError(ErrInvalidCredentials, "Invalid credentials")
	}
	return &user, nil
}

// ResetPassword overwrites the password of the account with the given email.
// No reset token is required.
func (s *AccountService) ResetPassword(ctx context.Context, req models.ForgotPasswordRequest) error {
	email := models.NormalizeEmail(req.Email)
	if email == "" || req.NewPassword == "" {
		return validation("Please provide email and new password")
	}
	if len(req.NewPassword) < minPasswordLength {
		return validation(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}

	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("User not found")
		}
		return fmt.Errorf("lookup email: %w", err)
	}

	hashed, err := s.hashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	err = db.Model(&user).Updates(map[string]interface{}{
		"password":               hashed,
		"reset_password_token":   nil,
		"reset_password_expires": nil,
	}).Error
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.notify(func(ctx context.Context) error {
		return s.mailer.SendPasswordChangedEmail(ctx, user.Email, user.FullName)
	})
	return nil
}

func (s *AccountService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("User not found")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// SetDeviceToken saves the FCM token used for push notifications.
func (s *AccountService) SetDeviceToken(ctx context.Context, userID uuid.UUID, token string) error {
	if token == "" {
		return validation("Token is required")
	}
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("fcm_token", token).Error
	if err != nil {
		return fmt.Errorf("save device token: %w", err)
	}
	return nil
}

// RewardHistory lists the stars credited to a user, newest first.
func (s *AccountService) RewardHistory(ctx context.Context, userID uuid.UUID) ([]models.RewardHistory, error) {
	history := []models.RewardHistory{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("list reward history: %w", err)
	}
	return history, nil
}

func (s *AccountService) hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// notify sends mail off the request path; failures are only logged.
func (s *AccountService) notify(send func(ctx context.Context) error) {
	if s.mailer == nil {
		return
	}
	go func() {
		if err := send(context.Background()); err != nil {
			log.Printf("Email: %v", err)
		}
	}()
}
