package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arnold/chore-tracker-api/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const userKey = "user"

type Claims struct {
	UserID uuid.UUID   `json:"userId"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Auth issues and verifies bearer tokens and resolves them to users.
type Auth struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
}

func NewAuth(db *gorm.DB, secret string, ttl time.Duration) *Auth {
	return &Auth{
		db:     db,
		secret: []byte(secret),
		ttl:    ttl,
	}
}

func (a *Auth) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ParseToken verifies signature, algorithm and expiry.
func (a *Auth) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == uuid.Nil {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Authenticate resolves a raw token to the current user record.
func (a *Auth) Authenticate(tokenString string) (*models.User, error) {
	claims, err := a.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := a.db.Omit("password").First(&user, "id = ?", claims.UserID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Protected requires a valid bearer token for an existing user and stores
// that user in the request context.
func (a *Auth) Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := BearerToken(c)
		if !ok {
			return deny(c, fiber.StatusUnauthorized, "Not authorized, no token")
		}

		claims, err := a.ParseToken(tokenString)
		if err != nil {
			return deny(c, fiber.StatusUnauthorized, "Not authorized, token invalid or expired")
		}

		var user models.User
		err = a.db.WithContext(c.UserContext()).Omit("password").First(&user, "id = ?", claims.UserID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return deny(c, fiber.StatusUnauthorized, "User not found")
			}
			return deny(c, fiber.StatusInternalServerError, "Server error")
		}

		c.Locals(userKey, &user)
		return c.Next()
	}
}

// RequireRoles rejects users whose role is not listed. No roles means any
// authenticated user.
func RequireRoles(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := GetUser(c)
		if user == nil {
			return deny(c, fiber.StatusUnauthorized, "Unauthorized")
		}
		if len(roles) == 0 {
			return c.Next()
		}
		for _, r := range roles {
			if user.Role == r {
				return c.Next()
			}
		}
		return deny(c, fiber.StatusForbidden, fmt.Sprintf("Forbidden. User role %s not authorized.", user.Role))
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if authHeader == "" || tokenString == authHeader || tokenString == "" {
		return "", false
	}
	return tokenString, true
}

// GetUser returns the user attached by Protected, or nil.
func GetUser(c *fiber.Ctx) *models.User {
	user, ok := c.Locals(userKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) uuid.UUID {
	if user := GetUser(c); user != nil {
		return user.ID
	}
	return uuid.Nil
}

func deny(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}
