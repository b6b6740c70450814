package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/seuros/leadtrack/internal/models"
)

const userLocal = "user"

// AuthUser is the dashboard user named by a verified bearer token.
type AuthUser struct {
	ID    uuid.UUID
	Email string
}

// UserAuth verifies HS256 tokens issued by the identity platform. The user
// id is the "sub" claim. An empty secret rejects every request. Browsers
// cannot set headers on websocket upgrades, so the token may also arrive as
// the access_token query parameter.
func UserAuth(secret string) fiber.Handler {
	return func(c fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			token = c.Query("access_token")
		}
		if token == "" || secret == "" {
			return deny(c, fiber.StatusUnauthorized, models.CodeUnauthenticated, "Authentication required")
		}
		user, err := ParseUserToken(token, secret)
		if err != nil {
			return deny(c, fiber.StatusUnauthorized, models.CodeUnauthenticated, "Invalid or expired session")
		}
		c.Locals(userLocal, user)
		return c.Next()
	}
}

// ParseUserToken validates signature, expiry and subject.
func ParseUserToken(tokenString, secret string) (*AuthUser, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}
	email, _ := claims["email"].(string)
	return &AuthUser{ID: id, Email: email}, nil
}

// IssueUserToken signs a token in the format UserAuth accepts.
func IssueUserToken(userID uuid.UUID, email, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if email != "" {
		claims["email"] = email
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// GetUser returns the authenticated user, or nil.
func GetUser(c fiber.Ctx) *AuthUser {
	user, _ := c.Locals(userLocal).(*AuthUser)
	return user
}

// CurrentUserID returns the authenticated user's id or ErrUnauthenticated.
func CurrentUserID(c fiber.Ctx) (uuid.UUID, error) {
	if user := GetUser(c); user != nil {
		return user.ID, nil
	}
	return uuid.Nil, models.ErrUnauthenticated
}
