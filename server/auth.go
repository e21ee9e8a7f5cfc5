package server

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry is the lifetime of an admin token.
const TokenExpiry = 24 * time.Hour

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// IssueToken signs an HS256 token for username that expires after TokenExpiry.
func IssueToken(username string, secret string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(TokenExpiry).UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseToken validates signature and expiry of an admin token.
func ParseToken(tokenString string, secret string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *Server) login(c *fiber.Ctx) error {
	if !s.config.AuthEnabled() {
		return fiber.NewError(fiber.StatusServiceUnavailable, "admin login not configured")
	}

	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}

	validUser := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.config.AdminUsername)) == 1
	validPassword := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.config.AdminPassword)) == 1
	if !validUser || !validPassword {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
	}

	token, expiresAt, err := IssueToken(req.Username, s.config.JWTSecret, s.now())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"token":      token,
		"username":   req.Username,
		"expires_at": expiresAt,
	})
}

// requireAdmin checks the bearer token. Without configured credentials the
// admin routes are open.
func (s *Server) requireAdmin(c *fiber.Ctx) error {
	if !s.config.AuthEnabled() {
		return c.Next()
	}

	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Authorization header required")
	}
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenString == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid authorization header format")
	}

	claims, err := ParseToken(tokenString, s.config.JWTSecret)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
	}

	c.Locals("username", claims.Subject)
	return c.Next()
}
