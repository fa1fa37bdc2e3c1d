// Package auth issues and checks access tokens and hashes passwords.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/apperr"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/validation"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	issuer               = "carbook"
	defaultRefreshExpiry = 30 * 24 * time.Hour
)

var (
	ErrInvalidToken       = apperr.New(apperr.CodeAuthRequired, "invalid token", nil)
	ErrExpiredToken       = apperr.New(apperr.CodeAuthRequired, "token expired", nil)
	ErrMissingToken       = apperr.New(apperr.CodeAuthRequired, "authorization header required", nil)
	ErrInvalidCredentials = apperr.New(apperr.CodeAuthRequired, "invalid credentials", nil)
	ErrUserInactive       = apperr.New(apperr.CodeForbidden, "account is deactivated", nil)

	ErrInvalidRefreshToken = apperr.New(apperr.CodeAuthRequired, "invalid refresh token", nil)
	ErrExpiredRefreshToken = apperr.New(apperr.CodeAuthRequired, "refresh token expired", nil)
)

// tokenClaims is the JWT payload. The subject is the user id.
type tokenClaims struct {
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Service handles authentication operations
type Service struct {
	jwtSecret  []byte
	tokenExp   time.Duration
	refreshExp time.Duration
	now        func() time.Time
}

// NewService creates a token service signing with secret. A non-positive expiry means 24h.
func NewService(secret string, expiry time.Duration) *Service {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &Service{
		jwtSecret:  []byte(secret),
		tokenExp:   expiry,
		refreshExp: defaultRefreshExpiry,
		now:        time.Now,
	}
}

// WithRefreshExpiry sets how long refresh tokens stay valid. Non-positive values are ignored.
func (s *Service) WithRefreshExpiry(expiry time.Duration) *Service {
	if expiry > 0 {
		s.refreshExp = expiry
	}
	return s
}

// HashPassword hashes a password using bcrypt
func (s *Service) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPassword checks if a password matches a hash
func (s *Service) CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateToken signs an HS256 access token for user.
func (s *Service) GenerateToken(user *models.User) (string, error) {
	now := s.now()
	claims := tokenClaims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExp)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// GenerateRefreshToken generates an opaque refresh token
func (s *Service) GenerateRefreshToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// ValidateToken checks signature, issuer and expiry and returns the claims.
// A "Bearer " prefix is accepted.
func (s *Service) ValidateToken(tokenString string) (*models.Claims, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.ExpiresAt == nil || !models.IsValidRole(claims.Role) {
		return nil, ErrInvalidToken
	}

	return &models.Claims{
		UserID:   claims.Subject,
		Username: claims.Username,
		Role:     claims.Role,
		Exp:      claims.ExpiresAt.Unix(),
	}, nil
}

// ExtractTokenFromHeader extracts token from Authorization header
func (s *Service) ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}

// ValidateRegistration checks a registration request and fills in the default role.
func (s *Service) ValidateRegistration(req *models.RegisterRequest) error {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validation.Struct(req); err != nil {
		return err
	}
	if req.Role == "" {
		req.Role = models.RoleViewer
	}
	return nil
}
