package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/db"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
)

// HashRefreshToken is the form a refresh token is stored and looked up in.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IssueRefreshToken creates a refresh token for user and stores its hash,
// replacing any token issued before.
func (s *Service) IssueRefreshToken(ctx context.Context, users db.UserCollection, user *models.User) (string, error) {
	token, err := s.GenerateRefreshToken()
	if err != nil {
		return "", err
	}
	if err := users.SetRefreshToken(ctx, user.ID.Hex(), HashRefreshToken(token), s.now().Add(s.refreshExp)); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return token, nil
}

// Refresh redeems a refresh token for a new access token and a rotated refresh token.
// The redeemed token stops working.
func (s *Service) Refresh(ctx context.Context, users db.UserCollection, refreshToken string) (*models.LoginResponse, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	hash := HashRefreshToken(refreshToken)

	user, err := users.FindUserByRefreshToken(ctx, hash)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	if user.RefreshTokenExpires == nil || !s.now().Before(*user.RefreshTokenExpires) {
		return nil, ErrExpiredRefreshToken
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	next, err := s.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	err = users.RotateRefreshToken(ctx, hash, HashRefreshToken(next), s.now().Add(s.refreshExp))
	if errors.Is(err, db.ErrNotFound) {
		// redeemed concurrently
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &models.LoginResponse{Token: token, RefreshToken: next, User: *user}, nil
}
