package auth

import (
	"context"
	"fmt"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/apperr"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/db"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EnsureOwner creates the owner account when no user exists yet. It reports whether an
// account was created. Registration needs an authenticated owner, so this is the only way
// the first account comes to be.
func (s *Service) EnsureOwner(ctx context.Context, users db.UserCollection, username, password, displayName string) (bool, error) {
	count, err := users.CountUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if len(password) < 8 {
		return false, apperr.New(apperr.CodeConfigMissing,
			"CARBOOK_OWNER_PASSWORD (8+ characters) is required to create the owner account", nil)
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return false, err
	}
	owner := models.User{
		ID:           primitive.NewObjectID(),
		Username:     username,
		PasswordHash: hash,
		Role:         models.RoleOwner,
		DisplayName:  displayName,
		IsActive:     true,
	}
	if err := users.InsertUser(ctx, owner); err != nil {
		return false, err
	}
	log.WithField("username", username).Info("Owner account created")
	return true, nil
}
