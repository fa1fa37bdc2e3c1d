package db

import (
	"context"
	"testing"
	"time"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUser() models.User {
	return models.User{
		Username:     "testuser",
		Email:        "test@example.com",
		PasswordHash: "hashedpassword",
		Role:         models.RoleMechanic,
		DisplayName:  "Test User",
	}
}

func TestMongoUserCollection_InsertAndFind(t *testing.T) {
	userCollection := &MongoUserCollection{Collection: testDatabase(t).Collection(UsersName)}
	ctx := context.Background()
	user := newTestUser()

	require.NoError(t, userCollection.InsertUser(ctx, user))

	count, err := userCollection.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	byName, err := userCollection.FindUserByUsername(ctx, "testuser")
	require.NoError(t, err)
	assert.Equal(t, user.Email, byName.Email)
	assert.Equal(t, models.RoleMechanic, byName.Role)
	assert.True(t, byName.IsActive)
	assert.NotZero(t, byName.CreatedAt)

	byID, err := userCollection.FindUserByID(ctx, byName.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Test User", byID.DisplayName)

	byEmail, err := userCollection.FindUserByEmail(ctx, "test@example.com")
	require.NoError(t, err)
	assert.Equal(t, byName.ID, byEmail.ID)
}

func TestMongoUserCollection_NotFound(t *testing.T) {
	userCollection := &MongoUserCollection{Collection: testDatabase(t).Collection(UsersName)}
	ctx := context.Background()

	_, err := userCollection.FindUserByUsername(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = userCollection.FindUserByEmail(ctx, "nonexistent@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = userCollection.FindUserByID(ctx, "invalid-id")
	assert.Error(t, err)
}

func TestMongoUserCollection_UpdateLastLogin(t *testing.T) {
	userCollection := &MongoUserCollection{Collection: testDatabase(t).Collection(UsersName)}
	ctx := context.Background()
	require.NoError(t, userCollection.InsertUser(ctx, newTestUser()))

	inserted, err := userCollection.FindUserByUsername(ctx, "testuser")
	require.NoError(t, err)

	require.NoError(t, userCollection.UpdateLastLogin(ctx, inserted.ID.Hex()))

	updated, err := userCollection.FindUserByID(ctx, inserted.ID.Hex())
	require.NoError(t, err)
	require.NotNil(t, updated.LastLogin)
	assert.False(t, updated.LastLogin.Before(inserted.CreatedAt))
}

func TestMongoUserCollection_RefreshToken(t *testing.T) {
	userCollection := &MongoUserCollection{Collection: testDatabase(t).Collection(UsersName)}
	ctx := context.Background()
	require.NoError(t, userCollection.InsertUser(ctx, newTestUser()))
	inserted, err := userCollection.FindUserByUsername(ctx, "testuser")
	require.NoError(t, err)
	expires := time.Now().Add(time.Hour).Truncate(time.Millisecond)

	require.NoError(t, userCollection.SetRefreshToken(ctx, inserted.ID.Hex(), "hash-1", expires))
	holder, err := userCollection.FindUserByRefreshToken(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, inserted.ID, holder.ID)
	require.NotNil(t, holder.RefreshTokenExpires)
	assert.True(t, expires.Equal(*holder.RefreshTokenExpires))

	require.NoError(t, userCollection.RotateRefreshToken(ctx, "hash-1", "hash-2", expires))
	assert.ErrorIs(t, userCollection.RotateRefreshToken(ctx, "hash-1", "hash-3", expires), ErrNotFound)

	_, err = userCollection.FindUserByRefreshToken(ctx, "hash-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = userCollection.FindUserByRefreshToken(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, userCollection.SetRefreshToken(ctx, "000000000000000000000000", "hash-4", expires), ErrNotFound)
}
