package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserCollection defines the interface for user database operations
type UserCollection interface {
	InsertUser(ctx context.Context, user models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	CountUsers(ctx context.Context) (int64, error)
	UpdateLastLogin(ctx context.Context, id string) error

	// SetRefreshToken replaces the user's refresh token hash.
	SetRefreshToken(ctx context.Context, id, hash string, expires time.Time) error
	FindUserByRefreshToken(ctx context.Context, hash string) (*models.User, error)
	// RotateRefreshToken swaps oldHash for newHash. It returns ErrNotFound when
	// oldHash is no longer current, so a token is redeemed at most once.
	RotateRefreshToken(ctx context.Context, oldHash, newHash string, expires time.Time) error
}

// MongoUserCollection implements UserCollection for MongoDB
type MongoUserCollection struct {
	Collection *mongo.Collection
}

// InsertUser inserts a new active user
func (c *MongoUserCollection) InsertUser(ctx context.Context, user models.User) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	user.IsActive = true

	if _, err := c.Collection.InsertOne(ctx, user); err != nil {
		return fmt.Errorf("insert user %s: %w", user.Username, err)
	}
	return nil
}

// FindUserByID finds a user by their ID
func (c *MongoUserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID: %w", err)
	}
	return c.findOne(ctx, bson.M{"_id": objectID})
}

// FindUserByUsername finds a user by their username
func (c *MongoUserCollection) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return c.findOne(ctx, bson.M{"username": username})
}

// FindUserByEmail finds a user by their email
func (c *MongoUserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return c.findOne(ctx, bson.M{"email": email})
}

// CountUsers returns the number of accounts, used to bootstrap the owner
func (c *MongoUserCollection) CountUsers(ctx context.Context) (int64, error) {
	if c.Collection == nil {
		return 0, ErrNilCollection
	}
	return c.Collection.CountDocuments(ctx, bson.M{})
}

// UpdateLastLogin updates the last login time for a user
func (c *MongoUserCollection) UpdateLastLogin(ctx context.Context, id string) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid user ID: %w", err)
	}

	now := time.Now()
	_, err = c.Collection.UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"last_login": now, "updated_at": now}},
	)
	return err
}

// SetRefreshToken stores the hash of a freshly issued refresh token
func (c *MongoUserCollection) SetRefreshToken(ctx context.Context, id, hash string, expires time.Time) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid user ID: %w", err)
	}

	res, err := c.Collection.UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"refresh_token_hash": hash, "refresh_token_expires": expires, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("set refresh token for %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// FindUserByRefreshToken finds the user holding the refresh token with this hash
func (c *MongoUserCollection) FindUserByRefreshToken(ctx context.Context, hash string) (*models.User, error) {
	if hash == "" {
		return nil, ErrNotFound
	}
	return c.findOne(ctx, bson.M{"refresh_token_hash": hash})
}

// RotateRefreshToken replaces a refresh token hash only if it is still the current one
func (c *MongoUserCollection) RotateRefreshToken(ctx context.Context, oldHash, newHash string, expires time.Time) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	if oldHash == "" {
		return ErrNotFound
	}

	res, err := c.Collection.UpdateOne(
		ctx,
		bson.M{"refresh_token_hash": oldHash},
		bson.M{"$set": bson.M{"refresh_token_hash": newHash, "refresh_token_expires": expires, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *MongoUserCollection) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	var user models.User
	if err := c.Collection.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
