// Package data provides DB models and stores.
package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/PaulBabatuyi/finchat-assistant/internal/normalize"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// UsersStore performs user DB operations.
type UsersStore struct {
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// CreateUser inserts a new user document with a hashed password and a zero
// chat counter.
func (u *UsersStore) CreateUser(ctx context.Context, email, hashedPassword string) (*User, error) {
	user := &User{
		Email:     normalize.Email(email),
		Password:  hashedPassword,
		ChatCount: 0,
		CreatedAt: time.Now().UTC(),
	}

	result, err := u.coll.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	user.ID = result.InsertedID.(bson.ObjectID)
	return user, nil
}

// GetUserByEmail finds a user by email.
func (u *UsersStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// GetUserByID finds a user by ObjectID.
func (u *UsersStore) GetUserByID(ctx context.Context, id bson.ObjectID) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// UserExists checks if a user exists by email.
func (u *UsersStore) UserExists(ctx context.Context, email string) (bool, error) {
	count, err := u.coll.CountDocuments(ctx, bson.M{"email": normalize.Email(email)})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetProfile returns the email and chat counter of a user.
func (u *UsersStore) GetProfile(ctx context.Context, id bson.ObjectID) (*Profile, error) {
	var p Profile
	opts := options.FindOne().SetProjection(bson.M{"email": 1, "chatCount": 1, "_id": 0})
	if err := u.coll.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &p, nil
}

// IncrementChatCount adds one to the user's chat counter. When chatID is
// set the increment is applied at most once per chat: the chat id is
// recorded in the same single-document update, so retries are harmless.
func (u *UsersStore) IncrementChatCount(ctx context.Context, id bson.ObjectID, chatID string) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$inc": bson.M{"chatCount": 1}}
	if chatID != "" {
		filter["countedChats"] = bson.M{"$ne": chatID}
		update["$addToSet"] = bson.M{"countedChats": chatID}
	}

	res, err := u.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("increment chat count: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// nothing matched: either the user is gone or this chat was counted
	if chatID != "" {
		n, err := u.coll.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("increment chat count: %w", err)
		}
		if n > 0 {
			return nil
		}
	}
	return ErrUserNotFound
}
