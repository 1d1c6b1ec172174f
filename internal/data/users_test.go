package data

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/finchat-assistant/internal/db"
)

func setupDB(t *testing.T) *db.Client {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := db.New(ctx, uri, "finchat_test")
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}

	// ensure clean collections in case previous runs left data
	_ = c.UsersCollection().Drop(ctx)
	_ = c.ChatsCollection().Drop(ctx)
	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}

	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestUsersCreateAndGet(t *testing.T) {
	c := setupDB(t)
	users := NewUsersStore(c.UsersCollection())

	ctx := context.Background()
	email := time.Now().UTC().Format("20060102-150405") + "-integration@example.com"

	user, err := users.CreateUser(ctx, email, "hashed-password")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.Email != email || user.ChatCount != 0 {
		t.Fatalf("unexpected user: %+v", user)
	}

	ok, err := users.UserExists(ctx, email)
	if err != nil || !ok {
		t.Fatalf("UserExists failed: ok=%v err=%v", ok, err)
	}

	u2, err := users.GetUserByEmail(ctx, email)
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if u2.Email != email {
		t.Fatalf("GetUserByEmail returned wrong email: %s", u2.Email)
	}

	got, err := users.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.Email != email {
		t.Fatalf("GetUserByID returned wrong email: %s", got.Email)
	}
}

func TestUsersDuplicateEmail(t *testing.T) {
	c := setupDB(t)
	users := NewUsersStore(c.UsersCollection())
	ctx := context.Background()

	if _, err := users.CreateUser(ctx, "dup@example.com", "h"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	// mixed case normalizes to the same address
	if _, err := users.CreateUser(ctx, "DUP@example.com", "h"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestUsersIncrementChatCount(t *testing.T) {
	c := setupDB(t)
	users := NewUsersStore(c.UsersCollection())
	ctx := context.Background()

	user, err := users.CreateUser(ctx, "count@example.com", "h")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	// the same chat is counted once no matter how often it is reported
	for i := 0; i < 3; i++ {
		if err := users.IncrementChatCount(ctx, user.ID, "chat-a"); err != nil {
			t.Fatalf("IncrementChatCount failed: %v", err)
		}
	}
	if err := users.IncrementChatCount(ctx, user.ID, "chat-b"); err != nil {
		t.Fatalf("IncrementChatCount failed: %v", err)
	}
	if err := users.IncrementChatCount(ctx, user.ID, ""); err != nil {
		t.Fatalf("IncrementChatCount failed: %v", err)
	}

	p, err := users.GetProfile(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if p.ChatCount != 3 || p.Email != "count@example.com" {
		t.Fatalf("unexpected profile: %+v", p)
	}

	if err := users.IncrementChatCount(ctx, bson.NewObjectID(), "chat-a"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := users.GetProfile(ctx, bson.NewObjectID()); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
