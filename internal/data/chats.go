package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrChatNotFound is returned when no session matches (chat id, owner).
var ErrChatNotFound = errors.New("chat session not found")

// ChatsStore persists chat sessions. Every query is scoped to the owning
// user, so a guessed chat id of another user never matches.
type ChatsStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewChatsStore returns a ChatsStore using the given collection.
func NewChatsStore(coll *mongo.Collection) *ChatsStore {
	return &ChatsStore{coll: coll, now: func() time.Time { return time.Now().UTC() }}
}

// SaveHistory upserts the session keyed by (chatID, userID), replacing its
// message list and bumping lastUpdated. createdAt is written on insert
// only. The title is taken from the first user message the first time one
// is present and is never overwritten afterwards.
func (c *ChatsStore) SaveHistory(ctx context.Context, userID bson.ObjectID, chatID string, messages []ChatMessage) (*ChatSession, error) {
	if messages == nil {
		messages = []ChatMessage{}
	}
	now := c.now()
	key := bson.M{"chat_id": chatID, "userId": userID}

	update := bson.M{
		"$set": bson.M{
			"messages":    messages,
			"lastUpdated": now,
		},
		"$setOnInsert": bson.M{
			"createdAt": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var session ChatSession
	if err := c.coll.FindOneAndUpdate(ctx, key, update, opts).Decode(&session); err != nil {
		return nil, fmt.Errorf("save chat history: %w", err)
	}

	if session.Title == "" {
		if title := DeriveTitle(messages); title != "" {
			filter := bson.M{
				"chat_id": chatID,
				"userId":  userID,
				"$or": bson.A{
					bson.M{"title": bson.M{"$exists": false}},
					bson.M{"title": ""},
				},
			}
			res, err := c.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"title": title}})
			if err != nil {
				return nil, fmt.Errorf("set chat title: %w", err)
			}
			if res.ModifiedCount > 0 {
				session.Title = title
			}
		}
	}

	return &session, nil
}

// ListHistory returns the caller's sessions, most recently updated first.
func (c *ChatsStore) ListHistory(ctx context.Context, userID bson.ObjectID) ([]ChatSummary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "lastUpdated", Value: -1}}).
		SetProjection(bson.M{"_id": 1, "chat_id": 1, "title": 1, "lastUpdated": 1, "messages": 1})

	cursor, err := c.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list chat history: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []ChatSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("decode chat history: %w", err)
	}

	summaries := make([]ChatSummary, 0, len(sessions))
	for i := range sessions {
		summaries = append(summaries, Summarize(&sessions[i]))
	}
	return summaries, nil
}

// GetChat returns one of the caller's sessions.
func (c *ChatsStore) GetChat(ctx context.Context, userID bson.ObjectID, chatID string) (*ChatSession, error) {
	var session ChatSession
	err := c.coll.FindOne(ctx, bson.M{"chat_id": chatID, "userId": userID}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("find chat: %w", err)
	}
	return &session, nil
}
