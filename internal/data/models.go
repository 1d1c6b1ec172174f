package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Field names follow the documents already written by the FinChat web
// app so existing databases keep working.

// User maps to the users collection.
type User struct {
	ID           bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string        `bson:"email" json:"email"`
	Password     string        `bson:"password" json:"-"`
	ChatCount    int64         `bson:"chatCount" json:"chatCount"`
	CountedChats []string      `bson:"countedChats,omitempty" json:"-"`
	CreatedAt    time.Time     `bson:"createdAt" json:"createdAt"`
}

// Profile is the public view of a user.
type Profile struct {
	Email     string `bson:"email" json:"email"`
	ChatCount int64  `bson:"chatCount" json:"chatCount"`
}

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Document is the metadata of the file attached to a session's first
// user message. The file content is never stored.
type Document struct {
	Name string `bson:"name" json:"name"`
	Type string `bson:"type" json:"type"`
	Size int64  `bson:"size,omitempty" json:"size,omitempty"`
}

// ChatMessage is one entry of a conversation.
type ChatMessage struct {
	ID        string    `bson:"id" json:"id"`
	Text      string    `bson:"text" json:"text"`
	Sender    Sender    `bson:"sender" json:"sender"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Document  *Document `bson:"document,omitempty" json:"document,omitempty"`
}

// ChatSession maps to the chats collection. It is keyed by (ChatID,
// UserID) and its Messages are replaced wholesale on every save.
type ChatSession struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"id"`
	ChatID      string        `bson:"chat_id" json:"chat_id"`
	UserID      bson.ObjectID `bson:"userId" json:"-"`
	Title       string        `bson:"title,omitempty" json:"title"`
	Messages    []ChatMessage `bson:"messages" json:"messages"`
	LastUpdated time.Time     `bson:"lastUpdated" json:"lastUpdated"`
	CreatedAt   time.Time     `bson:"createdAt" json:"createdAt"`
}

// ChatSummary is one row of the history listing.
type ChatSummary struct {
	ID              string    `json:"id"`
	ChatID          string    `json:"chat_id"`
	Title           string    `json:"title"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	MessageCount    int       `json:"messageCount"`
	PreviewText     string    `json:"previewText"`
}
