package data

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestDeriveTitleUsesFirstUserMessage(t *testing.T) {
	msgs := []ChatMessage{
		{ID: "w", Sender: SenderBot, Text: "Hello! I'm FinChat Assistant."},
		{ID: "u1", Sender: SenderUser, Text: "What is the total?"},
		{ID: "b1", Sender: SenderBot, Text: "42"},
		{ID: "u2", Sender: SenderUser, Text: "And the tax line?"},
	}
	assert.Equal(t, "What is the total?", DeriveTitle(msgs))
}

func TestDeriveTitleTruncatesSixtyCharacters(t *testing.T) {
	text := strings.Repeat("x", 60)
	msgs := []ChatMessage{{Sender: SenderBot, Text: "hi"}, {Sender: SenderUser, Text: text}}
	assert.Equal(t, strings.Repeat("x", 50)+"...", DeriveTitle(msgs))
}

func TestDeriveTitleWithoutUserMessage(t *testing.T) {
	assert.Equal(t, "", DeriveTitle([]ChatMessage{{Sender: SenderBot, Text: "welcome"}}))
	assert.Equal(t, "", DeriveTitle(nil))
}

func TestSummarize(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	long := strings.Repeat("p", 120)
	s := &ChatSession{
		ID:          bson.NewObjectID(),
		ChatID:      "chat-1",
		Messages:    []ChatMessage{{Sender: SenderUser, Text: "q"}, {Sender: SenderBot, Text: long}},
		LastUpdated: now,
	}

	sum := Summarize(s)
	assert.Equal(t, s.ID.Hex(), sum.ID)
	assert.Equal(t, "chat-1", sum.ChatID)
	assert.Equal(t, UntitledChat, sum.Title)
	assert.Equal(t, now, sum.LastMessageTime)
	assert.Equal(t, 2, sum.MessageCount)
	assert.Equal(t, strings.Repeat("p", 100)+"...", sum.PreviewText)
}

func TestSummarizeEmptySession(t *testing.T) {
	sum := Summarize(&ChatSession{Title: "Quarterly"})
	assert.Equal(t, "Quarterly", sum.Title)
	assert.Equal(t, 0, sum.MessageCount)
	assert.Equal(t, "", sum.PreviewText)
}
