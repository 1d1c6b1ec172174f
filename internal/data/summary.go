package data

import "github.com/PaulBabatuyi/finchat-assistant/internal/normalize"

const (
	// UntitledChat is shown for sessions saved before any user message.
	UntitledChat = "Untitled Chat"
	// TitleLimit and PreviewLimit are measured in characters.
	TitleLimit   = 50
	PreviewLimit = 100
)

// DeriveTitle returns the title for a message list: the first
// user-authored text, truncated. It returns "" when there is none yet.
func DeriveTitle(messages []ChatMessage) string {
	for _, m := range messages {
		if m.Sender == SenderUser && m.Text != "" {
			return normalize.Truncate(m.Text, TitleLimit)
		}
	}
	return ""
}

// DisplayTitle substitutes UntitledChat for an empty title.
func DisplayTitle(title string) string {
	if title == "" {
		return UntitledChat
	}
	return title
}

// Summarize builds the history row for a stored session.
func Summarize(s *ChatSession) ChatSummary {
	sum := ChatSummary{
		ID:              s.ID.Hex(),
		ChatID:          s.ChatID,
		Title:           DisplayTitle(s.Title),
		LastMessageTime: s.LastUpdated,
		MessageCount:    len(s.Messages),
	}
	if n := len(s.Messages); n > 0 {
		sum.PreviewText = normalize.Truncate(s.Messages[n-1].Text, PreviewLimit)
	}
	return sum
}
