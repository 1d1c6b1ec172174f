// Package transcript renders a stored chat for download.
package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/PaulBabatuyi/finchat-assistant/internal/data"
)

// Format names a download format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
)

// ParseFormat maps a query value to a Format. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unknown transcript format %q", s)
}

// Export is the JSON download document.
type Export struct {
	Title      string             `json:"title"`
	Messages   []data.ChatMessage `json:"messages"`
	ExportDate time.Time          `json:"exportDate"`
}

// Rendered is a transcript ready to be served as an attachment.
type Rendered struct {
	Body        []byte
	ContentType string
	Filename    string
}

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Render produces the transcript of s in format f.
func Render(f Format, s *data.ChatSession, now time.Time) (*Rendered, error) {
	base := "chat-" + s.ChatID
	switch f {
	case FormatJSON:
		b, err := JSON(s, now)
		if err != nil {
			return nil, err
		}
		return &Rendered{b, "application/json", base + ".json"}, nil
	case FormatMarkdown:
		return &Rendered{Markdown(s, now), "text/markdown; charset=utf-8", base + ".md"}, nil
	case FormatHTML:
		b, err := HTML(s, now)
		if err != nil {
			return nil, err
		}
		return &Rendered{b, "text/html; charset=utf-8", base + ".html"}, nil
	}
	return nil, fmt.Errorf("unknown transcript format %q", f)
}

// JSON returns {title, messages, exportDate}.
func JSON(s *data.ChatSession, now time.Time) ([]byte, error) {
	msgs := s.Messages
	if msgs == nil {
		msgs = []data.ChatMessage{}
	}
	return json.MarshalIndent(Export{
		Title:      data.DisplayTitle(s.Title),
		Messages:   msgs,
		ExportDate: now.UTC(),
	}, "", "  ")
}

// Markdown returns a readable transcript. Message text is copied
// verbatim since bot answers are already Markdown.
func Markdown(s *data.ChatSession, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", oneLine(data.DisplayTitle(s.Title)))
	fmt.Fprintf(&b, "_Exported %s_\n", now.UTC().Format(time.RFC1123))

	for _, m := range s.Messages {
		who := "FinChat Assistant"
		if m.Sender == data.SenderUser {
			who = "You"
		}
		fmt.Fprintf(&b, "\n---\n\n**%s** · %s\n\n", who, m.Timestamp.UTC().Format("2006-01-02 15:04 MST"))
		if d := m.Document; d != nil {
			fmt.Fprintf(&b, "> Attached: %s (%s%s)\n\n", oneLine(d.Name), d.Type, sizeSuffix(d.Size))
		}
		b.WriteString(strings.TrimSpace(m.Text))
		b.WriteString("\n")
	}
	return b.Bytes()
}

// HTML renders the Markdown transcript as a standalone page. Raw HTML in
// messages is not passed through.
func HTML(s *data.ChatSession, now time.Time) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert(Markdown(s, now), &body); err != nil {
		return nil, fmt.Errorf("render transcript: %w", err)
	}

	var b bytes.Buffer
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(data.DisplayTitle(s.Title)))
	b.WriteString("</head>\n<body>\n")
	b.Write(body.Bytes())
	b.WriteString("</body>\n</html>\n")
	return b.Bytes(), nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func sizeSuffix(n int64) string {
	switch {
	case n <= 0:
		return ""
	case n < 1<<10:
		return fmt.Sprintf(", %d B", n)
	case n < 1<<20:
		return fmt.Sprintf(", %.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf(", %.1f MB", float64(n)/(1<<20))
}
