package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/finchat-assistant/internal/apiclient"
	"github.com/PaulBabatuyi/finchat-assistant/internal/chat"
	"github.com/PaulBabatuyi/finchat-assistant/internal/data"
	"github.com/PaulBabatuyi/finchat-assistant/internal/qa"
)

// accountService is the part of the API client the REPL uses directly.
type accountService interface {
	History(ctx context.Context) ([]data.ChatSummary, error)
	Profile(ctx context.Context) (*data.Profile, error)
	Download(ctx context.Context, chatID, format string) (*apiclient.Export, error)
	Logout(ctx context.Context) error
}

var (
	botColor    = color.New(color.FgGreen)
	userColor   = color.New(color.FgCyan, color.Bold)
	infoColor   = color.New(color.FgBlue)
	warnColor   = color.New(color.FgYellow)
	errorColor  = color.New(color.FgRed)
	headerColor = color.New(color.Bold)
)

const helpText = `Commands:
  /attach <path>                  stage a PDF for your first question
  /history                        list your saved chats
  /profile                        show your account
  /download <chatId> [json|md|html]
  /new                            start a new chat
  /logout                         end the session and quit
  /quit                           quit
Anything else is sent as a question.`

// app is the terminal presentation of a chat.Controller.
type app struct {
	ctl      *chat.Controller
	account  accountService
	out      io.Writer
	log      *zap.Logger
	readFile func(string) ([]byte, error)
	saveFile func(string, []byte) error
}

func newApp(ctl *chat.Controller, account accountService, out io.Writer, log *zap.Logger) *app {
	return &app{
		ctl:      ctl,
		account:  account,
		out:      out,
		log:      log,
		readFile: os.ReadFile,
		saveFile: func(name string, b []byte) error { return os.WriteFile(name, b, 0o600) },
	}
}

// notify renders controller notices. Styling is chosen here only.
func (a *app) notify(n chat.Notice) {
	c := infoColor
	switch n.Kind {
	case chat.NoticeBackendError:
		c = errorColor
	case chat.NoticePersistFailed:
		c = warnColor
	}
	c.Fprintf(a.out, "[%s] %s\n", n.Title, n.Message)
}

func (a *app) printMessage(m data.ChatMessage) {
	ts := m.Timestamp.Local().Format("15:04")
	if m.Sender == data.SenderUser {
		userColor.Fprintf(a.out, "You (%s):", ts)
		if m.Document != nil {
			infoColor.Fprintf(a.out, " [%s]", m.Document.Name)
		}
		fmt.Fprintf(a.out, " %s\n", m.Text)
		return
	}
	botColor.Fprintf(a.out, "FinBot (%s):", ts)
	fmt.Fprintf(a.out, " %s\n", m.Text)
}

func (a *app) printTranscript() {
	for _, m := range a.ctl.Snapshot().Messages {
		a.printMessage(m)
	}
}

func (a *app) prompt() string {
	s := a.ctl.Snapshot()
	if s.DocumentEstablished {
		return "follow-up> "
	}
	if s.Staged != nil {
		return fmt.Sprintf("question about %s> ", s.Staged.Name)
	}
	return "attach a PDF, then ask> "
}

// handle processes one input line and reports whether the REPL should stop.
func (a *app) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		a.ask(ctx, line)
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/attach":
		a.attach(arg)
	case "/history":
		a.history(ctx)
	case "/profile":
		a.profile(ctx)
	case "/download":
		a.download(ctx, arg)
	case "/new":
		if err := a.ctl.Reset(); err != nil {
			warnColor.Fprintln(a.out, err)
			return false
		}
		a.printTranscript()
	case "/logout":
		if err := a.account.Logout(ctx); err != nil {
			a.log.Warn("logout failed", zap.Error(err))
		}
		infoColor.Fprintln(a.out, "Logged out.")
		return true
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(a.out, helpText)
	default:
		warnColor.Fprintf(a.out, "Unknown command %s. Type /help.\n", cmd)
	}
	return false
}

func (a *app) ask(ctx context.Context, text string) {
	infoColor.Fprintln(a.out, "FinBot is typing...")
	reply, err := a.ctl.Submit(ctx, text, nil)
	if err != nil {
		var ve *chat.ValidationError
		if errors.As(err, &ve) {
			warnColor.Fprintf(a.out, "[%s] %s\n", ve.Title, ve.Message)
			return
		}
		warnColor.Fprintln(a.out, err)
		return
	}
	a.printMessage(*reply)
}

func (a *app) attach(path string) {
	if path == "" {
		warnColor.Fprintln(a.out, "Usage: /attach <path-to-pdf>")
		return
	}
	content, err := a.readFile(path)
	if err != nil {
		errorColor.Fprintf(a.out, "Cannot read %s: %v\n", path, err)
		return
	}
	f := &qa.File{Name: filepath.Base(path), ContentType: detectType(path, content), Content: content}
	if err := a.ctl.StageFile(f); err != nil {
		var ve *chat.ValidationError
		if errors.As(err, &ve) {
			warnColor.Fprintf(a.out, "[%s] %s\n", ve.Title, ve.Message)
			return
		}
		warnColor.Fprintln(a.out, err)
		return
	}
	infoColor.Fprintf(a.out, "Attached %s (%s).\n", f.Name, humanSize(len(content)))
}

func detectType(path string, content []byte) string {
	ct := http.DetectContentType(content)
	if ct == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
			ct = byExt
		}
	}
	return ct
}

func humanSize(n int) string {
	if n < 1<<20 {
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
}

func (a *app) history(ctx context.Context) {
	list, err := a.account.History(ctx)
	if err != nil {
		errorColor.Fprintf(a.out, "Could not load history: %v\n", err)
		return
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No saved chats yet.")
		return
	}
	for _, s := range list {
		headerColor.Fprintf(a.out, "%s", s.Title)
		fmt.Fprintf(a.out, "  [%s]  %d messages, %s\n", s.ChatID, s.MessageCount, s.LastMessageTime.Local().Format(time.DateTime))
		if s.PreviewText != "" {
			fmt.Fprintf(a.out, "    %s\n", s.PreviewText)
		}
	}
}

func (a *app) profile(ctx context.Context) {
	p, err := a.account.Profile(ctx)
	if err != nil {
		errorColor.Fprintf(a.out, "Could not load profile: %v\n", err)
		return
	}
	fmt.Fprintf(a.out, "%s, %d chats with a processed document\n", p.Email, p.ChatCount)
}

func (a *app) download(ctx context.Context, arg string) {
	fields := strings.Fields(arg)
	if len(fields) == 0 || len(fields) > 2 {
		warnColor.Fprintln(a.out, "Usage: /download <chatId> [json|md|html]")
		return
	}
	format := ""
	if len(fields) == 2 {
		format = fields[1]
	}
	exp, err := a.account.Download(ctx, fields[0], format)
	if err != nil {
		errorColor.Fprintf(a.out, "Download failed: %v\n", err)
		return
	}
	name := filepath.Base(exp.Filename)
	if err := a.saveFile(name, exp.Body); err != nil {
		errorColor.Fprintf(a.out, "Cannot write %s: %v\n", name, err)
		return
	}
	infoColor.Fprintf(a.out, "Saved %s.\n", name)
}
