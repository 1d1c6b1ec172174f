// Package chat holds the conversation state machine: one session with the
// QA service, its first-turn document rule, and the mirroring of every
// message list change into persistent history.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/finchat-assistant/internal/data"
	"github.com/PaulBabatuyi/finchat-assistant/internal/qa"
)

const (
	WelcomeText = "Hello! I'm FinChat Assistant. Please upload a financial document and ask your first question to begin."
	ApologyText = "Sorry, I couldn't process your request right now. Please try again."

	DocumentMIMEType = "application/pdf"
	MaxDocumentSize  = 10 << 20
)

// QA answers questions about an uploaded document.
type QA interface {
	Upload(ctx context.Context, file qa.File, question, sessionID string) (*qa.Answer, error)
	Query(ctx context.Context, question, sessionID string) (*qa.Answer, error)
}

// HistoryStore persists the full message list of a chat.
type HistoryStore interface {
	SaveHistory(ctx context.Context, chatID string, messages []data.ChatMessage) error
}

// Counter records that a chat's document was processed.
type Counter interface {
	IncrementChatCount(ctx context.Context, chatID string) error
}

// Deps are the collaborators of a Controller. Notifier and Logger are
// optional.
type Deps struct {
	QA       QA
	History  HistoryStore
	Counter  Counter
	Notifier Notifier
	Logger   *zap.Logger
}

// State is a point-in-time copy of the controller's state.
type State struct {
	SessionID           string
	Messages            []data.ChatMessage
	DocumentEstablished bool
	Pending             bool
	Staged              *data.Document
}

// Controller drives a single conversation. It is safe for concurrent use,
// but only one submission is in flight at a time.
type Controller struct {
	qa      QA
	history HistoryStore
	counter Counter
	notify  Notifier
	log     *zap.Logger

	newID func() string
	now   func() time.Time

	mu          sync.Mutex
	sessionID   string
	messages    []data.ChatMessage
	established bool
	pending     bool
	staged      *qa.File
}

// New returns a Controller holding a fresh session.
func New(deps Deps) *Controller {
	c := &Controller{
		qa:      deps.QA,
		history: deps.History,
		counter: deps.Counter,
		notify:  deps.Notifier,
		log:     deps.Logger,
		newID:   uuid.NewString,
		now:     time.Now,
	}
	if c.notify == nil {
		c.notify = NotifierFunc(func(Notice) {})
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	c.start()
	return c
}

func (c *Controller) start() {
	c.sessionID = c.newID()
	c.messages = []data.ChatMessage{c.message(WelcomeText, data.SenderBot, nil)}
	c.established = false
	c.staged = nil
}

func (c *Controller) message(text string, sender data.Sender, doc *data.Document) data.ChatMessage {
	return data.ChatMessage{
		ID:        c.newID(),
		Text:      text,
		Sender:    sender,
		Timestamp: c.now().UTC(),
		Document:  doc,
	}
}

// Reset abandons the current conversation and starts a new session.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending {
		return ErrSubmissionPending
	}
	c.start()
	return nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{
		SessionID:           c.sessionID,
		Messages:            append([]data.ChatMessage(nil), c.messages...),
		DocumentEstablished: c.established,
		Pending:             c.pending,
	}
	if c.staged != nil {
		d := describe(c.staged)
		s.Staged = &d
	}
	return s
}

// StageFile selects the document for the first question. An invalid file
// is rejected and clears any earlier selection; nil clears the selection.
func (c *Controller) StageFile(file *qa.File) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.established || c.pending {
		if c.pending {
			return ErrSubmissionPending
		}
		return ErrDocumentLocked
	}
	if file == nil {
		c.staged = nil
		return nil
	}
	if err := validateDocument(file); err != nil {
		c.staged = nil
		return err
	}
	f := *file
	c.staged = &f
	return nil
}

func validateDocument(f *qa.File) error {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(f.ContentType, ";", 2)[0]))
	if ct != DocumentMIMEType || len(f.Content) == 0 || len(f.Content) > MaxDocumentSize {
		return ErrInvalidDocument
	}
	return nil
}

func describe(f *qa.File) data.Document {
	return data.Document{Name: f.Name, Type: f.ContentType, Size: int64(len(f.Content))}
}

// Submit sends text to the QA service. The first submission of a session
// must carry a document, either passed here or staged with StageFile;
// later documents are ignored.
//
// Submit returns the bot reply that was appended. Backend failures are
// not returned: they become an apology message and a notice. Only
// validation failures and ErrSubmissionPending are returned, and in
// those cases nothing was appended.
func (c *Controller) Submit(ctx context.Context, text string, file *qa.File) (*data.ChatMessage, error) {
	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return nil, ErrSubmissionPending
	}

	text = strings.TrimSpace(text)
	if file == nil {
		file = c.staged
	}

	first := !c.established
	if first {
		if file == nil {
			c.mu.Unlock()
			return nil, ErrDocumentRequired
		}
		if err := validateDocument(file); err != nil {
			c.staged = nil
			c.mu.Unlock()
			return nil, err
		}
		if text == "" {
			c.mu.Unlock()
			return nil, ErrQuestionRequired
		}
	} else {
		if text == "" {
			c.mu.Unlock()
			return nil, ErrMessageRequired
		}
		if file != nil {
			file = nil
			c.staged = nil
			c.notify.Notify(noticeDocumentIgnored)
		}
	}

	var doc *data.Document
	if first && !c.hasDocument() {
		d := describe(file)
		doc = &d
	}
	c.messages = append(c.messages, c.message(text, data.SenderUser, doc))
	c.staged = nil
	c.pending = true
	sessionID := c.sessionID
	snapshot := append([]data.ChatMessage(nil), c.messages...)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.pending = false
		c.mu.Unlock()
	}()

	log := c.log.With(zap.String("session_id", sessionID))
	c.persist(ctx, log, sessionID, snapshot)

	var (
		ans *qa.Answer
		err error
	)
	if first {
		ans, err = c.qa.Upload(ctx, *file, text, sessionID)
	} else {
		ans, err = c.qa.Query(ctx, text, sessionID)
	}

	var reply data.ChatMessage
	c.mu.Lock()
	if err != nil {
		reply = c.message(ApologyText, data.SenderBot, nil)
	} else {
		if first {
			c.established = true
		}
		reply = c.message(CleanResponse(ans.Text), data.SenderBot, nil)
	}
	c.messages = append(c.messages, reply)
	snapshot = append([]data.ChatMessage(nil), c.messages...)
	c.mu.Unlock()

	if err != nil {
		log.Warn("qa request failed", zap.Bool("first_turn", first), zap.Error(err))
		c.notify.Notify(noticeBackendError)
	} else if first {
		c.countChat(ctx, log, sessionID)
	}

	c.persist(ctx, log, sessionID, snapshot)
	return &reply, nil
}

// hasDocument reports whether a user message already carries document
// metadata. A retried first upload must not attach it again. Callers hold
// c.mu.
func (c *Controller) hasDocument() bool {
	for _, m := range c.messages {
		if m.Sender == data.SenderUser && m.Document != nil {
			return true
		}
	}
	return false
}

func (c *Controller) persist(ctx context.Context, log *zap.Logger, chatID string, messages []data.ChatMessage) {
	if c.history == nil {
		return
	}
	if err := c.history.SaveHistory(ctx, chatID, messages); err != nil {
		log.Error("save history failed", zap.Int("messages", len(messages)), zap.Error(err))
		c.notify.Notify(noticePersistFailed)
	}
}

func (c *Controller) countChat(ctx context.Context, log *zap.Logger, chatID string) {
	if c.counter == nil {
		return
	}
	if err := c.counter.IncrementChatCount(ctx, chatID); err != nil {
		log.Warn("increment chat count failed", zap.Error(err))
	}
}
