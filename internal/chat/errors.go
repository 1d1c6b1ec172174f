package chat

import "errors"

// ValidationError is a rejected submission. No network call was made and
// the conversation is unchanged; the user corrects the input and retries.
type ValidationError struct {
	Title   string
	Message string
}

func (e *ValidationError) Error() string { return e.Title + ": " + e.Message }

var (
	ErrDocumentRequired = &ValidationError{"PDF Required", "Please upload a PDF document with your first message."}
	ErrQuestionRequired = &ValidationError{"Question Required", "Please ask a question along with your PDF document."}
	ErrMessageRequired  = &ValidationError{"Message Required", "Please type a message to continue the conversation."}
	ErrInvalidDocument  = &ValidationError{"Invalid Document", "Only PDF files up to 10MB are allowed."}
	ErrDocumentLocked   = &ValidationError{"PDF Already Processed", "A PDF is already associated with this session."}
)

// ErrSubmissionPending is returned when Submit or Reset is called while a
// submission is still in flight. The call is ignored, not queued.
var ErrSubmissionPending = errors.New("chat: a submission is already pending")

// NoticeKind identifies a non-blocking notification.
type NoticeKind string

const (
	NoticeDocumentIgnored NoticeKind = "document_ignored"
	NoticeBackendError    NoticeKind = "backend_error"
	NoticePersistFailed   NoticeKind = "persist_failed"
)

// Notice is a transient message for the presentation layer. How it is
// styled is up to the presenter.
type Notice struct {
	Kind    NoticeKind
	Title   string
	Message string
}

// Notifier receives notices. Implementations must not block.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

var (
	noticeDocumentIgnored = Notice{NoticeDocumentIgnored, "PDF Already Processed",
		"A PDF is already associated with this session. New documents will be ignored."}
	noticeBackendError = Notice{NoticeBackendError, "Error",
		"Could not connect to the chatbot. Please try again later."}
	noticePersistFailed = Notice{NoticePersistFailed, "Not Saved",
		"This conversation could not be saved to your history."}
)
