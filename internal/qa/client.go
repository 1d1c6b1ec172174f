// Package qa is a client for the remote document question-answering
// service. The first question of a session is sent together with the
// document; follow-ups reference the session id only.
package qa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://fastapi-render-a7a4.onrender.com"
	DefaultTimeout = 60 * time.Second

	uploadPath = "/upload_pdf/"
	queryPath  = "/invoke_query/"

	// maxDetail is the longest error body copied into a RemoteServiceError.
	maxDetail      = 100
	maxRespBytes   = 4 << 20
	defaultTries   = 2
	defaultBackoff = 500 * time.Millisecond
)

// File is a document to upload. Content is held in memory so the request
// body can be rebuilt for a retry.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

// HistoryEntry is one turn of the service's own conversation memory.
type HistoryEntry struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Answer is a successful reply. Text is the raw answer; callers clean it
// before display.
type Answer struct {
	Text    string
	Context []string
	History []HistoryEntry
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	MaxTries   uint
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the QA service.
type Client struct {
	baseURL  string
	timeout  time.Duration
	maxTries uint
	backoff  time.Duration
	http     *http.Client
	log      *zap.Logger
}

// New returns a Client with defaults applied for zero options.
func New(opts Options) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		timeout:  opts.Timeout,
		maxTries: opts.MaxTries,
		backoff:  opts.Backoff,
		http:     opts.HTTPClient,
		log:      opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.maxTries == 0 {
		c.maxTries = defaultTries
	}
	if c.backoff <= 0 {
		c.backoff = defaultBackoff
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// Upload sends the document with the first question of a session.
func (c *Client) Upload(ctx context.Context, file File, question, sessionID string) (*Answer, error) {
	if len(file.Content) == 0 {
		return nil, &RemoteServiceError{Op: "upload", Detail: "empty document"}
	}
	build := func() (io.Reader, string, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
		ct := file.ContentType
		if ct == "" {
			ct = "application/pdf"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file.Content); err != nil {
			return nil, "", err
		}
		if err := writeFields(w, sessionID, question); err != nil {
			return nil, "", err
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return &buf, w.FormDataContentType(), nil
	}
	return c.do(ctx, "upload", uploadPath, build)
}

// Query asks a follow-up question within an established session.
func (c *Client) Query(ctx context.Context, question, sessionID string) (*Answer, error) {
	build := func() (io.Reader, string, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		if err := writeFields(w, sessionID, question); err != nil {
			return nil, "", err
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return &buf, w.FormDataContentType(), nil
	}
	return c.do(ctx, "query", queryPath, build)
}

func writeFields(w *multipart.Writer, sessionID, question string) error {
	if err := w.WriteField("session_id", sessionID); err != nil {
		return err
	}
	return w.WriteField("user_input", question)
}

type bodyFunc func() (io.Reader, string, error)

func (c *Client) do(ctx context.Context, op, path string, build bodyFunc) (*Answer, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.backoff
	b.MaxInterval = 4 * c.backoff

	attempt := func() (*Answer, error) {
		ans, err := c.attempt(ctx, op, path, build)
		if err == nil {
			return ans, nil
		}
		var rse *RemoteServiceError
		if errors.As(err, &rse) && rse.Temporary() && ctx.Err() == nil {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	ans, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Warn("qa request failed, retrying",
				zap.String("op", op), zap.Duration("backoff", next), zap.Error(err))
		}),
	)
	if err != nil {
		var rse *RemoteServiceError
		if !errors.As(err, &rse) {
			// context cancelled while waiting between attempts
			err = &RemoteServiceError{Op: op, Cause: err}
		}
		return nil, err
	}
	return ans, nil
}

func (c *Client) attempt(ctx context.Context, op, path string, build bodyFunc) (*Answer, error) {
	body, contentType, err := build()
	if err != nil {
		return nil, &RemoteServiceError{Op: op, Detail: "encode request", Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, &RemoteServiceError{Op: op, Detail: "build request", Cause: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RemoteServiceError{Op: op, Cause: err, network: true}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRespBytes))
	if err != nil {
		return nil, &RemoteServiceError{Op: op, StatusCode: resp.StatusCode, Cause: err, network: true}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := strings.TrimSpace(string(raw))
		if len(detail) >= maxDetail {
			detail = ""
		}
		return nil, &RemoteServiceError{Op: op, StatusCode: resp.StatusCode, Detail: detail}
	}

	return decodeAnswer(op, resp.StatusCode, raw)
}

func decodeAnswer(op string, status int, raw []byte) (*Answer, error) {
	var payload struct {
		Answer  json.RawMessage `json:"answer"`
		Context []string        `json:"context"`
		History []HistoryEntry  `json:"history"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &RemoteServiceError{Op: op, StatusCode: status, Detail: "unreadable response", Cause: err}
	}

	var text string
	trimmed := bytes.TrimSpace(payload.Answer)
	if len(trimmed) == 0 || trimmed[0] != '"' || json.Unmarshal(trimmed, &text) != nil {
		return nil, &RemoteServiceError{Op: op, StatusCode: status, Detail: "answer missing or not a string"}
	}

	return &Answer{Text: text, Context: payload.Context, History: payload.History}, nil
}
