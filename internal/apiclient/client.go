// Package apiclient is the HTTP client for the FinChat API server. It keeps
// the session token returned at login and presents it as the auth cookie.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/finchat-assistant/internal/auth"
	"github.com/PaulBabatuyi/finchat-assistant/internal/data"
)

const (
	DefaultBaseURL = "http://localhost:8080"
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 16 << 20
)

// ErrUnauthenticated is returned for 401 responses and for calls made
// before a successful login.
var ErrUnauthenticated = errors.New("apiclient: not authenticated")

// StatusError is a non-2xx response other than 401.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("api error: %d %s", e.StatusCode, e.Message)
}

// Identity is the caller as seen by /auth/verify.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// LoginUser is the user object returned by /auth/login.
type LoginUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	ChatCount int64     `json:"chatCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// Export is a downloaded transcript.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	timeout time.Duration
	backoff time.Duration
	http    *http.Client
	log     *zap.Logger

	mu    sync.RWMutex
	token string
}

func New(opts Options) *Client {
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: opts.Timeout,
		backoff: opts.Backoff,
		http:    opts.HTTPClient,
		log:     opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.backoff <= 0 {
		c.backoff = 300 * time.Millisecond
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// Token returns the current session token, or "" when logged out.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken installs a token obtained elsewhere.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Register creates an account and returns its id.
func (c *Client) Register(ctx context.Context, email, password string) (string, error) {
	var out struct {
		UserID string `json:"userId"`
	}
	err := c.call(ctx, request{
		method: http.MethodPost,
		path:   "/auth/register",
		body:   map[string]string{"email": email, "password": password},
		public: true,
	}, &out)
	return out.UserID, err
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginUser, error) {
	var out struct {
		User  LoginUser `json:"user"`
		Token string    `json:"token"`
	}
	err := c.call(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]string{"email": email, "password": password},
		public: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, errors.New("apiclient: login response carried no token")
	}
	c.SetToken(out.Token)
	return &out.User, nil
}

// Verify returns the identity behind the current token.
func (c *Client) Verify(ctx context.Context) (*Identity, error) {
	var out struct {
		User Identity `json:"user"`
	}
	if err := c.call(ctx, request{method: http.MethodGet, path: "/auth/verify", retry: true}, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Logout ends the session on the server and forgets the token locally,
// even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.call(ctx, request{method: http.MethodPost, path: "/auth/logout"}, nil)
	c.SetToken("")
	return err
}

// SaveHistory replaces the stored messages of a chat.
func (c *Client) SaveHistory(ctx context.Context, chatID string, messages []data.ChatMessage) error {
	if messages == nil {
		messages = []data.ChatMessage{}
	}
	return c.call(ctx, request{
		method: http.MethodPost,
		path:   "/chat/save-history",
		body:   map[string]any{"chatId": chatID, "messages": messages},
		retry:  true,
	}, nil)
}

// History lists the caller's chats, most recent first.
func (c *Client) History(ctx context.Context) ([]data.ChatSummary, error) {
	var out []data.ChatSummary
	if err := c.call(ctx, request{method: http.MethodGet, path: "/chat/history", retry: true}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Profile returns the caller's email and chat count.
func (c *Client) Profile(ctx context.Context) (*data.Profile, error) {
	var out data.Profile
	if err := c.call(ctx, request{method: http.MethodGet, path: "/user/profile", retry: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// IncrementChatCount counts chatID towards the caller's total. The server
// counts each chat id at most once, so the call is safe to retry.
func (c *Client) IncrementChatCount(ctx context.Context, chatID string) error {
	return c.call(ctx, request{
		method: http.MethodPost,
		path:   "/user/increment-chat-count",
		body:   map[string]string{"chatId": chatID},
		retry:  chatID != "",
	}, nil)
}

// Download fetches a chat transcript. format is json, md or html.
func (c *Client) Download(ctx context.Context, chatID, format string) (*Export, error) {
	q := url.Values{"chatId": {chatID}}
	if format != "" {
		q.Set("format", format)
	}
	var exp Export
	err := c.call(ctx, request{
		method: http.MethodGet,
		path:   "/chat/download?" + q.Encode(),
		retry:  true,
		raw: func(resp *http.Response, body []byte) {
			exp.Body = body
			exp.ContentType = resp.Header.Get("Content-Type")
			if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
				exp.Filename = params["filename"]
			}
		},
	}, nil)
	if err != nil {
		return nil, err
	}
	if exp.Filename == "" {
		exp.Filename = "chat-" + chatID + ".json"
	}
	return &exp, nil
}

type request struct {
	method string
	path   string
	body   any
	// public requests are sent without the auth cookie.
	public bool
	// retry allows one more attempt after a network failure.
	retry bool
	raw   func(*http.Response, []byte)
}

func (c *Client) call(ctx context.Context, r request, out any) error {
	token := c.Token()
	if !r.public && token == "" {
		return ErrUnauthenticated
	}

	var payload []byte
	if r.body != nil {
		var err error
		if payload, err = json.Marshal(r.body); err != nil {
			return fmt.Errorf("encode %s: %w", r.path, err)
		}
	}

	tries := uint(1)
	if r.retry {
		tries = 2
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.backoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.once(ctx, r, token, payload, out)
		var netErr *networkError
		if err != nil && (!errors.As(err, &netErr) || ctx.Err() != nil) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(tries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Warn("api request failed, retrying", zap.String("path", r.path), zap.Duration("backoff", next), zap.Error(err))
		}),
	)
	return err
}

type networkError struct{ err error }

func (e *networkError) Error() string { return e.err.Error() }
func (e *networkError) Unwrap() error { return e.err }

func (c *Client) once(ctx context.Context, r request, token string, payload []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return fmt.Errorf("build %s: %w", r.path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !r.public {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &networkError{err: fmt.Errorf("%s %s: %w", r.method, r.path, err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &networkError{err: fmt.Errorf("read %s: %w", r.path, err)}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &e)
		return &StatusError{StatusCode: resp.StatusCode, Message: e.Message}
	}

	if r.raw != nil {
		r.raw(resp, raw)
		return nil
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode %s: %w", r.path, err)
		}
	}
	return nil
}
