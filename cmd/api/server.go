package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/finchat-assistant/internal/auth"
	"github.com/PaulBabatuyi/finchat-assistant/internal/data"
	"github.com/PaulBabatuyi/finchat-assistant/internal/middleware"
)

// usersStore is the subset of data.UsersStore used by the handlers.
type usersStore interface {
	CreateUser(ctx context.Context, email, hashedPassword string) (*data.User, error)
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
	GetProfile(ctx context.Context, id bson.ObjectID) (*data.Profile, error)
	IncrementChatCount(ctx context.Context, id bson.ObjectID, chatID string) error
}

// chatsStore is the subset of data.ChatsStore used by the handlers.
type chatsStore interface {
	SaveHistory(ctx context.Context, userID bson.ObjectID, chatID string, messages []data.ChatMessage) (*data.ChatSession, error)
	ListHistory(ctx context.Context, userID bson.ObjectID) ([]data.ChatSummary, error)
	GetChat(ctx context.Context, userID bson.ObjectID, chatID string) (*data.ChatSession, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the handler dependencies.
type Server struct {
	users usersStore
	chats chatsStore
	auth  *auth.JWTManager
	hub   *ConnectionHub
	db    pinger

	limiter      *middleware.LimiterStore
	log          *zap.Logger
	cookieSecure bool
	origins      []string
	now          func() time.Time
}

type serverDeps struct {
	Users        usersStore
	Chats        chatsStore
	Auth         *auth.JWTManager
	Hub          *ConnectionHub
	DB           pinger
	Limiter      *middleware.LimiterStore
	Logger       *zap.Logger
	CookieSecure bool
	Origins      []string
}

// newServer returns a ready-to-use Server.
func newServer(d serverDeps) *Server {
	s := &Server{
		users:        d.Users,
		chats:        d.Chats,
		auth:         d.Auth,
		hub:          d.Hub,
		db:           d.DB,
		limiter:      d.Limiter,
		log:          d.Logger,
		cookieSecure: d.CookieSecure,
		origins:      d.Origins,
		now:          time.Now,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.hub == nil {
		s.hub = NewConnectionHub()
	}
	return s
}

// routes builds the HTTP router.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(s.log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(s.origins))

	r.Get("/health", s.handleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(middleware.RateLimit(s.limiter))
			}
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
		})
		r.Post("/logout", s.handleLogout)
		r.With(s.requireAuth).Get("/verify", s.handleVerify)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/chat/save-history", s.handleSaveHistory)
		r.Get("/chat/history", s.handleListHistory)
		r.Get("/chat/download", s.handleDownload)
		r.Get("/chat/events", s.handleEvents)
		r.Post("/user/increment-chat-count", s.handleIncrementChatCount)
		r.Get("/user/profile", s.handleProfile)
	})

	return r
}
