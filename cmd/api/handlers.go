package main

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/PaulBabatuyi/finchat-assistant/internal/auth"
	"github.com/PaulBabatuyi/finchat-assistant/internal/data"
)

type loginCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	ChatCount int64     `json:"chatCount"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Server) readCredentials(w http.ResponseWriter, r *http.Request) (*loginCredentials, bool) {
	var c loginCredentials
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if strings.TrimSpace(c.Email) == "" || c.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return nil, false
	}
	return &c, true
}

// handleRegister hashes the password and stores a new user with a zero
// chat count.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	c, ok := s.readCredentials(w, r)
	if !ok {
		return
	}

	hashed, err := auth.HashPassword(c.Password)
	if err != nil {
		s.log.Error("hash password failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error creating user")
		return
	}

	user, err := s.users.CreateUser(r.Context(), c.Email, hashed)
	if err != nil {
		if errors.Is(err, data.ErrUserExists) {
			writeError(w, http.StatusBadRequest, "User already exists")
			return
		}
		s.log.Error("create user failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error creating user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "User created successfully",
		"userId":  user.ID.Hex(),
	})
}

// handleLogin checks the credentials and sets the session cookie. The token
// is also returned in the body for non-browser clients.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.auth.CanSign() {
		s.log.Error("login attempted without a signing key")
		writeError(w, http.StatusInternalServerError, "Server configuration error")
		return
	}

	c, ok := s.readCredentials(w, r)
	if !ok {
		return
	}

	user, err := s.users.GetUserByEmail(r.Context(), c.Email)
	if err != nil {
		if errors.Is(err, data.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		s.log.Error("lookup user failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Database connection error")
		return
	}

	if err := auth.CheckPassword(user.Password, c.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, _, err := s.auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		s.log.Error("generate token failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error during login")
		return
	}

	http.SetCookie(w, auth.NewSessionCookie(token, s.auth.Duration(), s.cookieSecure))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user": loginUser{
			ID:        user.ID.Hex(),
			Email:     user.Email,
			ChatCount: user.ChatCount,
			CreatedAt: user.CreatedAt,
		},
		"token": token,
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"user": map[string]string{"id": id.ID.Hex(), "email": id.Email},
	})
}

// handleLogout clears the cookie. A still-valid token is also revoked so a
// copy of it cannot be replayed.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		if claims, err := s.auth.VerifyToken(token); err == nil {
			s.auth.Revoke(claims)
		}
	}
	http.SetCookie(w, auth.ExpiredSessionCookie(s.cookieSecure))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())
	p, err := s.users.GetProfile(r.Context(), id.ID)
	if err != nil {
		if errors.Is(err, data.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		s.log.Error("get profile failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error fetching user profile")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleIncrementChatCount counts a chat towards the caller's total. With a
// chatId in the body the same chat is never counted twice.
func (s *Server) handleIncrementChatCount(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ChatID string `json:"chatId"`
	}
	if r.ContentLength != 0 {
		// an empty body is the original contract: count unconditionally
		if err := decodeJSON(w, r, &body); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	id, _ := identityFromContext(r.Context())
	if err := s.users.IncrementChatCount(r.Context(), id.ID, body.ChatID); err != nil {
		if errors.Is(err, data.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		s.log.Error("increment chat count failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error incrementing chat count")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat count incremented successfully"})
}
