package main

import (
	"context"
	"encoding/json"
	"net/http"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/finchat-assistant/internal/auth"
)

// identity is the authenticated caller, resolved once per request from the
// session cookie and passed to handlers through the request context.
type identity struct {
	ID     bson.ObjectID
	Email  string
	Claims *auth.Claims
}

type identityContextKey struct{}

// identityFromContext extracts the caller, if present.
func identityFromContext(ctx context.Context) (*identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*identity)
	return id, ok
}

// requireAuth rejects requests without a valid auth-token cookie.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.TokenFromRequest(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		claims, err := s.auth.VerifyToken(token)
		if err != nil {
			s.log.Debug("token rejected", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		userID, err := bson.ObjectIDFromHex(claims.UserID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey{}, &identity{
			ID:     userID,
			Email:  claims.Email,
			Claims: claims,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

// maxJSONBody bounds request bodies; a saved conversation is the largest.
const maxJSONBody = 8 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	return json.NewDecoder(r.Body).Decode(v)
}
