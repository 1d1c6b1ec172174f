// Package auth issues and verifies the session tokens carried in the
// auth-token cookie, and hashes user passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/bcrypt"

	"github.com/PaulBabatuyi/finchat-assistant/internal/normalize"
)

// DefaultTokenTTL is how long an issued session stays valid. There is no
// refresh; users log in again after expiry.
const DefaultTokenTTL = 7 * 24 * time.Hour

var (
	// ErrInvalidToken covers malformed, badly signed, expired and revoked
	// tokens alike. Callers map it to 401.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNoSigningKey is returned by GenerateToken when the manager was
	// built without any key.
	ErrNoSigningKey = errors.New("no signing key configured")
)

// JWTManager signs and validates JWT tokens used by the API.
type JWTManager struct {
	keys      map[string]string // kid -> HMAC secret; "" is the single-key case
	activeKid string
	duration  time.Duration
	revoked   *cache.Cache
	now       func() time.Time
}

// Claims is the custom JWT payload (user id + email).
type Claims struct {
	UserID string `json:"userId"` // MongoDB ObjectID hex
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// NewJWTManager returns a manager signing with a single secret.
func NewJWTManager(secretKey string, duration time.Duration) *JWTManager {
	keys := map[string]string{}
	if secretKey != "" {
		keys[""] = secretKey
	}
	return newManager(keys, "", duration)
}

// NewJWTManagerFromKeys returns a manager that signs with activeKid and
// still accepts tokens signed by any other key in keys, so secrets can be
// rotated without logging everybody out.
func NewJWTManagerFromKeys(keys map[string]string, activeKid string, duration time.Duration) *JWTManager {
	copied := make(map[string]string, len(keys))
	for k, v := range keys {
		copied[k] = v
	}
	return newManager(copied, activeKid, duration)
}

func newManager(keys map[string]string, activeKid string, duration time.Duration) *JWTManager {
	if duration <= 0 {
		duration = DefaultTokenTTL
	}
	return &JWTManager{
		keys:      keys,
		activeKid: activeKid,
		duration:  duration,
		revoked:   cache.New(duration, 10*time.Minute),
		now:       time.Now,
	}
}

// CanSign reports whether the manager has a key to issue tokens with.
func (m *JWTManager) CanSign() bool {
	_, ok := m.keys[m.activeKid]
	return ok
}

// Duration returns the token lifetime.
func (m *JWTManager) Duration() time.Duration { return m.duration }

// GenerateToken issues a signed JWT token for a user.
func (m *JWTManager) GenerateToken(userID bson.ObjectID, email string) (string, time.Time, error) {
	secret, ok := m.keys[m.activeKid]
	if !ok {
		return "", time.Time{}, ErrNoSigningKey
	}

	now := m.now()
	expiresAt := now.Add(m.duration)
	claims := &Claims{
		UserID: userID.Hex(),
		Email:  normalize.Email(email),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.Hex(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if m.activeKid != "" {
		token.Header["kid"] = m.activeKid
	}

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// VerifyToken checks the signature, then compares the expiry against the
// current time explicitly, then consults the revocation list.
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt == nil || !m.now().Before(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	if claims.ID != "" {
		if _, revoked := m.revoked.Get(claims.ID); revoked {
			return nil, fmt.Errorf("%w: token revoked", ErrInvalidToken)
		}
	}
	return claims, nil
}

// Revoke rejects the token described by claims until it would have expired
// anyway. The list is in-memory and per process.
func (m *JWTManager) Revoke(claims *Claims) {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return
	}
	ttl := claims.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return
	}
	m.revoked.Set(claims.ID, struct{}{}, ttl)
}

func (m *JWTManager) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	kid, _ := token.Header["kid"].(string)
	if secret, ok := m.keys[kid]; ok {
		return []byte(secret), nil
	}
	// tokens issued before rotation was enabled carry no kid
	if kid == "" {
		if secret, ok := m.keys[m.activeKid]; ok {
			return []byte(secret), nil
		}
	}
	return nil, fmt.Errorf("unknown key id %q", kid)
}

// HashPassword returns a bcrypt hash for the provided plaintext.
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
