package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sharefold/sharefold/internal/models"
)

type contextKey string

const claimsKey contextKey = "claims"

var errSessionRevoked = errors.New("session revoked")

// Claims are carried in a session token.
type Claims struct {
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Sessions issues and checks HS256 session tokens. Logout revokes a token by id.
type Sessions struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> expiry
}

// NewSessions creates a token issuer.
func NewSessions(secret string, lifetime time.Duration) *Sessions {
	return &Sessions{
		secret:   []byte(secret),
		lifetime: lifetime,
		now:      time.Now,
		revoked:  make(map[string]time.Time),
	}
}

// Issue signs a token for u.
func (s *Sessions) Issue(u User) (string, error) {
	now := s.now()
	claims := Claims{
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
			Issuer:    "sharefold-devserver",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses a token and rejects expired or revoked ones.
func (s *Sessions) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return nil, errSessionRevoked
	}
	return claims, nil
}

// Revoke invalidates a token until its natural expiry. Expired entries are
// pruned on each call.
func (s *Sessions) Revoke(c *Claims) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
		}
	}
	if c.ExpiresAt != nil {
		s.revoked[c.ID] = c.ExpiresAt.Time
	}
}

// requireSession rejects requests without a valid bearer token with 401.
func (srv *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		claims, err := srv.sessions.Validate(tokenString)
		if err != nil {
			srv.logger.Debug().Err(err).Msg("rejected session token")
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if _, err := srv.store.User(claims.Username); err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	}
}

func claimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

// checkPassword compares a plaintext password against a bcrypt hash.
func checkPassword(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

func hashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}
