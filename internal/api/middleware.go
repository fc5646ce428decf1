package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"

	"github.com/terra-clan/exercise-submitter/internal/cache"
	"github.com/terra-clan/exercise-submitter/internal/mgmt"
	"github.com/terra-clan/exercise-submitter/internal/models"
)

// Authenticator verifies credentials against the student management system
type Authenticator interface {
	Login(ctx context.Context, creds models.Credentials) error
}

// AuthMiddleware handles HTTP Basic authentication
type AuthMiddleware struct {
	auth  Authenticator
	store cache.Store
}

// NewAuthMiddleware creates new auth middleware. Successful logins are
// remembered in store when it is not nil.
func NewAuthMiddleware(auth Authenticator, store cache.Store) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, store: store}
}

// Authenticate verifies the Basic credentials of the request with the
// management system and stores them in the request context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || username == "" {
			w.Header().Set("WWW-Authenticate", `Basic realm="exercise-submitter"`)
			respondError(w, http.StatusUnauthorized, "missing_credentials", "provide student credentials with HTTP Basic authentication")
			return
		}
		creds := models.Credentials{Username: username, Password: password}

		if !m.remembered(r.Context(), creds) {
			if err := m.auth.Login(r.Context(), creds); err != nil {
				if errors.Is(err, mgmt.ErrInvalidCredentials) {
					slog.Warn("invalid credentials", "user", username, "remote_addr", r.RemoteAddr)
					respondError(w, http.StatusUnauthorized, "invalid_credentials", "user name or password is wrong")
					return
				}
				slog.Error("login failed", "error", err, "user", username)
				respondError(w, http.StatusBadGateway, "management_unavailable", "the student management system could not be reached")
				return
			}
			m.remember(r.Context(), creds)
		}

		slog.Debug("authenticated request", "user", username)

		ctx := ContextWithCredentials(r.Context(), creds)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) remembered(ctx context.Context, creds models.Credentials) bool {
	if m.store == nil {
		return false
	}
	var ok bool
	found, err := m.store.Get(ctx, loginKey(creds), &ok)
	if err != nil {
		slog.Warn("login cache read failed", "error", err)
		return false
	}
	return found && ok
}

func (m *AuthMiddleware) remember(ctx context.Context, creds models.Credentials) {
	if m.store == nil {
		return
	}
	if err := m.store.Set(ctx, loginKey(creds), true); err != nil {
		slog.Warn("login cache write failed", "error", err)
	}
}

// loginKey never contains the password in clear text
func loginKey(creds models.Credentials) string {
	sum := sha256.Sum256([]byte(creds.Username + "\x00" + creds.Password))
	return "login:" + hex.EncodeToString(sum[:])
}
