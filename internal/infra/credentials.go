package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired is returned when the stored access token has passed its
// exp claim. The UI shell owns the re-authentication flow; the daemon only
// refuses to send a token it knows is dead.
var ErrTokenExpired = errors.New("credentials: access token expired")

// CredentialStore persists the bearer token across restarts. It satisfies
// TokenProvider for the cloud client.
type CredentialStore struct {
	path string

	mu    sync.RWMutex
	token string
}

// NewCredentialStore loads any previously saved token from path. A missing
// file is not an error — the store starts empty.
func NewCredentialStore(path string) (*CredentialStore, error) {
	s := &CredentialStore{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("credentials: read %s: %w", path, err)
	}
	s.token = strings.TrimSpace(string(data))
	return s, nil
}

// Token returns the stored bearer token, rejecting one whose exp claim has
// passed. The signature is NOT verified here — the cloud does that; the
// claim is only inspected to fail fast instead of burning a round-trip.
func (s *CredentialStore) Token() (string, error) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token == "" {
		return "", nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		// Opaque (non-JWT) tokens pass through untouched.
		return token, nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return token, nil
	}
	if time.Now().After(exp.Time) {
		return "", ErrTokenExpired
	}
	return token, nil
}

// Save replaces the stored token and persists it with owner-only permissions.
func (s *CredentialStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("credentials: write %s: %w", s.path, err)
	}
	s.token = token
	return nil
}

// Clear removes the stored token.
func (s *CredentialStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("credentials: remove %s: %w", s.path, err)
	}
	return nil
}
