// Package auth supplies Google access tokens for upstream requests.
// Tokens come from the COLAB_ACCESS_TOKEN environment variable or a
// credentials file under the state directory; minting fresh OAuth
// grants is left to external tooling (gcloud, oauth2l).
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/colabtools/colabctl/internal/core/domain"
	"github.com/colabtools/colabctl/internal/core/ports"
)

const (
	// EnvAccessToken overrides any stored credentials when set
	EnvAccessToken = "COLAB_ACCESS_TOKEN"

	credentialsFile = "credentials.json"
)

// Credentials is the on-disk token record
type Credentials struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type,omitempty"`
	Expiry      time.Time `json:"expiry,omitempty"`
}

// Expired reports whether the stored token is past its recorded expiry.
// A zero expiry means the caller never recorded one and the token is
// trusted until the API rejects it.
func (c *Credentials) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !now.Before(c.Expiry)
}

// FileTokenSource implements ports.AccessTokenSource over the
// environment and the credentials file
type FileTokenSource struct {
	mu       sync.Mutex
	stateDir string
	cached   *Credentials
	now      func() time.Time
}

var _ ports.AccessTokenSource = (*FileTokenSource)(nil)

func NewFileTokenSource(stateDir string) *FileTokenSource {
	return &FileTokenSource{stateDir: stateDir, now: time.Now}
}

// Token returns the current bearer token. forceRefresh drops the
// in-memory copy and re-reads the environment and file, which picks up
// tokens rotated by external tooling.
func (s *FileTokenSource) Token(ctx context.Context, forceRefresh bool) (string, error) {
	if token := os.Getenv(EnvAccessToken); token != "" {
		return token, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if forceRefresh {
		s.cached = nil
	}
	if s.cached != nil && !s.cached.Expired(s.now()) {
		return s.cached.AccessToken, nil
	}

	creds, err := s.load()
	if err != nil {
		return "", err
	}
	if creds.Expired(s.now()) {
		return "", fmt.Errorf("stored credentials expired at %s: %w",
			creds.Expiry.Format(time.RFC3339), domain.ErrUnauthenticated)
	}

	s.cached = creds
	return creds.AccessToken, nil
}

func (s *FileTokenSource) load() (*Credentials, error) {
	path := s.credentialsPath()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("no credentials at %s and %s is unset: %w",
			path, EnvAccessToken, domain.ErrUnauthenticated)
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials at %s: %w", path, err)
	}
	if creds.AccessToken == "" {
		return nil, fmt.Errorf("credentials at %s carry no access_token: %w", path, domain.ErrUnauthenticated)
	}
	return &creds, nil
}

// Save writes credentials to the state directory, owner-readable only
func (s *FileTokenSource) Save(creds *Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if creds.AccessToken == "" {
		return fmt.Errorf("refusing to save empty access token")
	}

	if err := os.MkdirAll(s.stateDir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := os.WriteFile(s.credentialsPath(), append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}

	s.cached = creds
	return nil
}

// Clear removes stored credentials and the in-memory copy
func (s *FileTokenSource) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cached = nil
	err := os.Remove(s.credentialsPath())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *FileTokenSource) credentialsPath() string {
	return filepath.Join(s.stateDir, credentialsFile)
}
