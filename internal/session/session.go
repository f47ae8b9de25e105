// Package session holds the authenticated session explicitly and persists its
// bearer token between command invocations.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sharefold/sharefold/internal/models"
)

// ErrNoSession is returned by Store.Load when no session has been saved.
var ErrNoSession = errors.New("no saved session")

// Session is one authenticated login. It is owned by whoever logged in and
// passed explicitly to the components that need it.
type Session struct {
	Token              string      `json:"token"`
	Username           string      `json:"username"`
	Role               models.Role `json:"role"`
	MustChangePassword bool        `json:"mustChangePassword"`
	APIURL             string      `json:"apiUrl"`
	LoggedInAt         time.Time   `json:"loggedInAt"`
}

// FromLogin builds a session from a login response.
func FromLogin(resp *models.LoginResponse, apiURL string) *Session {
	return &Session{
		Token:              resp.SessionToken,
		Username:           resp.Username,
		Role:               resp.Role,
		MustChangePassword: resp.MustChangePassword,
		APIURL:             apiURL,
		LoggedInAt:         time.Now(),
	}
}

// Live reports whether s carries a token.
func (s *Session) Live() bool {
	return s != nil && s.Token != ""
}

func (s *Session) String() string {
	if !s.Live() {
		return "not logged in"
	}
	return fmt.Sprintf("%s (%s) at %s", s.Username, s.Role, s.APIURL)
}

// Store persists a session as JSON with owner-only permissions.
type Store struct {
	path string
}

// NewStore creates a store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (st *Store) Path() string { return st.path }

// Load reads the saved session.
func (st *Store) Load() (*Session, error) {
	data, err := os.ReadFile(st.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", st.path, err)
	}
	if !s.Live() {
		return nil, ErrNoSession
	}
	return &s, nil
}

// Save writes s atomically (temp file then rename).
func (st *Store) Save(s *Session) error {
	if err := os.MkdirAll(filepath.Dir(st.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, st.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save session file: %w", err)
	}
	return nil
}

// Clear removes the saved session. A missing file is not an error.
func (st *Store) Clear() error {
	if err := os.Remove(st.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// SameServer reports whether s was issued by apiURL.
func (s *Session) SameServer(apiURL string) bool {
	return strings.TrimRight(s.APIURL, "/") == strings.TrimRight(apiURL, "/")
}
