package session

import (
	"context"
	"errors"

	"github.com/sharefold/sharefold/internal/api"
	"github.com/sharefold/sharefold/internal/events"
	"github.com/sharefold/sharefold/internal/logging"
	"github.com/sharefold/sharefold/internal/validation"
)

// Manager runs the login, logout and change-password flows.
type Manager struct {
	client   *api.Client
	store    *Store
	eventBus *events.EventBus
	logger   *logging.Logger
}

// NewManager creates a manager. store may be nil, in which case sessions live
// in memory only.
func NewManager(client *api.Client, store *Store, logger *logging.Logger, eventBus *events.EventBus) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{client: client, store: store, eventBus: eventBus, logger: logger.Component("session")}
}

// Client returns an API client authenticated as s.
func (m *Manager) Client(s *Session) *api.Client {
	return m.client.WithToken(s.Token)
}

// Login authenticates and saves the resulting session.
func (m *Manager) Login(ctx context.Context, username, password string) (*Session, error) {
	if username == "" {
		return nil, validation.New("username", "cannot be empty")
	}
	if password == "" {
		return nil, validation.New("password", "cannot be empty")
	}

	resp, err := m.client.Login(ctx, username, password)
	if err != nil {
		m.logger.Warn().Str("user", username).Err(err).Msg("login failed")
		return nil, err
	}
	s := FromLogin(resp, m.client.BaseURL())
	m.logger.Info().Str("user", s.Username).Str("role", string(s.Role)).Msg("logged in")

	if m.store != nil {
		if err := m.store.Save(s); err != nil {
			// the session is still usable for this process
			m.logger.Warn().Err(err).Msg("could not persist session")
		}
	}
	return s, nil
}

// Restore loads the saved session for the configured server.
func (m *Manager) Restore() (*Session, error) {
	if m.store == nil {
		return nil, ErrNoSession
	}
	s, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	if !s.SameServer(m.client.BaseURL()) {
		m.logger.Debug().Str("saved", s.APIURL).Str("configured", m.client.BaseURL()).Msg("saved session belongs to another server")
		return nil, ErrNoSession
	}
	return s, nil
}

// Logout ends s on the server if it can, and always forgets it locally.
// Server failures are logged, never returned.
func (m *Manager) Logout(ctx context.Context, s *Session) {
	if s.Live() {
		if err := m.Client(s).Logout(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("server logout failed; discarding session locally")
		}
	}
	m.Forget()
	if s != nil {
		m.logger.Info().Str("user", s.Username).Msg("logged out")
	}
}

// Forget drops the saved session without contacting the server.
func (m *Manager) Forget() {
	if m.store == nil {
		return
	}
	if err := m.store.Clear(); err != nil {
		m.logger.Warn().Err(err).Msg("could not remove saved session")
	}
}

// Invalidate forgets s after the server rejected it and announces it on the bus.
func (m *Manager) Invalidate(s *Session, reason string) {
	m.Forget()
	username := ""
	if s != nil {
		username = s.Username
	}
	m.logger.Error().Str("user", username).Str("reason", reason).Msg("session invalidated")
	m.eventBus.PublishSessionInvalidated(username, reason)
}

// ChangePassword changes the password of the user of s.
func (m *Manager) ChangePassword(ctx context.Context, s *Session, current, next string) error {
	if !s.Live() {
		return errors.New("not logged in")
	}
	if current == "" {
		return validation.New("currentPassword", "cannot be empty")
	}
	if next == "" {
		return validation.New("newPassword", "cannot be empty")
	}
	if err := m.Client(s).ChangePassword(ctx, current, next); err != nil {
		return err
	}
	s.MustChangePassword = false
	if m.store != nil {
		if err := m.store.Save(s); err != nil {
			m.logger.Warn().Err(err).Msg("could not persist session")
		}
	}
	m.logger.Info().Str("user", s.Username).Msg("password changed")
	return nil
}
