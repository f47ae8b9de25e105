package cli

import (
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"os"

	"github.com/sharefold/sharefold/internal/api"
	"github.com/sharefold/sharefold/internal/browser"
	"github.com/sharefold/sharefold/internal/config"
	"github.com/sharefold/sharefold/internal/constants"
	"github.com/sharefold/sharefold/internal/events"
	httpclient "github.com/sharefold/sharefold/internal/http"
	"github.com/sharefold/sharefold/internal/session"
)

var errNotLoggedIn = errors.New("not logged in; run 'sharefold login' first")

// app is the wiring shared by every command: configuration, the API client,
// the session manager and the browser built on them.
type app struct {
	cfg            *config.Config
	bus            *events.EventBus
	sessions       *session.Manager
	browser        *browser.Browser
	transferClient *nethttp.Client
	out            io.Writer
	errOut         io.Writer
}

// loadConfig merges file, environment and flags, prompting for a proxy
// password when one is needed.
func loadConfig(mutate func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	cfg.MergeWithFlags(apiBaseURL, "", "", 0)
	if mutate != nil {
		mutate(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.NeedsProxyPassword() {
		pw, err := promptPassword(fmt.Sprintf("Proxy password for %s@%s: ", cfg.ProxyUser, cfg.ProxyHost))
		if err != nil {
			return nil, err
		}
		cfg.ProxyPassword = pw
	}
	return cfg, nil
}

// newApp builds the app from the merged configuration. mutate may adjust the
// configuration (command flags) before it is validated.
func newApp(mutate func(*config.Config)) (*app, error) {
	cfg, err := loadConfig(mutate)
	if err != nil {
		return nil, err
	}
	sessionPath, err := config.DefaultSessionPath()
	if err != nil {
		GetLogger().Warn().Err(err).Msg("cannot locate session file; the session will not be kept")
		sessionPath = ""
	}
	return buildApp(cfg, sessionPath, os.Stdout, os.Stderr)
}

func buildApp(cfg *config.Config, sessionPath string, out, errOut io.Writer) (*app, error) {
	log := GetLogger()
	bus := events.NewEventBus(constants.EventBusDefaultBuffer)

	client, err := api.NewClient(cfg, log)
	if err != nil {
		return nil, err
	}
	transferClient, err := httpclient.CreateTransferClient(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to configure transfer client: %w", err)
	}

	var store *session.Store
	if sessionPath != "" {
		store = session.NewStore(sessionPath)
	}
	sessions := session.NewManager(client, store, log, bus)

	return &app{
		cfg:      cfg,
		bus:      bus,
		sessions: sessions,
		browser: browser.New(browser.Options{
			Sessions:       sessions,
			TransferClient: transferClient,
			MaxUploadBytes: cfg.MaxUploadBytes,
			SortBy:         cfg.SortBy,
			SortOrder:      cfg.SortOrder,
			Logger:         log,
			EventBus:       bus,
		}),
		transferClient: transferClient,
		out:            out,
		errOut:         errOut,
	}, nil
}

// resume attaches the saved session.
func (a *app) resume() error {
	s, err := a.browser.Resume()
	if errors.Is(err, session.ErrNoSession) {
		return errNotLoggedIn
	}
	if err != nil {
		return err
	}
	if s.MustChangePassword {
		fmt.Fprintln(a.errOut, "Warning: your password must be changed; run 'sharefold passwd'.")
	}
	return nil
}

// explain adds a next step to errors the user can act on.
func explain(err error) error {
	if err == nil {
		return nil
	}
	switch browser.Classify(err) {
	case browser.FailureSessionInvalidated:
		if errors.Is(err, errNotLoggedIn) {
			return err
		}
		return fmt.Errorf("%w\nThe session has ended; run 'sharefold login' again", err)
	case browser.FailurePermission:
		return fmt.Errorf("%w\nAsk an administrator for the needed role", err)
	}
	if api.IsForbidden(err) {
		return fmt.Errorf("%w\nThe server refused access to this folder", err)
	}
	return err
}
