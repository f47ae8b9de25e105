// Package config provides configuration management for sharefold.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/sharefold/sharefold/internal/constants"
)

// Config is the client configuration.
//
// Config file location:
//   - Windows: %USERPROFILE%\.config\sharefold\config
//   - Unix: ~/.config/sharefold/config
//
// INI format:
//
//	[server]
//	api_url = http://localhost:8080
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 0
//	user =
//	no_proxy = localhost,127.0.0.1
//
//	[browser]
//	sort_by = name
//	sort_order = asc
//
//	[transfer]
//	max_upload_bytes = 1073741824
//	http_retries = 0
type Config struct {
	APIURL string

	// Proxy settings
	ProxyMode     string // "no-proxy", "system", "basic", "ntlm"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string // never persisted; prompted at runtime
	NoProxy       string // comma-separated hosts that bypass the proxy

	// Listing defaults
	SortBy    string
	SortOrder string

	MaxUploadBytes int64
	// HTTPRetries is handed to the API transport. Zero means a failed call is
	// reported once and repeated only when the user asks.
	HTTPRetries int
}

// Proxy modes
const (
	ProxyModeNone   = "no-proxy"
	ProxyModeSystem = "system"
	ProxyModeBasic  = "basic"
	ProxyModeNTLM   = "ntlm"
)

// DefaultAPIURL is used when neither the file, the environment nor a flag sets one.
const DefaultAPIURL = "http://localhost:8080"

// EnvAPIURL overrides [server] api_url.
const EnvAPIURL = "SHAREFOLD_API_URL"

// Validation errors
var (
	ErrMissingAPIURL      = errors.New("api_url is required")
	ErrInvalidAPIURL      = errors.New("api_url must be an absolute http(s) URL")
	ErrInvalidProxyMode   = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingProxyHost   = errors.New("proxy host is required for basic and ntlm modes")
	ErrInvalidSortField   = errors.New("sort_by must be one of name, fileSize, uploadedAt")
	ErrInvalidSortOrder   = errors.New("sort_order must be asc or desc")
	ErrInvalidUploadLimit = errors.New("max_upload_bytes must be between 1 and 1073741824")
	ErrInvalidRetries     = errors.New("http_retries must not be negative")
)

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		APIURL:         DefaultAPIURL,
		ProxyMode:      ProxyModeNone,
		SortBy:         "name",
		SortOrder:      "asc",
		MaxUploadBytes: constants.MaxUploadSize,
		HTTPRetries:    0,
	}
}

// Load reads configuration from an INI file.
// A missing file yields defaults and no error; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	server := f.Section("server")
	cfg.APIURL = server.Key("api_url").MustString(cfg.APIURL)

	proxy := f.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(0)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()

	browser := f.Section("browser")
	cfg.SortBy = browser.Key("sort_by").MustString(cfg.SortBy)
	cfg.SortOrder = browser.Key("sort_order").MustString(cfg.SortOrder)

	transfer := f.Section("transfer")
	cfg.MaxUploadBytes = transfer.Key("max_upload_bytes").MustInt64(cfg.MaxUploadBytes)
	cfg.HTTPRetries = transfer.Key("http_retries").MustInt(cfg.HTTPRetries)

	return cfg, nil
}

// Save writes the configuration to an INI file with owner-only permissions.
// The proxy password is never written.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f := ini.Empty()

	server, err := f.NewSection("server")
	if err != nil {
		return fmt.Errorf("failed to create server section: %w", err)
	}
	server.Key("api_url").SetValue(cfg.APIURL)

	proxy, err := f.NewSection("proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxy.Key("mode").SetValue(cfg.ProxyMode)
	proxy.Key("host").SetValue(cfg.ProxyHost)
	proxy.Key("port").SetValue(strconv.Itoa(cfg.ProxyPort))
	proxy.Key("user").SetValue(cfg.ProxyUser)
	proxy.Key("no_proxy").SetValue(cfg.NoProxy)

	browser, err := f.NewSection("browser")
	if err != nil {
		return fmt.Errorf("failed to create browser section: %w", err)
	}
	browser.Key("sort_by").SetValue(cfg.SortBy)
	browser.Key("sort_order").SetValue(cfg.SortOrder)

	transfer, err := f.NewSection("transfer")
	if err != nil {
		return fmt.Errorf("failed to create transfer section: %w", err)
	}
	transfer.Key("max_upload_bytes").SetValue(strconv.FormatInt(cfg.MaxUploadBytes, 10))
	transfer.Key("http_retries").SetValue(strconv.Itoa(cfg.HTTPRetries))

	// temporary file + rename so a crash never leaves a half-written config
	tmpPath := path + ".tmp"
	if err := f.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// ApplyEnv applies environment overrides.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		c.APIURL = v
	}
}

// MergeWithFlags applies command-line overrides. Empty values are ignored.
func (c *Config) MergeWithFlags(apiURL, proxyMode, proxyHost string, proxyPort int) {
	if apiURL != "" {
		c.APIURL = apiURL
	}
	if proxyMode != "" {
		c.ProxyMode = proxyMode
	}
	if proxyHost != "" {
		c.ProxyHost = proxyHost
	}
	if proxyPort > 0 {
		c.ProxyPort = proxyPort
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return ErrMissingAPIURL
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidAPIURL
	}

	switch c.ProxyMode {
	case ProxyModeNone, ProxyModeSystem:
	case ProxyModeBasic, ProxyModeNTLM:
		if strings.TrimSpace(c.ProxyHost) == "" {
			return ErrMissingProxyHost
		}
	default:
		return ErrInvalidProxyMode
	}

	switch c.SortBy {
	case "name", "fileSize", "uploadedAt":
	default:
		return ErrInvalidSortField
	}
	if c.SortOrder != "asc" && c.SortOrder != "desc" {
		return ErrInvalidSortOrder
	}

	if c.MaxUploadBytes <= 0 || c.MaxUploadBytes > constants.MaxUploadSize {
		return ErrInvalidUploadLimit
	}
	if c.HTTPRetries < 0 {
		return ErrInvalidRetries
	}
	return nil
}

// NeedsProxyPassword reports whether a proxy password must be prompted for.
func (c *Config) NeedsProxyPassword() bool {
	return (c.ProxyMode == ProxyModeBasic || c.ProxyMode == ProxyModeNTLM) &&
		c.ProxyUser != "" && c.ProxyPassword == ""
}
