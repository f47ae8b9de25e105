package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/sharefold/sharefold/internal/config"
	"github.com/sharefold/sharefold/internal/http"
	"github.com/sharefold/sharefold/internal/logging"
	"github.com/sharefold/sharefold/internal/models"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 * 1024

// retryLogger implements the retryablehttp.LeveledLogger interface on top of zerolog.
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// Client talks to the file-sharing API. A Client without a token can only log in;
// WithToken returns a copy that authenticates every request.
type Client struct {
	httpClient *nethttp.Client
	baseURL    string
	token      string
	logger     *logging.Logger
}

// NewClient creates a new, unauthenticated API client.
func NewClient(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIURL) == "" {
		return nil, fmt.Errorf("API base URL is empty: set [server] api_url, %s or --api-url", config.EnvAPIURL)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.Component("api")

	httpClient, err := http.ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = cfg.HTTPRetries
	retryClient.Logger = &retryLogger{logger: logger}
	// Hand every response back unchanged once attempts are exhausted so
	// error bodies reach the caller.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		httpClient: retryClient.StandardClient(),
		baseURL:    strings.TrimSuffix(cfg.APIURL, "/"),
		logger:     logger,
	}, nil
}

// WithToken returns a copy of the client bound to a session token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs an HTTP request with authentication
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*nethttp.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().
			Str("method", method).
			Str("path", path).
			Str("class", http.ErrorTypeName(http.ClassifyError(err))).
			Err(err).
			Msg("API call failed")
		return nil, err
	}
	return resp, nil
}

// call runs a request and decodes a successful JSON response into out (if non-nil).
// Every failure comes back as a *RequestError.
func (c *Client) call(ctx context.Context, op, method, path string, body, out interface{}) error {
	authenticated := c.token != ""

	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return &RequestError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		re := statusError(op, resp.StatusCode, readErrorMessage(resp.Body), authenticated)
		if errors.Is(re, ErrSessionInvalid) {
			c.logger.Error().Str("op", op).Msg("server rejected session token")
		} else {
			c.logger.Warn().Str("op", op).Int("status", resp.StatusCode).Msg(re.Message)
		}
		return re
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// readErrorMessage extracts {"error": "..."} or falls back to the raw body text.
func readErrorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var er models.ErrorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Error != "" {
		return er.Error
	}
	return strings.TrimSpace(string(raw))
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	var out models.LoginResponse
	err := c.call(ctx, "login", "POST", "/auth/login",
		models.LoginRequest{Username: username, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	if out.SessionToken == "" {
		return nil, &RequestError{Op: "login", StatusCode: nethttp.StatusOK, Message: "response carried no session token"}
	}
	return &out, nil
}

// Logout ends the session on the server.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, "logout", "POST", "/auth/logout", nil, nil)
}

// ChangePassword changes the current user's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	return c.call(ctx, "change password", "POST", "/auth/change-password",
		models.ChangePasswordRequest{CurrentPassword: current, NewPassword: next}, nil)
}

// ListFolders returns every folder visible to the caller.
func (c *Client) ListFolders(ctx context.Context) ([]models.Folder, error) {
	var out models.FolderListResponse
	if err := c.call(ctx, "list folders", "GET", "/folders", nil, &out); err != nil {
		return nil, err
	}
	return out.Folders, nil
}

// FileQuery scopes a listing to a folder or to a cross-folder search.
type FileQuery struct {
	FolderID  string
	Search    string
	SortBy    string
	SortOrder string
}

// ListFiles returns the latest-version entries for a folder or a search.
func (c *Client) ListFiles(ctx context.Context, q FileQuery) ([]models.FileEntry, error) {
	v := url.Values{}
	op := "list files"
	if q.Search != "" {
		v.Set("search", q.Search)
		op = "search files"
	} else {
		v.Set("folderId", q.FolderID)
	}
	if q.SortBy != "" {
		v.Set("sortBy", q.SortBy)
	}
	if q.SortOrder != "" {
		v.Set("sortOrder", q.SortOrder)
	}

	var out models.FileListResponse
	if err := c.call(ctx, op, "GET", "/files?"+v.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// ListVersions returns the version history of a file, newest first.
func (c *Client) ListVersions(ctx context.Context, folderID, fileName string) ([]models.Version, error) {
	path := "/files/" + url.PathEscape(folderID) + "/" + url.PathEscape(fileName) + "/versions"
	var out models.VersionListResponse
	if err := c.call(ctx, "list versions", "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return out.Versions, nil
}

// RequestUploadAuthorization asks for a write location for one file.
func (c *Client) RequestUploadAuthorization(ctx context.Context, req models.UploadAuthorizationRequest) (*models.UploadAuthorization, error) {
	var out models.UploadAuthorization
	if err := c.call(ctx, "request upload authorization", "POST", "/files/upload-url", req, &out); err != nil {
		return nil, err
	}
	if out.UploadURL == "" {
		return nil, &RequestError{Op: "request upload authorization", StatusCode: nethttp.StatusOK, Message: "response carried no upload URL"}
	}
	if out.Method == "" {
		out.Method = nethttp.MethodPut
	}
	return &out, nil
}

// RequestDownloadAuthorization asks for a retrieval location. A zero
// VersionNumber requests the latest version.
func (c *Client) RequestDownloadAuthorization(ctx context.Context, req models.DownloadAuthorizationRequest) (*models.DownloadAuthorization, error) {
	var out models.DownloadAuthorization
	if err := c.call(ctx, "request download authorization", "POST", "/files/download-url", req, &out); err != nil {
		return nil, err
	}
	if out.DownloadURL == "" {
		return nil, &RequestError{Op: "request download authorization", StatusCode: nethttp.StatusOK, Message: "response carried no download URL"}
	}
	return &out, nil
}
