// Package devserver is an in-memory implementation of the sharefold file API
// for local development and end-to-end tests. Transfers go to a pluggable
// object store: the server itself, an S3 bucket or an Azure container.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sharefold/sharefold/internal/access"
	"github.com/sharefold/sharefold/internal/constants"
	"github.com/sharefold/sharefold/internal/logging"
	"github.com/sharefold/sharefold/internal/models"
	"github.com/sharefold/sharefold/internal/validation"
)

// Options override server collaborators. Zero values select defaults derived
// from the configuration.
type Options struct {
	Logger    *logging.Logger
	Blobs     BlobStore // local object store only
	Presigner Presigner
}

// Server serves the file API.
type Server struct {
	cfg       *Config
	store     *Store
	sessions  *Sessions
	presigner Presigner
	local     *LocalPresigner
	blobs     BlobStore
	metrics   *metrics
	logger    *logging.Logger
	now       func() time.Time
	handler   http.Handler
}

// New validates cfg, seeds the catalogue and selects the object store.
func New(ctx context.Context, cfg *Config, opts Options) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	srv := &Server{
		cfg:      cfg,
		store:    NewStore(),
		sessions: NewSessions(cfg.JWTSecret, constants.SessionLifetime),
		metrics:  newMetrics(),
		logger:   logger.Component("devserver"),
		now:      time.Now,
	}
	if err := Seed(srv.store, cfg); err != nil {
		return nil, err
	}

	switch {
	case opts.Presigner != nil:
		srv.presigner = opts.Presigner
	case cfg.ObjectStore == ObjectStoreS3:
		p, err := NewS3Presigner(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		srv.presigner = p
	case cfg.ObjectStore == ObjectStoreAzure:
		p, err := NewAzurePresigner(cfg.Azure)
		if err != nil {
			return nil, err
		}
		srv.presigner = p
	default:
		blobs := opts.Blobs
		if blobs == nil {
			if cfg.BlobDir != "" {
				d, err := NewDirBlobs(cfg.BlobDir)
				if err != nil {
					return nil, err
				}
				blobs = d
			} else {
				blobs = NewMemBlobs()
			}
		}
		srv.blobs = blobs
		srv.local = NewLocalPresigner(cfg.JWTSecret, cfg.PublicURL)
		srv.presigner = srv.local
	}

	srv.handler = srv.routes()
	return srv, nil
}

// Store exposes the catalogue, mainly for seeding in tests.
func (srv *Server) Store() *Store { return srv.store }

// Handler returns the HTTP handler.
func (srv *Server) Handler() http.Handler { return srv.handler }

func (srv *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/login", srv.handleLogin)
	mux.HandleFunc("POST /auth/logout", srv.requireSession(srv.handleLogout))
	mux.HandleFunc("POST /auth/change-password", srv.requireSession(srv.handleChangePassword))

	mux.HandleFunc("GET /folders", srv.requireSession(srv.handleFolders))
	mux.HandleFunc("GET /files", srv.requireSession(srv.handleFiles))
	mux.HandleFunc("GET /files/{folderId}/{fileName}/versions", srv.requireSession(srv.handleVersions))
	mux.HandleFunc("POST /files/upload-url", srv.requireSession(srv.handleUploadURL))
	mux.HandleFunc("POST /files/download-url", srv.requireSession(srv.handleDownloadURL))

	mux.HandleFunc("/blob/", srv.handleBlob)
	mux.Handle("GET /metrics", srv.metrics.handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return srv.instrument(mux)
}

// ListenAndServe serves on cfg.Addr until ctx is cancelled.
func (srv *Server) ListenAndServe(ctx context.Context) error {
	hs := &http.Server{
		Addr:              srv.cfg.Addr,
		Handler:           srv.handler,
		ReadHeaderTimeout: 30 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		srv.logger.Info().Str("addr", srv.cfg.Addr).Str("objects", srv.cfg.ObjectStore).Msg("devserver listening")
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.logger.Info().Msg("shutting down")
		return hs.Shutdown(shutdownCtx)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument logs and counts each request. Query strings are never logged
// because blob grants travel there.
func (srv *Server) instrument(next *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		_, route := next.Handler(r)
		if route == "" {
			route = "unmatched"
		}
		d := time.Since(start)
		srv.metrics.recordRequest(r.Method, route, rec.status, d)
		srv.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", d).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}

// decodeBody reads a JSON body. An empty body decodes as an empty object.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func origin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (srv *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password required")
		return
	}

	u, err := srv.store.User(username)
	if err != nil || !checkPassword(u.PasswordHash, req.Password) {
		srv.metrics.logins.WithLabelValues("failure").Inc()
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := srv.sessions.Issue(u)
	if err != nil {
		srv.logger.Error().Err(err).Msg("failed to issue session")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	srv.metrics.logins.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, models.LoginResponse{
		SessionToken:       token,
		Username:           u.Username,
		Role:               u.Role,
		MustChangePassword: u.MustChangePassword,
	})
}

func (srv *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	srv.sessions.Revoke(claimsFrom(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// handleChangePassword answers a wrong current password with 400, not 401:
// clients treat 401 on an authenticated call as a dead session.
func (srv *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	var req models.ChangePasswordRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "Current and new password required")
		return
	}
	u, err := srv.store.User(claims.Username)
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if !checkPassword(u.PasswordHash, req.CurrentPassword) {
		writeError(w, http.StatusBadRequest, "Current password is incorrect")
		return
	}
	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if err := srv.store.SetPassword(u.Username, hash); err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed"})
}

func (srv *Server) caller(r *http.Request) (User, bool) {
	u, err := srv.store.User(claimsFrom(r.Context()).Username)
	return u, err == nil
}

func (srv *Server) handleFolders(w http.ResponseWriter, r *http.Request) {
	u, ok := srv.caller(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, models.FolderListResponse{Folders: srv.store.VisibleFolders(u)})
}

func (srv *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	u, ok := srv.caller(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	q := r.URL.Query()
	search := strings.TrimSpace(q.Get("search"))
	folderID := q.Get("folderId")

	var files []models.FileEntry
	switch {
	case search != "":
		visible := srv.store.VisibleFolders(u)
		ids := make([]string, len(visible))
		for i, f := range visible {
			ids[i] = f.FolderID
		}
		files = srv.store.Search(search, ids)
	case folderID != "":
		if !srv.store.CanAccess(u, folderID) {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		files = srv.store.ListFolder(folderID)
	default:
		writeError(w, http.StatusBadRequest, "folderId or search required")
		return
	}

	sortFiles(files, q.Get("sortBy"), q.Get("sortOrder"))
	if files == nil {
		files = []models.FileEntry{}
	}
	writeJSON(w, http.StatusOK, models.FileListResponse{Files: files})
}

// sortFiles applies the listing sort. Unknown fields sort by name.
func sortFiles(files []models.FileEntry, sortBy, sortOrder string) {
	desc := sortOrder == models.SortDesc
	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		var less bool
		switch sortBy {
		case models.SortByFileSize:
			less = a.FileSize < b.FileSize
			if a.FileSize == b.FileSize {
				return false
			}
		case models.SortByUploadedAt:
			less = a.UploadedAt.Before(b.UploadedAt.Time)
			if a.UploadedAt.Equal(b.UploadedAt.Time) {
				return false
			}
		default:
			if a.FileName == b.FileName {
				return false
			}
			less = a.FileName < b.FileName
		}
		if desc {
			return !less
		}
		return less
	})
}

func (srv *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	u, ok := srv.caller(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	folderID := r.PathValue("folderId")
	fileName := r.PathValue("fileName")
	if folderID == "" || fileName == "" {
		writeError(w, http.StatusBadRequest, "folderId and fileName required")
		return
	}
	if !srv.store.CanAccess(u, folderID) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	writeJSON(w, http.StatusOK, models.VersionListResponse{Versions: srv.store.Versions(folderID, fileName)})
}

// handleUploadURL records the next version and moves the latest pointer
// before any bytes arrive, then returns where to put them.
func (srv *Server) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	u, ok := srv.caller(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if !access.For(u.Role).CanUpload {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	var req models.UploadAuthorizationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.FileName = strings.TrimSpace(req.FileName)
	if req.FolderID == "" || req.FileName == "" {
		writeError(w, http.StatusBadRequest, "folderId and fileName required")
		return
	}
	if err := validation.ValidateFilename(req.FileName); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.FileSize < 0 {
		writeError(w, http.StatusBadRequest, "fileSize must not be negative")
		return
	}
	if req.FileSize > srv.cfg.MaxUploadBytes {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("File size exceeds maximum of %s", models.FormatSize(srv.cfg.MaxUploadBytes)))
		return
	}
	if !srv.store.CanAccess(u, req.FolderID) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	v := srv.store.NextVersion(req.FolderID, req.FileName, req.FileSize, u.Username, srv.now())
	auth, err := srv.presigner.PresignUpload(r.Context(), ObjectRequest{
		Key:    v.ObjectKey,
		Size:   req.FileSize,
		Expiry: constants.UploadURLExpiry,
		Origin: origin(r),
	})
	if err != nil {
		srv.logger.Error().Err(err).Str("key", v.ObjectKey).Msg("failed to presign upload")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	auth.VersionNumber = v.VersionNumber
	srv.metrics.authorizations.WithLabelValues("upload").Inc()
	writeJSON(w, http.StatusOK, auth)
}

func (srv *Server) handleDownloadURL(w http.ResponseWriter, r *http.Request) {
	u, ok := srv.caller(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if !access.For(u.Role).CanDownload {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	var req models.DownloadAuthorizationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.FolderID == "" || req.FileName == "" {
		writeError(w, http.StatusBadRequest, "folderId and fileName required")
		return
	}
	if !srv.store.CanAccess(u, req.FolderID) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	v, err := srv.store.Version(req.FolderID, req.FileName, req.VersionNumber)
	switch {
	case errors.Is(err, errUnknownFile):
		writeError(w, http.StatusNotFound, "File not found")
		return
	case err != nil:
		writeError(w, http.StatusNotFound, "File version not found")
		return
	}

	link, err := srv.presigner.PresignDownload(r.Context(), ObjectRequest{
		Key:    v.ObjectKey,
		Expiry: constants.DownloadURLExpiry,
		Origin: origin(r),
	})
	if err != nil {
		srv.logger.Error().Err(err).Str("key", v.ObjectKey).Msg("failed to presign download")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	srv.metrics.authorizations.WithLabelValues("download").Inc()
	writeJSON(w, http.StatusOK, models.DownloadAuthorization{
		DownloadURL:   link,
		FileName:      req.FileName,
		VersionNumber: v.VersionNumber,
	})
}
