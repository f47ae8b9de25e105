package devserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sharefold/sharefold/internal/models"
)

// ErrBlobNotFound is returned for a key with no stored bytes.
var ErrBlobNotFound = errors.New("blob not found")

// ObjectRequest describes one presigned transfer.
type ObjectRequest struct {
	Key    string
	Size   int64         // upload only
	Expiry time.Duration
	Origin string        // scheme://host the client reached the API on
}

// Presigner issues single-use transfer locations in an object store.
type Presigner interface {
	PresignUpload(ctx context.Context, req ObjectRequest) (*models.UploadAuthorization, error)
	PresignDownload(ctx context.Context, req ObjectRequest) (string, error)
}

// BlobStore holds object bytes for the local presigner.
type BlobStore interface {
	Put(key string, r io.Reader) (int64, error)
	Open(key string) (io.ReadCloser, int64, error)
}

// MemBlobs keeps objects in memory.
type MemBlobs struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemBlobs creates an empty in-memory store.
func NewMemBlobs() *MemBlobs {
	return &MemBlobs{blobs: make(map[string][]byte)}
}

func (m *MemBlobs) Put(key string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	m.blobs[key] = data
	m.mu.Unlock()
	return int64(len(data)), nil
}

func (m *MemBlobs) Open(key string) (io.ReadCloser, int64, error) {
	m.mu.RLock()
	data, ok := m.blobs[key]
	m.mu.RUnlock()
	if !ok {
		return nil, 0, ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

// blobNamespace derives stable file names for object keys.
var blobNamespace = uuid.MustParse("6f1b7c4e-2f0a-4d5e-9a39-1c8e5b0f7d21")

// DirBlobs keeps objects as files under a directory. Object keys carry user
// supplied file names, so each key is mapped to a name-based uuid instead of
// being used as a path.
type DirBlobs struct {
	dir string
}

// NewDirBlobs creates dir if needed.
func NewDirBlobs(dir string) (*DirBlobs, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &DirBlobs{dir: dir}, nil
}

func (d *DirBlobs) path(key string) string {
	return filepath.Join(d.dir, uuid.NewSHA1(blobNamespace, []byte(key)).String())
}

func (d *DirBlobs) Put(key string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(d.dir, ".put-*")
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return n, err
	}
	if err := os.Rename(tmp.Name(), d.path(key)); err != nil {
		os.Remove(tmp.Name())
		return n, err
	}
	return n, nil
}

func (d *DirBlobs) Open(key string) (io.ReadCloser, int64, error) {
	f, err := os.Open(d.path(key))
	if os.IsNotExist(err) {
		return nil, 0, ErrBlobNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// grantClaims authorize one method on one object key.
type grantClaims struct {
	Key    string `json:"key"`
	Method string `json:"method"`
	Size   int64  `json:"size,omitempty"`
	jwt.RegisteredClaims
}

// LocalPresigner serves objects from the devserver itself. Locations are
// /blob/{key}?grant=<token>, where the token is signed with the server
// secret and binds method, key, size and expiry.
type LocalPresigner struct {
	secret    []byte
	publicURL string
	now       func() time.Time
}

// NewLocalPresigner creates a presigner. An empty publicURL makes locations
// relative to the origin of each API request.
func NewLocalPresigner(secret, publicURL string) *LocalPresigner {
	return &LocalPresigner{
		secret:    []byte(secret),
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}
}

func (p *LocalPresigner) PresignUpload(_ context.Context, req ObjectRequest) (*models.UploadAuthorization, error) {
	u, err := p.sign(http.MethodPut, req)
	if err != nil {
		return nil, err
	}
	return &models.UploadAuthorization{
		UploadURL: u,
		Method:    http.MethodPut,
		Headers:   map[string]string{"Content-Type": "application/octet-stream"},
	}, nil
}

func (p *LocalPresigner) PresignDownload(_ context.Context, req ObjectRequest) (string, error) {
	return p.sign(http.MethodGet, req)
}

func (p *LocalPresigner) sign(method string, req ObjectRequest) (string, error) {
	now := p.now()
	claims := grantClaims{
		Key:    req.Key,
		Method: method,
		Size:   req.Size,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(req.Expiry)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign transfer grant: %w", err)
	}
	base := p.publicURL
	if base == "" {
		base = req.Origin
	}
	return base + "/blob/" + escapeKey(req.Key) + "?grant=" + url.QueryEscape(token), nil
}

// verify checks a grant for method on key.
func (p *LocalPresigner) verify(grant, method, key string) (*grantClaims, error) {
	token, err := jwt.ParseWithClaims(grant, &grantClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*grantClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid grant")
	}
	if claims.Method != method || claims.Key != key {
		return nil, errors.New("grant does not cover this request")
	}
	return claims, nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// handleBlob serves PUT and GET on locally presigned locations.
func (srv *Server) handleBlob(w http.ResponseWriter, r *http.Request) {
	if srv.local == nil {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/blob/")
	claims, err := srv.local.verify(r.URL.Query().Get("grant"), r.Method, key)
	if err != nil {
		srv.logger.Debug().Str("method", r.Method).Err(err).Msg("rejected blob grant")
		writeError(w, http.StatusForbidden, "Request has expired or signature does not match")
		return
	}

	switch r.Method {
	case http.MethodPut:
		if r.ContentLength >= 0 && r.ContentLength != claims.Size {
			writeError(w, http.StatusBadRequest, "Content length does not match the authorized size")
			return
		}
		n, err := srv.blobs.Put(key, io.LimitReader(r.Body, claims.Size+1))
		if err != nil {
			srv.logger.Error().Err(err).Msg("failed to store blob")
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if n != claims.Size {
			writeError(w, http.StatusBadRequest, "Body does not match the authorized size")
			return
		}
		srv.metrics.bytesStored.Add(float64(n))
		w.WriteHeader(http.StatusOK)

	case http.MethodGet:
		rc, size, err := srv.blobs.Open(key)
		if errors.Is(err, ErrBlobNotFound) {
			writeError(w, http.StatusNotFound, "The specified key does not exist")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", fmt.Sprint(size))
		if _, err := io.Copy(w, rc); err != nil {
			srv.logger.Warn().Err(err).Msg("blob download interrupted")
		}

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
