package browser_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharefold/sharefold/internal/api"
	"github.com/sharefold/sharefold/internal/browser"
	"github.com/sharefold/sharefold/internal/config"
	"github.com/sharefold/sharefold/internal/devserver"
	"github.com/sharefold/sharefold/internal/events"
	httpclient "github.com/sharefold/sharefold/internal/http"
	"github.com/sharefold/sharefold/internal/models"
	"github.com/sharefold/sharefold/internal/session"
	"github.com/sharefold/sharefold/internal/state"
	"github.com/sharefold/sharefold/internal/transfer"
)

var uploadedAt = time.Unix(1700000000, 0)

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

// sizeOnlyBlobs discards uploaded bytes and serves zeros of the stored length,
// so large uploads cost no memory.
type sizeOnlyBlobs struct {
	mu    sync.Mutex
	sizes map[string]int64
}

func (s *sizeOnlyBlobs) Put(key string, r io.Reader) (int64, error) {
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return n, err
	}
	s.mu.Lock()
	s.sizes[key] = n
	s.mu.Unlock()
	return n, nil
}

func (s *sizeOnlyBlobs) Open(key string) (io.ReadCloser, int64, error) {
	s.mu.Lock()
	n, ok := s.sizes[key]
	s.mu.Unlock()
	if !ok {
		return nil, 0, devserver.ErrBlobNotFound
	}
	return io.NopCloser(io.LimitReader(zeroReader{}, n)), n, nil
}

type env struct {
	srv   *devserver.Server
	ts    *httptest.Server
	blobs *sizeOnlyBlobs
	// failListing makes every GET /files drop the connection while set.
	failListing atomic.Bool
}

func newEnv(t *testing.T) *env {
	t.Helper()
	cfg := devserver.NewConfig()
	cfg.JWTSecret = "e2e-secret"
	cfg.AdminPassword = "admin-pw"
	cfg.Users = []devserver.UserSeed{
		{Username: "alice", Password: "alice-pw", Role: models.RoleUploader},
		{Username: "rita", Password: "rita-pw", Role: models.RoleReader},
	}
	cfg.Folders = []models.Folder{
		{FolderID: "fin", FolderName: "Finance", ParentFolderID: models.RootFolderID, AssignedUsers: []string{"alice", "rita"}},
		{FolderID: "F1", FolderName: "Reports", ParentFolderID: "fin", AssignedUsers: []string{"alice", "rita"}},
		{FolderID: "hr", FolderName: "HR", ParentFolderID: models.RootFolderID},
	}

	e := &env{blobs: &sizeOnlyBlobs{sizes: make(map[string]int64)}}
	srv, err := devserver.New(context.Background(), cfg, devserver.Options{Blobs: e.blobs})
	require.NoError(t, err)
	e.srv = srv

	e.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/files" && e.failListing.Load() {
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				conn.Close()
			}
			return
		}
		srv.Handler().ServeHTTP(w, r)
	}))
	t.Cleanup(e.ts.Close)
	return e
}

func (e *env) browser(t *testing.T) (*browser.Browser, *events.EventBus) {
	t.Helper()
	cfg := config.New()
	cfg.APIURL = e.ts.URL

	client, err := api.NewClient(cfg, nil)
	require.NoError(t, err)
	transferClient, err := httpclient.CreateTransferClient(cfg, nil)
	require.NoError(t, err)

	bus := events.NewEventBus(100)
	t.Cleanup(bus.Close)
	b := browser.New(browser.Options{
		Sessions:       session.NewManager(client, nil, nil, bus),
		TransferClient: transferClient,
		MaxUploadBytes: cfg.MaxUploadBytes,
		SortBy:         cfg.SortBy,
		SortOrder:      cfg.SortOrder,
		EventBus:       bus,
	})
	return b, bus
}

func zeros(name string, size int64) transfer.Candidate {
	return transfer.Candidate{
		Name: name,
		Size: size,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(io.LimitReader(zeroReader{}, size)), nil
		},
	}
}

func drainErrors(ch <-chan events.Event) []*events.ErrorEvent {
	var out []*events.ErrorEvent
	for {
		select {
		case ev := <-ch:
			if e, ok := ev.(*events.ErrorEvent); ok {
				out = append(out, e)
			}
		default:
			return out
		}
	}
}

func TestUploadTwiceKeepsBothVersions(t *testing.T) {
	if testing.Short() {
		t.Skip("transfers 1 GB over loopback")
	}
	e := newEnv(t)
	b, _ := e.browser(t)
	ctx := context.Background()

	_, err := b.Login(ctx, "admin", "admin-pw")
	require.NoError(t, err)
	require.NoError(t, b.EnterFolder(ctx, "Finance/Reports"))

	const size = 500_000_000
	res, err := b.Upload(ctx, zeros("Q1.pdf", size), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.VersionNumber)

	entry, ok := b.FindItem("Q1.pdf")
	require.True(t, ok)
	assert.Equal(t, "F1", entry.FolderID)
	assert.Equal(t, 1, entry.LatestVersion)
	assert.Equal(t, int64(size), entry.FileSize)

	res, err = b.Upload(ctx, zeros("Q1.pdf", size), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.VersionNumber)
	entry, ok = b.FindItem("Q1.pdf")
	require.True(t, ok)
	assert.Equal(t, 2, entry.LatestVersion)

	require.NoError(t, b.OpenVersions(ctx, entry))
	_, versions, open := b.Versions()
	require.True(t, open)
	var numbers []int
	for _, v := range versions {
		numbers = append(numbers, v.VersionNumber)
	}
	assert.ElementsMatch(t, []int{1, 2}, numbers)

	link, err := b.ResolveDownload(ctx, "F1", "Q1.pdf", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, link.VersionNumber)

	resp, err := http.Get(link.DownloadURL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(size), resp.ContentLength)

	latest, err := b.ResolveDownload(ctx, "F1", "Q1.pdf", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.VersionNumber)
}

func TestUploadOverCeilingMakesNoRequest(t *testing.T) {
	e := newEnv(t)
	b, _ := e.browser(t)
	ctx := context.Background()

	_, err := b.Login(ctx, "alice", "alice-pw")
	require.NoError(t, err)

	_, err = b.UploadTo(ctx, zeros("huge.bin", 1<<30+1), "F1", nil)
	require.Error(t, err)
	assert.Equal(t, browser.FailureValidation, browser.Classify(err))
	assert.Empty(t, e.srv.Store().ListFolder("F1"))
}

func TestFailedListingKeepsItemsAndReportsOnce(t *testing.T) {
	e := newEnv(t)
	e.srv.Store().NextVersion("F1", "a.txt", 1, "alice", uploadedAt)
	e.srv.Store().NextVersion("F1", "b.txt", 2, "alice", uploadedAt)
	b, bus := e.browser(t)
	ctx := context.Background()

	_, err := b.Login(ctx, "rita", "rita-pw")
	require.NoError(t, err)
	require.NoError(t, b.EnterFolder(ctx, "F1"))
	before := b.Items()
	require.Len(t, before, 2)

	errs := bus.Subscribe(events.EventError)
	e.failListing.Store(true)
	err = b.Reload(ctx)
	e.failListing.Store(false)
	require.Error(t, err)
	assert.Equal(t, browser.FailureRequest, browser.Classify(err))

	assert.Equal(t, before, b.Items())
	assert.Equal(t, state.FolderMode("F1"), b.Mode())
	got := drainErrors(errs)
	require.Len(t, got, 1)
	assert.Equal(t, "list files", got[0].Operation)
}

func TestSearchLeavesFolderNavigation(t *testing.T) {
	e := newEnv(t)
	e.srv.Store().NextVersion("F1", "report-q1.pdf", 1, "alice", uploadedAt)
	e.srv.Store().NextVersion("hr", "report-hr.pdf", 1, "admin", uploadedAt)
	b, _ := e.browser(t)
	ctx := context.Background()

	_, err := b.Login(ctx, "rita", "rita-pw")
	require.NoError(t, err)
	require.NoError(t, b.EnterFolder(ctx, "Finance/Reports"))
	require.Len(t, b.Path(), 2)

	require.NoError(t, b.Search(ctx, "report"))
	_, inFolder := b.CurrentFolder()
	assert.False(t, inFolder)
	assert.Empty(t, b.Path())
	assert.Equal(t, state.SearchMode("report"), b.Mode())
	items := b.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Reports", items[0].FolderName)

	// versions opened from search results use the file's own folder
	require.NoError(t, b.OpenVersions(ctx, items[0]))
	link, err := b.ResolveDownload(ctx, items[0].FolderID, items[0].FileName, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, link.VersionNumber)

	b.ClearSearch()
	assert.Equal(t, state.RootMode(), b.Mode())
	assert.Empty(t, b.Items())
}

func TestRevokedSessionTearsDownState(t *testing.T) {
	e := newEnv(t)
	e.srv.Store().NextVersion("F1", "a.txt", 1, "alice", uploadedAt)
	b, bus := e.browser(t)
	ctx := context.Background()

	s, err := b.Login(ctx, "rita", "rita-pw")
	require.NoError(t, err)
	require.NoError(t, b.EnterFolder(ctx, "F1"))
	require.NotEmpty(t, b.Items())

	invalidated := bus.Subscribe(events.EventSessionInvalidated)
	errs := bus.Subscribe(events.EventError)

	req, err := http.NewRequest(http.MethodPost, e.ts.URL+"/auth/logout", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+s.Token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	err = b.Reload(ctx)
	require.Error(t, err)
	assert.Equal(t, browser.FailureSessionInvalidated, browser.Classify(err))

	assert.Nil(t, b.Session())
	assert.Empty(t, b.Items())
	assert.Empty(t, b.Path())
	require.Len(t, drainErrors(errs), 1)
	select {
	case <-invalidated:
	default:
		t.Fatal("expected a session invalidated event")
	}

	err = b.Reload(ctx)
	assert.True(t, errors.Is(err, browser.ErrNotAuthenticated))
}

func TestRoleGate(t *testing.T) {
	e := newEnv(t)
	e.srv.Store().NextVersion("F1", "a.txt", 1, "alice", uploadedAt)
	ctx := context.Background()

	reader, _ := e.browser(t)
	_, err := reader.Login(ctx, "rita", "rita-pw")
	require.NoError(t, err)
	_, err = reader.UploadTo(ctx, zeros("x.txt", 1), "F1", nil)
	assert.ErrorIs(t, err, browser.ErrNotPermitted)
	assert.Equal(t, browser.FailurePermission, browser.Classify(err))
	assert.Len(t, e.srv.Store().ListFolder("F1"), 1)

	uploader, _ := e.browser(t)
	_, err = uploader.Login(ctx, "alice", "alice-pw")
	require.NoError(t, err)
	_, err = uploader.ResolveDownload(ctx, "F1", "a.txt", 0)
	assert.ErrorIs(t, err, browser.ErrNotPermitted)
	assert.True(t, uploader.Capabilities().CanUpload)
	assert.False(t, uploader.Capabilities().CanDownload)
}

func TestLoginFailureAndLogout(t *testing.T) {
	e := newEnv(t)
	b, bus := e.browser(t)
	ctx := context.Background()
	errs := bus.Subscribe(events.EventError)

	_, err := b.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, api.ErrInvalidCredentials)
	assert.Nil(t, b.Session())
	require.Len(t, drainErrors(errs), 1)

	_, err = b.Login(ctx, "alice", "alice-pw")
	require.NoError(t, err)
	forest, err := b.LoadFolders(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Finance/", "  Reports/"}, forest.TreeLines())

	b.Logout(ctx)
	assert.Nil(t, b.Session())
	_, err = b.LoadFolders(ctx)
	assert.ErrorIs(t, err, browser.ErrNotAuthenticated)
}
