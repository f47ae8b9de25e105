// Package browser is the single entry point a frontend drives: it owns the
// live session, builds every browsing component around it, checks each action
// against the role and tears everything down when the session ends.
package browser

import (
	"context"
	"fmt"
	nethttp "net/http"
	"sync"
	"sync/atomic"

	"github.com/sharefold/sharefold/internal/access"
	"github.com/sharefold/sharefold/internal/api"
	"github.com/sharefold/sharefold/internal/events"
	"github.com/sharefold/sharefold/internal/logging"
	"github.com/sharefold/sharefold/internal/models"
	"github.com/sharefold/sharefold/internal/progress"
	"github.com/sharefold/sharefold/internal/session"
	"github.com/sharefold/sharefold/internal/state"
	"github.com/sharefold/sharefold/internal/transfer"
)

// Options configures a Browser.
type Options struct {
	Sessions       *session.Manager
	TransferClient *nethttp.Client // direct object-store transfers
	MaxUploadBytes int64
	SortBy         string
	SortOrder      string
	Logger         *logging.Logger
	EventBus       *events.EventBus
}

// core is everything that exists only while a session is live.
type core struct {
	sess     *session.Session
	caps     access.Capabilities
	client   *api.Client
	forest   atomic.Pointer[state.Forest]
	nav      *state.Navigator
	files    *state.FileList
	versions *state.VersionViewer
	uploader *transfer.UploadCoordinator
	resolver *transfer.DownloadLinkResolver
}

// Browser is safe for use by one frontend; operations may overlap.
type Browser struct {
	opts     Options
	logger   *logging.Logger
	eventBus *events.EventBus

	mu   sync.Mutex
	core *core
}

// New creates a logged-out browser.
func New(opts Options) *Browser {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Browser{opts: opts, logger: logger.Component("browser"), eventBus: opts.EventBus}
}

// Login authenticates and starts a session.
func (b *Browser) Login(ctx context.Context, username, password string) (*session.Session, error) {
	s, err := b.opts.Sessions.Login(ctx, username, password)
	if err != nil {
		b.eventBus.PublishError("login", Classify(err).String(), err)
		return nil, err
	}
	b.Attach(s)
	return s, nil
}

// Resume continues the saved session, if any.
func (b *Browser) Resume() (*session.Session, error) {
	s, err := b.opts.Sessions.Restore()
	if err != nil {
		return nil, err
	}
	b.Attach(s)
	return s, nil
}

// Attach builds the browsing components around s, replacing any previous session.
func (b *Browser) Attach(s *session.Session) {
	client := b.opts.Sessions.Client(s)
	c := &core{
		sess:   s,
		caps:   access.For(s.Role),
		client: client,
		nav:    state.NewNavigator(b.eventBus),
	}
	c.files = state.NewFileList(client, c.nav, b.opts.SortBy, b.opts.SortOrder, b.logger, b.eventBus)
	c.resolver = transfer.NewDownloadLinkResolver(client, b.logger)
	c.versions = state.NewVersionViewer(client, c.resolver, b.logger, b.eventBus)
	c.uploader = transfer.NewUploadCoordinator(client, b.opts.TransferClient, c.files, b.opts.MaxUploadBytes, b.logger, b.eventBus)

	b.mu.Lock()
	old := b.core
	b.core = c
	b.mu.Unlock()

	if old != nil {
		resetCore(old)
	}
	b.logger.Info().Str("user", s.Username).Str("role", string(s.Role)).Msg("session attached")
}

// Session returns the live session, or nil.
func (b *Browser) Session() *session.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.core == nil {
		return nil
	}
	return b.core.sess
}

// Capabilities returns what the live session's role may do. Logged out, nothing.
func (b *Browser) Capabilities() access.Capabilities {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.core == nil {
		return access.Capabilities{}
	}
	return b.core.caps
}

// Logout ends the session. Server-side failures are swallowed; local state is
// always discarded.
func (b *Browser) Logout(ctx context.Context) {
	b.mu.Lock()
	c := b.core
	b.core = nil
	b.mu.Unlock()

	if c == nil {
		b.opts.Sessions.Forget()
		return
	}
	resetCore(c)
	b.opts.Sessions.Logout(ctx, c.sess)
}

// ChangePassword changes the password of the logged-in user.
func (b *Browser) ChangePassword(ctx context.Context, current, next string) error {
	c, err := b.live("change password")
	if err != nil {
		return err
	}
	return b.report(c, "change password", b.opts.Sessions.ChangePassword(ctx, c.sess, current, next))
}

func (b *Browser) live(op string) (*core, error) {
	b.mu.Lock()
	c := b.core
	b.mu.Unlock()
	if c == nil {
		b.eventBus.PublishError(op, FailureSessionInvalidated.String(), ErrNotAuthenticated)
		return nil, ErrNotAuthenticated
	}
	return c, nil
}

func (b *Browser) gate(c *core, op string, action access.Action) error {
	if c.caps.Allows(action) {
		return nil
	}
	err := fmt.Errorf("%w: %s may not %s", ErrNotPermitted, c.sess.Role, action)
	b.eventBus.PublishError(op, FailurePermission.String(), err)
	return err
}

// report surfaces err once and tears the session down if the server rejected it.
func (b *Browser) report(c *core, op string, err error) error {
	if err == nil {
		return nil
	}
	kind := Classify(err)
	b.eventBus.PublishError(op, kind.String(), err)
	if kind == FailureSessionInvalidated {
		b.invalidate(c, err)
	}
	return err
}

func (b *Browser) invalidate(c *core, cause error) {
	b.mu.Lock()
	current := b.core == c
	if current {
		b.core = nil
	}
	b.mu.Unlock()
	if !current {
		return
	}
	resetCore(c)
	b.opts.Sessions.Invalidate(c.sess, cause.Error())
}

func resetCore(c *core) {
	c.versions.Close()
	c.files.Reset()
	c.nav.ResetToRoot()
}

// LoadFolders fetches the folder forest visible to the session.
func (b *Browser) LoadFolders(ctx context.Context) (*state.Forest, error) {
	c, err := b.live("list folders")
	if err != nil {
		return nil, err
	}
	forest, err := b.loadForest(ctx, c)
	if err != nil {
		return nil, b.report(c, "list folders", err)
	}
	return forest, nil
}

func (b *Browser) loadForest(ctx context.Context, c *core) (*state.Forest, error) {
	folders, err := c.client.ListFolders(ctx)
	if err != nil {
		return nil, err
	}
	forest := state.NewForest(folders)
	c.forest.Store(forest)
	return forest, nil
}

func (b *Browser) ensureForest(ctx context.Context, c *core) (*state.Forest, error) {
	if f := c.forest.Load(); f != nil {
		return f, nil
	}
	return b.loadForest(ctx, c)
}

// Forest returns the last loaded folder forest, or nil.
func (b *Browser) Forest() *state.Forest {
	c, err := b.peek()
	if err != nil {
		return nil
	}
	return c.forest.Load()
}

// peek returns the live core without reporting anything.
func (b *Browser) peek() (*core, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.core == nil {
		return nil, ErrNotAuthenticated
	}
	return b.core, nil
}

// Children returns the navigable children of the current folder.
func (b *Browser) Children(ctx context.Context) ([]models.Folder, error) {
	c, err := b.live("list folders")
	if err != nil {
		return nil, err
	}
	forest, err := b.ensureForest(ctx, c)
	if err != nil {
		return nil, b.report(c, "list folders", err)
	}
	return c.nav.ChildrenOf(forest.Folders()), nil
}

// NavigateInto enters folder and lists it. folder must be a child of the
// current folder.
func (b *Browser) NavigateInto(ctx context.Context, folder models.Folder) error {
	c, err := b.live("navigate")
	if err != nil {
		return err
	}
	if err := c.nav.NavigateInto(folder); err != nil {
		return b.report(c, "navigate", err)
	}
	return b.report(c, "list files", c.files.LoadForFolder(ctx, folder.FolderID))
}

// NavigateIntoNamed enters the child of the current folder called name.
func (b *Browser) NavigateIntoNamed(ctx context.Context, name string) error {
	children, err := b.Children(ctx)
	if err != nil {
		return err
	}
	for _, f := range children {
		if f.FolderName == name {
			return b.NavigateInto(ctx, f)
		}
	}
	c, err := b.live("navigate")
	if err != nil {
		return err
	}
	return b.report(c, "navigate", fmt.Errorf("%w: %q in the current folder", state.ErrFolderNotFound, name))
}

// EnterFolder jumps to a folder given by id or name path, setting the full
// breadcrumb, and lists it.
func (b *Browser) EnterFolder(ctx context.Context, ref string) error {
	c, err := b.live("navigate")
	if err != nil {
		return err
	}
	forest, err := b.ensureForest(ctx, c)
	if err != nil {
		return b.report(c, "list folders", err)
	}
	folder, err := forest.Resolve(ref)
	if err != nil {
		return b.report(c, "navigate", err)
	}
	chain, err := forest.PathTo(folder.FolderID)
	if err != nil {
		return b.report(c, "navigate", err)
	}
	if err := c.nav.EnterPath(chain); err != nil {
		return b.report(c, "navigate", err)
	}
	return b.report(c, "list files", c.files.LoadForFolder(ctx, folder.FolderID))
}

// NavigateUp leaves the current folder. At the root it does nothing.
func (b *Browser) NavigateUp(ctx context.Context) error {
	c, err := b.live("navigate")
	if err != nil {
		return err
	}
	if c.nav.Depth() == 0 {
		return nil
	}
	c.nav.NavigateUp()
	return b.reloadCurrent(ctx, c)
}

// NavigateToBreadcrumb makes path[i] current.
func (b *Browser) NavigateToBreadcrumb(ctx context.Context, i int) error {
	c, err := b.live("navigate")
	if err != nil {
		return err
	}
	if err := c.nav.NavigateToBreadcrumb(i); err != nil {
		return b.report(c, "navigate", err)
	}
	return b.reloadCurrent(ctx, c)
}

// ResetToRoot returns to the root with an empty listing.
func (b *Browser) ResetToRoot(ctx context.Context) error {
	c, err := b.live("navigate")
	if err != nil {
		return err
	}
	c.nav.ResetToRoot()
	return b.reloadCurrent(ctx, c)
}

func (b *Browser) reloadCurrent(ctx context.Context, c *core) error {
	id := ""
	if cur, ok := c.nav.Current(); ok {
		id = cur.FolderID
	}
	return b.report(c, "list files", c.files.LoadForFolder(ctx, id))
}

// Path returns the breadcrumb path.
func (b *Browser) Path() []models.Folder {
	c, err := b.peek()
	if err != nil {
		return nil
	}
	return c.nav.Path()
}

// CurrentFolder returns the current folder, or false at the root.
func (b *Browser) CurrentFolder() (models.Folder, bool) {
	c, err := b.peek()
	if err != nil {
		return models.Folder{}, false
	}
	return c.nav.Current()
}

// Search lists files matching query across every visible folder and leaves
// folder navigation.
func (b *Browser) Search(ctx context.Context, query string) error {
	c, err := b.live("search files")
	if err != nil {
		return err
	}
	return b.report(c, "search files", c.files.Search(ctx, query))
}

// ClearSearch leaves search mode for the empty root listing.
func (b *Browser) ClearSearch() {
	if c, err := b.peek(); err == nil {
		c.files.ClearSearch()
	}
}

// SetSort changes the sort field or toggles its order, then reloads.
func (b *Browser) SetSort(ctx context.Context, field string) error {
	c, err := b.live("sort files")
	if err != nil {
		return err
	}
	return b.report(c, "list files", c.files.SetSort(ctx, field))
}

// Reload repeats the current listing request.
func (b *Browser) Reload(ctx context.Context) error {
	c, err := b.live("list files")
	if err != nil {
		return err
	}
	return b.report(c, "list files", c.files.Reload(ctx))
}

// Items returns the current listing.
func (b *Browser) Items() []models.FileEntry {
	c, err := b.peek()
	if err != nil {
		return nil
	}
	return c.files.Items()
}

// Mode returns the current browse mode.
func (b *Browser) Mode() state.BrowseMode {
	c, err := b.peek()
	if err != nil {
		return state.RootMode()
	}
	return c.files.Mode()
}

// Sort returns the current sort field and order.
func (b *Browser) Sort() (string, string) {
	c, err := b.peek()
	if err != nil {
		return b.opts.SortBy, b.opts.SortOrder
	}
	return c.files.Sort()
}

// FindItem returns the listed entry named fileName.
func (b *Browser) FindItem(fileName string) (models.FileEntry, bool) {
	c, err := b.peek()
	if err != nil {
		return models.FileEntry{}, false
	}
	return c.files.Find(fileName)
}

// OpenVersions loads the version history of entry.
func (b *Browser) OpenVersions(ctx context.Context, entry models.FileEntry) error {
	c, err := b.live("list versions")
	if err != nil {
		return err
	}
	return b.report(c, "list versions", c.versions.Open(ctx, entry))
}

// Versions returns the open version list and the file it belongs to.
func (b *Browser) Versions() (models.FileEntry, []models.Version, bool) {
	c, err := b.peek()
	if err != nil {
		return models.FileEntry{}, nil, false
	}
	file, ok := c.versions.File()
	return file, c.versions.Versions(), ok
}

// ResolveOpenVersion returns a retrieval URL for a version of the file whose
// history is open, using that file's own folder. It works from search results,
// where no folder is current.
func (b *Browser) ResolveOpenVersion(ctx context.Context, version int) (*models.DownloadAuthorization, error) {
	c, err := b.live("download")
	if err != nil {
		return nil, err
	}
	if err := b.gate(c, "download", access.ActionDownload); err != nil {
		return nil, err
	}
	link, err := c.versions.ResolveOpen(ctx, version)
	if err != nil {
		return nil, b.report(c, "download", err)
	}
	return link, nil
}

// CloseVersions discards the open version list.
func (b *Browser) CloseVersions() {
	if c, err := b.peek(); err == nil {
		c.versions.Close()
	}
}

// ResolveDownload returns a short-lived retrieval URL. A zero version means latest.
func (b *Browser) ResolveDownload(ctx context.Context, folderID, fileName string, version int) (*models.DownloadAuthorization, error) {
	c, err := b.live("download")
	if err != nil {
		return nil, err
	}
	if err := b.gate(c, "download", access.ActionDownload); err != nil {
		return nil, err
	}
	link, err := c.versions.ResolveDownload(ctx, fileName, folderID, version)
	if err != nil {
		return nil, b.report(c, "download", err)
	}
	return link, nil
}

// UploadTo uploads cand into folderID and refreshes that folder's listing.
func (b *Browser) UploadTo(ctx context.Context, cand transfer.Candidate, folderID string, reporter progress.Reporter) (*transfer.UploadResult, error) {
	c, err := b.live("upload")
	if err != nil {
		return nil, err
	}
	if err := b.gate(c, "upload", access.ActionUpload); err != nil {
		return nil, err
	}
	res, err := c.uploader.Upload(ctx, cand, folderID, reporter)
	if err != nil {
		return nil, b.report(c, "upload", err)
	}
	if res.RefreshErr != nil {
		_ = b.report(c, "list files", res.RefreshErr)
	}
	return res, nil
}

// Upload uploads cand into the current folder.
func (b *Browser) Upload(ctx context.Context, cand transfer.Candidate, reporter progress.Reporter) (*transfer.UploadResult, error) {
	folderID := ""
	if cur, ok := b.CurrentFolder(); ok {
		folderID = cur.FolderID
	}
	return b.UploadTo(ctx, cand, folderID, reporter)
}

// UploadStatus returns the upload coordinator's state.
func (b *Browser) UploadStatus() transfer.UploadStatus {
	c, err := b.peek()
	if err != nil {
		return transfer.UploadStatus{}
	}
	return c.uploader.Status()
}
