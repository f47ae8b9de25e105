package state

import (
	"context"
	"sync"

	"github.com/sharefold/sharefold/internal/events"
	"github.com/sharefold/sharefold/internal/logging"
	"github.com/sharefold/sharefold/internal/models"
	"github.com/sharefold/sharefold/internal/validation"
)

// VersionLister fetches a file's version history.
type VersionLister interface {
	ListVersions(ctx context.Context, folderID, fileName string) ([]models.Version, error)
}

// LinkResolver turns (folder, file, version) into a retrieval location.
// A zero version means latest.
type LinkResolver interface {
	Resolve(ctx context.Context, folderID, fileName string, version int) (*models.DownloadAuthorization, error)
}

// VersionViewer holds the version list of one file. It remembers the file's own
// folder, so it works the same whether the file was picked from a folder or
// from search results.
type VersionViewer struct {
	lister   VersionLister
	resolver LinkResolver
	eventBus *events.EventBus
	logger   *logging.Logger

	file       models.FileEntry
	versions   []models.Version
	open       bool
	generation uint64

	mu sync.RWMutex
}

// NewVersionViewer creates a closed viewer.
func NewVersionViewer(lister VersionLister, resolver LinkResolver, logger *logging.Logger, eventBus *events.EventBus) *VersionViewer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &VersionViewer{
		lister:   lister,
		resolver: resolver,
		eventBus: eventBus,
		logger:   logger.Component("versions"),
	}
}

// Open loads the version list of entry. The file listing is not touched.
// On failure the previously open list, if any, stays as it was.
func (v *VersionViewer) Open(ctx context.Context, entry models.FileEntry) error {
	if entry.FolderID == "" {
		return validation.New("folderId", "file has no folder")
	}
	if entry.FileName == "" {
		return validation.New("fileName", "cannot be empty")
	}

	v.mu.Lock()
	v.generation++
	gen := v.generation
	v.mu.Unlock()

	versions, err := v.lister.ListVersions(ctx, entry.FolderID, entry.FileName)
	if err != nil {
		v.logger.Warn().Str("file", entry.Key()).Err(err).Msg("failed to load versions")
		return err
	}

	v.mu.Lock()
	if gen != v.generation {
		v.mu.Unlock()
		return nil
	}
	v.file = entry
	v.versions = append([]models.Version(nil), versions...)
	v.open = true
	n := len(v.versions)
	v.mu.Unlock()

	v.eventBus.PublishVersions(entry.FolderID, entry.FileName, n, true)
	return nil
}

// IsOpen reports whether a version list is loaded.
func (v *VersionViewer) IsOpen() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.open
}

// File returns the file whose versions are shown.
func (v *VersionViewer) File() (models.FileEntry, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.file, v.open
}

// Versions returns a copy of the loaded versions in server order (newest first).
func (v *VersionViewer) Versions() []models.Version {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]models.Version, len(v.versions))
	copy(out, v.versions)
	return out
}

// ResolveDownload resolves a retrieval location for the given file and version.
// A zero version means latest.
func (v *VersionViewer) ResolveDownload(ctx context.Context, fileName, folderID string, version int) (*models.DownloadAuthorization, error) {
	return v.resolver.Resolve(ctx, folderID, fileName, version)
}

// ResolveOpen resolves a version of the file currently open in the viewer.
func (v *VersionViewer) ResolveOpen(ctx context.Context, version int) (*models.DownloadAuthorization, error) {
	file, ok := v.File()
	if !ok {
		return nil, validation.New("fileName", "no version list is open")
	}
	return v.ResolveDownload(ctx, file.FileName, file.FolderID, version)
}

// Close discards the loaded list. Closing a closed viewer does nothing.
func (v *VersionViewer) Close() {
	v.mu.Lock()
	v.generation++
	wasOpen := v.open
	file := v.file
	v.file = models.FileEntry{}
	v.versions = nil
	v.open = false
	v.mu.Unlock()

	if wasOpen {
		v.eventBus.PublishVersions(file.FolderID, file.FileName, 0, false)
	}
}
