// Package state provides the observable browsing state of sharefold: the folder
// forest and navigator, the file listing with its browse mode, and the version viewer.
// Containers publish events on the bus when they change so any frontend can
// subscribe and redraw.
package state

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/sharefold/sharefold/internal/api"
	"github.com/sharefold/sharefold/internal/events"
	"github.com/sharefold/sharefold/internal/logging"
	"github.com/sharefold/sharefold/internal/models"
	"github.com/sharefold/sharefold/internal/validation"
)

// Lister fetches file listings.
type Lister interface {
	ListFiles(ctx context.Context, q api.FileQuery) ([]models.FileEntry, error)
}

// FileList is the listing shown for the navigator's current context.
//
// Results are applied under the lock and only if no newer request was started
// in the meantime, so two overlapping loads can never interleave their writes.
// A failed request leaves items and mode untouched.
type FileList struct {
	lister   Lister
	nav      *Navigator
	eventBus *events.EventBus
	logger   *logging.Logger

	items      []models.FileEntry
	mode       BrowseMode
	sortBy     string
	sortOrder  string
	generation uint64

	mu sync.RWMutex
}

// NewFileList creates an empty listing in root mode.
func NewFileList(lister Lister, nav *Navigator, sortBy, sortOrder string, logger *logging.Logger, eventBus *events.EventBus) *FileList {
	if !models.ValidSortField(sortBy) {
		sortBy = models.SortByName
	}
	if sortOrder != models.SortDesc {
		sortOrder = models.SortAsc
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &FileList{
		lister:    lister,
		nav:       nav,
		eventBus:  eventBus,
		logger:    logger.Component("filelist"),
		items:     make([]models.FileEntry, 0),
		mode:      RootMode(),
		sortBy:    sortBy,
		sortOrder: sortOrder,
	}
}

// Items returns a copy of the current items.
func (l *FileList) Items() []models.FileEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.FileEntry, len(l.items))
	copy(out, l.items)
	return out
}

// Mode returns the current browse mode.
func (l *FileList) Mode() BrowseMode {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.mode
}

// Sort returns the current sort field and order.
func (l *FileList) Sort() (string, string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sortBy, l.sortOrder
}

// Find returns the listed entry with fileName (the first match in search mode).
func (l *FileList) Find(fileName string) (models.FileEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, it := range l.items {
		if it.FileName == fileName {
			return it, true
		}
	}
	return models.FileEntry{}, false
}

// LoadForFolder lists folderID and switches to folder mode, leaving any search.
// An empty folderID empties the listing without a request.
func (l *FileList) LoadForFolder(ctx context.Context, folderID string) error {
	if folderID == "" {
		l.mu.Lock()
		l.generation++
		l.applyLocked(RootMode(), nil)
		l.mu.Unlock()
		l.publish()
		return nil
	}
	return l.fetch(ctx, FolderMode(folderID))
}

// Search lists files matching query across every folder the caller may see.
// On success the navigator is reset to the root and the listing is in search mode.
func (l *FileList) Search(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return validation.New("query", "search text is required")
	}
	return l.fetch(ctx, SearchMode(query))
}

// SetSort toggles the order when field is already the sort field, otherwise
// switches to field ascending, then reloads the active context. The new sort
// stays in effect even if the reload fails.
func (l *FileList) SetSort(ctx context.Context, field string) error {
	if !models.ValidSortField(field) {
		return validation.New("sortBy", "unknown sort field %q (name, fileSize, uploadedAt)", field)
	}

	l.mu.Lock()
	if l.sortBy == field {
		if l.sortOrder == models.SortAsc {
			l.sortOrder = models.SortDesc
		} else {
			l.sortOrder = models.SortAsc
		}
	} else {
		l.sortBy = field
		l.sortOrder = models.SortAsc
	}
	mode := l.mode
	l.mu.Unlock()

	return l.reload(ctx, mode)
}

// Reload repeats the request for the active context.
func (l *FileList) Reload(ctx context.Context) error {
	return l.reload(ctx, l.Mode())
}

func (l *FileList) reload(ctx context.Context, mode BrowseMode) error {
	if mode.Kind == ModeRoot {
		l.publish()
		return nil
	}
	return l.fetch(ctx, mode)
}

// ClearSearch leaves search mode for an empty root listing. No request is made.
func (l *FileList) ClearSearch() {
	l.mu.Lock()
	if l.mode.Kind != ModeSearch {
		l.mu.Unlock()
		return
	}
	l.generation++
	l.applyLocked(RootMode(), nil)
	l.mu.Unlock()
	l.publish()
}

// Reset discards items and mode and drops any in-flight result.
func (l *FileList) Reset() {
	l.mu.Lock()
	l.generation++
	l.applyLocked(RootMode(), nil)
	l.mu.Unlock()
	l.publish()
}

func (l *FileList) fetch(ctx context.Context, mode BrowseMode) error {
	l.mu.Lock()
	l.generation++
	gen := l.generation
	q := api.FileQuery{SortBy: l.sortBy, SortOrder: l.sortOrder}
	l.mu.Unlock()

	if mode.Kind == ModeSearch {
		q.Search = mode.Query
	} else {
		q.FolderID = mode.FolderID
	}

	files, err := l.lister.ListFiles(ctx, q)
	if err != nil {
		l.logger.Warn().Str("mode", mode.String()).Err(err).Msg("listing failed; keeping previous items")
		return err
	}

	l.mu.Lock()
	if gen != l.generation {
		l.mu.Unlock()
		l.logger.Debug().Str("mode", mode.String()).Msg("dropping superseded listing result")
		return nil
	}
	if mode.Kind == ModeSearch && l.nav != nil {
		// search results replace folder context as one transition
		l.nav.ResetToRoot()
	}
	l.applyLocked(mode, files)
	l.mu.Unlock()

	l.publish()
	return nil
}

// applyLocked replaces items and mode (must hold lock).
func (l *FileList) applyLocked(mode BrowseMode, files []models.FileEntry) {
	items := make([]models.FileEntry, len(files))
	copy(items, files)
	sortEntries(items, l.sortBy, l.sortOrder)
	l.items = items
	l.mode = mode
}

func (l *FileList) publish() {
	l.mu.RLock()
	mode, n, by, order := l.mode, len(l.items), l.sortBy, l.sortOrder
	l.mu.RUnlock()
	l.eventBus.PublishFileList(mode.Kind.String(), mode.FolderID, mode.Query, n, by, order)
}

// sortEntries orders items the way the listing endpoint does. The sort is
// stable so equal keys keep the server's order. Names compare byte-wise, as
// the server does, so "B.txt" sorts before "a.txt".
func sortEntries(items []models.FileEntry, sortBy, sortOrder string) {
	if len(items) < 2 {
		return
	}
	desc := sortOrder == models.SortDesc
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		var cmp int
		switch sortBy {
		case models.SortByFileSize:
			cmp = compareInt64(a.FileSize, b.FileSize)
		case models.SortByUploadedAt:
			cmp = compareInt64(a.UploadedAt.Unix(), b.UploadedAt.Unix())
		default:
			cmp = strings.Compare(a.FileName, b.FileName)
		}
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
