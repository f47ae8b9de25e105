package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sharefold/sharefold/internal/events"
	"github.com/sharefold/sharefold/internal/models"
)

var (
	// ErrBreadcrumbOutOfRange is returned for a breadcrumb index outside the path.
	ErrBreadcrumbOutOfRange = errors.New("breadcrumb index out of range")
	// ErrNotAChild is returned when entering a folder that is not a child of the current one.
	ErrNotAChild = errors.New("folder is not a child of the current folder")
)

// Navigator owns the current folder and the breadcrumb path leading to it.
// The current folder is always the last path element; an empty path is the root.
type Navigator struct {
	eventBus *events.EventBus

	path []models.Folder
	mu   sync.RWMutex
}

// NewNavigator creates a navigator positioned at the root.
func NewNavigator(eventBus *events.EventBus) *Navigator {
	return &Navigator{eventBus: eventBus}
}

// Current returns the current folder, or false at the root.
func (n *Navigator) Current() (models.Folder, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if len(n.path) == 0 {
		return models.Folder{}, false
	}
	return n.path[len(n.path)-1], true
}

// Path returns a copy of the breadcrumb path.
func (n *Navigator) Path() []models.Folder {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]models.Folder, len(n.path))
	copy(out, n.path)
	return out
}

// Depth returns the number of path elements.
func (n *Navigator) Depth() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.path)
}

// NavigateInto enters a child of the current folder (or a top-level folder at the root).
func (n *Navigator) NavigateInto(folder models.Folder) error {
	n.mu.Lock()
	if !n.isChildLocked(folder) {
		n.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotAChild, folder.FolderName)
	}
	n.path = append(n.path, folder)
	snapshot := n.snapshotLocked()
	n.mu.Unlock()

	n.publish(snapshot)
	return nil
}

func (n *Navigator) isChildLocked(folder models.Folder) bool {
	if len(n.path) == 0 {
		return folder.IsTopLevel()
	}
	return folder.ParentFolderID == n.path[len(n.path)-1].FolderID
}

// NavigateUp drops the last path element. A no-op at the root.
func (n *Navigator) NavigateUp() {
	n.mu.Lock()
	if len(n.path) == 0 {
		n.mu.Unlock()
		return
	}
	n.path = n.path[:len(n.path)-1]
	snapshot := n.snapshotLocked()
	n.mu.Unlock()

	n.publish(snapshot)
}

// NavigateToBreadcrumb truncates the path so that path[i] becomes current.
// An out-of-range index leaves the path unchanged.
func (n *Navigator) NavigateToBreadcrumb(i int) error {
	n.mu.Lock()
	if i < 0 || i >= len(n.path) {
		size := len(n.path)
		n.mu.Unlock()
		return fmt.Errorf("%w: %d (path length %d)", ErrBreadcrumbOutOfRange, i, size)
	}
	n.path = n.path[:i+1]
	snapshot := n.snapshotLocked()
	n.mu.Unlock()

	n.publish(snapshot)
	return nil
}

// ResetToRoot clears the path.
func (n *Navigator) ResetToRoot() {
	n.mu.Lock()
	if len(n.path) == 0 {
		n.mu.Unlock()
		return
	}
	n.path = nil
	n.mu.Unlock()

	n.publish(nil)
}

// EnterPath replaces the path with chain, which must be a contiguous ancestor
// chain starting at a top-level folder (as produced by Forest.PathTo).
func (n *Navigator) EnterPath(chain []models.Folder) error {
	for i, folder := range chain {
		if i == 0 && !folder.IsTopLevel() {
			return fmt.Errorf("%w: %s is not top level", ErrNotAChild, folder.FolderName)
		}
		if i > 0 && folder.ParentFolderID != chain[i-1].FolderID {
			return fmt.Errorf("%w: %s", ErrNotAChild, folder.FolderName)
		}
	}

	n.mu.Lock()
	n.path = append([]models.Folder(nil), chain...)
	snapshot := n.snapshotLocked()
	n.mu.Unlock()

	n.publish(snapshot)
	return nil
}

// ChildrenOf returns the navigable children of the current folder among all.
func (n *Navigator) ChildrenOf(all []models.Folder) []models.Folder {
	cur, ok := n.Current()
	if !ok {
		return ChildrenOf(all, nil)
	}
	return ChildrenOf(all, &cur)
}

func (n *Navigator) snapshotLocked() []models.Folder {
	out := make([]models.Folder, len(n.path))
	copy(out, n.path)
	return out
}

func (n *Navigator) publish(path []models.Folder) {
	ids := make([]string, len(path))
	names := make([]string, len(path))
	for i, f := range path {
		ids[i] = f.FolderID
		names[i] = f.FolderName
	}
	n.eventBus.PublishPath(ids, names)
}
