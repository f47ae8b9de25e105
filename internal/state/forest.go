package state

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sharefold/sharefold/internal/models"
)

// ErrFolderNotFound is returned when a folder id or path does not resolve.
var ErrFolderNotFound = errors.New("folder not found")

// Forest is an arena of folders: records by id plus a parent -> children index.
// Folders only point at their parent, so traversal from the root can never loop.
type Forest struct {
	byID     map[string]models.Folder
	children map[string][]string // parent id ("ROOT" for top level) -> child ids ordered by name
}

// NewForest indexes folders. Later duplicates of an id replace earlier ones.
func NewForest(folders []models.Folder) *Forest {
	f := &Forest{
		byID:     make(map[string]models.Folder, len(folders)),
		children: make(map[string][]string),
	}
	for _, folder := range folders {
		f.byID[folder.FolderID] = folder
	}
	for id, folder := range f.byID {
		parent := parentKey(folder.ParentFolderID)
		f.children[parent] = append(f.children[parent], id)
	}
	for parent, ids := range f.children {
		sort.Slice(ids, func(i, j int) bool {
			a, b := f.byID[ids[i]], f.byID[ids[j]]
			if !strings.EqualFold(a.FolderName, b.FolderName) {
				return strings.ToLower(a.FolderName) < strings.ToLower(b.FolderName)
			}
			return a.FolderID < b.FolderID
		})
		f.children[parent] = ids
	}
	return f
}

func parentKey(parentID string) string {
	if models.IsRootParent(parentID) {
		return models.RootFolderID
	}
	return parentID
}

// Len returns the number of folders.
func (f *Forest) Len() int { return len(f.byID) }

// Get returns a folder by id.
func (f *Forest) Get(id string) (models.Folder, bool) {
	folder, ok := f.byID[id]
	return folder, ok
}

// Children returns the children of parentID; "" or "ROOT" selects top-level folders.
func (f *Forest) Children(parentID string) []models.Folder {
	ids := f.children[parentKey(parentID)]
	out := make([]models.Folder, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.byID[id])
	}
	return out
}

// Folders returns every folder in pre-order.
func (f *Forest) Folders() []models.Folder {
	out := make([]models.Folder, 0, len(f.byID))
	f.Walk(func(folder models.Folder, _ int) bool {
		out = append(out, folder)
		return true
	})
	return out
}

// PathTo returns the ancestry chain from a top-level folder down to id.
// A folder whose ancestry does not reach the root is reported as not found.
func (f *Forest) PathTo(id string) ([]models.Folder, error) {
	var chain []models.Folder
	seen := make(map[string]bool)
	cur := id
	for {
		folder, ok := f.byID[cur]
		if !ok || seen[cur] {
			return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, id)
		}
		seen[cur] = true
		chain = append(chain, folder)
		if folder.IsTopLevel() {
			break
		}
		cur = folder.ParentFolderID
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Resolve finds a folder by id, or by a slash-separated path of folder names
// from the root ("Reports/2024"). Name matching is exact first, then case-insensitive.
func (f *Forest) Resolve(ref string) (models.Folder, error) {
	if folder, ok := f.byID[ref]; ok {
		return folder, nil
	}
	parts := strings.Split(strings.Trim(ref, "/"), "/")
	parent := models.RootFolderID
	var found models.Folder
	for _, name := range parts {
		if name == "" {
			return models.Folder{}, fmt.Errorf("%w: %q", ErrFolderNotFound, ref)
		}
		next, ok := f.childByName(parent, name)
		if !ok {
			return models.Folder{}, fmt.Errorf("%w: %q", ErrFolderNotFound, ref)
		}
		found = next
		parent = next.FolderID
	}
	return found, nil
}

func (f *Forest) childByName(parent, name string) (models.Folder, bool) {
	kids := f.Children(parent)
	for _, k := range kids {
		if k.FolderName == name {
			return k, true
		}
	}
	for _, k := range kids {
		if strings.EqualFold(k.FolderName, name) {
			return k, true
		}
	}
	return models.Folder{}, false
}

// Walk visits reachable folders in pre-order using an explicit stack.
// Returning false from fn stops the walk.
func (f *Forest) Walk(fn func(folder models.Folder, depth int) bool) {
	type frame struct {
		id    string
		depth int
	}
	roots := f.children[models.RootFolderID]
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{roots[i], 0})
	}
	visited := make(map[string]bool, len(f.byID))
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[top.id] {
			continue
		}
		visited[top.id] = true
		if !fn(f.byID[top.id], top.depth) {
			return
		}
		kids := f.children[top.id]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{kids[i], top.depth + 1})
		}
	}
}

// TreeLines renders the forest as indented lines, two spaces per level.
func (f *Forest) TreeLines() []string {
	var lines []string
	f.Walk(func(folder models.Folder, depth int) bool {
		lines = append(lines, strings.Repeat("  ", depth)+folder.FolderName+"/")
		return true
	})
	return lines
}

// ChildrenOf returns the folders whose parent is current, or the top-level
// folders when current is nil.
func ChildrenOf(all []models.Folder, current *models.Folder) []models.Folder {
	var out []models.Folder
	for _, folder := range all {
		if current == nil {
			if folder.IsTopLevel() {
				out = append(out, folder)
			}
			continue
		}
		if folder.ParentFolderID == current.FolderID {
			out = append(out, folder)
		}
	}
	return out
}
