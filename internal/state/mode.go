package state

import "fmt"

// ModeKind tags the browse mode variant.
type ModeKind int

const (
	ModeRoot ModeKind = iota
	ModeFolder
	ModeSearch
)

func (k ModeKind) String() string {
	switch k {
	case ModeRoot:
		return "root"
	case ModeFolder:
		return "folder"
	case ModeSearch:
		return "search"
	default:
		return "unknown"
	}
}

// BrowseMode is what the listing currently shows: nothing at the root, one
// folder's files, or cross-folder search results. The variants are mutually exclusive.
type BrowseMode struct {
	Kind     ModeKind
	FolderID string // ModeFolder only
	Query    string // ModeSearch only
}

// RootMode is the empty listing shown at the root.
func RootMode() BrowseMode { return BrowseMode{Kind: ModeRoot} }

// FolderMode lists one folder.
func FolderMode(folderID string) BrowseMode {
	return BrowseMode{Kind: ModeFolder, FolderID: folderID}
}

// SearchMode lists search results for query.
func SearchMode(query string) BrowseMode {
	return BrowseMode{Kind: ModeSearch, Query: query}
}

func (m BrowseMode) String() string {
	switch m.Kind {
	case ModeFolder:
		return fmt.Sprintf("folder(%s)", m.FolderID)
	case ModeSearch:
		return fmt.Sprintf("search(%q)", m.Query)
	default:
		return m.Kind.String()
	}
}
