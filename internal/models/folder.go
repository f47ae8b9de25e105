// Package models defines the records exchanged with the file-sharing API.
package models

// RootFolderID is the parent id of top-level folders.
const RootFolderID = "ROOT"

// Folder is a node of the folder forest.
type Folder struct {
	FolderID       string   `json:"folderId"`
	FolderName     string   `json:"folderName"`
	ParentFolderID string   `json:"parentFolderId"`
	AssignedUsers  []string `json:"assignedUsers,omitempty"`
}

// IsTopLevel reports whether the folder hangs directly off the root.
// An empty parent is accepted as well as the sentinel.
func (f Folder) IsTopLevel() bool {
	return IsRootParent(f.ParentFolderID)
}

// IsRootParent reports whether a parent id denotes the root.
func IsRootParent(parentID string) bool {
	return parentID == "" || parentID == RootFolderID
}

// Role is the caller's role as reported at login.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleUploader Role = "uploader"
	RoleReader   Role = "reader"
	RoleViewer   Role = "viewer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUploader, RoleReader, RoleViewer:
		return true
	}
	return false
}
