package models

import "fmt"

// FileEntry is the latest-version pointer of a file within a folder.
// Identity is (FolderID, FileName). FolderName is filled in for search results.
type FileEntry struct {
	FileName      string   `json:"fileName"`
	FolderID      string   `json:"folderId"`
	FolderName    string   `json:"folderName,omitempty"`
	FileSize      int64    `json:"fileSize"`
	UploadedBy    string   `json:"uploadedBy,omitempty"`
	UploadedAt    UnixTime `json:"uploadedAt"`
	LatestVersion int      `json:"latestVersion"`
}

// Key returns the identity key of the entry.
func (f FileEntry) Key() string {
	return f.FolderID + "/" + f.FileName
}

// Version is an immutable snapshot of a file's bytes.
type Version struct {
	VersionNumber int      `json:"versionNumber"`
	FileSize      int64    `json:"fileSize"`
	UploadedBy    string   `json:"uploadedBy"`
	UploadedAt    UnixTime `json:"uploadedAt"`
}

// Sort fields accepted by the listing endpoint.
const (
	SortByName       = "name"
	SortByFileSize   = "fileSize"
	SortByUploadedAt = "uploadedAt"
)

// Sort orders.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// ValidSortField reports whether field is a recognized sort field.
func ValidSortField(field string) bool {
	switch field {
	case SortByName, SortByFileSize, SortByUploadedAt:
		return true
	}
	return false
}

// FormatSize renders a byte count as B, KB, MB or GB with one decimal above bytes.
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	size := float64(bytes)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	return fmt.Sprintf("%.1f %s", size, units[i])
}
