package models

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by POST /auth/login.
type LoginResponse struct {
	SessionToken       string `json:"sessionToken"`
	Username           string `json:"username"`
	Role               Role   `json:"role"`
	MustChangePassword bool   `json:"mustChangePassword"`
}

// ChangePasswordRequest is the body of POST /auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// FolderListResponse is returned by GET /folders.
type FolderListResponse struct {
	Folders []Folder `json:"folders"`
}

// FileListResponse is returned by GET /files.
type FileListResponse struct {
	Files []FileEntry `json:"files"`
}

// VersionListResponse is returned by GET /files/{folderId}/{fileName}/versions.
type VersionListResponse struct {
	Versions []Version `json:"versions"`
}

// UploadAuthorizationRequest is the body of POST /files/upload-url.
type UploadAuthorizationRequest struct {
	FolderID string `json:"folderId"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
}

// UploadAuthorization is a single-use write location in the object store.
type UploadAuthorization struct {
	UploadURL     string            `json:"uploadUrl"`
	Method        string            `json:"method,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	VersionNumber int               `json:"versionNumber,omitempty"`
}

// DownloadAuthorizationRequest is the body of POST /files/download-url.
// A zero VersionNumber is omitted from the body and means latest.
type DownloadAuthorizationRequest struct {
	FolderID      string `json:"folderId"`
	FileName      string `json:"fileName"`
	VersionNumber int    `json:"versionNumber,omitempty"`
}

// DownloadAuthorization is a short-lived retrieval location.
type DownloadAuthorization struct {
	DownloadURL   string `json:"downloadUrl"`
	FileName      string `json:"fileName"`
	VersionNumber int    `json:"versionNumber"`
}

// ErrorResponse is the body of every non-success response.
type ErrorResponse struct {
	Error string `json:"error"`
}
