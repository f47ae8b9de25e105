package devserver

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sharefold/sharefold/internal/models"
)

var (
	errUnknownUser = errors.New("unknown user")
	errUnknownFile = errors.New("file not found")
	errUnknownVer  = errors.New("version not found")
)

// User is a devserver account.
type User struct {
	Username           string
	PasswordHash       []byte
	Role               models.Role
	MustChangePassword bool
}

type fileRecord struct {
	FolderID      string
	FileName      string
	LatestVersion int
	FileSize      int64
	UploadedBy    string
	UploadedAt    time.Time
}

type versionRecord struct {
	VersionNumber int
	FileSize      int64
	UploadedBy    string
	UploadedAt    time.Time
	ObjectKey     string
}

// Store is the devserver's in-memory catalogue: users, folders, files and
// their versions. Object bytes live in the object store, not here.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*User
	folders  map[string]models.Folder
	files    map[string]*fileRecord // folderID/fileName
	versions map[string][]versionRecord
}

// NewStore creates an empty catalogue.
func NewStore() *Store {
	return &Store{
		users:    make(map[string]*User),
		folders:  make(map[string]models.Folder),
		files:    make(map[string]*fileRecord),
		versions: make(map[string][]versionRecord),
	}
}

func fileKey(folderID, fileName string) string {
	return folderID + "/" + fileName
}

// PutUser adds or replaces a user.
func (s *Store) PutUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := u
	s.users[u.Username] = &cp
}

// User returns a copy of the named user.
func (s *Store) User(username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return User{}, errUnknownUser
	}
	return *u, nil
}

// SetPassword replaces a user's password hash and clears the change flag.
func (s *Store) SetPassword(username string, hash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return errUnknownUser
	}
	u.PasswordHash = hash
	u.MustChangePassword = false
	return nil
}

// AddFolder creates a folder. An empty id gets a fresh uuid; an empty parent
// means top level. The folder id is returned.
func (s *Store) AddFolder(f models.Folder) string {
	if f.FolderID == "" {
		f.FolderID = uuid.NewString()
	}
	if models.IsRootParent(f.ParentFolderID) {
		f.ParentFolderID = models.RootFolderID
	}
	s.mu.Lock()
	s.folders[f.FolderID] = f
	s.mu.Unlock()
	return f.FolderID
}

// Folder returns a folder by id.
func (s *Store) Folder(id string) (models.Folder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.folders[id]
	return f, ok
}

// VisibleFolders returns the folders u may see: all of them for admins,
// otherwise those the user is assigned to. Sorted by name.
func (s *Store) VisibleFolders(u User) []models.Folder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Folder, 0, len(s.folders))
	for _, f := range s.folders {
		if u.Role == models.RoleAdmin || assigned(f, u.Username) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FolderName != out[j].FolderName {
			return out[i].FolderName < out[j].FolderName
		}
		return out[i].FolderID < out[j].FolderID
	})
	return out
}

// CanAccess reports whether u may see folderID.
func (s *Store) CanAccess(u User, folderID string) bool {
	if u.Role == models.RoleAdmin {
		_, ok := s.Folder(folderID)
		return ok
	}
	f, ok := s.Folder(folderID)
	return ok && assigned(f, u.Username)
}

func assigned(f models.Folder, username string) bool {
	for _, name := range f.AssignedUsers {
		if name == username {
			return true
		}
	}
	return false
}

// ListFolder returns the files of one folder.
func (s *Store) ListFolder(folderID string) []models.FileEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.FileEntry
	for _, rec := range s.files {
		if rec.FolderID == folderID {
			out = append(out, rec.entry(s.folders[folderID].FolderName))
		}
	}
	return out
}

// Search returns files whose name contains query (case-insensitive) in any of
// folderIDs, annotated with their folder name.
func (s *Store) Search(query string, folderIDs []string) []models.FileEntry {
	q := strings.ToLower(query)
	allowed := make(map[string]bool, len(folderIDs))
	for _, id := range folderIDs {
		allowed[id] = true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.FileEntry
	for _, rec := range s.files {
		if !allowed[rec.FolderID] || !strings.Contains(strings.ToLower(rec.FileName), q) {
			continue
		}
		out = append(out, rec.entry(s.folders[rec.FolderID].FolderName))
	}
	return out
}

func (r *fileRecord) entry(folderName string) models.FileEntry {
	return models.FileEntry{
		FileName:      r.FileName,
		FolderID:      r.FolderID,
		FolderName:    folderName,
		FileSize:      r.FileSize,
		UploadedBy:    r.UploadedBy,
		UploadedAt:    models.UnixTime{Time: r.UploadedAt},
		LatestVersion: r.LatestVersion,
	}
}

// NextVersion records a new version of (folderID, fileName) and moves the
// latest pointer to it. The object key is derived from the version.
func (s *Store) NextVersion(folderID, fileName string, size int64, uploadedBy string, now time.Time) versionRecord {
	key := fileKey(folderID, fileName)
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.files[key]
	if !ok {
		rec = &fileRecord{FolderID: folderID, FileName: fileName}
		s.files[key] = rec
	}
	v := versionRecord{
		VersionNumber: rec.LatestVersion + 1,
		FileSize:      size,
		UploadedBy:    uploadedBy,
		UploadedAt:    now,
	}
	v.ObjectKey = objectKey(folderID, fileName, v.VersionNumber)

	rec.LatestVersion = v.VersionNumber
	rec.FileSize = size
	rec.UploadedBy = uploadedBy
	rec.UploadedAt = now
	s.versions[key] = append(s.versions[key], v)
	return v
}

// Versions returns the versions of a file, newest first. An unknown file has none.
func (s *Store) Versions(folderID, fileName string) []models.Version {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vs := s.versions[fileKey(folderID, fileName)]
	out := make([]models.Version, 0, len(vs))
	for i := len(vs) - 1; i >= 0; i-- {
		v := vs[i]
		out = append(out, models.Version{
			VersionNumber: v.VersionNumber,
			FileSize:      v.FileSize,
			UploadedBy:    v.UploadedBy,
			UploadedAt:    models.UnixTime{Time: v.UploadedAt},
		})
	}
	return out
}

// Version returns one version; zero selects the latest.
func (s *Store) Version(folderID, fileName string, number int) (versionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := fileKey(folderID, fileName)
	rec, ok := s.files[key]
	if !ok {
		return versionRecord{}, errUnknownFile
	}
	if number == 0 {
		number = rec.LatestVersion
	}
	for _, v := range s.versions[key] {
		if v.VersionNumber == number {
			return v, nil
		}
	}
	return versionRecord{}, errUnknownVer
}

// objectKey is where a version's bytes live in the object store.
func objectKey(folderID, fileName string, version int) string {
	return folderID + "/" + fileName + "/v" + strconv.Itoa(version)
}
