package transfer

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sharefold/sharefold/internal/validation"
)

// Candidate is a file offered for upload.
type Candidate struct {
	Name string
	Size int64
	// Open returns a fresh reader positioned at the start of the content.
	Open func() (io.ReadCloser, error)
}

// CandidateFromPath describes a local regular file.
func CandidateFromPath(path string) (Candidate, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Candidate{}, err
	}
	if !info.Mode().IsRegular() {
		return Candidate{}, validation.New("file", "%s is not a regular file", path)
	}
	return Candidate{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}
