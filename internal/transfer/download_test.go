package transfer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sharefold/sharefold/internal/models"
	"github.com/sharefold/sharefold/internal/progress"
	"github.com/sharefold/sharefold/internal/validation"
)

type fakeDownloadAuthorizer struct {
	reqs []models.DownloadAuthorizationRequest
	url  string
	err  error
}

func (f *fakeDownloadAuthorizer) RequestDownloadAuthorization(ctx context.Context, req models.DownloadAuthorizationRequest) (*models.DownloadAuthorization, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	v := req.VersionNumber
	if v == 0 {
		v = 4
	}
	return &models.DownloadAuthorization{DownloadURL: f.url, VersionNumber: v}, nil
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		version     int
		wantVersion int
	}{
		{"latest", 0, 4},
		{"explicit", 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &fakeDownloadAuthorizer{url: "https://store.example/obj?sig=abc"}
			r := NewDownloadLinkResolver(a, nil)

			link, err := r.Resolve(context.Background(), "f-rep", "Q1.pdf", tt.version)
			if err != nil {
				t.Fatal(err)
			}
			if a.reqs[0] != (models.DownloadAuthorizationRequest{FolderID: "f-rep", FileName: "Q1.pdf", VersionNumber: tt.version}) {
				t.Errorf("request = %+v", a.reqs[0])
			}
			if link.VersionNumber != tt.wantVersion {
				t.Errorf("version = %d, want %d", link.VersionNumber, tt.wantVersion)
			}
			if link.FileName != "Q1.pdf" {
				t.Errorf("file name should default to the requested one, got %q", link.FileName)
			}
		})
	}
}

func TestResolveValidation(t *testing.T) {
	a := &fakeDownloadAuthorizer{}
	r := NewDownloadLinkResolver(a, nil)
	ctx := context.Background()

	cases := []struct {
		folder, file string
		version      int
	}{
		{"", "a", 0},
		{"f", "", 0},
		{"f", "a", -1},
	}
	for _, c := range cases {
		if _, err := r.Resolve(ctx, c.folder, c.file, c.version); !validation.Is(err) {
			t.Errorf("Resolve(%q, %q, %d): expected validation error, got %v", c.folder, c.file, c.version, err)
		}
	}
	if len(a.reqs) != 0 {
		t.Error("invalid input must not reach the API")
	}
}

func TestResolvePropagatesError(t *testing.T) {
	boom := errors.New("forbidden")
	r := NewDownloadLinkResolver(&fakeDownloadAuthorizer{err: boom}, nil)
	if _, err := r.Resolve(context.Background(), "f", "a", 0); !errors.Is(err, boom) {
		t.Errorf("expected %v, got %v", boom, err)
	}
}

func TestSaverWritesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("quarterly numbers"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	s := NewSaver(srv.Client(), nil)
	var reportedSize int64 = -1
	path, err := s.Save(context.Background(), &models.DownloadAuthorization{DownloadURL: srv.URL, FileName: "Q1.pdf", VersionNumber: 1}, dir,
		func(name, local string, size int64) progress.Reporter {
			reportedSize = size
			return nil
		})
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "Q1.pdf") {
		t.Errorf("path = %s", path)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "quarterly numbers" {
		t.Errorf("content = %q", got)
	}
	if reportedSize != int64(len("quarterly numbers")) {
		t.Errorf("reporter saw size %d", reportedSize)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestSaverRejectsUnsafeName(t *testing.T) {
	s := NewSaver(nil, nil)
	_, err := s.Save(context.Background(), &models.DownloadAuthorization{DownloadURL: "http://unused", FileName: "../evil"}, t.TempDir(), nil)
	if !validation.Is(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestSaverStoreError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Request has expired", http.StatusForbidden)
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, err := NewSaver(srv.Client(), nil).Save(context.Background(), &models.DownloadAuthorization{DownloadURL: srv.URL, FileName: "a.txt"}, dir, nil)
	var te *TransferError
	if !errors.As(err, &te) || te.StatusCode != http.StatusForbidden {
		t.Fatalf("expected TransferError 403, got %v", err)
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("message = %q", err.Error())
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("nothing should be written, got %v", entries)
	}
}
