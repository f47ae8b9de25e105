package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sharefold/sharefold/internal/constants"
	"github.com/sharefold/sharefold/internal/events"
	"github.com/sharefold/sharefold/internal/models"
	"github.com/sharefold/sharefold/internal/validation"
)

type fakeAuthorizer struct {
	calls     int32
	uploadURL string
	headers   map[string]string
	err       error
	last      models.UploadAuthorizationRequest
}

func (f *fakeAuthorizer) RequestUploadAuthorization(ctx context.Context, req models.UploadAuthorizationRequest) (*models.UploadAuthorization, error) {
	atomic.AddInt32(&f.calls, 1)
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.UploadAuthorization{UploadURL: f.uploadURL, Method: http.MethodPut, Headers: f.headers, VersionNumber: 3}, nil
}

type fakeRefresher struct {
	mu      sync.Mutex
	folders []string
	err     error
}

func (f *fakeRefresher) LoadForFolder(ctx context.Context, folderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.folders = append(f.folders, folderID)
	return f.err
}

// objectStore is an httptest fake of a presigned PUT endpoint.
type objectStore struct {
	mu       sync.Mutex
	received map[string][]byte
	headers  http.Header
	status   int
	block    chan struct{}
}

func newObjectStore(t *testing.T) (*objectStore, *httptest.Server) {
	s := &objectStore{received: make(map[string][]byte), status: http.StatusOK}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.block != nil {
			<-s.block
		}
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.received[r.URL.Path] = body
		s.headers = r.Header.Clone()
		status := s.status
		s.mu.Unlock()
		if status != http.StatusOK {
			http.Error(w, "SignatureDoesNotMatch", status)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return s, srv
}

func bytesCandidate(name string, data []byte) Candidate {
	return Candidate{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

func TestUploadSucceeds(t *testing.T) {
	store, srv := newObjectStore(t)
	auth := &fakeAuthorizer{uploadURL: srv.URL + "/f-rep/Q1.pdf/v3", headers: map[string]string{"x-ms-blob-type": "BlockBlob"}}
	ref := &fakeRefresher{}
	bus := events.NewEventBus(200)
	defer bus.Close()
	progressCh := bus.Subscribe(events.EventUploadProgress)

	c := NewUploadCoordinator(auth, srv.Client(), ref, 0, nil, bus)
	data := bytes.Repeat([]byte("x"), 300*1024)

	res, err := c.Upload(context.Background(), bytesCandidate("Q1.pdf", data), "f-rep", nil)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.VersionNumber != 3 || res.RefreshErr != nil {
		t.Errorf("unexpected result %+v", res)
	}
	if auth.last != (models.UploadAuthorizationRequest{FolderID: "f-rep", FileName: "Q1.pdf", FileSize: int64(len(data))}) {
		t.Errorf("authorization bound to %+v", auth.last)
	}
	if got := store.received["/f-rep/Q1.pdf/v3"]; !bytes.Equal(got, data) {
		t.Errorf("object store received %d bytes, want %d", len(got), len(data))
	}
	if store.headers.Get("x-ms-blob-type") != "BlockBlob" {
		t.Error("authorization headers were not sent")
	}
	if len(ref.folders) != 1 || ref.folders[0] != "f-rep" {
		t.Errorf("refresh calls = %v", ref.folders)
	}
	if st := c.Status(); st.State != UploadSucceeded || st.Percent != 100 {
		t.Errorf("status = %+v", st)
	}

	// percentages are non-decreasing and end at 100
	last := -1
	for {
		var ev events.Event
		select {
		case ev = <-progressCh:
		default:
		}
		if ev == nil {
			break
		}
		p := ev.(*events.UploadProgressEvent).Percent
		if p < last {
			t.Fatalf("progress went backwards: %d after %d", p, last)
		}
		last = p
	}
	if last != 100 {
		t.Errorf("final progress = %d, want 100", last)
	}
}

func TestUploadStateEventsUseStateNames(t *testing.T) {
	_, srv := newObjectStore(t)
	auth := &fakeAuthorizer{uploadURL: srv.URL + "/f-rep/a.txt/v1"}
	bus := events.NewEventBus(50)
	defer bus.Close()
	ch := bus.Subscribe(events.EventUploadState)

	c := NewUploadCoordinator(auth, srv.Client(), nil, 0, nil, bus)
	if _, err := c.Upload(context.Background(), bytesCandidate("a.txt", []byte("abc")), "f-rep", nil); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	var states []string
	for len(states) < 2 {
		select {
		case ev := <-ch:
			states = append(states, ev.(*events.UploadStateEvent).State)
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("states so far %v", states)
		}
	}
	if states[0] != "in-flight" || states[1] != "succeeded" {
		t.Errorf("states = %v, want [in-flight succeeded]", states)
	}
}

func TestUploadCeiling(t *testing.T) {
	tests := []struct {
		name    string
		size    int64
		wantErr bool
	}{
		{"at ceiling", constants.MaxUploadSize, false},
		{"one byte over", constants.MaxUploadSize + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &fakeAuthorizer{err: errors.New("stop here")}
			c := NewUploadCoordinator(auth, nil, nil, 0, nil, nil)
			cand := Candidate{Name: "big.bin", Size: tt.size, Open: func() (io.ReadCloser, error) {
				return io.NopCloser(strings.NewReader("")), nil
			}}
			_, err := c.Upload(context.Background(), cand, "f", nil)
			if tt.wantErr {
				if !validation.Is(err) {
					t.Fatalf("expected validation error, got %v", err)
				}
				if atomic.LoadInt32(&auth.calls) != 0 {
					t.Error("oversize upload must not reach the API")
				}
				if c.Status().State != UploadIdle {
					t.Errorf("state changed on local rejection: %s", c.Status().State)
				}
				return
			}
			if atomic.LoadInt32(&auth.calls) != 1 {
				t.Error("file at the ceiling should be authorized")
			}
		})
	}
}

func TestUploadRequiresFolder(t *testing.T) {
	auth := &fakeAuthorizer{}
	c := NewUploadCoordinator(auth, nil, nil, 0, nil, nil)
	_, err := c.Upload(context.Background(), bytesCandidate("a.txt", []byte("a")), "", nil)
	if !validation.Is(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if auth.calls != 0 {
		t.Error("no request expected")
	}
}

func TestUploadAuthorizationFailure(t *testing.T) {
	auth := &fakeAuthorizer{err: errors.New("403 forbidden")}
	ref := &fakeRefresher{}
	c := NewUploadCoordinator(auth, nil, ref, 0, nil, nil)

	_, err := c.Upload(context.Background(), bytesCandidate("a.txt", []byte("a")), "f", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(ref.folders) != 0 {
		t.Error("failed upload must not refresh")
	}
	st := c.Status()
	if st.State != UploadFailed || st.Err == nil {
		t.Errorf("status = %+v", st)
	}
}

func TestUploadTransferFailureThenRetry(t *testing.T) {
	store, srv := newObjectStore(t)
	store.status = http.StatusForbidden
	auth := &fakeAuthorizer{uploadURL: srv.URL + "/obj"}
	ref := &fakeRefresher{}
	c := NewUploadCoordinator(auth, srv.Client(), ref, 0, nil, nil)
	cand := bytesCandidate("a.txt", []byte("hello"))

	_, err := c.Upload(context.Background(), cand, "f", nil)
	var te *TransferError
	if !errors.As(err, &te) || te.StatusCode != http.StatusForbidden {
		t.Fatalf("expected TransferError 403, got %v", err)
	}
	if !strings.Contains(err.Error(), "SignatureDoesNotMatch") {
		t.Errorf("store message missing from %q", err.Error())
	}
	if len(ref.folders) != 0 {
		t.Error("failed transfer must not refresh")
	}
	if c.Status().Percent == 100 {
		t.Error("failed upload must not report 100%")
	}

	store.mu.Lock()
	store.status = http.StatusOK
	store.mu.Unlock()
	if _, err := c.Upload(context.Background(), cand, "f", nil); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if atomic.LoadInt32(&auth.calls) != 2 {
		t.Errorf("retry should request a fresh authorization, calls=%d", auth.calls)
	}
}

func TestUploadTransportFailure(t *testing.T) {
	_, srv := newObjectStore(t)
	url := srv.URL + "/obj"
	srv.Close()

	c := NewUploadCoordinator(&fakeAuthorizer{uploadURL: url}, nil, nil, 0, nil, nil)
	_, err := c.Upload(context.Background(), bytesCandidate("a.txt", []byte("a")), "f", nil)
	var te *TransferError
	if !errors.As(err, &te) || te.StatusCode != 0 {
		t.Fatalf("expected TransferError without status, got %v", err)
	}
}

func TestSecondUploadWhileInFlightIsRejected(t *testing.T) {
	store, srv := newObjectStore(t)
	store.block = make(chan struct{})
	auth := &fakeAuthorizer{uploadURL: srv.URL + "/obj"}
	c := NewUploadCoordinator(auth, srv.Client(), nil, 0, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := c.Upload(context.Background(), bytesCandidate("a.txt", []byte("a")), "f", nil)
		done <- err
	}()

	for c.Status().State != UploadInFlight {
		time.Sleep(time.Millisecond)
	}
	_, err := c.Upload(context.Background(), bytesCandidate("b.txt", []byte("b")), "f", nil)
	if !errors.Is(err, ErrUploadInProgress) {
		t.Errorf("expected ErrUploadInProgress, got %v", err)
	}

	close(store.block)
	if err := <-done; err != nil {
		t.Fatalf("first upload: %v", err)
	}
}

func TestUploadRefreshErrorIsReported(t *testing.T) {
	_, srv := newObjectStore(t)
	ref := &fakeRefresher{err: errors.New("listing timeout")}
	c := NewUploadCoordinator(&fakeAuthorizer{uploadURL: srv.URL + "/obj"}, srv.Client(), ref, 0, nil, nil)

	res, err := c.Upload(context.Background(), bytesCandidate("a.txt", []byte("a")), "f", nil)
	if err != nil {
		t.Fatalf("upload should succeed, got %v", err)
	}
	if res.RefreshErr == nil {
		t.Error("refresh error should be carried in the result")
	}
	if c.Status().State != UploadSucceeded {
		t.Errorf("state = %s", c.Status().State)
	}
}

func TestUploadEmptyFile(t *testing.T) {
	store, srv := newObjectStore(t)
	c := NewUploadCoordinator(&fakeAuthorizer{uploadURL: srv.URL + "/empty"}, srv.Client(), nil, 0, nil, nil)
	if _, err := c.Upload(context.Background(), bytesCandidate("empty.txt", nil), "f", nil); err != nil {
		t.Fatal(err)
	}
	if got, ok := store.received["/empty"]; !ok || len(got) != 0 {
		t.Errorf("expected an empty object, got %v %v", got, ok)
	}
}

func TestCandidateFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Q1.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.7"), 0o644); err != nil {
		t.Fatal(err)
	}

	cand, err := CandidateFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if cand.Name != "Q1.pdf" || cand.Size != 8 {
		t.Errorf("candidate = %+v", cand)
	}
	rc, err := cand.Open()
	if err != nil {
		t.Fatal(err)
	}
	rc.Close()

	if _, err := CandidateFromPath(dir); !validation.Is(err) {
		t.Errorf("directory should be rejected, got %v", err)
	}
	if _, err := CandidateFromPath(filepath.Join(dir, "missing")); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestMaxBytesFallback(t *testing.T) {
	if got := NewUploadCoordinator(nil, nil, nil, 2<<30, nil, nil).MaxBytes(); got != constants.MaxUploadSize {
		t.Errorf("limit above the hard ceiling should clamp, got %d", got)
	}
	if got := NewUploadCoordinator(nil, nil, nil, 1024, nil, nil).MaxBytes(); got != 1024 {
		t.Errorf("got %d", got)
	}
}
