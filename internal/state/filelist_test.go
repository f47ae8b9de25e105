package state

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/sharefold/sharefold/internal/api"
	"github.com/sharefold/sharefold/internal/events"
	"github.com/sharefold/sharefold/internal/models"
	"github.com/sharefold/sharefold/internal/validation"
)

type fakeLister struct {
	mu      sync.Mutex
	queries []api.FileQuery
	files   map[string][]models.FileEntry // folder id or "search:<q>"
	err     error
	gate    chan struct{} // when set, the next call blocks until closed
}

func (f *fakeLister) ListFiles(ctx context.Context, q api.FileQuery) ([]models.FileEntry, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	gate := f.gate
	f.gate = nil
	err := f.err
	key := q.FolderID
	if q.Search != "" {
		key = "search:" + q.Search
	}
	files := f.files[key]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (f *fakeLister) calls() []api.FileQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.FileQuery(nil), f.queries...)
}

func entry(name, folder string, size int64) models.FileEntry {
	return models.FileEntry{FileName: name, FolderID: folder, FileSize: size, LatestVersion: 1}
}

func newTestFileList(l *fakeLister, nav *Navigator) *FileList {
	return NewFileList(l, nav, models.SortByName, models.SortAsc, nil, nil)
}

func names(items []models.FileEntry) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.FileName
	}
	return out
}

func TestLoadForFolder(t *testing.T) {
	l := &fakeLister{files: map[string][]models.FileEntry{
		"f-fin": {entry("b.txt", "f-fin", 2), entry("A.txt", "f-fin", 1)},
	}}
	fl := newTestFileList(l, NewNavigator(nil))

	if err := fl.LoadForFolder(context.Background(), "f-fin"); err != nil {
		t.Fatalf("LoadForFolder: %v", err)
	}
	if m := fl.Mode(); m.Kind != ModeFolder || m.FolderID != "f-fin" {
		t.Errorf("unexpected mode %s", m)
	}
	got := names(fl.Items())
	if len(got) != 2 || got[0] != "A.txt" || got[1] != "b.txt" {
		t.Errorf("items = %v", got)
	}

	q := l.calls()[0]
	if q.FolderID != "f-fin" || q.Search != "" || q.SortBy != models.SortByName || q.SortOrder != models.SortAsc {
		t.Errorf("unexpected query %+v", q)
	}
}

func TestLoadForFolderEmptyIDMakesNoRequest(t *testing.T) {
	l := &fakeLister{}
	fl := newTestFileList(l, nil)

	if err := fl.LoadForFolder(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if len(l.calls()) != 0 {
		t.Errorf("expected no request, got %d", len(l.calls()))
	}
	if fl.Mode().Kind != ModeRoot || len(fl.Items()) != 0 {
		t.Errorf("expected empty root listing, got %s with %d items", fl.Mode(), len(fl.Items()))
	}
}

func TestSearchResetsNavigator(t *testing.T) {
	all := sampleFolders()
	nav := NewNavigator(nil)
	_ = nav.NavigateInto(all[0])
	_ = nav.NavigateInto(all[1])

	l := &fakeLister{files: map[string][]models.FileEntry{
		"search:Q1": {entry("Q1.pdf", "f-rep", 10), entry("Q1-notes.txt", "f-eng", 3)},
	}}
	fl := newTestFileList(l, nav)

	if err := fl.Search(context.Background(), "  Q1 "); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if m := fl.Mode(); m.Kind != ModeSearch || m.Query != "Q1" {
		t.Errorf("unexpected mode %s", m)
	}
	if nav.Depth() != 0 {
		t.Errorf("navigator should be at the root after a search, path %v", pathIDs(nav))
	}
	if len(fl.Items()) != 2 {
		t.Errorf("expected 2 results, got %d", len(fl.Items()))
	}
	if l.calls()[0].FolderID != "" {
		t.Error("search must not send a folder id")
	}
}

func TestSearchRejectsBlankQuery(t *testing.T) {
	l := &fakeLister{}
	fl := newTestFileList(l, nil)

	err := fl.Search(context.Background(), "   ")
	if !validation.Is(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(l.calls()) != 0 {
		t.Error("blank search must not reach the server")
	}
}

func TestFailedSearchKeepsNavigatorAndItems(t *testing.T) {
	all := sampleFolders()
	nav := NewNavigator(nil)
	_ = nav.NavigateInto(all[0])

	l := &fakeLister{files: map[string][]models.FileEntry{
		"f-fin": {entry("a.txt", "f-fin", 1)},
	}}
	fl := newTestFileList(l, nav)
	if err := fl.LoadForFolder(context.Background(), "f-fin"); err != nil {
		t.Fatal(err)
	}

	l.err = errors.New("connection reset")
	if err := fl.Search(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if nav.Depth() != 1 {
		t.Error("failed search must not move the navigator")
	}
	if m := fl.Mode(); m.Kind != ModeFolder {
		t.Errorf("mode changed on failure: %s", m)
	}
	if got := names(fl.Items()); len(got) != 1 || got[0] != "a.txt" {
		t.Errorf("items changed on failure: %v", got)
	}
}

func TestSetSortCycle(t *testing.T) {
	l := &fakeLister{files: map[string][]models.FileEntry{
		"f": {entry("a", "f", 3), entry("b", "f", 1), entry("c", "f", 2)},
	}}
	fl := newTestFileList(l, nil)
	ctx := context.Background()
	if err := fl.LoadForFolder(ctx, "f"); err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		field     string
		wantBy    string
		wantOrder string
		wantNames []string
	}{
		{models.SortByName, models.SortByName, models.SortDesc, []string{"c", "b", "a"}},
		{models.SortByName, models.SortByName, models.SortAsc, []string{"a", "b", "c"}},
		{models.SortByFileSize, models.SortByFileSize, models.SortAsc, []string{"b", "c", "a"}},
		{models.SortByFileSize, models.SortByFileSize, models.SortDesc, []string{"a", "c", "b"}},
		{models.SortByName, models.SortByName, models.SortAsc, []string{"a", "b", "c"}},
	}
	for i, s := range steps {
		if err := fl.SetSort(ctx, s.field); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		by, order := fl.Sort()
		if by != s.wantBy || order != s.wantOrder {
			t.Errorf("step %d: sort = %s %s, want %s %s", i, by, order, s.wantBy, s.wantOrder)
		}
		got := names(fl.Items())
		for j := range got {
			if got[j] != s.wantNames[j] {
				t.Errorf("step %d: items = %v, want %v", i, got, s.wantNames)
				break
			}
		}
		last := l.calls()[len(l.calls())-1]
		if last.SortBy != s.wantBy || last.SortOrder != s.wantOrder {
			t.Errorf("step %d: request sent %s %s", i, last.SortBy, last.SortOrder)
		}
	}
}

func TestNameSortIsCaseSensitive(t *testing.T) {
	l := &fakeLister{files: map[string][]models.FileEntry{
		"f": {entry("a.txt", "f", 1), entry("C.txt", "f", 1), entry("B.txt", "f", 1)},
	}}
	fl := newTestFileList(l, nil)
	if err := fl.LoadForFolder(context.Background(), "f"); err != nil {
		t.Fatal(err)
	}
	want := []string{"B.txt", "C.txt", "a.txt"}
	if got := names(fl.Items()); !reflect.DeepEqual(got, want) {
		t.Errorf("items = %v, want %v", got, want)
	}
}

func TestSetSortAtRootMakesNoRequest(t *testing.T) {
	l := &fakeLister{}
	fl := newTestFileList(l, nil)

	if err := fl.SetSort(context.Background(), models.SortByUploadedAt); err != nil {
		t.Fatal(err)
	}
	if len(l.calls()) != 0 {
		t.Error("root listing should not be fetched")
	}
	if by, _ := fl.Sort(); by != models.SortByUploadedAt {
		t.Errorf("sort field not applied: %s", by)
	}
}

func TestSetSortRejectsUnknownField(t *testing.T) {
	fl := newTestFileList(&fakeLister{}, nil)
	if err := fl.SetSort(context.Background(), "owner"); !validation.Is(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if by, order := fl.Sort(); by != models.SortByName || order != models.SortAsc {
		t.Errorf("sort changed: %s %s", by, order)
	}
}

func TestSetSortPersistsWhenReloadFails(t *testing.T) {
	l := &fakeLister{files: map[string][]models.FileEntry{"f": {entry("a", "f", 1)}}}
	fl := newTestFileList(l, nil)
	ctx := context.Background()
	_ = fl.LoadForFolder(ctx, "f")

	l.err = errors.New("timeout")
	if err := fl.SetSort(ctx, models.SortByFileSize); err == nil {
		t.Fatal("expected reload error")
	}
	if by, _ := fl.Sort(); by != models.SortByFileSize {
		t.Errorf("sort should stick after a failed reload, got %s", by)
	}
	if len(fl.Items()) != 1 {
		t.Error("items should be kept after a failed reload")
	}
}

func TestClearSearch(t *testing.T) {
	l := &fakeLister{files: map[string][]models.FileEntry{"search:q": {entry("q", "f", 1)}}}
	fl := newTestFileList(l, nil)
	_ = fl.Search(context.Background(), "q")

	fl.ClearSearch()
	if fl.Mode().Kind != ModeRoot || len(fl.Items()) != 0 {
		t.Errorf("expected empty root listing, got %s", fl.Mode())
	}
	if len(l.calls()) != 1 {
		t.Error("clearing a search must not issue a request")
	}
}

func TestSupersededResultIsDropped(t *testing.T) {
	gate := make(chan struct{})
	l := &fakeLister{
		gate: gate,
		files: map[string][]models.FileEntry{
			"slow": {entry("slow.txt", "slow", 1)},
			"fast": {entry("fast.txt", "fast", 1)},
		},
	}
	fl := newTestFileList(l, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- fl.LoadForFolder(ctx, "slow") }()

	// wait until the slow request is parked on the gate
	deadline := time.Now().Add(time.Second)
	for len(l.calls()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("slow request never started")
		}
		time.Sleep(time.Millisecond)
	}

	if err := fl.LoadForFolder(ctx, "fast"); err != nil {
		t.Fatal(err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if m := fl.Mode(); m.FolderID != "fast" {
		t.Errorf("stale result was applied: mode %s", m)
	}
	if got := names(fl.Items()); len(got) != 1 || got[0] != "fast.txt" {
		t.Errorf("items = %v", got)
	}
}

func TestFileListPublishesChange(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(events.EventFileListChanged)

	l := &fakeLister{files: map[string][]models.FileEntry{"f": {entry("a", "f", 1)}}}
	fl := NewFileList(l, nil, models.SortByName, models.SortAsc, nil, bus)
	if err := fl.LoadForFolder(context.Background(), "f"); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-ch:
		fc := ev.(*events.FileListChangedEvent)
		if fc.Mode != "folder" || fc.FolderID != "f" || fc.ItemCount != 1 {
			t.Errorf("unexpected event %+v", fc)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for file list event")
	}
}

func TestFind(t *testing.T) {
	l := &fakeLister{files: map[string][]models.FileEntry{"f": {entry("a", "f", 1), entry("b", "f", 2)}}}
	fl := newTestFileList(l, nil)
	_ = fl.LoadForFolder(context.Background(), "f")

	if e, ok := fl.Find("b"); !ok || e.FileSize != 2 {
		t.Errorf("Find(b) = %+v, %v", e, ok)
	}
	if _, ok := fl.Find("zzz"); ok {
		t.Error("Find should miss unknown names")
	}
}
