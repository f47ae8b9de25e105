package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{-5, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{500000000, "476.8 MB"},
		{1073741824, "1.0 GB"},
		{5 * 1073741824, "5.0 GB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.in); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUnixTimeDecoding(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int64
		zero bool
	}{
		{"integer seconds", `1700000000`, 1700000000, false},
		{"fractional seconds", `1700000000.5`, 1700000000, false},
		{"zero", `0`, 0, true},
		{"null", `null`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ut UnixTime
			if err := json.Unmarshal([]byte(tt.in), &ut); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if ut.IsZero() != tt.zero {
				t.Fatalf("IsZero = %v, want %v", ut.IsZero(), tt.zero)
			}
			if !tt.zero && ut.Unix() != tt.want {
				t.Errorf("Unix() = %d, want %d", ut.Unix(), tt.want)
			}
		})
	}

	var ut UnixTime
	if err := json.Unmarshal([]byte(`"yesterday"`), &ut); err == nil {
		t.Error("expected error for string timestamp")
	}
}

func TestFileEntryWireShape(t *testing.T) {
	body := `{"fileName":"Q1.pdf","folderId":"F1","folderName":"Reports","fileSize":500000000,` +
		`"uploadedBy":"alice","uploadedAt":1700000000,"latestVersion":2}`

	var fe FileEntry
	if err := json.Unmarshal([]byte(body), &fe); err != nil {
		t.Fatal(err)
	}
	if fe.Key() != "F1/Q1.pdf" || fe.LatestVersion != 2 || fe.FolderName != "Reports" {
		t.Errorf("unexpected entry %+v", fe)
	}
	if !fe.UploadedAt.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("uploadedAt = %v", fe.UploadedAt)
	}

	out, err := json.Marshal(fe)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `"uploadedAt":1700000000`) {
		t.Errorf("uploadedAt should encode as seconds: %s", out)
	}
}

func TestDownloadRequestOmitsLatestVersion(t *testing.T) {
	out, _ := json.Marshal(DownloadAuthorizationRequest{FolderID: "F1", FileName: "Q1.pdf"})
	if strings.Contains(string(out), "versionNumber") {
		t.Errorf("latest download must not carry a version field: %s", out)
	}

	out, _ = json.Marshal(DownloadAuthorizationRequest{FolderID: "F1", FileName: "Q1.pdf", VersionNumber: 1})
	if !strings.Contains(string(out), `"versionNumber":1`) {
		t.Errorf("explicit version missing: %s", out)
	}
}

func TestFolderTopLevel(t *testing.T) {
	if !(Folder{ParentFolderID: RootFolderID}).IsTopLevel() {
		t.Error("ROOT parent should be top level")
	}
	if !(Folder{}).IsTopLevel() {
		t.Error("empty parent should be top level")
	}
	if (Folder{ParentFolderID: "F1"}).IsTopLevel() {
		t.Error("F1 child is not top level")
	}
}

func TestRoleAndSortValidation(t *testing.T) {
	for _, r := range []Role{RoleAdmin, RoleUploader, RoleReader, RoleViewer} {
		if !r.Valid() {
			t.Errorf("%s should be valid", r)
		}
	}
	if Role("owner").Valid() {
		t.Error("owner is not a role")
	}
	if !ValidSortField("uploadedAt") || ValidSortField("size") {
		t.Error("sort field validation wrong")
	}
}
