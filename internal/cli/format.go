package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/sharefold/sharefold/internal/models"
)

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
}

// printFiles lists entries; withFolder adds the folder column used by search.
func printFiles(out io.Writer, items []models.FileEntry, withFolder bool) {
	if len(items) == 0 {
		fmt.Fprintln(out, "(no files)")
		return
	}
	w := newTable(out)
	if withFolder {
		fmt.Fprintln(w, "NAME\tFOLDER\tSIZE\tVERSION\tUPLOADED\tBY")
	} else {
		fmt.Fprintln(w, "NAME\tSIZE\tVERSION\tUPLOADED\tBY")
	}
	for _, f := range items {
		if withFolder {
			folder := f.FolderName
			if folder == "" {
				folder = f.FolderID
			}
			fmt.Fprintf(w, "%s\t%s\t%s\tv%d\t%s\t%s\n", f.FileName, folder, models.FormatSize(f.FileSize), f.LatestVersion, f.UploadedAt, f.UploadedBy)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\tv%d\t%s\t%s\n", f.FileName, models.FormatSize(f.FileSize), f.LatestVersion, f.UploadedAt, f.UploadedBy)
	}
	w.Flush()
}

func printSubfolders(out io.Writer, folders []models.Folder) {
	for _, f := range folders {
		fmt.Fprintf(out, "%s/\n", f.FolderName)
	}
}

func printVersions(out io.Writer, entry models.FileEntry, versions []models.Version) {
	fmt.Fprintf(out, "Versions of %s:\n", entry.FileName)
	if len(versions) == 0 {
		fmt.Fprintln(out, "(no versions)")
		return
	}
	w := newTable(out)
	fmt.Fprintln(w, "VERSION\tSIZE\tUPLOADED\tBY")
	for _, v := range versions {
		latest := ""
		if v.VersionNumber == entry.LatestVersion {
			latest = "  (latest)"
		}
		fmt.Fprintf(w, "v%d\t%s\t%s\t%s%s\n", v.VersionNumber, models.FormatSize(v.FileSize), v.UploadedAt, v.UploadedBy, latest)
	}
	w.Flush()
}

// formatPath renders a breadcrumb as /A/B; the root is "/".
func formatPath(path []models.Folder) string {
	if len(path) == 0 {
		return "/"
	}
	names := make([]string, len(path))
	for i, f := range path {
		names[i] = f.FolderName
	}
	return "/" + strings.Join(names, "/")
}
