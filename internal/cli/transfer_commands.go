package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sharefold/sharefold/internal/models"
	"github.com/sharefold/sharefold/internal/progress"
	"github.com/sharefold/sharefold/internal/transfer"
)

func newUploadCmd() *cobra.Command {
	var folder string
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a local file as a new version",
		Long: `Upload a local file into a folder. Uploading a name that already exists
adds a version; earlier versions stay available.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(nil)
			if err != nil {
				return err
			}
			if err := a.resume(); err != nil {
				return err
			}
			if err := a.browser.EnterFolder(GetContext(), folder); err != nil {
				return explain(err)
			}
			return uploadFile(a, args[0])
		},
	}
	cmd.Flags().StringVarP(&folder, "folder", "f", "", "Destination folder id or name path (required)")
	_ = cmd.MarkFlagRequired("folder")
	return cmd
}

// uploadFile uploads path into the current folder.
func uploadFile(a *app, path string) error {
	cand, err := transfer.CandidateFromPath(path)
	if err != nil {
		return err
	}
	var reporter progress.Reporter
	if stderrIsTerminal() {
		reporter = progress.NewCLIProgressTo(a.errOut)
	}
	res, err := a.browser.Upload(GetContext(), cand, reporter)
	if err != nil {
		return explain(err)
	}
	fmt.Fprintf(a.out, "Uploaded %s (%s) as version %d to %s\n",
		res.FileName, models.FormatSize(res.Size), res.VersionNumber, formatPath(a.browser.Path()))
	if res.RefreshErr != nil {
		fmt.Fprintf(a.errOut, "Warning: the listing could not be refreshed: %v\n", res.RefreshErr)
	}
	return nil
}

func newDownloadCmd() *cobra.Command {
	var (
		version int
		saveDir string
	)
	cmd := &cobra.Command{
		Use:   "download <folder> <file>",
		Short: "Get a download link for a file, or save it",
		Long: `Resolve a short-lived download link for the latest version of a file, or
the version given by --version. With --save the file is written to a directory.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(nil)
			if err != nil {
				return err
			}
			if err := a.resume(); err != nil {
				return err
			}
			if err := a.browser.EnterFolder(GetContext(), args[0]); err != nil {
				return explain(err)
			}
			return downloadFile(a, args[1], version, saveDir)
		},
	}
	cmd.Flags().IntVar(&version, "version", 0, "Version number (latest when omitted)")
	cmd.Flags().StringVar(&saveDir, "save", "", "Save into this directory instead of printing the link")
	return cmd
}

// downloadFile resolves fileName and prints the link, or saves it into saveDir.
// The file is looked up in the open version list, then the current folder,
// then the listing (search results carry their own folder).
func downloadFile(a *app, fileName string, version int, saveDir string) error {
	if version < 0 {
		return fmt.Errorf("invalid version %d", version)
	}
	link, err := resolveLink(a, fileName, version)
	if err != nil {
		return explain(err)
	}
	if saveDir == "" {
		fmt.Fprintf(a.out, "%s v%d\n%s\n", link.FileName, link.VersionNumber, link.DownloadURL)
		return nil
	}

	saver := transfer.NewSaver(a.transferClient, GetLogger())
	var ui *progress.DownloadUI
	var factory transfer.ReporterFactory
	if stderrIsTerminal() {
		ui = progress.NewDownloadUI()
		factory = func(name, localPath string, size int64) progress.Reporter {
			return ui.AddFileBar(name, localPath, size)
		}
	}
	dest, err := saver.Save(GetContext(), link, saveDir, factory)
	if ui != nil {
		ui.Wait()
	}
	if err != nil {
		return explain(err)
	}
	fmt.Fprintf(a.out, "Saved %s v%d to %s\n", link.FileName, link.VersionNumber, dest)
	return nil
}

func resolveLink(a *app, fileName string, version int) (*models.DownloadAuthorization, error) {
	ctx := GetContext()
	if open, _, ok := a.browser.Versions(); ok && open.FileName == fileName {
		return a.browser.ResolveOpenVersion(ctx, version)
	}
	if cur, ok := a.browser.CurrentFolder(); ok {
		return a.browser.ResolveDownload(ctx, cur.FolderID, fileName, version)
	}
	if entry, ok := a.browser.FindItem(fileName); ok {
		return a.browser.ResolveDownload(ctx, entry.FolderID, fileName, version)
	}
	return nil, fmt.Errorf("no file named %q here; enter its folder or search for it first", fileName)
}
