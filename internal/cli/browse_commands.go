package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sharefold/sharefold/internal/config"
	"github.com/sharefold/sharefold/internal/models"
	"github.com/sharefold/sharefold/internal/state"
)

// sortFlags binds --sort and --desc onto the listing defaults.
type sortFlags struct {
	field string
	desc  bool
}

func (f *sortFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.field, "sort", "", "Sort by name, fileSize or uploadedAt")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "Sort in descending order")
}

func (f *sortFlags) apply(cfg *config.Config) {
	if f.field != "" {
		cfg.SortBy = f.field
	}
	if f.desc {
		cfg.SortOrder = models.SortDesc
	}
}

func newFoldersCmd() *cobra.Command {
	var showIDs bool
	cmd := &cobra.Command{
		Use:   "folders",
		Short: "Show the folders you can access as a tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(nil)
			if err != nil {
				return err
			}
			if err := a.resume(); err != nil {
				return err
			}
			forest, err := a.browser.LoadFolders(GetContext())
			if err != nil {
				return explain(err)
			}
			printTree(a, forest, showIDs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showIDs, "ids", false, "Show folder ids")
	return cmd
}

func printTree(a *app, forest *state.Forest, showIDs bool) {
	if forest.Len() == 0 {
		fmt.Fprintln(a.out, "(no folders)")
		return
	}
	if !showIDs {
		for _, line := range forest.TreeLines() {
			fmt.Fprintln(a.out, line)
		}
		return
	}
	w := newTable(a.out)
	forest.Walk(func(folder models.Folder, depth int) bool {
		fmt.Fprintf(w, "%*s%s/\t%s\n", depth*2, "", folder.FolderName, folder.FolderID)
		return true
	})
	w.Flush()
}

func newLsCmd() *cobra.Command {
	var sf sortFlags
	cmd := &cobra.Command{
		Use:   "ls [folder]",
		Short: "List a folder's subfolders and files",
		Long: `List a folder given by id or by name path (Finance/Reports).
Without a folder the top-level folders are shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(sf.apply)
			if err != nil {
				return err
			}
			if err := a.resume(); err != nil {
				return err
			}
			ctx := GetContext()
			if len(args) == 1 {
				if err := a.browser.EnterFolder(ctx, args[0]); err != nil {
					return explain(err)
				}
			}
			children, err := a.browser.Children(ctx)
			if err != nil {
				return explain(err)
			}
			printSubfolders(a.out, children)
			if len(args) == 1 {
				printFiles(a.out, a.browser.Items(), false)
			}
			return nil
		},
	}
	sf.register(cmd)
	return cmd
}

func newSearchCmd() *cobra.Command {
	var sf sortFlags
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find files by name across every folder you can access",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(sf.apply)
			if err != nil {
				return err
			}
			if err := a.resume(); err != nil {
				return err
			}
			if err := a.browser.Search(GetContext(), args[0]); err != nil {
				return explain(err)
			}
			printFiles(a.out, a.browser.Items(), true)
			return nil
		},
	}
	sf.register(cmd)
	return cmd
}

func newVersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <folder> <file>",
		Short: "Show every stored version of a file, newest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(nil)
			if err != nil {
				return err
			}
			if err := a.resume(); err != nil {
				return err
			}
			ctx := GetContext()
			if err := a.browser.EnterFolder(ctx, args[0]); err != nil {
				return explain(err)
			}
			return showVersions(a, args[1])
		},
	}
}

// showVersions opens the version list of a file in the current listing.
func showVersions(a *app, fileName string) error {
	entry, ok := a.browser.FindItem(fileName)
	if !ok {
		return fmt.Errorf("no file named %q here", fileName)
	}
	if err := a.browser.OpenVersions(GetContext(), entry); err != nil {
		return explain(err)
	}
	file, versions, _ := a.browser.Versions()
	printVersions(a.out, file, versions)
	return nil
}
