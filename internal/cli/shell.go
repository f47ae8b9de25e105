package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sharefold/sharefold/internal/events"
	"github.com/sharefold/sharefold/internal/state"
)

const shellHelp = `Commands:
  ls                  list subfolders and files here
  cd NAME | /PATH     enter a subfolder, or jump to a folder path or id
  cd .. | up          leave the current folder
  cd /                return to the root
  crumb N             jump to the Nth folder of the path (1 is the first)
  pwd                 show the path
  folders             show the folder tree
  sort FIELD          sort by name, fileSize or uploadedAt (again to reverse)
  search TEXT         find files in every folder you can access
  clear               leave search results
  versions FILE       show the versions of FILE
  get FILE [N]        print a download link for FILE (version N)
  save FILE [N] [DIR] save FILE (version N) into DIR, default "."
  put PATH            upload a local file here
  reload              repeat the last listing
  whoami              show the session
  login [USER]        log in again
  exit                leave the shell`

func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Browse interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(nil)
			if err != nil {
				return err
			}
			if err := a.resume(); err != nil {
				return err
			}
			return newShell(a, stdinReader).run()
		},
	}
}

type shell struct {
	a     *app
	in    *bufio.Reader
	ended <-chan events.Event
}

func newShell(a *app, in io.Reader) *shell {
	r, ok := in.(*bufio.Reader)
	if !ok {
		r = bufio.NewReader(in)
	}
	return &shell{a: a, in: r, ended: a.bus.Subscribe(events.EventSessionInvalidated)}
}

func (s *shell) prompt() string {
	if s.a.browser.Mode().Kind == state.ModeSearch {
		return fmt.Sprintf("sharefold:search(%s)> ", s.a.browser.Mode().Query)
	}
	return fmt.Sprintf("sharefold:%s> ", formatPath(s.a.browser.Path()))
}

func (s *shell) run() error {
	for {
		fmt.Fprint(s.a.out, s.prompt())
		line, err := s.in.ReadString('\n')
		if line == "" && err != nil {
			fmt.Fprintln(s.a.out)
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		args, perr := splitArgs(line)
		if perr != nil {
			fmt.Fprintf(s.a.errOut, "error: %v\n", perr)
			continue
		}
		quit, cerr := s.exec(args)
		if cerr != nil {
			fmt.Fprintf(s.a.errOut, "error: %v\n", cerr)
		}
		s.noticeEnded()
		if quit || GetContext().Err() != nil {
			return nil
		}
	}
}

// noticeEnded tells the user once when the server ended the session.
func (s *shell) noticeEnded() {
	for {
		select {
		case e := <-s.ended:
			if ev, ok := e.(*events.SessionInvalidatedEvent); ok {
				fmt.Fprintf(s.a.errOut, "Session for %s ended (%s). Use 'login' to continue.\n", ev.Username, ev.Reason)
			}
		default:
			return
		}
	}
}

// exec runs one command line.
func (s *shell) exec(args []string) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}
	ctx := GetContext()
	b := s.a.browser
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "exit", "quit":
		return true, nil
	case "help", "?":
		fmt.Fprintln(s.a.out, shellHelp)
	case "pwd":
		s.printPath()
	case "ls":
		return false, s.list()
	case "cd":
		if len(rest) != 1 {
			return false, errors.New("usage: cd NAME | /PATH | .. | /")
		}
		return false, s.cd(rest[0])
	case "up":
		return false, explain(b.NavigateUp(ctx))
	case "crumb":
		if len(rest) != 1 {
			return false, errors.New("usage: crumb N")
		}
		n, err := strconv.Atoi(rest[0])
		if err != nil {
			return false, fmt.Errorf("invalid position %q", rest[0])
		}
		return false, explain(b.NavigateToBreadcrumb(ctx, n-1))
	case "folders":
		forest, err := b.LoadFolders(ctx)
		if err != nil {
			return false, explain(err)
		}
		printTree(s.a, forest, false)
	case "sort":
		if len(rest) != 1 {
			by, order := b.Sort()
			fmt.Fprintf(s.a.out, "sorted by %s %s\n", by, order)
			return false, nil
		}
		err := b.SetSort(ctx, rest[0])
		by, order := b.Sort()
		fmt.Fprintf(s.a.out, "sorted by %s %s\n", by, order)
		return false, explain(err)
	case "search":
		if len(rest) == 0 {
			return false, errors.New("usage: search TEXT")
		}
		if err := b.Search(ctx, strings.Join(rest, " ")); err != nil {
			return false, explain(err)
		}
		printFiles(s.a.out, b.Items(), true)
	case "clear":
		b.ClearSearch()
	case "reload":
		return false, explain(b.Reload(ctx))
	case "versions":
		if len(rest) != 1 {
			return false, errors.New("usage: versions FILE")
		}
		return false, showVersions(s.a, rest[0])
	case "get", "save":
		return false, s.download(cmd, rest)
	case "put":
		if len(rest) != 1 {
			return false, errors.New("usage: put PATH")
		}
		return false, uploadFile(s.a, rest[0])
	case "whoami":
		printWhoami(s.a)
	case "login":
		return false, s.login(rest)
	default:
		return false, fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
	return false, nil
}

func (s *shell) printPath() {
	path := s.a.browser.Path()
	if len(path) == 0 {
		fmt.Fprintln(s.a.out, "/")
		return
	}
	for i, f := range path {
		fmt.Fprintf(s.a.out, "%d %s\n", i+1, f.FolderName)
	}
}

func (s *shell) list() error {
	b := s.a.browser
	if b.Mode().Kind == state.ModeSearch {
		printFiles(s.a.out, b.Items(), true)
		return nil
	}
	children, err := b.Children(GetContext())
	if err != nil {
		return explain(err)
	}
	printSubfolders(s.a.out, children)
	if _, ok := b.CurrentFolder(); ok {
		printFiles(s.a.out, b.Items(), false)
	}
	return nil
}

func (s *shell) cd(ref string) error {
	ctx := GetContext()
	b := s.a.browser
	switch {
	case ref == "..":
		return explain(b.NavigateUp(ctx))
	case ref == "/":
		return explain(b.ResetToRoot(ctx))
	case strings.HasPrefix(ref, "/"):
		return explain(b.EnterFolder(ctx, strings.TrimPrefix(ref, "/")))
	}
	err := b.NavigateIntoNamed(ctx, ref)
	if errors.Is(err, state.ErrFolderNotFound) {
		// Not a child name; it may still be a folder id.
		if idErr := b.EnterFolder(ctx, ref); idErr == nil {
			return nil
		}
	}
	return explain(err)
}

func (s *shell) download(cmd string, rest []string) error {
	if len(rest) == 0 || len(rest) > 3 || (cmd == "get" && len(rest) > 2) {
		if cmd == "get" {
			return errors.New("usage: get FILE [N]")
		}
		return errors.New("usage: save FILE [N] [DIR]")
	}
	version := 0
	if len(rest) > 1 {
		n, err := strconv.Atoi(rest[1])
		if err != nil {
			return fmt.Errorf("invalid version %q", rest[1])
		}
		version = n
	}
	dir := ""
	if cmd == "save" {
		dir = "."
		if len(rest) == 3 {
			dir = rest[2]
		}
	}
	return downloadFile(s.a, rest[0], version, dir)
}

func (s *shell) login(rest []string) error {
	username := ""
	if len(rest) > 0 {
		username = rest[0]
	} else if sess := s.a.browser.Session(); sess != nil {
		username = sess.Username
	}
	if username == "" {
		return errors.New("usage: login USER")
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}
	sess, err := s.a.browser.Login(GetContext(), username, password)
	if err != nil {
		return explain(err)
	}
	fmt.Fprintf(s.a.out, "Logged in as %s (%s)\n", sess.Username, sess.Role)
	return nil
}

// splitArgs splits a line on whitespace. Double quotes group words, so file
// names with spaces can be given as "Q1 report.pdf".
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && (r == ' ' || r == '\t' || r == '\n' || r == '\r'):
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quote")
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}
