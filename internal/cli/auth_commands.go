package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sharefold/sharefold/internal/access"
)

func newLoginCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login [username]",
		Short: "Log in and keep the session for later commands",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(nil)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				username = args[0]
			}
			if username == "" {
				if username, err = promptLine("Username", ""); err != nil {
					return err
				}
			}
			password, err := promptPassword("Password: ")
			if err != nil {
				return err
			}
			s, err := a.browser.Login(GetContext(), username, password)
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(a.out, "Logged in as %s (%s)\n", s.Username, s.Role)
			if s.MustChangePassword {
				fmt.Fprintln(a.errOut, "Your password must be changed before continuing; run 'sharefold passwd'.")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when omitted)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget it locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(nil)
			if err != nil {
				return err
			}
			if err := a.resume(); err != nil {
				if errors.Is(err, errNotLoggedIn) {
					fmt.Fprintln(a.out, "Not logged in")
					return nil
				}
				return err
			}
			a.browser.Logout(GetContext())
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(nil)
			if err != nil {
				return err
			}
			if err := a.resume(); err != nil {
				return err
			}
			printWhoami(a)
			return nil
		},
	}
}

func printWhoami(a *app) {
	s := a.browser.Session()
	if s == nil {
		fmt.Fprintln(a.out, "Not logged in")
		return
	}
	caps := a.browser.Capabilities()
	fmt.Fprintf(a.out, "User:      %s\n", s.Username)
	fmt.Fprintf(a.out, "Role:      %s\n", s.Role)
	fmt.Fprintf(a.out, "Server:    %s\n", s.APIURL)
	fmt.Fprintf(a.out, "Logged in: %s\n", s.LoggedInAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(a.out, "Upload:    %s\n", yesNo(caps.Allows(access.ActionUpload)))
	fmt.Fprintf(a.out, "Download:  %s\n", yesNo(caps.Allows(access.ActionDownload)))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func newPasswdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change your password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(nil)
			if err != nil {
				return err
			}
			if err := a.resume(); err != nil {
				return err
			}
			current, err := promptPassword("Current password: ")
			if err != nil {
				return err
			}
			next, err := promptPassword("New password: ")
			if err != nil {
				return err
			}
			again, err := promptPassword("Repeat new password: ")
			if err != nil {
				return err
			}
			if next != again {
				return errors.New("passwords do not match")
			}
			if err := a.browser.ChangePassword(GetContext(), current, next); err != nil {
				return explain(err)
			}
			fmt.Fprintln(a.out, "Password changed")
			return nil
		},
	}
}
