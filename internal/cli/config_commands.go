package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sharefold/sharefold/internal/api"
	"github.com/sharefold/sharefold/internal/config"
	"github.com/sharefold/sharefold/internal/models"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage sharefold configuration",
		Long: `Configuration management commands for sharefold.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Check that the server answers
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for sharefold.

The configuration will be saved to ~/.config/sharefold/config

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Printf("Configuration already exists at: %s\n", path)
					fmt.Println("Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			fmt.Println("sharefold Configuration Setup")
			fmt.Println("=============================")
			fmt.Println()

			cfg := config.New()
			if cfg.APIURL, err = promptLine("API URL", cfg.APIURL); err != nil {
				return err
			}
			if err := promptProxy(cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			GetLogger().Info().Str("path", path).Msg("Configuration saved")

			fmt.Println()
			fmt.Printf("Configuration saved to: %s\n", path)
			fmt.Println("Test it with: sharefold config test")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	return cmd
}

func promptProxy(cfg *config.Config) error {
	fmt.Println()
	if !confirm("Configure proxy?") {
		cfg.ProxyMode = config.ProxyModeNone
		return nil
	}
	fmt.Println("Proxy modes: no-proxy, system, basic, ntlm")
	mode, err := promptLine("Proxy mode", config.ProxyModeSystem)
	if err != nil {
		return err
	}
	cfg.ProxyMode = mode
	if mode != config.ProxyModeBasic && mode != config.ProxyModeNTLM {
		return nil
	}
	if cfg.ProxyHost, err = promptLine("Proxy host", ""); err != nil {
		return err
	}
	port, err := promptLine("Proxy port", "8080")
	if err != nil {
		return err
	}
	if cfg.ProxyPort, err = strconv.Atoi(port); err != nil || cfg.ProxyPort <= 0 {
		return fmt.Errorf("invalid proxy port %q", port)
	}
	if cfg.ProxyUser, err = promptLine("Proxy user (password is asked when needed)", ""); err != nil {
		return err
	}
	cfg.NoProxy, err = promptLine("Hosts that bypass the proxy", "localhost,127.0.0.1")
	return err
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

This command shows the merged configuration from:
  1. Configuration file (~/.config/sharefold/config)
  2. Environment variables (SHAREFOLD_API_URL)
  3. Command-line flags (--api-url)

Priority: flags > environment > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			cfg.ApplyEnv()
			cfg.MergeWithFlags(apiBaseURL, "", "", 0)
			showConfig(cmd.OutOrStdout(), cfg, path)
			return nil
		},
	}
}

func showConfig(out io.Writer, cfg *config.Config, path string) {
	fmt.Fprintln(out, "Current Configuration")
	fmt.Fprintln(out, "=====================")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "API URL: %s\n", cfg.APIURL)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Proxy Settings:")
	fmt.Fprintf(out, "  Proxy Mode: %s\n", cfg.ProxyMode)
	if cfg.ProxyHost != "" {
		fmt.Fprintf(out, "  Proxy Host: %s\n", cfg.ProxyHost)
		fmt.Fprintf(out, "  Proxy Port: %d\n", cfg.ProxyPort)
	}
	if cfg.ProxyUser != "" {
		fmt.Fprintf(out, "  Proxy User: %s\n", cfg.ProxyUser)
	}
	if cfg.NoProxy != "" {
		fmt.Fprintf(out, "  No Proxy:   %s\n", cfg.NoProxy)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Listing:")
	fmt.Fprintf(out, "  Sort: %s %s\n", cfg.SortBy, cfg.SortOrder)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Transfers:")
	fmt.Fprintf(out, "  Max Upload:   %s\n", models.FormatSize(cfg.MaxUploadBytes))
	fmt.Fprintf(out, "  HTTP Retries: %d\n", cfg.HTTPRetries)
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Configuration file: %s\n", path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "  (file does not exist - using defaults)")
	}
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check that the server answers",
		Long: `Send an unauthenticated folder listing to the configured server. A server
that answers "unauthorized" is reachable; no credentials are needed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(nil)
			if err != nil {
				return err
			}
			client, err := api.NewClient(cfg, GetLogger())
			if err != nil {
				return err
			}
			fmt.Printf("Contacting %s ...\n", client.BaseURL())
			start := time.Now()
			_, err = client.ListFolders(GetContext())
			elapsed := time.Since(start).Round(time.Millisecond)

			var reqErr *api.RequestError
			switch {
			case err == nil, errors.As(err, &reqErr) && reqErr.StatusCode != 0:
				fmt.Printf("Server reachable (%s)\n", elapsed)
				return nil
			default:
				return fmt.Errorf("server not reachable: %w", err)
			}
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			if sessionPath, err := config.DefaultSessionPath(); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Session: %s\n", sessionPath)
			}
			return nil
		},
	}
}
