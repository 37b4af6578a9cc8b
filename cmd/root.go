package cmd

import (
	"fmt"
	"os"

	"github.com/carebridge/assist-chat/internal"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	serverURL  string
	userID     string
	storePath  string
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "assist-chat",
	Short: "Chat with the agency AI assistant from your terminal",
	Long: `A CLI client for the case-management platform's AI assistant.

Responses stream in as they are generated, conversations are kept in a
local history bounded to the 10 most recent sessions, and actions the
assistant proposes can be approved or rejected without leaving the
terminal.

Quick Start:
  assist-chat chat "Summarize this workflow"   # Global chat
  assist-chat chat --surrogate s-1 "Status?"   # Chat about a surrogate case
  assist-chat list                             # List stored sessions
  assist-chat export --format md               # Export sessions as Markdown`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.assist-chat/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Backend base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "User id the local history is scoped to (overrides config)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Path to the local history database (overrides config)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// loadConfig resolves effective configuration from file and flags.
func loadConfig() (*internal.Config, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = internal.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := internal.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if userID != "" {
		cfg.UserID = userID
	}
	if storePath != "" {
		cfg.StorePath = storePath
	}
	if cfg.UserID == "" {
		cfg.UserID = "default"
	}
	if cfg.StorePath == "" {
		cfg.StorePath, err = internal.DefaultStorePath()
		if err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// openStore opens the local history store, scoped to the configured user.
func openStore(cfg *internal.Config) (*internal.SessionStore, error) {
	storage, err := internal.OpenSQLiteStorage(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	store := internal.NewSessionStore(storage)
	if err := store.Init(cfg.UserID); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("failed to initialize history store: %w", err)
	}
	return store, nil
}

// newClient builds the backend client for the effective configuration.
func newClient(cfg *internal.Config) *internal.Client {
	return internal.NewClient(cfg.ServerURL, cfg.UserID, internal.DefaultAPITimeout)
}
