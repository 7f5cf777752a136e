package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/output"
	"github.com/joescharf/board/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "board",
	Short: "Kanban issue board - track issues across Backlog, Selected, In Progress and Done",
	Long: `board is a Kanban issue tracker for a single project.
Issues move through four columns, carry assignees, estimates and logged
time, and collect comments. Run it as a CLI against the local database,
as an HTTP API with 'board serve', or as MCP tools with 'board mcp'.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return boardRun()
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/board/config.yaml)")
	rootCmd.PersistentFlags().StringP("user", "u", "", "Act as this user (ID or name)")
	_ = viper.BindPFlag("current_user", rootCmd.PersistentFlags().Lookup("user"))
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "board")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("BOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	home, _ := os.UserHomeDir()
	setDefaults(filepath.Join(home, ".config", "board"))

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key rooted at stateDir.
func setDefaults(stateDir string) {
	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("db_path", filepath.Join(stateDir, "board.db"))
	viper.SetDefault("current_user", "")
	viper.SetDefault("board.recent_window", board.DefaultRecentWindow.String())
	viper.SetDefault("server.addr", "127.0.0.1:8080")
	viper.SetDefault("server.url", "http://127.0.0.1:8080")
	viper.SetDefault("server.pid_file", filepath.Join(stateDir, "board-serve.pid"))
	viper.SetDefault("log.level", "info")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// Initialize store lazily, only when commands actually need it.
	// This allows config/version commands to run without a db.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getService wraps the shared store in a board service configured from viper.
func getService() (*board.Service, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	opts := []board.Option{board.WithLogger(newLogger(false))}
	if w := viper.GetDuration("board.recent_window"); w > 0 {
		opts = append(opts, board.WithRecentWindow(w))
	}
	return board.NewService(s, opts...), nil
}

// newLogger builds the slog logger: text on stderr for the CLI, JSON for the server.
func newLogger(json bool) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log.level"))); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// currentUserID resolves the configured current user, or "" when unset.
func currentUserID(ctx context.Context, svc *board.Service) (string, error) {
	ref := viper.GetString("current_user")
	if ref == "" {
		return "", nil
	}
	u, err := svc.FindUser(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("current user %q: %w", ref, err)
	}
	return u.ID, nil
}

// requireCurrentUser is currentUserID for commands that need an acting user.
func requireCurrentUser(ctx context.Context, svc *board.Service) (string, error) {
	id, err := currentUserID(ctx, svc)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("no current user: pass --user or set current_user (BOARD_CURRENT_USER)")
	}
	return id, nil
}
