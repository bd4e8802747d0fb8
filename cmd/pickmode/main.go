package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/v0xg/pickmode/internal/config"
)

var version = "dev"

var (
	configPath string
	logLevel   string
	logFormat  string
	verbose    bool

	// overrides for the browser section
	headless bool
	remote   string
	profile  string
	backend  string
)

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "pickmode",
		Short: "Pick elements on live pages and inspect their styles",
		Long: `pickmode attaches an element picker to a browser page: hovering highlights
elements, clicking selects them, and the selection survives reloads.

Example:
  pickmode pick https://example.com
  pickmode pick https://example.com --script "click:#hero; click:nav a; key:Escape"
  pickmode capture https://example.com -o selection.gif`,
		SilenceUsage:  true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "text", "Log format: text, json")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Show detailed progress")
	pf.BoolVar(&headless, "headless", false, "Run the browser headless")
	pf.StringVar(&remote, "remote", "", "WebSocket URL of a running Chrome")
	pf.StringVar(&profile, "profile", "", "Chrome/Chromium profile directory for authenticated sessions (close browser first)")
	pf.StringVar(&backend, "storage", "", "Selection storage: localstorage, sqlite, memory")

	rootCmd.AddCommand(
		newPickCmd(),
		newInspectCmd(),
		newStateCmd(),
		newCaptureCmd(),
		newDescribeCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setupLogging() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q", logLevel)
	}
	if verbose && level > slog.LevelInfo {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(logFormat) {
	case "json":
		h = slog.NewJSONHandler(os.Stderr, opts)
	case "text", "":
		h = slog.NewTextHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid --log-format %q", logFormat)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// loadConfig reads --config (or defaults) and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadFile(configPath); err != nil {
			return nil, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("headless") {
		cfg.Browser.Headless = headless
	}
	if remote != "" {
		cfg.Browser.Remote = remote
	}
	if profile != "" {
		cfg.Browser.ProfileDir = profile
	}
	if backend != "" {
		cfg.Storage.Backend = backend
		if backend == "sqlite" && cfg.Storage.Path == "" {
			cfg.Storage.Path = "pickmode.db"
		}
	}
	return cfg, nil
}

// step prints a progress line on stderr, leaving stdout for results.
func step(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "→ "+format, args...)
}

func stepDone(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed")
		return
	}
	fmt.Fprintln(os.Stderr, "done")
}

func logVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
