// Package main is the entry point for the pxmcp server.
//
// pxmcp exposes the Paradox tables of one directory as MCP tools over
// line-delimited JSON-RPC on stdin and stdout. Logs go to stderr.
// Configuration is read from CLI flags and an optional YAML or TOML file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lmittmann/tint"
	"github.com/maruel/pxmcp/internal/config"
	"github.com/maruel/pxmcp/internal/history"
	"github.com/maruel/pxmcp/internal/mcp"
	"github.com/maruel/pxmcp/internal/paradox"
	"github.com/maruel/pxmcp/internal/tools"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "pxmcp: %v\n", err)
		os.Exit(1)
	}
}

// cliFlags holds the values of the command line flags.
type cliFlags struct {
	configPath    string
	location      string
	port          uint
	permitEditing bool
	logLevel      string
	gitHistory    bool
}

func mainImpl() error {
	var f cliFlags
	version := flag.Bool("version", false, "Print version and exit")
	flag.StringVar(&f.configPath, "config", "", "Path to a YAML or TOML configuration file")
	flag.StringVar(&f.location, "location", "", "Directory containing the Paradox tables")
	flag.UintVar(&f.port, "port", 0, "Unused; accepted for compatibility")
	flag.BoolVar(&f.permitEditing, "permit-editing", false, "Allow create_table, insert_record and update_record")
	flag.StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&f.gitHistory, "git-history", false, "Commit modified tables to a git repository in the location")
	restart := flag.Bool("restart-on-rebuild", false, "Exit when the executable is modified")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	slog.SetDefault(newLogger(ll))

	set := make(map[string]bool)
	flag.Visit(func(fl *flag.Flag) {
		set[fl.Name] = true
	})
	cfg, err := resolveConfig(&f, set)
	if err != nil {
		return err
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	ll.Set(level)
	if f.port > 65535 {
		return fmt.Errorf("invalid port %d", f.port)
	}
	if set["port"] {
		slog.WarnContext(ctx, "The port flag is unused; serving on stdio", "port", f.port)
	}

	if *restart {
		if err := watchExecutable(ctx, stop); err != nil {
			return fmt.Errorf("failed to watch executable: %w", err)
		}
	}

	paradox.Boot()
	defer paradox.Shutdown()

	tcfg := tools.Config{
		Location:         cfg.Location,
		PermitEditing:    cfg.PermitEditing,
		SearchLimit:      cfg.SearchLimit,
		DefaultReadLimit: cfg.DefaultReadLimit,
	}
	if cfg.History.Enabled {
		if !cfg.PermitEditing {
			slog.WarnContext(ctx, "History is enabled but editing is not permitted")
		}
		repo, err := history.Open(ctx, cfg.Location, cfg.History.AuthorName, cfg.History.AuthorEmail)
		if err != nil {
			return err
		}
		last, err := repo.Log(ctx, 1)
		if err != nil {
			return err
		}
		if len(last) != 0 {
			slog.InfoContext(ctx, "Table history", "head", last[0].Hash, "message", last[0].Message, "when", last[0].When)
		}
		tcfg.History = repo
	}
	d, err := tools.New(tcfg)
	if err != nil {
		return err
	}

	buildVersion, _, _, _ := getBuildInfo()
	srv := mcp.New(d, mcp.Options{Version: buildVersion, RateLimit: cfg.RateLimitPerSec})
	slog.InfoContext(ctx, "Serving", "location", d.Config().Location, "permitEditing", cfg.PermitEditing, "history", cfg.History.Enabled, "version", buildVersion)
	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Input closed, exiting")
	return nil
}

// resolveConfig loads the configuration file, if any, and applies the flags
// explicitly set on the command line over it.
func resolveConfig(f *cliFlags, set map[string]bool) (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return cfg, err
		}
	}
	if set["location"] || cfg.Location == "" {
		cfg.Location = f.location
	}
	if set["permit-editing"] {
		cfg.PermitEditing = f.permitEditing
	}
	if set["log-level"] || cfg.LogLevel == "" {
		cfg.LogLevel = f.logLevel
	}
	if set["git-history"] {
		cfg.History.Enabled = f.gitHistory
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger returns a tint logger on stderr. stdout is reserved for
// responses.
func newLogger(ll *slog.LevelVar) *slog.Logger {
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			skip := false
			switch t := a.Value.Any().(type) {
			case string:
				skip = t == ""
			case uint64:
				skip = t == 0
			case time.Time:
				skip = t.IsZero()
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("pxmcp %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}

// watchExecutable calls stop when the current executable is modified, so a
// supervising client can start the rebuilt binary.
func watchExecutable(ctx context.Context, stop context.CancelFunc) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(exe); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
					slog.InfoContext(ctx, "Executable modified, initiating shutdown")
					stop()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching executable", "err", err)
			}
		}
	}()
	return nil
}
