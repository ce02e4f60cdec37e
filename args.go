package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"songbook/internal/config"
)

var errUsage = errors.New("usage error")

type invocation struct {
	cfg        config.Config
	root       string
	search     string
	searchMode bool
}

// parseArgs layers command-line flags over the config file over defaults.
func parseArgs(args []string, stderr io.Writer) (invocation, error) {
	fs := pflag.NewFlagSet("songbook", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: songbook [flags] <path>")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Scan a tree of UltraStar songs and reconcile the SQLite catalog with it.")
		fmt.Fprintln(stderr)
		fs.PrintDefaults()
	}

	defaults := config.DefaultConfig()
	var (
		configPath      = fs.StringP("config", "c", "", "YAML config file")
		dbPath          = fs.StringP("db", "d", "", "catalog location (default: <user config dir>/songbook/catalog.db)")
		stripComponents = fs.IntP("strip-components", "s", 0, "leading components removed from asset paths")
		extension       = fs.String("ext", defaults.Extension, "description-file extension")
		keepFailed      = fs.Bool("keep-failed", false, "keep catalog entries whose file exists but failed extraction")
		watch           = fs.BoolP("watch", "w", false, "keep running and reconcile on changes")
		debounce        = fs.Duration("debounce", defaults.Debounce, "watch debounce")
		search          = fs.String("search", "", "list catalog entries matching query and exit")
		logLevel        = fs.String("log-level", defaults.LogLevel, "debug|info|warn|error")
		noColor         = fs.Bool("no-color", false, "disable colored log output")
	)

	if err := fs.Parse(args); err != nil {
		return invocation{}, err
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		return invocation{}, err
	}

	if fs.Changed("db") {
		cfg.DBPath = config.ExpandHome(*dbPath)
	}
	if fs.Changed("strip-components") {
		cfg.StripComponents = *stripComponents
	}
	if fs.Changed("ext") {
		cfg.Extension = *extension
	}
	if fs.Changed("keep-failed") {
		cfg.KeepFailed = *keepFailed
	}
	if fs.Changed("watch") {
		cfg.Watch = *watch
	}
	if fs.Changed("debounce") {
		cfg.Debounce = *debounce
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}
	if fs.Changed("no-color") {
		cfg.NoColor = *noColor
	}

	if err := cfg.Validate(); err != nil {
		return invocation{}, err
	}

	inv := invocation{
		cfg:        cfg,
		search:     *search,
		searchMode: fs.Changed("search"),
	}

	if inv.searchMode {
		if fs.NArg() > 0 {
			return invocation{}, fmt.Errorf("%w: --search takes no path argument", errUsage)
		}
		return inv, nil
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return invocation{}, fmt.Errorf("%w: expected exactly one path, got %d", errUsage, fs.NArg())
	}
	inv.root = fs.Arg(0)

	return inv, nil
}
