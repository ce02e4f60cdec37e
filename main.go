package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"songbook/internal/config"
	"songbook/internal/db"
	"songbook/internal/library"
	"songbook/internal/logger"
	"songbook/internal/media"
	"songbook/internal/scanner"
	"songbook/internal/song"
	"songbook/internal/ultrastar"
)

const searchPageSize = 50

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	inv, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, "songbook:", err)
		return 1
	}

	level, err := logger.ParseLevel(inv.cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(stderr, "songbook:", err)
		return 1
	}
	log := logger.New(stderr, level, inv.cfg.NoColor)
	slog.SetDefault(log)

	if inv.cfg.DBPath == "" {
		paths, err := config.ResolvePaths(config.AppSlug)
		if err != nil {
			log.Error("resolve catalog location", "error", err)
			return 1
		}
		inv.cfg.DBPath = paths.DBPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if inv.searchMode {
		if err := search(ctx, inv.cfg.DBPath, inv.search, stdout); err != nil {
			log.Error("search catalog", "db", inv.cfg.DBPath, "query", inv.search, "error", err)
			return 1
		}
		return 0
	}

	database, err := db.Bootstrap(inv.cfg.DBPath)
	if err != nil {
		log.Error("open catalog", "db", inv.cfg.DBPath, "error", err)
		return 1
	}
	defer database.Close()

	extractor := song.NewExtractor(ultrastar.Parser{}, media.NewTaglibProber(), inv.cfg.StripComponents)
	walker := scanner.NewWalker(extractor, inv.cfg.Extension, log)
	service := scanner.NewService(database, walker, scanner.Options{
		KeepFailed: inv.cfg.KeepFailed,
		Logger:     log,
	})

	log.Debug("reconciling catalog", "root", inv.root, "db", inv.cfg.DBPath)
	result, err := service.Reconcile(ctx, inv.root)
	if err != nil {
		log.Error("reconcile catalog", "root", inv.root, "error", err)
		return 1
	}
	printResult(stdout, result)

	if !inv.cfg.Watch {
		return 0
	}

	if err := service.Watch(ctx, inv.root, inv.cfg.Debounce, func(result scanner.Result) {
		printResult(stdout, result)
		status := service.Status()
		log.Info("catalog updated",
			"at", status.LastRunAt.Local().Format(time.TimeOnly),
			"seen", result.Seen,
			"failed", result.Failed,
			"retained", result.Retained,
		)
	}); err != nil {
		log.Error("watch catalog", "root", inv.root, "error", err)
		return 1
	}

	return 0
}

func printResult(w io.Writer, result scanner.Result) {
	fmt.Fprintf(w, "%d songs considered for removal\n", result.Considered)
	fmt.Fprintf(w, "%d new songs, %d removed\n", result.Added, result.Removed)
	fmt.Fprintf(w, "Database now contains %d songs.\n", result.Total)
}

func search(ctx context.Context, dbPath string, query string, w io.Writer) error {
	database, err := db.OpenCatalog(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	repo := library.NewSongRepository(database)

	for offset := 0; ; offset += searchPageSize {
		page, err := repo.ListSongs(ctx, query, searchPageSize, offset)
		if err != nil {
			return err
		}

		for _, record := range page.Items {
			fmt.Fprintf(w, "%s - %s\t%s\n", record.Artist, record.Title, record.Path)
		}

		if offset+len(page.Items) >= page.Page.Total || len(page.Items) == 0 {
			return nil
		}
	}
}
