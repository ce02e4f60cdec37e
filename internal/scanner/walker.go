package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"songbook/internal/library"
	"songbook/internal/song"
)

const DefaultExtension = ".txt"

type Extractor interface {
	Extract(path string) (song.Record, error)
}

// Sink receives every successfully extracted record.
type Sink interface {
	Put(ctx context.Context, record song.Record) error
}

type WalkResult struct {
	// Observed holds canonical paths that were extracted and written.
	Observed map[string]struct{}
	// Failed holds paths that exist on disk but produced no written record.
	Failed map[string]struct{}
	Seen   int
	Errors int
}

func newWalkResult() WalkResult {
	return WalkResult{
		Observed: make(map[string]struct{}),
		Failed:   make(map[string]struct{}),
	}
}

type Walker struct {
	extractor Extractor
	extension string
	logger    *slog.Logger
}

func NewWalker(extractor Extractor, extension string, logger *slog.Logger) *Walker {
	if extension == "" {
		extension = DefaultExtension
	}
	if !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Walker{extractor: extractor, extension: extension, logger: logger}
}

// Walk extracts every description file below root and hands the records to
// sink. Per-file failures are logged and counted; failing to list a
// directory aborts the walk.
func (w *Walker) Walk(ctx context.Context, root string, sink Sink) (WalkResult, error) {
	result := newWalkResult()
	visited := make(map[string]struct{})

	if err := w.walkDir(ctx, root, sink, visited, &result); err != nil {
		return WalkResult{}, err
	}

	return result, nil
}

func (w *Walker) walkDir(
	ctx context.Context,
	dir string,
	sink Sink,
	visited map[string]struct{},
	result *WalkResult,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	canonical, err := song.Canonicalize(dir)
	if err != nil {
		return fmt.Errorf("resolve directory %s: %w", dir, err)
	}
	if _, ok := visited[canonical]; ok {
		w.logger.Debug("skipping directory already visited", "path", dir, "target", canonical)
		return nil
	}
	visited[canonical] = struct{}{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		mode := entry.Type()

		switch {
		case mode.IsDir():
			if err := w.walkDir(ctx, path, sink, visited, result); err != nil {
				return err
			}
		case mode&fs.ModeSymlink != 0:
			info, err := os.Stat(path)
			if err != nil {
				w.logger.Debug("ignoring dangling symlink", "path", path, "error", err)
				continue
			}
			if info.IsDir() {
				if err := w.walkDir(ctx, path, sink, visited, result); err != nil {
					return err
				}
			}
		case mode.IsRegular():
			if w.matches(entry.Name()) {
				w.processFile(ctx, path, sink, result)
			}
		}
	}

	return nil
}

// matches reports whether name carries the description extension. A name
// that is only the extension, like ".txt", is a hidden file without one.
func (w *Walker) matches(name string) bool {
	ext := filepath.Ext(name)
	return ext != name && strings.EqualFold(ext, w.extension)
}

func (w *Walker) processFile(ctx context.Context, path string, sink Sink, result *WalkResult) {
	result.Seen++

	record, err := w.extractor.Extract(path)
	if err != nil {
		result.Errors++
		result.Failed[failedKey(path, err)] = struct{}{}
		w.logger.Warn("skipping song", "path", path, "error", err)
		return
	}

	if err := sink.Put(ctx, record); err != nil {
		result.Errors++
		result.Failed[record.Path] = struct{}{}
		if errors.Is(err, library.ErrNotWritten) {
			w.logger.Warn("song not written to catalog", "path", record.Path, "error", err)
		} else {
			w.logger.Error("failed writing song", "path", record.Path, "error", err)
		}
		return
	}

	result.Observed[record.Path] = struct{}{}
}

// failedKey picks the catalog key a failed file would have had.
func failedKey(path string, err error) string {
	var extractionErr *song.ExtractionError
	if errors.As(err, &extractionErr) && extractionErr.Kind != song.KindPathResolution {
		return extractionErr.Path
	}

	if canonical, err := song.Canonicalize(path); err == nil {
		return canonical
	}
	if absPath, err := filepath.Abs(path); err == nil {
		return absPath
	}

	return path
}
