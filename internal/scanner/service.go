package scanner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"songbook/internal/library"
)

var ErrScanInProgress = errors.New("scan already in progress")

// Result summarizes one reconciliation.
type Result struct {
	Added      int
	Removed    int
	Total      int
	Considered int
	Seen       int
	Failed     int
	Retained   int
}

type Status struct {
	Running   bool
	LastRunAt time.Time
	LastError string
	Last      Result
}

type Options struct {
	// KeepFailed keeps catalog entries whose description file still exists
	// but could not be extracted or written during this run.
	KeepFailed bool
	Logger     *slog.Logger
}

// Service owns every catalog mutation. One Reconcile call is one
// transaction: readers see the catalog either before or after it.
type Service struct {
	mu         sync.Mutex
	running    bool
	lastRun    time.Time
	lastError  string
	last       Result
	db         *sql.DB
	walker     *Walker
	keepFailed bool
	logger     *slog.Logger
}

func NewService(database *sql.DB, walker *Walker, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		db:         database,
		walker:     walker,
		keepFailed: opts.KeepFailed,
		logger:     logger,
	}
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		Running:   s.running,
		LastRunAt: s.lastRun,
		LastError: s.lastError,
		Last:      s.last,
	}
}

// Reconcile scans root and makes the catalog match what was found.
//
// A song whose file fails extraction contributes nothing to the run, so a
// previously cataloged entry for it is deleted like a song removed from
// disk, unless the service was built with KeepFailed.
func (s *Service) Reconcile(ctx context.Context, root string) (Result, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return Result{}, ErrScanInProgress
	}
	s.running = true
	s.mu.Unlock()

	result, err := s.reconcile(ctx, root)

	s.mu.Lock()
	s.running = false
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
		s.lastRun = time.Now().UTC()
		s.last = result
	}
	s.mu.Unlock()

	return result, err
}

func (s *Service) reconcile(ctx context.Context, root string) (Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("begin scan tx: %w", err)
	}

	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	existing, err := library.ExistingPaths(ctx, tx)
	if err != nil {
		return Result{}, err
	}

	writer, err := library.NewSongWriter(ctx, tx)
	if err != nil {
		return Result{}, err
	}
	defer writer.Close()

	s.logger.Debug("scanning", "root", root, "existing", len(existing))

	walked, err := s.walker.Walk(ctx, root, writer)
	if err != nil {
		return Result{}, fmt.Errorf("walk %s: %w", root, err)
	}

	result := Result{Seen: walked.Seen, Failed: walked.Errors}

	for path := range walked.Observed {
		if _, ok := existing[path]; !ok {
			result.Added++
		}
	}

	toRemove := make([]string, 0)
	for path := range existing {
		if _, ok := walked.Observed[path]; ok {
			continue
		}
		if s.keepFailed && s.stillOnDisk(path, walked.Failed) {
			result.Retained++
			continue
		}
		toRemove = append(toRemove, path)
	}
	result.Considered = len(toRemove)

	for _, path := range toRemove {
		deleted, err := writer.Delete(ctx, path)
		if err != nil {
			return Result{}, err
		}
		if !deleted {
			s.logger.Warn("song vanished before removal", "path", path)
			continue
		}
		s.logger.Debug("removed song", "path", path)
		result.Removed++
	}

	if err := writer.Close(); err != nil {
		return Result{}, fmt.Errorf("close song writer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("commit scan tx: %w", err)
	}
	tx = nil

	result.Total = len(existing) - result.Removed + result.Added

	return result, nil
}

func (s *Service) stillOnDisk(path string, failed map[string]struct{}) bool {
	if _, ok := failed[path]; !ok {
		return false
	}

	_, err := os.Stat(path)
	return err == nil
}
