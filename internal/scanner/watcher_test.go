package scanner

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchReconcilesAfterChanges(t *testing.T) {
	t.Parallel()

	service, _ := newServiceForTest(t, Options{})
	root := t.TempDir()
	writeSong(t, root, "first")
	reconcileForTest(t, service, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan Result, 4)
	done := make(chan error, 1)
	go func() {
		done <- service.Watch(ctx, root, 50*time.Millisecond, func(result Result) {
			select {
			case results <- result:
			default:
			}
		})
	}()

	// The watcher registers asynchronously, so keep rewriting the new song
	// until a run reports it.
	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case result := <-results:
			if result.Total == 2 {
				cancel()
				if err := <-done; err != nil {
					t.Fatalf("watch: %v", err)
				}
				if status := service.Status(); status.LastRunAt.IsZero() || status.Last.Total != 2 {
					t.Fatalf("expected status to record the watch run, got %+v", status)
				}
				return
			}
		case <-tick.C:
			writeSong(t, root, "second")
		case <-deadline:
			t.Fatal("timed out waiting for watch mode to pick up the new song")
		}
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	t.Parallel()

	service, _ := newServiceForTest(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := service.Watch(ctx, t.TempDir(), 0, nil); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
}

func TestWatchFailsOnMissingRoot(t *testing.T) {
	t.Parallel()

	service, _ := newServiceForTest(t, Options{})
	if err := service.Watch(context.Background(), filepath.Join(t.TempDir(), "missing"), 0, nil); err == nil {
		t.Fatal("expected missing root to fail")
	}
}
