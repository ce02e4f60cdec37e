package scanner

import (
	"bytes"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"songbook/internal/db"
	"songbook/internal/song"
	"songbook/internal/ultrastar"
)

// fileProber reports a fixed duration for any existing file.
type fileProber struct {
	seconds float64
}

func (p fileProber) ProbeDuration(path string) (float64, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("probe %s: %w", path, err)
	}
	return p.seconds, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newExtractorForTest() *song.Extractor {
	return song.NewExtractor(ultrastar.Parser{}, fileProber{seconds: 120}, 0)
}

func newServiceForTest(t *testing.T, opts Options) (*Service, *sql.DB) {
	t.Helper()

	database, err := db.Bootstrap(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("bootstrap db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	walker := NewWalker(newExtractorForTest(), DefaultExtension, opts.Logger)

	return NewService(database, walker, opts), database
}

// writeSong creates dir/name.txt with a local audio file next to it.
func writeSong(t *testing.T, dir string, name string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}

	audio := name + ".mp3"
	if err := os.WriteFile(filepath.Join(dir, audio), []byte("audio"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	body := fmt.Sprintf("#TITLE:%s\n#ARTIST:Artist\n#MP3:%s\n#BPM:120\n: 0 2 4 %s\nE\n", name, audio, name)
	return writeFile(t, filepath.Join(dir, name+".txt"), body)
}

func writeFile(t *testing.T, path string, body string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func canonical(t *testing.T, path string) string {
	t.Helper()

	resolved, err := song.Canonicalize(path)
	if err != nil {
		t.Fatalf("canonicalize %s: %v", path, err)
	}
	return resolved
}

// dumpCatalog renders every row so two catalog states can be compared exactly.
func dumpCatalog(t *testing.T, database *sql.DB) []byte {
	t.Helper()

	rows, err := database.Query(`SELECT path, title, artist, language, year, duration, lyrics,
		player_count, cover_path, audio_path FROM song ORDER BY path`)
	if err != nil {
		t.Fatalf("dump catalog: %v", err)
	}
	defer rows.Close()

	var out bytes.Buffer
	for rows.Next() {
		values := make([]any, 10)
		pointers := make([]any, len(values))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			t.Fatalf("scan catalog row: %v", err)
		}
		fmt.Fprintf(&out, "%v\n", values)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate catalog: %v", err)
	}

	return out.Bytes()
}
