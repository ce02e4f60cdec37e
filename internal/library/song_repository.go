package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"songbook/internal/song"
)

var ErrSongNotFound = errors.New("song not found")

// ErrNotWritten is returned when a statement succeeded but touched no row.
var ErrNotWritten = errors.New("no row written")

const songColumns = "path, title, artist, language, year, duration, lyrics, player_count, cover_path, audio_path"

const upsertSongSQL = `INSERT INTO song (` + songColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		title = excluded.title,
		artist = excluded.artist,
		language = excluded.language,
		year = excluded.year,
		duration = excluded.duration,
		lyrics = excluded.lyrics,
		player_count = excluded.player_count,
		cover_path = excluded.cover_path,
		audio_path = excluded.audio_path`

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ExistingPaths loads every catalog key.
func ExistingPaths(ctx context.Context, q Querier) (map[string]struct{}, error) {
	rows, err := q.QueryContext(ctx, "SELECT path FROM song")
	if err != nil {
		return nil, fmt.Errorf("list song paths: %w", err)
	}
	defer rows.Close()

	paths := make(map[string]struct{})
	for rows.Next() {
		var path []byte
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan song path: %w", err)
		}
		paths[string(path)] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate song paths: %w", err)
	}

	return paths, nil
}

// SongWriter upserts and deletes catalog rows inside one transaction.
type SongWriter struct {
	upsert *sql.Stmt
	delete *sql.Stmt
}

func NewSongWriter(ctx context.Context, tx *sql.Tx) (*SongWriter, error) {
	upsert, err := tx.PrepareContext(ctx, upsertSongSQL)
	if err != nil {
		return nil, fmt.Errorf("prepare song upsert: %w", err)
	}

	remove, err := tx.PrepareContext(ctx, "DELETE FROM song WHERE path = ?")
	if err != nil {
		upsert.Close()
		return nil, fmt.Errorf("prepare song delete: %w", err)
	}

	return &SongWriter{upsert: upsert, delete: remove}, nil
}

// Put inserts record or overwrites every column of the existing row.
func (w *SongWriter) Put(ctx context.Context, record song.Record) error {
	result, err := w.upsert.ExecContext(
		ctx,
		[]byte(record.Path),
		record.Title,
		record.Artist,
		nullableString(record.Language),
		nullableInt(record.Year),
		record.Duration,
		record.Lyrics,
		record.PlayerCount,
		nullableBytes(record.CoverPath),
		nullableBytes(record.AudioPath),
	)
	if err != nil {
		return fmt.Errorf("upsert song %s: %w", record.Path, err)
	}

	return expectOneRow(result, record.Path)
}

// Delete removes path and reports whether a row was actually deleted.
func (w *SongWriter) Delete(ctx context.Context, path string) (bool, error) {
	result, err := w.delete.ExecContext(ctx, []byte(path))
	if err != nil {
		return false, fmt.Errorf("delete song %s: %w", path, err)
	}

	if err := expectOneRow(result, path); err != nil {
		if errors.Is(err, ErrNotWritten) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (w *SongWriter) Close() error {
	return errors.Join(w.upsert.Close(), w.delete.Close())
}

func expectOneRow(result sql.Result, path string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read affected rows for %s: %w", path, err)
	}
	if affected != 1 {
		return fmt.Errorf("%s: %d rows affected: %w", path, affected, ErrNotWritten)
	}

	return nil
}

type PageInfo struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

type SongsPage struct {
	Items []song.Record `json:"items"`
	Page  PageInfo      `json:"page"`
}

// SongRepository serves read access to the catalog outside a scan.
type SongRepository struct {
	db *sql.DB
}

func NewSongRepository(database *sql.DB) *SongRepository {
	return &SongRepository{db: database}
}

func (r *SongRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM song").Scan(&count); err != nil {
		return 0, fmt.Errorf("count songs: %w", err)
	}

	return count, nil
}

func (r *SongRepository) GetSong(ctx context.Context, path string) (song.Record, error) {
	record, err := scanSong(r.db.QueryRowContext(
		ctx,
		"SELECT "+songColumns+" FROM song WHERE path = ?",
		[]byte(path),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return song.Record{}, ErrSongNotFound
		}
		return song.Record{}, fmt.Errorf("get song %s: %w", path, err)
	}

	return record, nil
}

// ListSongs pages through songs whose title or artist contains query,
// ordered by artist and title.
func (r *SongRepository) ListSongs(ctx context.Context, query string, limit int, offset int) (SongsPage, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	filter := `WHERE title LIKE ? ESCAPE '\' OR artist LIKE ? ESCAPE '\'`

	var total int
	if err := r.db.QueryRowContext(
		ctx,
		"SELECT COUNT(1) FROM song "+filter,
		pattern,
		pattern,
	).Scan(&total); err != nil {
		return SongsPage{}, fmt.Errorf("count matching songs: %w", err)
	}

	rows, err := r.db.QueryContext(
		ctx,
		"SELECT "+songColumns+" FROM song "+filter+
			" ORDER BY artist COLLATE NOCASE, title COLLATE NOCASE, path LIMIT ? OFFSET ?",
		pattern,
		pattern,
		limit,
		offset,
	)
	if err != nil {
		return SongsPage{}, fmt.Errorf("list songs: %w", err)
	}
	defer rows.Close()

	items := make([]song.Record, 0)
	for rows.Next() {
		record, err := scanSong(rows)
		if err != nil {
			return SongsPage{}, fmt.Errorf("scan song row: %w", err)
		}
		items = append(items, record)
	}

	if err := rows.Err(); err != nil {
		return SongsPage{}, fmt.Errorf("iterate song rows: %w", err)
	}

	return SongsPage{
		Items: items,
		Page:  PageInfo{Limit: limit, Offset: offset, Total: total},
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSong(row rowScanner) (song.Record, error) {
	var (
		record      song.Record
		path        []byte
		language    sql.NullString
		year        sql.NullInt64
		lyrics      sql.NullString
		playerCount sql.NullInt64
	)

	if err := row.Scan(
		&path,
		&record.Title,
		&record.Artist,
		&language,
		&year,
		&record.Duration,
		&lyrics,
		&playerCount,
		&record.CoverPath,
		&record.AudioPath,
	); err != nil {
		return song.Record{}, err
	}

	record.Path = string(path)
	if language.Valid {
		record.Language = &language.String
	}
	if year.Valid {
		value := int(year.Int64)
		record.Year = &value
	}
	record.Lyrics = lyrics.String
	record.PlayerCount = int(playerCount.Int64)

	return record, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}

	return *value
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}

	return *value
}

func nullableBytes(value []byte) any {
	if value == nil {
		return nil
	}

	return value
}
