// Package song turns UltraStar description files into catalog records.
package song

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"songbook/internal/ultrastar"
)

var ErrRemoteAsset = errors.New("remote assets are not supported")

type ErrorKind int

const (
	KindPathResolution ErrorKind = iota + 1
	KindParse
	KindRemoteAsset
	KindMediaProbe
)

func (k ErrorKind) String() string {
	switch k {
	case KindPathResolution:
		return "path resolution"
	case KindParse:
		return "parse failure"
	case KindRemoteAsset:
		return "unsupported remote asset"
	case KindMediaProbe:
		return "media probe failure"
	default:
		return "unknown"
	}
}

// ExtractionError reports why a description file produced no record.
type ExtractionError struct {
	Kind  ErrorKind
	Path  string
	Field string
	Err   error
}

func (e *ExtractionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s): %v", e.Path, e.Kind, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Record is one catalog row, keyed by the canonical description path.
type Record struct {
	Path        string
	Title       string
	Artist      string
	Language    *string
	Year        *int
	Duration    float64
	Lyrics      string
	PlayerCount int
	CoverPath   []byte
	AudioPath   []byte
}

type Parser interface {
	Parse(path string) (*ultrastar.Song, error)
}

type Prober interface {
	ProbeDuration(path string) (float64, error)
}

type Extractor struct {
	parser          Parser
	prober          Prober
	stripComponents int
}

func NewExtractor(parser Parser, prober Prober, stripComponents int) *Extractor {
	return &Extractor{parser: parser, prober: prober, stripComponents: stripComponents}
}

// Canonicalize resolves path to an absolute, symlink-free form.
func Canonicalize(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	return filepath.EvalSymlinks(absPath)
}

func (e *Extractor) Extract(descriptionPath string) (Record, error) {
	canonical, err := Canonicalize(descriptionPath)
	if err != nil {
		return Record{}, &ExtractionError{Kind: KindPathResolution, Path: descriptionPath, Err: err}
	}

	parsed, err := e.parser.Parse(descriptionPath)
	if err != nil {
		return Record{}, &ExtractionError{Kind: KindParse, Path: canonical, Err: err}
	}
	header := parsed.Header

	if header.Audio.Remote {
		return Record{}, &ExtractionError{
			Kind:  KindRemoteAsset,
			Path:  canonical,
			Field: "audio",
			Err:   fmt.Errorf("%w: %s", ErrRemoteAsset, header.Audio.Location),
		}
	}

	duration, err := e.prober.ProbeDuration(header.Audio.Location)
	if err != nil {
		return Record{}, &ExtractionError{Kind: KindMediaProbe, Path: canonical, Field: "audio", Err: err}
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		return Record{}, &ExtractionError{
			Kind:  KindMediaProbe,
			Path:  canonical,
			Field: "audio",
			Err:   fmt.Errorf("invalid duration %v", duration),
		}
	}

	var coverPath []byte
	if header.Cover != nil {
		if header.Cover.Remote {
			return Record{}, &ExtractionError{
				Kind:  KindRemoteAsset,
				Path:  canonical,
				Field: "cover",
				Err:   fmt.Errorf("%w: %s", ErrRemoteAsset, header.Cover.Location),
			}
		}
		coverPath = Normalize(header.Cover.Location, e.stripComponents)
	}

	return Record{
		Path:        canonical,
		Title:       strings.TrimSpace(header.Title),
		Artist:      strings.TrimSpace(header.Artist),
		Language:    trimmedOrNil(header.Language),
		Year:        header.Year,
		Duration:    duration,
		Lyrics:      Lyrics(parsed.Lines),
		PlayerCount: PlayerCount(parsed.Lines),
		CoverPath:   coverPath,
		AudioPath:   Normalize(header.Audio.Location, e.stripComponents),
	}, nil
}

// PlayerCount is 2 when any line switches to player 2, otherwise 1.
func PlayerCount(lines []ultrastar.Line) int {
	for _, line := range lines {
		for _, note := range line.Notes {
			if note.Kind == ultrastar.NotePlayerChange && note.Player == 2 {
				return 2
			}
		}
	}

	return 1
}

// Lyrics joins the sung text of every line. Lines made only of control
// markers contribute nothing, not even an empty line.
func Lyrics(lines []ultrastar.Line) string {
	texts := make([]string, 0, len(lines))
	for _, line := range lines {
		var builder strings.Builder
		sung := false
		for _, note := range line.Notes {
			if !note.HasText() {
				continue
			}
			sung = true
			builder.WriteString(note.Text)
		}
		if !sung {
			continue
		}
		texts = append(texts, strings.TrimSpace(builder.String()))
	}

	return strings.Join(texts, "\n")
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}

	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}

	return &trimmed
}
