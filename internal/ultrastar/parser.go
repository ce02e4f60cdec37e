package ultrastar

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseError points at the offending line of a description file.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return e.Msg
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Parser adapts ParseFile to the extractor's parser capability.
type Parser struct{}

func (Parser) Parse(path string) (*Song, error) {
	return ParseFile(path)
}

func ParseFile(path string) (*Song, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	text, err := decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolve directory of %s: %w", path, err)
	}

	return Parse(strings.NewReader(text), dir)
}

// decodeText returns UTF-8 text. Older song packs are usually Windows-1252,
// which is what anything that is not valid UTF-8 is decoded as.
func decodeText(data []byte) (string, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		return string(bytes.TrimPrefix(data, utf8BOM)), nil
	}

	if utf8.Valid(data) {
		return string(data), nil
	}

	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), charmap.Windows1252.NewDecoder()))
	if err != nil {
		return "", err
	}

	return string(decoded), nil
}

// Parse reads a song description. dir is the directory local asset
// references are resolved against.
func Parse(r io.Reader, dir string) (*Song, error) {
	song := &Song{Header: Header{Extra: map[string]string{}}}
	seen := map[string]bool{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	inBody := false
	var current *Line

	for scanner.Scan() {
		lineNo++
		raw := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}

		if !inBody && strings.HasPrefix(raw, "#") {
			if err := applyHeader(&song.Header, seen, raw, dir); err != nil {
				return nil, &ParseError{Line: lineNo, Msg: err.Error()}
			}
			continue
		}
		inBody = true

		switch raw[0] {
		case 'E':
			if current != nil {
				song.Lines = append(song.Lines, *current)
			}
			return finish(song, seen)
		case '-':
			start, err := parseLineBreak(raw)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Msg: err.Error()}
			}
			if current != nil {
				song.Lines = append(song.Lines, *current)
			}
			current = &Line{Start: start}
		case 'P':
			player, err := parsePlayer(raw)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Msg: err.Error()}
			}
			if current == nil {
				current = &Line{}
			}
			current.Notes = append(current.Notes, Note{Kind: NotePlayerChange, Player: player})
		case ':', '*', 'F', 'R', 'G':
			note, err := parseNote(raw)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Msg: err.Error()}
			}
			if current == nil {
				current = &Line{Start: note.Start}
			}
			current.Notes = append(current.Notes, note)
		default:
			return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("unexpected line %q", raw)}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read song: %w", err)
	}

	if current != nil {
		song.Lines = append(song.Lines, *current)
	}

	return finish(song, seen)
}

func finish(song *Song, seen map[string]bool) (*Song, error) {
	switch {
	case strings.TrimSpace(song.Header.Title) == "":
		return nil, &ParseError{Msg: "missing #TITLE"}
	case strings.TrimSpace(song.Header.Artist) == "":
		return nil, &ParseError{Msg: "missing #ARTIST"}
	case !seen["MP3"] && !seen["AUDIO"]:
		return nil, &ParseError{Msg: "missing #MP3 or #AUDIO"}
	case !seen["BPM"]:
		return nil, &ParseError{Msg: "missing #BPM"}
	}

	return song, nil
}

func applyHeader(header *Header, seen map[string]bool, raw string, dir string) error {
	key, value, ok := strings.Cut(raw[1:], ":")
	if !ok {
		return fmt.Errorf("malformed header %q", raw)
	}
	key = strings.ToUpper(strings.TrimSpace(key))
	value = strings.TrimSpace(value)
	seen[key] = true

	switch key {
	case "TITLE":
		header.Title = value
	case "ARTIST":
		header.Artist = value
	case "LANGUAGE":
		header.Language = &value
	case "GENRE":
		header.Genre = value
	case "EDITION":
		header.Edition = value
	case "YEAR":
		year, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid #YEAR %q", value)
		}
		header.Year = &year
	case "BPM":
		bpm, err := parseDecimal(value)
		if err != nil {
			return fmt.Errorf("invalid #BPM %q", value)
		}
		header.BPM = bpm
	case "GAP":
		gap, err := parseDecimal(value)
		if err != nil {
			return fmt.Errorf("invalid #GAP %q", value)
		}
		header.Gap = gap
	case "MP3", "AUDIO":
		if value == "" {
			return fmt.Errorf("empty #%s", key)
		}
		// #AUDIO supersedes #MP3 in newer files.
		if key == "MP3" && seen["AUDIO"] {
			return nil
		}
		header.Audio = parseSource(value, dir)
	case "COVER":
		header.Cover = optionalSource(value, dir)
	case "VIDEO":
		header.Video = optionalSource(value, dir)
	case "BACKGROUND":
		header.Background = optionalSource(value, dir)
	default:
		header.Extra[key] = value
	}

	return nil
}

var noteKinds = map[byte]NoteKind{
	':': NoteRegular,
	'*': NoteGolden,
	'F': NoteFreestyle,
	'R': NoteRap,
	'G': NoteGoldenRap,
}

func parseNote(raw string) (Note, error) {
	if len(raw) < 2 || raw[1] != ' ' {
		return Note{}, fmt.Errorf("malformed note %q", raw)
	}

	fields := strings.SplitN(strings.TrimLeft(raw[2:], " "), " ", 4)
	if len(fields) < 3 {
		return Note{}, fmt.Errorf("malformed note %q", raw)
	}

	numbers := make([]int, 3)
	for i := range numbers {
		n, err := strconv.Atoi(fields[i])
		if err != nil {
			return Note{}, fmt.Errorf("invalid number %q in note", fields[i])
		}
		numbers[i] = n
	}

	text := ""
	if len(fields) == 4 {
		text = fields[3]
	}

	return Note{
		Kind:     noteKinds[raw[0]],
		Start:    numbers[0],
		Duration: numbers[1],
		Pitch:    numbers[2],
		Text:     text,
	}, nil
}

func parseLineBreak(raw string) (int, error) {
	fields := strings.Fields(raw[1:])
	if len(fields) == 0 {
		return 0, errors.New("line break without start beat")
	}

	start, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("invalid line break beat %q", fields[0])
	}

	return start, nil
}

func parsePlayer(raw string) (int, error) {
	value := strings.TrimSpace(raw[1:])
	player, err := strconv.Atoi(value)
	if err != nil || player < 1 {
		return 0, fmt.Errorf("invalid player marker %q", raw)
	}

	return player, nil
}

func parseDecimal(value string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(value, ",", "."), 64)
}

func optionalSource(value string, dir string) *Source {
	if value == "" {
		return nil
	}

	source := parseSource(value, dir)
	return &source
}

func resolveLocal(dir string, value string) string {
	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}

	return filepath.Join(dir, value)
}
