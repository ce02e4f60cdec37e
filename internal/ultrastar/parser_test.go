package ultrastar

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const duetSong = `#TITLE:  Under Pressure
#ARTIST:Queen & David Bowie
#LANGUAGE:English
#YEAR:1981
#MP3:Queen - Under Pressure.mp3
#COVER:cover.jpg
#BPM:228,5
#GAP:1200
#P1:Freddie
P1
: 0 4 5 Pres
: 4 4 5 sure
- 10
* 12 2 7  push
F 14 2 0 ing
P 2
R 20 4 3 down
E
ignored after end
`

func TestParseReadsHeaderAndNotes(t *testing.T) {
	t.Parallel()

	song, err := Parse(strings.NewReader(duetSong), "/songs/queen")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if song.Header.Title != "Under Pressure" {
		t.Fatalf("unexpected title %q", song.Header.Title)
	}
	if song.Header.Artist != "Queen & David Bowie" {
		t.Fatalf("unexpected artist %q", song.Header.Artist)
	}
	if song.Header.Language == nil || *song.Header.Language != "English" {
		t.Fatalf("unexpected language %v", song.Header.Language)
	}
	if song.Header.Year == nil || *song.Header.Year != 1981 {
		t.Fatalf("unexpected year %v", song.Header.Year)
	}
	if song.Header.BPM != 228.5 {
		t.Fatalf("expected comma decimal BPM 228.5, got %f", song.Header.BPM)
	}
	if song.Header.Audio.Remote || song.Header.Audio.Location != "/songs/queen/Queen - Under Pressure.mp3" {
		t.Fatalf("unexpected audio source %+v", song.Header.Audio)
	}
	if song.Header.Cover == nil || song.Header.Cover.Location != "/songs/queen/cover.jpg" {
		t.Fatalf("unexpected cover source %+v", song.Header.Cover)
	}
	if song.Header.Extra["P1"] != "Freddie" {
		t.Fatalf("expected unknown header to be kept, got %v", song.Header.Extra)
	}

	if len(song.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(song.Lines))
	}

	first := song.Lines[0]
	if len(first.Notes) != 3 || first.Notes[0].Kind != NotePlayerChange || first.Notes[0].Player != 1 {
		t.Fatalf("unexpected first line notes %+v", first.Notes)
	}

	second := song.Lines[1]
	if second.Start != 10 {
		t.Fatalf("expected second line to start at beat 10, got %d", second.Start)
	}
	kinds := []NoteKind{NoteGolden, NoteFreestyle, NotePlayerChange, NoteRap}
	if len(second.Notes) != len(kinds) {
		t.Fatalf("expected %d notes, got %d", len(kinds), len(second.Notes))
	}
	for i, kind := range kinds {
		if second.Notes[i].Kind != kind {
			t.Fatalf("note %d: expected %s, got %s", i, kind, second.Notes[i].Kind)
		}
	}
	if second.Notes[0].Text != " push" {
		t.Fatalf("expected leading space to be preserved, got %q", second.Notes[0].Text)
	}
	if second.Notes[2].Player != 2 {
		t.Fatalf("expected player change to player 2, got %d", second.Notes[2].Player)
	}
}

func TestParseMarksRemoteSources(t *testing.T) {
	t.Parallel()

	input := "#TITLE:T\n#ARTIST:A\n#BPM:100\n#AUDIO:https://example.com/song.ogg\n#MP3:local.mp3\n#COVER:HTTP://example.com/c.jpg\n: 0 1 1 la\nE\n"
	song, err := Parse(strings.NewReader(input), "/songs")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if !song.Header.Audio.Remote {
		t.Fatalf("expected #AUDIO to take precedence and be remote, got %+v", song.Header.Audio)
	}
	if song.Header.Cover == nil || !song.Header.Cover.Remote {
		t.Fatalf("expected remote cover, got %+v", song.Header.Cover)
	}
}

func TestParseRequiresMandatoryHeaders(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"title":  "#ARTIST:A\n#MP3:a.mp3\n#BPM:100\n",
		"artist": "#TITLE:T\n#ARTIST:   \n#MP3:a.mp3\n#BPM:100\n",
		"audio":  "#TITLE:T\n#ARTIST:A\n#BPM:100\n",
		"bpm":    "#TITLE:T\n#ARTIST:A\n#MP3:a.mp3\n",
	}

	for name, input := range cases {
		_, err := Parse(strings.NewReader(input), "/songs")
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("%s: expected ParseError, got %v", name, err)
		}
	}
}

func TestParseRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	input := "#TITLE:T\n#ARTIST:A\n#MP3:a.mp3\n#BPM:100\n: 0 x 1 la\n"
	_, err := Parse(strings.NewReader(input), "/songs")

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if parseErr.Line != 5 {
		t.Fatalf("expected error on line 5, got %d", parseErr.Line)
	}
}

func TestParseRejectsInvalidYear(t *testing.T) {
	t.Parallel()

	input := "#TITLE:T\n#ARTIST:A\n#MP3:a.mp3\n#BPM:100\n#YEAR:soon\n"
	if _, err := Parse(strings.NewReader(input), "/songs"); err == nil {
		t.Fatal("expected invalid year to fail parsing")
	}
}

func TestParseFileDecodesWindows1252(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "song.txt")
	// 0xE9 is "é" in Windows-1252 and invalid as UTF-8.
	content := []byte("#TITLE:Caf\xe9\n#ARTIST:A\n#MP3:a.mp3\n#BPM:100\n: 0 1 1 la\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write song: %v", err)
	}

	song, err := ParseFile(path)
	if err != nil {
		t.Fatalf("parse file: %v", err)
	}
	if song.Header.Title != "Café" {
		t.Fatalf("expected decoded title, got %q", song.Header.Title)
	}
	if song.Header.Audio.Location != filepath.Join(dir, "a.mp3") {
		t.Fatalf("expected audio relative to song dir, got %q", song.Header.Audio.Location)
	}
}

func TestParseFileStripsByteOrderMark(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "song.txt")
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("#TITLE:T\n#ARTIST:A\n#MP3:a.mp3\n#BPM:100\n")...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write song: %v", err)
	}

	song, err := ParseFile(path)
	if err != nil {
		t.Fatalf("parse file: %v", err)
	}
	if song.Header.Title != "T" {
		t.Fatalf("unexpected title %q", song.Header.Title)
	}
}
