// Package ultrastar reads UltraStar TXT song descriptions.
package ultrastar

import "strings"

type NoteKind int

const (
	NoteRegular NoteKind = iota + 1
	NoteGolden
	NoteFreestyle
	NoteRap
	NoteGoldenRap
	NotePlayerChange
)

func (k NoteKind) String() string {
	switch k {
	case NoteRegular:
		return "regular"
	case NoteGolden:
		return "golden"
	case NoteFreestyle:
		return "freestyle"
	case NoteRap:
		return "rap"
	case NoteGoldenRap:
		return "golden-rap"
	case NotePlayerChange:
		return "player-change"
	default:
		return "unknown"
	}
}

// Note is one entry of a line's note stream. Player-change markers only set
// Player; every other kind carries timing, pitch and sung text.
type Note struct {
	Kind     NoteKind
	Start    int
	Duration int
	Pitch    int
	Text     string
	Player   int
}

// HasText reports whether the note contributes sung text to the lyrics.
func (n Note) HasText() bool {
	return n.Kind != NotePlayerChange
}

type Line struct {
	Start int
	Notes []Note
}

// Source is an asset reference from the header. Local references are
// resolved against the directory of the description file.
type Source struct {
	Location string
	Remote   bool
}

func parseSource(value string, dir string) Source {
	lower := strings.ToLower(value)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return Source{Location: value, Remote: true}
	}

	return Source{Location: resolveLocal(dir, value)}
}

type Header struct {
	Title      string
	Artist     string
	Language   *string
	Year       *int
	Genre      string
	Edition    string
	BPM        float64
	Gap        float64
	Audio      Source
	Cover      *Source
	Video      *Source
	Background *Source
	Extra      map[string]string
}

type Song struct {
	Header Header
	Lines  []Line
}
