// Package media probes local audio assets.
package media

import (
	"errors"
	"fmt"
	"os"

	"go.senan.xyz/taglib"
)

var ErrNoAudioStream = errors.New("no audio stream")

// TaglibProber reads stream properties with taglib.
type TaglibProber struct{}

func NewTaglibProber() TaglibProber {
	return TaglibProber{}
}

// ProbeDuration returns the audio length of path in seconds.
func (TaglibProber) ProbeDuration(path string) (float64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat audio %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("audio %s is not a regular file", path)
	}

	properties, err := taglib.ReadProperties(path)
	if err != nil {
		return 0, fmt.Errorf("read audio properties %s: %w", path, err)
	}

	if properties.Length <= 0 && properties.Channels == 0 {
		return 0, fmt.Errorf("probe %s: %w", path, ErrNoAudioStream)
	}

	return properties.Length.Seconds(), nil
}
