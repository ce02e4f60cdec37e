package song

import "strings"

// Normalize drops the first stripCount components of path and returns the
// rest as raw bytes. The root separator of an absolute path counts as a
// component, so stripping one component from "/srv/songs/a.mp3" yields
// "srv/songs/a.mp3". Stripping more components than the path has yields an
// empty path.
func Normalize(path string, stripCount int) []byte {
	components := splitComponents(path)
	if stripCount < 0 {
		stripCount = 0
	}
	if stripCount >= len(components) {
		return []byte{}
	}

	rest := components[stripCount:]
	if rest[0] == "/" {
		return []byte("/" + strings.Join(rest[1:], "/"))
	}

	return []byte(strings.Join(rest, "/"))
}

func splitComponents(path string) []string {
	components := make([]string, 0, strings.Count(path, "/")+1)
	if strings.HasPrefix(path, "/") {
		components = append(components, "/")
	}

	for i, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		// A leading "." is kept for relative paths; inner ones are noise.
		if part == "." && (i > 0 || len(components) > 0) {
			continue
		}
		components = append(components, part)
	}

	return components
}
