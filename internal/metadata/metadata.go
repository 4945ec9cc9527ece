// Package metadata supplies the "currently playing" oracle used by each
// ShoutConnection worker to stamp outgoing stream metadata, and the
// template substitution used when rendering a custom $artist/$title
// format string.
package metadata

import (
	"os"

	"github.com/dhowden/tag"
)

// Track is the external now-playing oracle's result shape: the
// currently-playing track's artist, title, album, and a stable id.
type Track struct {
	ID     string
	Artist string
	Title  string
	Album  string
}

// Oracle reports the currently playing track. Each ShoutConnection worker
// calls Current from its own goroutine, and the BroadcastCoordinator hands
// the same Oracle to every worker, so an Oracle serving several profiles
// is called concurrently.
type Oracle interface {
	Current() (Track, error)
}

// FileTagOracle reads ID3/Vorbis-comment/MP4 tags from a single file path
// that the caller keeps current (e.g. the deck currently live on air).
// Built around tag.ReadFrom + m.Title()/m.Artist()/m.Album(), polling the
// currently playing file's tags on demand rather than caching them.
type FileTagOracle struct {
	// PathFunc returns the path of the file currently live on air. It is
	// called on every Current(); the audio-engine integration (out of
	// scope for this package) is expected to keep it pointing at the
	// right file.
	PathFunc func() string
}

func NewFileTagOracle(pathFunc func() string) *FileTagOracle {
	return &FileTagOracle{PathFunc: pathFunc}
}

func (o *FileTagOracle) Current() (Track, error) {
	path := o.PathFunc()
	if path == "" {
		return Track{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Track{}, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return Track{ID: path}, nil
	}

	return Track{
		ID:     path,
		Artist: m.Artist(),
		Title:  m.Title(),
		Album:  m.Album(),
	}, nil
}

// Changed reports whether prev and next represent a metadata change worth
// re-announcing: the track id changed, or the artist changed. Deliberately
// compares two genuinely distinct fields rather than comparing a field
// against itself.
func Changed(prev, next Track) bool {
	return prev.ID != next.ID || prev.Artist != next.Artist
}
