package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRenderTemplate_Scenario3 exercises repeated tokens within one format.
func TestRenderTemplate_Scenario3(t *testing.T) {
	got := RenderTemplate("Now: $artist — $title ($artist)", "DJ A", "Song")
	assert.Equal(t, "Now: DJ A — Song (DJ A)", got)
}

func TestRenderTemplateDoesNotCascadeAdjacentTokens(t *testing.T) {
	got := RenderTemplate("$artist$title", "$title", "Song")
	assert.Equal(t, "$titleSong", got)
}

func TestRenderTemplateLeavesUnknownTokensAlone(t *testing.T) {
	got := RenderTemplate("$album $artist", "DJ A", "Song")
	assert.Equal(t, "$album DJ A", got)
}

func TestChangedDetectsIDOrArtistDifference(t *testing.T) {
	prev := Track{ID: "1", Artist: "A", Title: "X"}

	assert.False(t, Changed(prev, Track{ID: "1", Artist: "A", Title: "Y"}), "title-only change is not a metadata change")
	assert.True(t, Changed(prev, Track{ID: "2", Artist: "A", Title: "X"}))
	assert.True(t, Changed(prev, Track{ID: "1", Artist: "B", Title: "X"}))
}

func TestFileTagOracleReturnsEmptyTrackWhenNoPath(t *testing.T) {
	o := NewFileTagOracle(func() string { return "" })
	track, err := o.Current()
	assert.NoError(t, err)
	assert.Equal(t, Track{}, track)
}

func TestFileTagOracleReturnsErrorOnMissingFile(t *testing.T) {
	o := NewFileTagOracle(func() string { return "/nonexistent/path/does-not-exist.mp3" })
	_, err := o.Current()
	assert.Error(t, err)
}
