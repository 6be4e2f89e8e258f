package pipeline

import (
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/teslashibe/go-facefx/pkg/assets"
	"github.com/teslashibe/go-facefx/pkg/compositor"
)

// Settings are the user-selectable options read by the renderers every
// frame.
type Settings struct {
	// Filter is a filter name from the catalog, or "none".
	Filter string `yaml:"filter" json:"filter"`

	// Background is an image URI drawn under the camera, "" for none.
	Background string `yaml:"background" json:"background"`

	// AudioTrack is an audio URI mixed into recordings, "" for none.
	AudioTrack string `yaml:"audio_track" json:"audio_track"`
}

// DefaultSettings selects the glasses filter with no background or music.
func DefaultSettings() Settings {
	return Settings{Filter: "glasses"}
}

// Validate checks filter names against filters and URIs for a supported
// scheme.
func (s Settings) Validate(filters map[string]compositor.FilterSpec) error {
	if s.Filter != "" && s.Filter != compositor.FilterNone {
		if _, ok := filters[s.Filter]; !ok {
			return fmt.Errorf("%w: unknown filter %q", ErrInvalidSettings, s.Filter)
		}
	}
	for _, uri := range []string{s.Background, s.AudioTrack} {
		if uri != "" && !supportedURI(uri) {
			return fmt.Errorf("%w: unsupported uri %q", ErrInvalidSettings, uri)
		}
	}
	return nil
}

func supportedURI(uri string) bool {
	if !strings.Contains(uri, "://") {
		return true
	}
	for _, p := range []string{"http://", "https://", "file://"} {
		if strings.HasPrefix(uri, p) {
			return true
		}
	}
	return false
}

// Catalog lists the built-in choices offered to clients.
type Catalog struct {
	Filters     []string `json:"filters"`
	Backgrounds []string `json:"backgrounds"`
	AudioTracks []string `json:"audio_tracks"`
}

// NewCatalog builds the catalog from the filter table and built-in assets.
func NewCatalog(filters map[string]compositor.FilterSpec) Catalog {
	images, audio := assets.BuiltinNames()
	c := Catalog{
		Filters: append([]string{compositor.FilterNone}, compositor.FilterNames(filters)...),
	}
	for _, name := range images {
		if strings.HasPrefix(name, "bg") {
			c.Backgrounds = append(c.Backgrounds, assets.BuiltinScheme+name)
		}
	}
	for _, name := range audio {
		c.AudioTracks = append(c.AudioTracks, assets.BuiltinScheme+name)
	}
	slices.Sort(c.Backgrounds)
	slices.Sort(c.AudioTracks)
	return c
}

// settingsStore publishes settings to the render loop without locking.
type settingsStore struct {
	v atomic.Pointer[Settings]
}

func (s *settingsStore) Load() Settings {
	if p := s.v.Load(); p != nil {
		return *p
	}
	return Settings{}
}

func (s *settingsStore) Store(v Settings) { s.v.Store(&v) }
