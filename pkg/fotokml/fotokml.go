// Package fotokml turns a directory tree of geotagged photos into a single
// KML placemark document suitable for Google Earth and other map viewers.
package fotokml

import (
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
)

// OutputFile is the document name written into the root directory.
var OutputFile = "photos.kml"

// Config holds configuration for a fotokml run.
type Config struct {
	// InDir is the root of the photo tree to walk.
	InDir string
	// ExportDir, when set, receives a self-contained bundle of the
	// document plus the images it references.
	ExportDir string
	// Language is a language code; "en" leaves captions untranslated.
	Language string

	// GeocodeURL overrides the reverse-geocoding endpoint.
	GeocodeURL string
	// Delay is the courtesy pause before each uncached geocode request.
	Delay time.Duration
	// Backoff is the wait between failed geocode attempts.
	Backoff time.Duration
	// Attempts is the geocode retry budget.
	Attempts int

	// Classifier names placemarks from image content; optional.
	Classifier Classifier
	// Translator localizes caption text; optional.
	Translator Translator

	// HTTPClient and Clock are injectable for testing; nil means real.
	HTTPClient *http.Client
	Clock      clockwork.Clock
}

const (
	defaultLanguage = "en"
	defaultDelay    = 2 * time.Second
	defaultBackoff  = 5 * time.Second
	defaultAttempts = 5
)

// withDefaults fills in the zero-valued knobs.
func (c *Config) withDefaults() *Config {
	out := *c
	if out.Language == "" {
		out.Language = defaultLanguage
	}
	if out.Delay == 0 {
		out.Delay = defaultDelay
	}
	if out.Backoff == 0 {
		out.Backoff = defaultBackoff
	}
	if out.Attempts == 0 {
		out.Attempts = defaultAttempts
	}
	if out.HTTPClient == nil {
		out.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if out.Clock == nil {
		out.Clock = clockwork.NewRealClock()
	}
	return &out
}
