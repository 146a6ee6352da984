package fotokml

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"k8s.io/klog/v2"
)

// Unknown is the place name substituted when geocoding cannot succeed.
const Unknown = "Unknown"

// nominatimURL is the default reverse-geocoding endpoint.
var nominatimURL = "https://nominatim.openstreetmap.org/reverse"

type placeKey struct {
	lat float64
	lon float64
}

// PlaceCache maps resolved coordinate pairs to display names for the
// lifetime of a run. Keys match on the exact float pair: every coordinate
// comes from one deterministic conversion of the same EXIF rationals, so
// identical inputs yield identical keys. Entries are never evicted.
type PlaceCache struct {
	mu      sync.Mutex
	entries map[placeKey]string
}

// NewPlaceCache creates an empty session cache.
func NewPlaceCache() *PlaceCache {
	return &PlaceCache{entries: map[placeKey]string{}}
}

func (c *PlaceCache) get(lat, lon float64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.entries[placeKey{lat: lat, lon: lon}]
	return name, ok
}

func (c *PlaceCache) put(lat, lon float64, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[placeKey{lat: lat, lon: lon}] = name
}

// Len reports how many coordinate pairs have been resolved.
func (c *PlaceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Resolver turns decimal coordinates into display names via the Nominatim
// reverse-geocoding API, consulting the session cache first. The usage
// policy of the service requires a pause before every request, so the
// resolver is meant to be driven from a single sequential flow.
type Resolver struct {
	cache      *PlaceCache
	httpClient *http.Client
	baseURL    string
	clock      clockwork.Clock
	delay      time.Duration
	backoff    time.Duration
	attempts   int
}

// NewResolver creates a resolver around an explicit session cache.
func NewResolver(cache *PlaceCache, c *Config) *Resolver {
	cfg := c.withDefaults()
	base := cfg.GeocodeURL
	if base == "" {
		base = nominatimURL
	}
	return &Resolver{
		cache:      cache,
		httpClient: cfg.HTTPClient,
		baseURL:    base,
		clock:      cfg.Clock,
		delay:      cfg.Delay,
		backoff:    cfg.Backoff,
		attempts:   cfg.Attempts,
	}
}

// Resolve returns the display name for a coordinate pair. It never fails:
// network trouble, a bad response body or an exhausted retry budget all
// resolve to the Unknown sentinel, and the result (sentinel included) is
// cached so a repeated coordinate never re-triggers network I/O.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) string {
	if name, ok := r.cache.get(lat, lon); ok {
		klog.V(1).Infof("cache hit for %f,%f: %s", lat, lon, name)
		return name
	}

	// Nominatim asks that requests be spaced out.
	r.clock.Sleep(r.delay)

	name, err := r.lookup(ctx, lat, lon)
	if err != nil {
		klog.Warningf("reverse geocode %f,%f: %v", lat, lon, err)
		name = Unknown
	}

	r.cache.put(lat, lon, name)
	return name
}

func (r *Resolver) lookup(ctx context.Context, lat, lon float64) (string, error) {
	params := url.Values{
		"lat":            {fmt.Sprintf("%f", lat)},
		"lon":            {fmt.Sprintf("%f", lon)},
		"format":         {"json"},
		"zoom":           {"18"},
		"addressdetails": {"1"},
	}
	fullURL := r.baseURL + "?" + params.Encode()

	// Retry covers connection failures and non-200 answers; a body that
	// arrives with status 200 but doesn't parse is not retried.
	var resp []byte
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		var err error
		resp, err = r.request(ctx, fullURL)
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		klog.V(1).Infof("geocode attempt %d/%d failed: %v", attempt, r.attempts, err)
		r.clock.Sleep(r.backoff)
	}
	if lastErr != nil {
		return "", fmt.Errorf("after %d attempts: %w", r.attempts, lastErr)
	}

	var body struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.Unmarshal(resp, &body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if body.DisplayName == "" {
		return "", fmt.Errorf("response missing display_name")
	}
	return body.DisplayName, nil
}

func (r *Resolver) request(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	// Nominatim's usage policy requires an identifying agent.
	req.Header.Set("User-Agent", "fotokml/1.0 (+https://github.com/fotokml/fotokml)")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
