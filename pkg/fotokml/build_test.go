package fotokml

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeJPEG writes a real JPEG with no EXIF block.
func writeJPEG(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	require.NoError(t, jpeg.Encode(f, img, nil))
}

func geocodeServer(t *testing.T, requests *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests != nil {
			requests.Add(1)
		}
		_, _ = w.Write([]byte(`{"display_name":"Retiro Park, Madrid, Spain"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testBuilder(t *testing.T, root string, srv *httptest.Server) *Builder {
	t.Helper()
	return NewBuilder(&Config{
		InDir:      root,
		GeocodeURL: srv.URL,
		HTTPClient: srv.Client(),
		Delay:      time.Nanosecond,
		Backoff:    time.Nanosecond,
		Attempts:   1,
	})
}

func TestCollectSkipsPhotosWithoutMetadata(t *testing.T) {
	root := t.TempDir()
	writeJPEG(t, filepath.Join(root, "trip", "IMG_1.jpg"))
	require.NoError(t, os.WriteFile(filepath.Join(root, "trip", "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "trip", "scan.png"), []byte("x"), 0o644))

	var requests atomic.Int64
	b := testBuilder(t, root, geocodeServer(t, &requests))

	a, err := b.Collect(context.Background())
	require.NoError(t, err)

	assert.Empty(t, a.Doc.Folder.Placemarks)
	assert.Len(t, a.Results, 1, "only JPEG files are candidates")
	assert.Equal(t, 1, a.Skipped[SkipNoEXIF])
	assert.Zero(t, requests.Load(), "skipped photos never reach the geocoder")
}

// metaFor fakes the extractor: files named invalid* have no GPS block.
func metaFor(path string) (*Meta, error) {
	base := filepath.Base(path)
	if len(base) >= 7 && base[:7] == "invalid" {
		return nil, fmt.Errorf("%w: GPSLatitude", ErrNoGPS)
	}
	return &Meta{
		Lat:    DMS{Deg: 40, Min: 26, Sec: 46},
		Lon:    DMS{Deg: 3, Min: 42, Sec: 9},
		LatRef: "N",
		LonRef: "W",
		Taken:  "2018:07:21 14:03:22",
	}, nil
}

func TestCollectDocumentCompleteness(t *testing.T) {
	root := t.TempDir()
	for i := range 3 {
		writeJPEG(t, filepath.Join(root, "valid", fmt.Sprintf("IMG_%d.jpg", i)))
	}
	for i := range 2 {
		writeJPEG(t, filepath.Join(root, "broken", fmt.Sprintf("invalid_%d.jpg", i)))
	}

	var requests atomic.Int64
	b := testBuilder(t, root, geocodeServer(t, &requests))
	b.readMeta = metaFor

	a, err := b.Collect(context.Background())
	require.NoError(t, err)

	assert.Len(t, a.Doc.Folder.Placemarks, 3, "one placemark per valid photo")
	assert.Equal(t, 2, a.Skipped[SkipNoGPS])
	assert.Equal(t, int64(1), requests.Load(), "identical coordinates resolve through the cache")

	pm := a.Doc.Folder.Placemarks[0]
	assert.Equal(t, "-3.702500,40.446111", pm.Point.Coordinates)
	assert.Equal(t, "2018-07-21T14:03:22Z", pm.TimeStamp.When)
	assert.Contains(t, pm.Description, "Retiro Park, Madrid, Spain")
	assert.Contains(t, pm.Description, `width="400"`)
}

func TestCollectBadTimestamp(t *testing.T) {
	root := t.TempDir()
	writeJPEG(t, filepath.Join(root, "IMG_1.jpg"))

	b := testBuilder(t, root, geocodeServer(t, nil))
	b.readMeta = func(string) (*Meta, error) {
		return &Meta{LatRef: "N", LonRef: "E", Taken: "yesterday-ish"}, nil
	}

	a, err := b.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, a.Doc.Folder.Placemarks)
	assert.Equal(t, 1, a.Skipped[SkipBadTimestamp])
}

func TestCollectContinuesPastSkips(t *testing.T) {
	root := t.TempDir()
	writeJPEG(t, filepath.Join(root, "a", "invalid_first.jpg"))
	writeJPEG(t, filepath.Join(root, "b", "IMG_after.jpg"))

	b := testBuilder(t, root, geocodeServer(t, nil))
	b.readMeta = metaFor

	a, err := b.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, a.Doc.Folder.Placemarks, 1, "a skipped photo must not halt the walk")
	assert.Equal(t, 1, a.Skipped[SkipNoGPS])
}

func TestCollectMissingRoot(t *testing.T) {
	b := testBuilder(t, filepath.Join(t.TempDir(), "nope"), geocodeServer(t, nil))
	_, err := b.Collect(context.Background())
	assert.Error(t, err)
}

func TestWriteDocument(t *testing.T) {
	root := t.TempDir()
	writeJPEG(t, filepath.Join(root, "IMG_1.jpg"))

	b := testBuilder(t, root, geocodeServer(t, nil))
	b.readMeta = metaFor

	a, err := b.Collect(context.Background())
	require.NoError(t, err)
	require.NoError(t, b.Write(a))

	out, err := os.ReadFile(filepath.Join(root, OutputFile))
	require.NoError(t, err)
	assert.Contains(t, string(out), "<Placemark>")
	assert.Contains(t, string(out), "Retiro Park, Madrid, Spain")
}

func TestExportBundle(t *testing.T) {
	root := t.TempDir()
	exportDir := filepath.Join(t.TempDir(), "bundle")
	writeJPEG(t, filepath.Join(root, "trip", "IMG_1.jpg"))

	srv := geocodeServer(t, nil)
	b := NewBuilder(&Config{
		InDir:      root,
		ExportDir:  exportDir,
		GeocodeURL: srv.URL,
		HTTPClient: srv.Client(),
		Delay:      time.Nanosecond,
		Backoff:    time.Nanosecond,
		Attempts:   1,
	})
	b.readMeta = metaFor

	a, err := b.Collect(context.Background())
	require.NoError(t, err)
	require.NoError(t, b.Write(a))
	require.NoError(t, b.Export(a))

	assert.FileExists(t, filepath.Join(exportDir, OutputFile))
	assert.FileExists(t, filepath.Join(exportDir, "trip", "IMG_1.jpg"))
}

func TestIsPhoto(t *testing.T) {
	assert.True(t, isPhoto("a.jpg"))
	assert.True(t, isPhoto("a.jpeg"))
	assert.True(t, isPhoto("A.JPG"))
	assert.True(t, isPhoto("A.JPEG"))
	assert.False(t, isPhoto("a.png"))
	assert.False(t, isPhoto("a.jpg.txt"))
	assert.False(t, isPhoto("photos.kml"))
}

func TestThumbnailGeneratesPreview(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "trip", "IMG_9.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	f, err := os.Create(src)
	require.NoError(t, err)
	img := image.NewRGBA(image.Rect(0, 0, 800, 600))
	require.NoError(t, jpeg.Encode(f, img, nil))
	require.NoError(t, f.Close())

	rel, err := thumbnail(src, root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("trip", "_", "IMG_9@x400.jpg"), rel)
	assert.FileExists(t, filepath.Join(root, rel))

	// Second call reuses the fresh preview.
	rel2, err := thumbnail(src, root)
	require.NoError(t, err)
	assert.Equal(t, rel, rel2)
}
