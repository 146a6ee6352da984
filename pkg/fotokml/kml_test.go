package fotokml

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlacemark(t *testing.T) {
	taken := time.Date(2018, time.July, 21, 14, 3, 22, 0, time.UTC)
	pm := newPlacemark("cathedral/plaza", "Photographed at 2018:07:21 14:03:22 near Madrid",
		"trip/_/IMG_1@x400.jpg", 40.446111, -3.7025, taken)

	assert.Equal(t, "cathedral/plaza", pm.Name)
	assert.Equal(t, "-3.702500,40.446111", pm.Point.Coordinates, "coordinates are longitude,latitude")
	assert.Equal(t, "2018-07-21T14:03:22Z", pm.TimeStamp.When)
	assert.Contains(t, pm.Description, "<h1>cathedral/plaza</h1>")
	assert.Contains(t, pm.Description, `<img src="trip/_/IMG_1@x400.jpg" width="400">`)
	assert.Contains(t, pm.Description, "near Madrid")
}

func TestDocumentMarshal(t *testing.T) {
	d := NewDocument()
	taken := time.Date(2020, time.January, 2, 3, 4, 5, 0, time.UTC)
	d.Append(newPlacemark("first", "caption one", "a.jpg", 1, 2, taken))
	d.Append(newPlacemark("second", "caption two", "b.jpg", -3, -4, taken))

	out, err := d.Marshal()
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, s, `<kml xmlns="http://www.opengis.net/kml/2.2">`)
	assert.Contains(t, s, "<name>first</name>")
	assert.Contains(t, s, "<name>second</name>")
	assert.Contains(t, s, "<coordinates>2.000000,1.000000</coordinates>")
	assert.Contains(t, s, "<coordinates>-4.000000,-3.000000</coordinates>")
	assert.Contains(t, s, "<when>2020-01-02T03:04:05Z</when>")

	// Placemarks keep insertion order.
	assert.Less(t, strings.Index(s, "first"), strings.Index(s, "second"))
}

func TestDocumentMarshalEmpty(t *testing.T) {
	out, err := NewDocument().Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(out), "<Folder>")
}
