package fotokml

import (
	"encoding/xml"
	"fmt"
	"path/filepath"
	"time"
)

// PopupWidth is the display width of the image embedded in a placemark
// description.
var PopupWidth = 400

// Document is the KML root. Placemarks appear in the order they were added.
type Document struct {
	XMLName xml.Name `xml:"kml"`
	XMLNS   string   `xml:"xmlns,attr"`
	Folder  Folder   `xml:"Folder"`
}

// Folder is the single container holding every placemark in the run.
type Folder struct {
	Placemarks []Placemark `xml:"Placemark"`
}

// Placemark is one named, located, time-stamped point. Immutable once built.
type Placemark struct {
	Name        string    `xml:"name"`
	Description string    `xml:"description"`
	Point       Point     `xml:"Point"`
	TimeStamp   TimeStamp `xml:"TimeStamp"`
}

// Point holds coordinates as "lon,lat" — longitude first, per the KML
// convention, even though the pipeline computes latitude first.
type Point struct {
	Coordinates string `xml:"coordinates"`
}

// TimeStamp holds the capture time in ISO-8601.
type TimeStamp struct {
	When string `xml:"when"`
}

// NewDocument creates an empty placemark document.
func NewDocument() *Document {
	return &Document{XMLNS: "http://www.opengis.net/kml/2.2"}
}

// Append adds a placemark to the document's folder.
func (d *Document) Append(p Placemark) {
	d.Folder.Placemarks = append(d.Folder.Placemarks, p)
}

// Marshal serializes the document with the standard XML header.
func (d *Document) Marshal() ([]byte, error) {
	out, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal kml: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

// newPlacemark assembles one placemark from a processed photo. imgRel is
// the image reference relative to the document's directory; the preview
// image renders at PopupWidth.
func newPlacemark(name, caption, imgRel string, lat, lon float64, taken time.Time) Placemark {
	desc := fmt.Sprintf(`<h1>%s</h1><p>%s</p><p><img src="%s" width="%d"></p>`,
		name, caption, filepath.ToSlash(imgRel), PopupWidth)

	return Placemark{
		Name:        name,
		Description: desc,
		Point:       Point{Coordinates: fmt.Sprintf("%f,%f", lon, lat)},
		TimeStamp:   TimeStamp{When: taken.Format(time.RFC3339)},
	}
}
