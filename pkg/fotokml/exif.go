package fotokml

import (
	"errors"
	"fmt"
	"os"

	"github.com/rwcarlsen/goexif/exif"
	"k8s.io/klog/v2"
)

// exifDate is the timestamp layout cameras write into EXIF.
var exifDate = "2006:01:02 15:04:05"

// Skip sentinels: a file missing a required field is skipped, not fatal.
var (
	ErrNoEXIF      = errors.New("no EXIF metadata")
	ErrNoGPS       = errors.New("no GPS block")
	ErrNoTimestamp = errors.New("no capture timestamp")
)

// DMS is one coordinate axis in degrees, minutes and seconds, with the
// rational pairs from the GPS block already resolved to floats.
type DMS struct {
	Deg float64
	Min float64
	Sec float64
}

// Meta is the metadata read from one photo, restricted to the fields the
// pipeline recognizes. Read-only after readMeta returns.
type Meta struct {
	Lat    DMS
	Lon    DMS
	LatRef string
	LonRef string
	Taken  string
}

// readMeta extracts the GPS block and capture timestamp from a photo.
// Missing or malformed fields surface as skip sentinels so the walk can
// continue past the file.
func readMeta(path string) (*Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoEXIF, err)
	}

	m := &Meta{}

	m.Lat, m.LatRef, err = gpsAxis(x, exif.GPSLatitude, exif.GPSLatitudeRef)
	if err != nil {
		return nil, err
	}

	m.Lon, m.LonRef, err = gpsAxis(x, exif.GPSLongitude, exif.GPSLongitudeRef)
	if err != nil {
		return nil, err
	}

	m.Taken, err = takenString(x)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// gpsAxis reads one coordinate's rational triple plus its hemisphere letter.
func gpsAxis(x *exif.Exif, field, refField exif.FieldName) (DMS, string, error) {
	tag, err := x.Get(field)
	if err != nil {
		return DMS{}, "", fmt.Errorf("%w: %s: %v", ErrNoGPS, field, err)
	}

	vals := [3]float64{}
	for i := range vals {
		num, den, err := tag.Rat2(i)
		if err != nil {
			return DMS{}, "", fmt.Errorf("%w: %s[%d]: %v", ErrNoGPS, field, i, err)
		}
		if den == 0 {
			return DMS{}, "", fmt.Errorf("%w: %s[%d]: zero denominator", ErrNoGPS, field, i)
		}
		vals[i] = float64(num) / float64(den)
	}

	refTag, err := x.Get(refField)
	if err != nil {
		return DMS{}, "", fmt.Errorf("%w: %s: %v", ErrNoGPS, refField, err)
	}
	ref, err := refTag.StringVal()
	if err != nil {
		return DMS{}, "", fmt.Errorf("%w: %s: %v", ErrNoGPS, refField, err)
	}

	return DMS{Deg: vals[0], Min: vals[1], Sec: vals[2]}, ref, nil
}

// takenString prefers DateTimeDigitized, then DateTimeOriginal.
func takenString(x *exif.Exif) (string, error) {
	for _, field := range []exif.FieldName{exif.DateTimeDigitized, exif.DateTimeOriginal} {
		tag, err := x.Get(field)
		if err != nil {
			klog.V(2).Infof("no %s: %v", field, err)
			continue
		}
		s, err := tag.StringVal()
		if err == nil && s != "" {
			return s, nil
		}
	}
	return "", ErrNoTimestamp
}
