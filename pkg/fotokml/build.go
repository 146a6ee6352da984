package fotokml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/karrick/godirwalk"
	"github.com/otiai10/copy"
	"k8s.io/klog/v2"
)

// thumbDir holds generated previews; the walker never descends into it.
var thumbDir = "_"

// SkipReason tags why a photo produced no placemark.
type SkipReason string

const (
	SkipNoEXIF       SkipReason = "no-exif"
	SkipNoGPS        SkipReason = "no-gps"
	SkipNoTimestamp  SkipReason = "no-timestamp"
	SkipBadTimestamp SkipReason = "bad-timestamp"
	SkipUnreadable   SkipReason = "unreadable"
)

// Result is the outcome for one candidate photo: either a placemark or a
// skip reason, never both.
type Result struct {
	Path      string
	RelPath   string
	Placemark *Placemark
	Skip      SkipReason
	Place     string
	// ImgRel is the preview reference embedded in the description.
	ImgRel string
}

// Assembly is everything one walk produced.
type Assembly struct {
	Doc     *Document
	Results []Result
	Skipped map[SkipReason]int
}

// Builder runs the geotagging pipeline over a photo tree.
type Builder struct {
	c         *Config
	resolver  *Resolver
	captioner *Captioner

	// readMeta is swappable so pipeline tests can run without EXIF files.
	readMeta func(path string) (*Meta, error)
}

// NewBuilder wires a pipeline: one session cache, one resolver, one
// captioner, constructed per run and never shared across runs.
func NewBuilder(c *Config) *Builder {
	cfg := c.withDefaults()
	return &Builder{
		c:         cfg,
		resolver:  NewResolver(NewPlaceCache(), cfg),
		captioner: NewCaptioner(cfg.Classifier, cfg.Translator, cfg.Language),
		readMeta:  readMeta,
	}
}

// Collect walks the photo tree and assembles a placemark document,
// processing files strictly one at a time. Photos missing a GPS block or a
// parseable timestamp are skipped and counted; only an unwalkable tree is
// an error.
func (b *Builder) Collect(ctx context.Context) (*Assembly, error) {
	a := &Assembly{
		Doc:     NewDocument(),
		Skipped: map[SkipReason]int{},
	}

	err := godirwalk.Walk(b.c.InDir, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			base := filepath.Base(path)
			if base[0] == '.' && path != b.c.InDir {
				return godirwalk.SkipThis
			}
			if de.IsDir() {
				if base == thumbDir {
					return godirwalk.SkipThis
				}
				return nil
			}
			if !isPhoto(path) {
				return nil
			}

			klog.Infof("found %s", path)
			r := b.process(ctx, path)
			a.Results = append(a.Results, r)
			if r.Placemark != nil {
				a.Doc.Append(*r.Placemark)
			} else {
				a.Skipped[r.Skip]++
				klog.Infof("skipping %s: %s", path, r.Skip)
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", b.c.InDir, err)
	}

	klog.Infof("collected %d placemarks, skipped %d photos", len(a.Doc.Folder.Placemarks), len(a.Results)-len(a.Doc.Folder.Placemarks))
	for reason, n := range a.Skipped {
		klog.Infof("  skipped %d: %s", n, reason)
	}
	return a, nil
}

// process runs one photo through extract → convert → resolve → caption →
// assemble.
func (b *Builder) process(ctx context.Context, path string) Result {
	r := Result{Path: path}

	rel, err := filepath.Rel(b.c.InDir, path)
	if err != nil {
		r.Skip = SkipUnreadable
		return r
	}
	r.RelPath = rel

	m, err := b.readMeta(path)
	if err != nil {
		r.Skip = skipReason(err)
		return r
	}

	taken, err := time.Parse(exifDate, m.Taken)
	if err != nil {
		klog.Warningf("parse time %q: %v", m.Taken, err)
		r.Skip = SkipBadTimestamp
		return r
	}

	lat := m.Lat.decimal(m.LatRef)
	lon := m.Lon.decimal(m.LonRef)

	r.Place = b.resolver.Resolve(ctx, lat, lon)
	name, caption := b.captioner.Build(ctx, path, m.Taken, r.Place)

	r.ImgRel = rel
	if tr, err := thumbnail(path, b.c.InDir); err == nil {
		r.ImgRel = tr
	} else {
		klog.Warningf("thumbnail %s: %v", path, err)
	}

	pm := newPlacemark(name, caption, r.ImgRel, lat, lon, taken)
	r.Placemark = &pm
	return r
}

// Write serializes the document once into the root directory.
func (b *Builder) Write(a *Assembly) error {
	out, err := a.Doc.Marshal()
	if err != nil {
		return err
	}

	p := filepath.Join(b.c.InDir, OutputFile)
	klog.Infof("writing %d placemarks to %s", len(a.Doc.Folder.Placemarks), p)
	if err := os.WriteFile(p, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

// Export copies the document plus every referenced image into a
// self-contained bundle directory.
func (b *Builder) Export(a *Assembly) error {
	if b.c.ExportDir == "" {
		return nil
	}

	klog.Infof("exporting bundle to %s", b.c.ExportDir)
	if err := os.MkdirAll(b.c.ExportDir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	for _, r := range a.Results {
		if r.Placemark == nil {
			continue
		}
		for _, rel := range []string{r.RelPath, r.ImgRel} {
			if rel == "" {
				continue
			}
			src := filepath.Join(b.c.InDir, filepath.FromSlash(rel))
			dst := filepath.Join(b.c.ExportDir, filepath.FromSlash(rel))
			if err := copy.Copy(src, dst); err != nil {
				return fmt.Errorf("copy %s: %w", src, err)
			}
		}
	}

	src := filepath.Join(b.c.InDir, OutputFile)
	if err := copy.Copy(src, filepath.Join(b.c.ExportDir, OutputFile)); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return nil
}

// isPhoto matches JPEG extensions. Cameras write .JPG as often as .jpg, so
// matching is case-insensitive.
func isPhoto(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".jpg" || ext == ".jpeg"
}

// skipReason maps extractor sentinels to skip tags.
func skipReason(err error) SkipReason {
	switch {
	case errors.Is(err, ErrNoGPS):
		return SkipNoGPS
	case errors.Is(err, ErrNoTimestamp):
		return SkipNoTimestamp
	case errors.Is(err, ErrNoEXIF):
		return SkipNoEXIF
	default:
		return SkipUnreadable
	}
}
