package fotokml

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"k8s.io/klog/v2"
)

var thumbQuality = 85

// thumbnail renders the popup preview for a photo into a "_" directory next
// to it and returns the preview's path relative to root. Existing previews
// are reused unless the source is newer. bild decodes every source into
// RGBA, so unusual color modes are converted rather than rejected.
func thumbnail(path, root string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("rel: %w", err)
	}

	base := filepath.Base(rel)
	noExt := strings.TrimSuffix(base, filepath.Ext(base))
	thumbRel := filepath.Join(filepath.Dir(rel), "_", fmt.Sprintf("%s@x%d.jpg", noExt, PopupWidth))
	thumbPath := filepath.Join(root, thumbRel)

	sst, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat: %w", err)
	}

	st, err := os.Stat(thumbPath)
	if err == nil && st.Size() > int64(128) && !sst.ModTime().After(st.ModTime()) {
		klog.V(1).Infof("%s exists (%d bytes)", thumbPath, st.Size())
		return thumbRel, nil
	}

	if err := os.MkdirAll(filepath.Dir(thumbPath), 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}

	img, err := imgio.Open(path)
	if err != nil {
		return "", fmt.Errorf("imgio.Open: %w", err)
	}

	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		return "", fmt.Errorf("empty image: %s", path)
	}

	x := PopupWidth
	scale := float64(img.Bounds().Dx()) / float64(x)
	y := int(float64(img.Bounds().Dy()) / scale)

	klog.V(1).Infof("creating %dx%d thumb: %s", x, y, thumbPath)
	rimg := transform.Resize(img, x, y, transform.Lanczos)
	if err := imgio.Save(thumbPath, rimg, imgio.JPEGEncoder(thumbQuality)); err != nil {
		return "", fmt.Errorf("save: %w", err)
	}

	return thumbRel, nil
}
