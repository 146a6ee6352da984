// placetag writes resolved place names into each photo's Keywords tag so
// other tools can search by location.
package main

import (
	"context"
	"flag"
	"slices"
	"time"

	_ "image/jpeg"

	"k8s.io/klog/v2"

	"github.com/barasher/go-exiftool"
	fotokml "github.com/fotokml/fotokml/pkg/fotokml"
)

var (
	inDir  = flag.String("in", "", "Full path to the geotagged image folder")
	dryRun = flag.Bool("n", false, "dry-run mode, don't tag things")
	delay  = flag.Duration("geocode-delay", 2*time.Second, "Pause before each uncached geocode request")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if *inDir == "" {
		klog.Exitf("--in is a required flag")
	}

	ctx := context.Background()
	c := &fotokml.Config{
		InDir: *inDir,
		Delay: *delay,
	}

	b := fotokml.NewBuilder(c)
	a, err := b.Collect(ctx)
	if err != nil {
		klog.Exitf("collect failed: %v", err)
	}

	e, err := exiftool.NewExiftool()
	if err != nil {
		klog.Exitf("exiftool: %v", err)
	}
	defer func() {
		if err := e.Close(); err != nil {
			klog.Errorf("Failed to close exiftool: %v", err)
		}
	}()

	tagged := 0
	for _, r := range a.Results {
		if r.Placemark == nil || r.Place == fotokml.Unknown {
			continue
		}

		o := e.ExtractMetadata(r.Path)
		if o[0].Err != nil {
			klog.Errorf("extract %s: %v", r.Path, o[0].Err)
			continue
		}

		keywords, err := o[0].GetStrings("Keywords")
		if err != nil {
			klog.V(1).Infof("no keywords for %s: %v", r.Path, err)
		}
		if slices.Contains(keywords, r.Place) {
			klog.Infof("%s already tagged: %s", r.Path, r.Place)
			continue
		}
		keywords = append(keywords, r.Place)

		klog.Infof("tagging %s: %q", r.Path, r.Place)
		o[0].SetStrings("Keywords", keywords)
		if !*dryRun {
			e.WriteMetadata(o)
			if o[0].Err != nil {
				klog.Errorf("Failed to write metadata for %s: %v", r.Path, o[0].Err)
				continue
			}
		}
		tagged++
	}

	klog.Infof("placetag completed. Tagged %d of %d photos", tagged, len(a.Results))
}
