// fotokml builds a KML placemark document from a tree of geotagged photos.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"k8s.io/klog/v2"

	"github.com/fsnotify/fsnotify"
	fotokml "github.com/fotokml/fotokml/pkg/fotokml"
)

var (
	inDir     = flag.String("in", "", "Full path to the geotagged image folder")
	language  = flag.String("language", "en", "Language code for captions")
	exportDir = flag.String("export", "", "Export a self-contained bundle to this directory")
	classify  = flag.Bool("classify", false, "Name placemarks from image content via Gemini (needs GOOGLE_AI_API_KEY)")
	delay     = flag.Duration("geocode-delay", 2*time.Second, "Pause before each uncached geocode request")
	listen    = flag.Bool("listen", false, "serve the photo tree and document via HTTP")
	addr      = flag.String("addr", "localhost:12800", "host:port to bind to in listen mode")
	watchFlag = flag.Bool("watch", false, "watch for changes to the photo tree and rebuild")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if *inDir == "" {
		klog.Exitf("--in is a required flag")
	}

	ctx := context.Background()

	c := &fotokml.Config{
		InDir:     *inDir,
		ExportDir: *exportDir,
		Language:  *language,
		Delay:     *delay,
	}

	if *classify || *language != "en" {
		key := os.Getenv("GOOGLE_AI_API_KEY")
		if key == "" {
			klog.Exitf("GOOGLE_AI_API_KEY must be set for --classify or a non-default --language")
		}
		classifier, translator, err := fotokml.NewGemini(ctx, key)
		if err != nil {
			klog.Exitf("gemini setup failed: %v", err)
		}
		if *classify {
			c.Classifier = classifier
		}
		c.Translator = translator
	}

	if err := run(ctx, c); err != nil {
		klog.Exitf("build failed: %v", err)
	}

	var wg sync.WaitGroup
	if *watchFlag {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watch(ctx, c); err != nil {
				klog.Exitf("watch failed: %v", err)
			}
		}()
	}

	if *listen {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serve(*inDir, *addr)
		}()
	}

	wg.Wait()
}

// run walks the tree once and writes the document.
func run(ctx context.Context, c *fotokml.Config) error {
	b := fotokml.NewBuilder(c)

	a, err := b.Collect(ctx)
	if err != nil {
		return err
	}

	if err := b.Write(a); err != nil {
		return err
	}

	return b.Export(a)
}

// serve serves the photo tree (document included) via HTTP
func serve(path string, addr string) {
	fs := http.FileServer(http.Dir(path))
	http.Handle("/", fs)

	klog.Infof("Listening on %s...", addr)
	err := http.ListenAndServe(addr, nil)
	if err != nil {
		klog.Exitf("listen failed: %v", err)
	}
}

// watch watches the photo tree for changes and rebuilds the document
func watch(ctx context.Context, c *fotokml.Config) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) == fotokml.OutputFile {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
					klog.Infof("event: %s", event)
					if err := run(ctx, c); err != nil {
						klog.Exitf("rebuild failed: %v", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				klog.Errorf("watch error: %v", err)
			}
		}
	}()

	dirs := []string{c.InDir}
	err = filepath.WalkDir(c.InDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && filepath.Base(path)[0] != '.' {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slices.Sort(dirs)
	dirs = slices.Compact(dirs)

	klog.Infof("watching %d dirs ...", len(dirs))
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			return err
		}
	}

	<-make(chan struct{})
	return nil
}
