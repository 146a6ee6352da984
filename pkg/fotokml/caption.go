package fotokml

import (
	"context"
	"path/filepath"
	"strings"

	"k8s.io/klog/v2"
)

// Label is one ranked classifier result.
type Label struct {
	Name  string
	Score float64
}

// Classifier maps an image to ranked content labels.
type Classifier interface {
	Classify(ctx context.Context, path string) ([]Label, error)
}

// Translator maps text to a target language.
type Translator interface {
	Translate(ctx context.Context, text, lang string) (string, error)
}

// Connector words for the caption sentence, in the default language.
var (
	whenPhrase  = "Photographed at"
	wherePhrase = "near"
)

// Captioner composes placemark names and captions from capture time, place
// name and the classifier's content labels.
type Captioner struct {
	classifier Classifier
	translator Translator
	lang       string
}

// NewCaptioner wires a caption builder. Either collaborator may be nil: a
// missing classifier falls back to file names, a missing translator leaves
// text untranslated.
func NewCaptioner(classifier Classifier, translator Translator, lang string) *Captioner {
	if lang == "" {
		lang = defaultLanguage
	}
	return &Captioner{classifier: classifier, translator: translator, lang: lang}
}

// Build returns the placemark name and the caption sentence
// "<when> <captureTime> <where> <placeName>" for one photo. Classifier and
// translation failures never abort captioning.
func (b *Captioner) Build(ctx context.Context, path, captureTime, placeName string) (name, caption string) {
	name = b.label(ctx, path)
	when := b.translate(ctx, whenPhrase)
	where := b.translate(ctx, wherePhrase)
	return name, strings.Join([]string{when, captureTime, where, placeName}, " ")
}

// label names the photo from its top two content labels joined by "/",
// falling back to the base file name.
func (b *Captioner) label(ctx context.Context, path string) string {
	if b.classifier == nil {
		return filepath.Base(path)
	}

	labels, err := b.classifier.Classify(ctx, path)
	if err != nil {
		klog.Warningf("classify %s: %v", path, err)
	}
	if len(labels) == 0 {
		return filepath.Base(path)
	}

	names := []string{}
	for _, l := range labels[:min(2, len(labels))] {
		names = append(names, l.Name)
	}
	return b.translate(ctx, strings.Join(names, "/"))
}

// translate routes text through the translator for non-default languages,
// keeping the original text when translation is unavailable.
func (b *Captioner) translate(ctx context.Context, text string) string {
	if b.lang == defaultLanguage || b.translator == nil {
		return text
	}
	out, err := b.translator.Translate(ctx, text, b.lang)
	if err != nil || out == "" {
		klog.Warningf("translate %q to %s: %v", text, b.lang, err)
		return text
	}
	return out
}
