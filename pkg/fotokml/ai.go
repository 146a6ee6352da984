package fotokml

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

// defaultModel is the Gemini model used for classification and translation.
var defaultModel = "gemini-2.5-flash"

// GeminiClassifier labels image content using Gemini.
type GeminiClassifier struct {
	client *genai.Client
	model  string
}

// GeminiTranslator translates caption text using Gemini.
type GeminiTranslator struct {
	client *genai.Client
	model  string
}

// NewGemini builds both collaborators from one API client.
func NewGemini(ctx context.Context, apiKey string) (*GeminiClassifier, *GeminiTranslator, error) {
	cfg := &genai.ClientConfig{
		APIKey: apiKey,
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("genai client: %w", err)
	}
	return &GeminiClassifier{client: client, model: defaultModel},
		&GeminiTranslator{client: client, model: defaultModel}, nil
}

// Classify returns ranked one-or-two word content labels for a photo,
// best match first.
func (g *GeminiClassifier) Classify(ctx context.Context, path string) ([]Label, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	prompt := "Describe the main subject of this photo with 1-5 comma-separated labels, " +
		"best match first. Each label is a short lowercase noun such as lakeside, " +
		"mountain, cathedral, beach, dog. Reply with only the labels."

	parts := []*genai.Part{
		genai.NewPartFromBytes(bs, "image/jpeg"),
		genai.NewPartFromText(prompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	var labels []Label
	fields := strings.Split(resp.Text(), ",")
	for rank, f := range fields {
		name := strings.TrimSpace(f)
		if name == "" {
			continue
		}
		// The model reports no confidence; rank order stands in.
		labels = append(labels, Label{Name: name, Score: 1 - float64(rank)/float64(len(fields))})
	}
	return labels, nil
}

// Translate renders text in the target language.
func (g *GeminiTranslator) Translate(ctx context.Context, text, lang string) (string, error) {
	prompt := fmt.Sprintf("Translate the following text to the language with code %q. "+
		"Reply with only the translation.\n\n%s", lang, text)

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}
