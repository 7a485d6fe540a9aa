package imagehost

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/EshelEyni/Chirper-sub001/internal/providers/gemini"
)

// ImageSource produces raw images for a prompt.
type ImageSource interface {
	GenerateImages(ctx context.Context, prompt string, count int) ([]gemini.Image, error)
}

// Uploader stores one object and returns its URL. *Host implements it.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Generator turns generated image bytes into hosted URLs.
type Generator struct {
	src    ImageSource
	up     Uploader
	newKey func() string
}

func NewGenerator(src ImageSource, up Uploader) *Generator {
	return &Generator{src: src, up: up, newKey: func() string { return uuid.NewString() }}
}

// Generate returns one URL per generated image, in generation order. A nil
// result from the source stays nil. Images uploaded before a failed upload
// are left in the bucket.
func (g *Generator) Generate(ctx context.Context, prompt string, count int) ([]string, error) {
	imgs, err := g.src.GenerateImages(ctx, prompt, count)
	if err != nil || imgs == nil {
		return nil, err
	}
	urls := make([]string, 0, len(imgs))
	for _, img := range imgs {
		ct := img.MIMEType
		if ct == "" {
			ct = "image/png"
		}
		url, err := g.up.Upload(ctx, "bots/"+g.newKey()+extension(ct), img.Data, ct)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func extension(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
