// Package gemini wraps the Gemini API for text completion and image
// generation.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/EshelEyni/Chirper-sub001/internal/botgen/content"
	"github.com/EshelEyni/Chirper-sub001/pkg/logx"
)

const (
	DefaultTextModel  = "gemini-2.5-flash"
	DefaultImageModel = "imagen-4.0-generate-001"
)

var ErrNoAPIKey = errors.New("gemini: api key is required")

type Config struct {
	APIKey     string
	BaseURL    string
	TextModel  string
	ImageModel string
	// Temperature is passed through when set.
	Temperature *float64
	// RatePerSec <= 0 disables client-side limiting.
	RatePerSec float64
	Burst      int
	Timeout    time.Duration
}

// Image is one generated image.
type Image struct {
	Data     []byte
	MIMEType string
}

type Client struct {
	client *genai.Client
	cfg    Config
	lim    *rate.Limiter
	log    logx.Logger
}

func New(ctx context.Context, cfg Config, log logx.Logger) (*Client, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.TextModel == "" {
		cfg.TextModel = DefaultTextModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = DefaultImageModel
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	log = log.With(logx.String("comp", "gemini"))
	log.Debug("client initialized",
		logx.String("text_model", cfg.TextModel),
		logx.String("image_model", cfg.ImageModel),
		logx.Float64("rate_per_sec", cfg.RatePerSec),
	)
	return &Client{client: client, cfg: cfg, lim: newLimiter(cfg.RatePerSec, cfg.Burst), log: log}, nil
}

func newLimiter(perSec float64, burst int) *rate.Limiter {
	if perSec <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSec), burst)
}

func (c *Client) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := c.lim.Wait(ctx); err != nil {
		return nil, nil, err
	}
	if c.cfg.Timeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		return ctx, cancel, nil
	}
	return ctx, func() {}, nil
}

// Complete returns the model's text for prompt. Structured mode asks for a
// JSON response body.
func (c *Client) Complete(ctx context.Context, prompt string, mode content.Mode) (string, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	gc := &genai.GenerateContentConfig{}
	if c.cfg.Temperature != nil {
		gc.Temperature = genai.Ptr(float32(*c.cfg.Temperature))
	}
	if mode == content.ModeStructured {
		gc.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.TextModel, genai.Text(prompt), gc)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	c.log.Debug("completion done",
		logx.String("mode", mode.String()),
		logx.Int("chars", len(text)),
		logx.Duration("took", time.Since(start)),
	)
	return text, nil
}

// GenerateImages returns up to count images for prompt. A response without
// images yields a non-nil empty slice.
func (c *Client) GenerateImages(ctx context.Context, prompt string, count int) ([]Image, error) {
	if count <= 0 {
		count = 1
	}
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	resp, err := c.client.Models.GenerateImages(ctx, c.cfg.ImageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: int32(count),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: generate images: %w", err)
	}
	out := make([]Image, 0, len(resp.GeneratedImages))
	for _, gi := range resp.GeneratedImages {
		if gi == nil || gi.Image == nil || len(gi.Image.ImageBytes) == 0 {
			continue
		}
		out = append(out, Image{Data: gi.Image.ImageBytes, MIMEType: gi.Image.MIMEType})
	}
	c.log.Debug("images generated", logx.Int("requested", count), logx.Int("got", len(out)))
	return out, nil
}
