// Package youtube looks up the best matching video for a query.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/EshelEyni/Chirper-sub001/pkg/logx"
)

const watchURL = "https://www.youtube.com/watch?v="

var ErrNoAPIKey = errors.New("youtube: api key is required")

type Config struct {
	APIKey   string
	Endpoint string
	// RatePerSec <= 0 disables client-side limiting.
	RatePerSec float64
	Timeout    time.Duration
}

type Client struct {
	svc     *yt.Service
	lim     *rate.Limiter
	timeout time.Duration
	log     logx.Logger
}

func New(ctx context.Context, cfg Config, log logx.Logger) (*Client, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube: create service: %w", err)
	}

	lim := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return &Client{svc: svc, lim: lim, timeout: cfg.Timeout, log: log.With(logx.String("comp", "youtube"))}, nil
}

// Search returns the watch URL of the top video result for query, or ""
// when nothing matches.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	if err := c.lim.Wait(ctx); err != nil {
		return "", err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.svc.Search.List([]string{"id"}).
		Q(query).
		Type("video").
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("youtube: search: %w", err)
	}
	for _, item := range resp.Items {
		if item == nil || item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		c.log.Debug("video found", logx.String("query", query), logx.String("video_id", item.Id.VideoId))
		return watchURL + item.Id.VideoId, nil
	}
	c.log.Debug("no video found", logx.String("query", query))
	return "", nil
}
