// Package imagehost uploads generated images to an S3-compatible bucket
// and hands back their public URLs.
package imagehost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/EshelEyni/Chirper-sub001/pkg/logx"
)

const defaultRegion = "us-east-1"

type Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // S3-compatible endpoint (MinIO, R2, ...)
	AccessKey string // empty uses the default credential chain
	SecretKey string
	// PublicBaseURL overrides the URL objects are served from.
	PublicBaseURL string
	UsePathStyle  bool
	Timeout       time.Duration
}

// PutObjectAPI is the subset of *s3.Client the host needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Host struct {
	api PutObjectAPI
	cfg Config
	log logx.Logger
}

// New builds a host backed by a real S3 client.
func New(ctx context.Context, cfg Config, log logx.Logger) (*Host, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("imagehost: bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("imagehost: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewWithAPI(client, cfg, log), nil
}

// NewWithAPI builds a host over an existing client.
func NewWithAPI(api PutObjectAPI, cfg Config, log logx.Logger) *Host {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}
	log = log.With(logx.String("comp", "imagehost"))
	log.Debug("image host initialized",
		logx.String("bucket", cfg.Bucket),
		logx.String("prefix", cfg.Prefix),
		logx.String("region", cfg.Region),
		logx.String("endpoint", cfg.Endpoint),
	)
	return &Host{api: api, cfg: cfg, log: log}
}

func (h *Host) fullKey(key string) string {
	if h.cfg.Prefix == "" {
		return strings.TrimPrefix(key, "/")
	}
	return strings.TrimSuffix(h.cfg.Prefix, "/") + "/" + strings.TrimPrefix(key, "/")
}

// URL returns the public URL for an object key (prefix included).
func (h *Host) URL(fullKey string) string {
	switch {
	case h.cfg.PublicBaseURL != "":
		return strings.TrimSuffix(h.cfg.PublicBaseURL, "/") + "/" + fullKey
	case h.cfg.Endpoint != "" || h.cfg.UsePathStyle:
		base := h.cfg.Endpoint
		if base == "" {
			base = "https://s3." + h.cfg.Region + ".amazonaws.com"
		}
		return strings.TrimSuffix(base, "/") + "/" + h.cfg.Bucket + "/" + fullKey
	default:
		return "https://" + h.cfg.Bucket + ".s3." + h.cfg.Region + ".amazonaws.com/" + fullKey
	}
}

// Upload stores data under key and returns its public URL.
func (h *Host) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if h.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Timeout)
		defer cancel()
	}
	full := h.fullKey(key)
	_, err := h.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(h.cfg.Bucket),
		Key:           aws.String(full),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("imagehost: put %s: %w", full, err)
	}
	h.log.Debug("image uploaded", logx.String("key", full), logx.Int("bytes", len(data)))
	return h.URL(full), nil
}
