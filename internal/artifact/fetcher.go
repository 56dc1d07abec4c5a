// Package artifact fetches the image referenced by a ticket message from an
// object store: a plain HTTP base URL, an S3 bucket, or a local directory.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned when the referenced artifact does not exist.
	ErrNotFound = errors.New("artifact: not found")
	// ErrEmptyKey is returned for a message whose body names no artifact.
	ErrEmptyKey = errors.New("artifact: empty key")
	// ErrPartialDownload is returned when fewer bytes arrive than announced.
	ErrPartialDownload = errors.New("artifact: partial download")
)

// Fetcher retrieves an artifact by key. Implementations buffer the whole
// artifact before returning and do not retry.
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// Fetcher types.
const (
	TypeHTTP  = "http"
	TypeS3    = "s3"
	TypeLocal = "local"
)

// New creates a Fetcher based on the provided configuration.
func New(cfg Config, logger zerolog.Logger) (Fetcher, error) {
	switch cfg.Type {
	case TypeHTTP, "":
		return NewHTTPFetcher(cfg.BaseURL, NewHTTPClient(cfg.Timeout)), nil
	case TypeS3:
		return NewS3FetcherFromConfig(cfg)
	case TypeLocal:
		logger.Warn().
			Str("path", cfg.LocalPath).
			Msg("reading artifacts from local directory")
		return NewLocalFetcher(cfg.LocalPath), nil
	default:
		return nil, fmt.Errorf("unknown artifact type: %s", cfg.Type)
	}
}

// normalizeKey trims whitespace and leading slashes from a message body so
// it can be joined to a base location.
func normalizeKey(key string) (string, error) {
	k := strings.TrimLeft(strings.TrimSpace(key), "/")
	if k == "" {
		return "", ErrEmptyKey
	}
	return k, nil
}
