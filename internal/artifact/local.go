package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalFetcher reads artifacts from a directory on the local filesystem.
// Intended for development without an object store.
type LocalFetcher struct {
	basePath string
}

// NewLocalFetcher creates a LocalFetcher rooted at basePath.
func NewLocalFetcher(basePath string) *LocalFetcher {
	return &LocalFetcher{basePath: basePath}
}

// Fetch reads {basePath}/{key}. Keys that resolve outside basePath are
// rejected.
func (f *LocalFetcher) Fetch(_ context.Context, key string) ([]byte, error) {
	k, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(f.basePath, filepath.FromSlash(k))
	rel, err := filepath.Rel(f.basePath, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, &FetchError{Key: k, Permanent: true, Err: errors.New("key escapes artifact directory")}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &FetchError{Key: k, Permanent: true, Err: ErrNotFound}
		}
		return nil, &FetchError{Key: k, Err: fmt.Errorf("read file: %w", err)}
	}
	return data, nil
}
