package artifact

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// HTTPFetcher downloads artifacts with a GET against {baseURL}/{key}.
type HTTPFetcher struct {
	baseURL string
	client  HTTPClient
}

// NewHTTPFetcher creates an HTTPFetcher for baseURL.
func NewHTTPFetcher(baseURL string, client HTTPClient) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// URL returns the address the artifact for key is fetched from. Each path
// segment of key is escaped, so "?" and "#" stay part of the object name.
func (f *HTTPFetcher) URL(key string) string {
	segs := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return f.baseURL + "/" + strings.Join(segs, "/")
}

// Fetch downloads the artifact for key. Non-2xx responses and transport
// failures are returned as *FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	k, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(ctx, &HTTPRequest{
		Method:  http.MethodGet,
		URL:     f.URL(k),
		Headers: map[string]string{"Accept": "image/*"},
	})
	if err != nil {
		return nil, &FetchError{Key: k, Err: err}
	}

	if fe := classifyStatus(k, resp.StatusCode, string(resp.Body)); fe != nil {
		return nil, fe
	}
	return resp.Body, nil
}
