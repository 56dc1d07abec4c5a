package artifact

import (
	"errors"
	"fmt"
	"strings"
)

// FetchError describes a failed artifact download.
type FetchError struct {
	// Key is the artifact key that was requested.
	Key string
	// StatusCode is the HTTP status returned by the object store, or 0 for
	// transport failures.
	StatusCode int
	// Permanent indicates the fetch will not succeed if repeated.
	Permanent bool
	Err       error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Key, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsPermanent returns true if err is a fetch failure that repeating the
// request would not fix (missing object, access denied, bad key).
func IsPermanent(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrEmptyKey) {
		return true
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Permanent
	}
	return false
}

// classifyStatus builds a FetchError for a non-2xx response. 429 and 5xx are
// transient; other 4xx are permanent. 404 wraps ErrNotFound.
func classifyStatus(key string, statusCode int, body string) *FetchError {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	fe := &FetchError{Key: key, StatusCode: statusCode}
	msg := strings.TrimSpace(body)
	if len(msg) > 200 {
		msg = msg[:200]
	}

	switch {
	case statusCode == 404:
		fe.Permanent = true
		fe.Err = ErrNotFound
		return fe
	case statusCode == 429:
		fe.Permanent = false
	case statusCode >= 500:
		fe.Permanent = false
	default:
		fe.Permanent = statusCode >= 400 && statusCode < 500
	}

	if msg == "" {
		msg = "unexpected status"
	}
	fe.Err = errors.New(msg)
	return fe
}
