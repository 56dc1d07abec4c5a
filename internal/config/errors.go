package config

import "errors"

// ErrMissing is wrapped by an *Error for a required setting that is unset.
var ErrMissing = errors.New("required setting missing")

// Error describes an invalid or missing configuration setting. It is fatal
// before the worker starts.
type Error struct {
	// Field is the dotted config key, e.g. "queue.sqs_queue_url".
	Field  string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Reason == "" && e.Err != nil {
		return "config " + e.Field + ": " + e.Err.Error()
	}
	return "config " + e.Field + ": " + e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// Missing returns an *Error for a required setting that is unset.
func Missing(field, hint string) *Error {
	reason := "required setting missing"
	if hint != "" {
		reason += " (" + hint + ")"
	}
	return &Error{Field: field, Reason: reason, Err: ErrMissing}
}

// Invalid returns an *Error for a setting with an unusable value.
func Invalid(field, reason string) *Error {
	return &Error{Field: field, Reason: reason}
}

// IsConfigError reports whether err is, or wraps, an *Error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}
