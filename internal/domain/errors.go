package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrJobNotFound = fmt.Errorf("job %w", ErrNotFound)
	ErrNoSplat     = errors.New("world has no splat assets")
)

// ConfigurationError reports a missing server-side setting. It is fatal for the
// request and never retried.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return e.Setting + " not configured"
}

// ErrMissingAPIKey is returned by every remote-touching operation when no
// credential is available.
var ErrMissingAPIKey error = &ConfigurationError{Setting: "WORLDLABS_API_KEY"}

// ValidationError reports malformed local input caught before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// RemoteError is a non-success response from the generation API.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("World Labs API error (%d): %s", e.StatusCode, e.Message)
}

// UploadError is a failed transfer to a signed upload target.
type UploadError struct {
	StatusCode int
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("Upload failed: %d", e.StatusCode)
}

// RendererError reports that the viewer could not load or decode an asset.
type RendererError struct {
	URL string
	Err error
}

func (e *RendererError) Error() string {
	if e.Err == nil {
		return "failed to load splat"
	}
	return e.Err.Error()
}

func (e *RendererError) Unwrap() error { return e.Err }

// IsTransient reports whether err came from the transport rather than from an
// upstream answer or a local check. Transient errors are retried on the next
// poll; everything else is final for the job.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var remote *RemoteError
	var cfg *ConfigurationError
	var verr *ValidationError
	return !errors.As(err, &remote) && !errors.As(err, &cfg) && !errors.As(err, &verr)
}
