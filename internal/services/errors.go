package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/repositories"
)

var (
	// ErrNotFound indicates the requested certificate does not exist.
	ErrNotFound = errors.New("services: not found")
	// ErrConflict indicates a uniqueness or sequence conflict.
	ErrConflict = errors.New("services: conflict")
	// ErrUnavailable indicates a backing dependency cannot serve the request.
	ErrUnavailable = errors.New("services: dependency unavailable")
	// ErrStorageDisabled is returned when an operation needs an artifact store that is not configured.
	ErrStorageDisabled = errors.New("services: artifact storage disabled")
)

// ValidationError reports unusable input. Message is safe to show to callers.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// RateLimitError reports an exhausted request window.
type RateLimitError struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded; resets at %s", e.ResetAt.UTC().Format(time.RFC3339))
}

// UpstreamError reports a failing external service such as the QR renderer or Chrome.
type UpstreamError struct {
	Service string
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// TemplateLoadError reports that no template source produced a usable document.
type TemplateLoadError struct {
	Err error
}

func (e *TemplateLoadError) Error() string {
	if e.Err != nil {
		return "template load failed: " + e.Err.Error()
	}
	return "template load failed"
}

func (e *TemplateLoadError) Unwrap() error { return e.Err }

// StorageError reports a failed artifact persistence step.
type StorageError struct {
	Op     string
	Object string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Object, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// RenderError reports that the template could not be populated.
type RenderError struct {
	Message string
	Err     error
}

func (e *RenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *RenderError) Unwrap() error { return e.Err }

// translateRepositoryError maps repository failures onto the service sentinels.
func translateRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return err
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
