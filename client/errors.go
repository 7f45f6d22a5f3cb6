package client

import (
	"errors"
	"fmt"

	"github.com/famomatic/ytfetch/internal/selector"
	"github.com/famomatic/ytfetch/internal/types"
)

var (
	// ErrInvalidReference indicates input that does not name a video.
	ErrInvalidReference = errors.New("invalid video reference")
	// ErrInvalidArgument indicates a caller contract violation.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnavailable indicates video is unavailable.
	ErrUnavailable = types.ErrVideoUnavailable
	// ErrLoginRequired indicates authenticated session is required.
	ErrLoginRequired = types.ErrLoginRequired
	// ErrFormatNotFound indicates the requested itag is not offered.
	ErrFormatNotFound = types.ErrFormatNotFound
	// ErrNoPlayableFormats indicates no usable formats were found.
	ErrNoPlayableFormats = errors.New("no playable formats")
)

// ErrInvalidInput is kept for callers of ExtractVideoID.
var ErrInvalidInput = ErrInvalidReference

// InvalidInputDetailError describes why an input could not be resolved.
type InvalidInputDetailError struct {
	Input  string
	Reason string
}

func (e *InvalidInputDetailError) Error() string {
	return fmt.Sprintf("%s: reason=%s input=%q", ErrInvalidReference, e.Reason, e.Input)
}

func (e *InvalidInputDetailError) Unwrap() error {
	return ErrInvalidReference
}

// ProviderError wraps a failed provider call with the video it was made for.
type ProviderError struct {
	Op      string
	VideoID VideoID
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s video=%s: %v", e.Op, e.VideoID, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ErrorCategory is a stable, machine-readable error class.
type ErrorCategory string

const (
	ErrorCategoryInvalidInput      ErrorCategory = "invalid_input"
	ErrorCategoryInvalidArgument   ErrorCategory = "invalid_argument"
	ErrorCategoryUnavailable       ErrorCategory = "unavailable"
	ErrorCategoryLoginRequired     ErrorCategory = "login_required"
	ErrorCategoryFormatNotFound    ErrorCategory = "format_not_found"
	ErrorCategoryNoPlayableFormats ErrorCategory = "no_playable_formats"
	ErrorCategoryProvider          ErrorCategory = "provider_failure"
	ErrorCategoryUnknown           ErrorCategory = "unknown"
)

// ClassifyError maps an error returned by this package to its category.
func ClassifyError(err error) ErrorCategory {
	var providerErr *ProviderError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidReference):
		return ErrorCategoryInvalidInput
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, selector.ErrEmptyExpression),
		errors.Is(err, selector.ErrMergeUnsupported):
		return ErrorCategoryInvalidArgument
	case errors.Is(err, ErrLoginRequired):
		return ErrorCategoryLoginRequired
	case errors.Is(err, ErrUnavailable):
		return ErrorCategoryUnavailable
	case errors.Is(err, ErrFormatNotFound):
		return ErrorCategoryFormatNotFound
	case errors.Is(err, ErrNoPlayableFormats):
		return ErrorCategoryNoPlayableFormats
	case errors.As(err, &providerErr):
		return ErrorCategoryProvider
	default:
		return ErrorCategoryUnknown
	}
}
