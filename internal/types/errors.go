package types

import "errors"

var (
	// ErrVideoUnavailable indicates that the video is unavailable (deleted, private, etc.).
	ErrVideoUnavailable = errors.New("video unavailable")

	// ErrLoginRequired indicates that the video requires login to view (age gate, members only).
	ErrLoginRequired = errors.New("login required")

	// ErrFormatNotFound indicates that no format with the requested itag exists.
	ErrFormatNotFound = errors.New("format not found")
)
