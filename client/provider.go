package client

import (
	"context"
	"io"

	"github.com/famomatic/ytfetch/internal/types"
)

// Provider fetches video metadata and media from the upstream service.
// Errors should wrap the sentinels in internal/types where they apply.
type Provider interface {
	Video(ctx context.Context, videoID string) (*types.VideoMetadata, error)
	StreamURL(ctx context.Context, videoID string, itag int) (string, error)
	Stream(ctx context.Context, videoID string, itag int) (io.ReadCloser, int64, error)
}
