package client

import (
	"net/http"
	"time"

	"github.com/famomatic/ytfetch/internal/cache"
)

// DefaultPresentableLimit is used when Config.PresentableLimit is unset.
const DefaultPresentableLimit = 10

// Config holds configuration for the YouTube client.
type Config struct {
	// HTTPClient is the client used by the default provider.
	// If nil, one is built from ProxyURL.
	HTTPClient *http.Client

	// ProxyURL is the optional proxy URL to use for requests.
	// If HTTPClient is provided, this field is ignored.
	ProxyURL string

	// Provider overrides the metadata/stream backend.
	// If nil, the YouTube provider is used.
	Provider Provider

	// Cache stores VideoInfo between lookups. Nil disables caching.
	Cache cache.Store

	// CacheTTL bounds how long a cached VideoInfo is served (default 15m).
	CacheTTL time.Duration

	// RequestTimeout bounds metadata lookups when ctx has no deadline.
	// Zero means no timeout.
	RequestTimeout time.Duration

	// PresentableLimit is the row count Inspect uses when called with limit 0.
	PresentableLimit int

	// Logger receives non-fatal warnings (cache failures etc.).
	Logger Logger
}

const defaultCacheTTL = 15 * time.Minute

func (c Config) cacheTTL() time.Duration {
	if c.CacheTTL <= 0 {
		return defaultCacheTTL
	}
	return c.CacheTTL
}

func (c Config) presentableLimit() int {
	if c.PresentableLimit <= 0 {
		return DefaultPresentableLimit
	}
	return c.PresentableLimit
}
