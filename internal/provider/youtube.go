// Package provider adapts github.com/kkdai/youtube to the metadata and
// stream operations the client needs.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"

	"github.com/famomatic/ytfetch/internal/cookies"
	"github.com/famomatic/ytfetch/internal/formats"
	"github.com/famomatic/ytfetch/internal/transport"
	"github.com/famomatic/ytfetch/internal/types"
)

// Options configures the YouTube provider.
type Options struct {
	// HTTPClient is used for all upstream requests. If nil, one is built
	// with NewHTTPClient(HTTPOptions{}).
	HTTPClient *http.Client
}

// YouTube implements the client provider contract on top of kkdai/youtube.
type YouTube struct {
	client *youtube.Client
}

// NewYouTube creates a provider.
func NewYouTube(opts Options) *YouTube {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient, _ = NewHTTPClient(HTTPOptions{})
	}
	return &YouTube{client: &youtube.Client{HTTPClient: httpClient}}
}

// Video fetches metadata and formats for one video id.
func (p *YouTube) Video(ctx context.Context, videoID string) (*types.VideoMetadata, error) {
	v, err := p.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, mapError(err)
	}
	return toMetadata(v), nil
}

// StreamURL returns the direct, deciphered media URL for itag.
func (p *YouTube) StreamURL(ctx context.Context, videoID string, itag int) (string, error) {
	v, f, err := p.lookupFormat(ctx, videoID, itag)
	if err != nil {
		return "", err
	}
	u, err := p.client.GetStreamURLContext(ctx, v, f)
	if err != nil {
		return "", mapError(err)
	}
	return u, nil
}

// Stream opens the media body for itag and returns its size when known.
func (p *YouTube) Stream(ctx context.Context, videoID string, itag int) (io.ReadCloser, int64, error) {
	v, f, err := p.lookupFormat(ctx, videoID, itag)
	if err != nil {
		return nil, 0, err
	}
	body, size, err := p.client.GetStreamContext(ctx, v, f)
	if err != nil {
		return nil, 0, mapError(err)
	}
	return body, size, nil
}

func (p *YouTube) lookupFormat(ctx context.Context, videoID string, itag int) (*youtube.Video, *youtube.Format, error) {
	v, err := p.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, nil, mapError(err)
	}
	f, err := findFormat(v.Formats, itag)
	if err != nil {
		return nil, nil, err
	}
	return v, f, nil
}

// findFormat returns the first format with itag.
func findFormat(list youtube.FormatList, itag int) (*youtube.Format, error) {
	matches := list.Itag(itag)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: itag=%d", types.ErrFormatNotFound, itag)
	}
	return &matches[0], nil
}

func toMetadata(v *youtube.Video) *types.VideoMetadata {
	m := &types.VideoMetadata{
		ID:          v.ID,
		Title:       v.Title,
		Author:      v.Author,
		ChannelID:   v.ChannelID,
		Description: v.Description,
		DurationSec: int64(v.Duration / time.Second),
		ViewCount:   int64(v.Views),
		Formats:     formats.FromYouTube(v.Formats),
	}
	if !v.PublishDate.IsZero() {
		m.PublishDate = v.PublishDate.Format(time.DateOnly)
	}
	if n := len(v.Thumbnails); n > 0 {
		m.Thumbnail = v.Thumbnails[n-1].URL
	}
	return m
}

// mapError wraps library errors with the shared sentinels so callers can
// branch on errors.Is without importing the library.
func mapError(err error) error {
	var status *youtube.ErrPlayabiltyStatus
	switch {
	case errors.Is(err, youtube.ErrLoginRequired),
		errors.Is(err, youtube.ErrNotPlayableInEmbed):
		return fmt.Errorf("%w: %w", types.ErrLoginRequired, err)
	case errors.Is(err, youtube.ErrVideoPrivate):
		return fmt.Errorf("%w: %w", types.ErrVideoUnavailable, err)
	case errors.As(err, &status):
		if strings.EqualFold(status.Status, "LOGIN_REQUIRED") {
			return fmt.Errorf("%w: %w", types.ErrLoginRequired, err)
		}
		return fmt.Errorf("%w: %w", types.ErrVideoUnavailable, err)
	default:
		return err
	}
}

// HTTPOptions configures the upstream HTTP client.
type HTTPOptions struct {
	ProxyURL    string
	CookiesFile string
	Timeout     time.Duration
	Retry       transport.Config
}

// NewHTTPClient builds the client used for upstream requests: optional
// proxy, cookies.txt jar and retrying transport.
func NewHTTPClient(opts HTTPOptions) (*http.Client, error) {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, errors.New("unexpected default transport type")
	}
	rt := base.Clone()
	if p := strings.TrimSpace(opts.ProxyURL); p != "" {
		proxy, err := parseProxyURL(p)
		if err != nil {
			return nil, err
		}
		rt.Proxy = http.ProxyURL(proxy)
	}

	client := &http.Client{
		Transport: transport.New(rt, opts.Retry),
		Timeout:   opts.Timeout,
	}
	if opts.CookiesFile != "" {
		jar, err := cookies.LoadJar(opts.CookiesFile)
		if err != nil {
			return nil, err
		}
		client.Jar = jar
	}
	return client, nil
}
