package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/famomatic/ytfetch/internal/cache"
	"github.com/famomatic/ytfetch/internal/provider"
	"github.com/famomatic/ytfetch/internal/types"
)

// Client is the high-level YouTube client.
type Client struct {
	config   Config
	provider Provider
	cache    cache.Store
	logger   Logger
	lookups  singleflight.Group
}

// New creates a new YouTube client.
func New(config Config) *Client {
	if config.Provider == nil {
		if config.HTTPClient == nil {
			config.HTTPClient = defaultHTTPClient(config.ProxyURL)
		}
		config.Provider = provider.NewYouTube(provider.Options{HTTPClient: config.HTTPClient})
	}
	store := config.Cache
	if store == nil {
		store = cache.Nop{}
	}
	logger := config.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	return &Client{
		config:   config,
		provider: config.Provider,
		cache:    store,
		logger:   logger,
	}
}

// GetVideo fetches video metadata and normalized formats for the input ID/URL.
// Concurrent lookups of the same video share one provider call.
func (c *Client) GetVideo(ctx context.Context, input string) (*VideoInfo, error) {
	videoID, err := ResolveIdentifier(input)
	if err != nil {
		return nil, err
	}
	return c.getVideo(ctx, videoID)
}

func (c *Client) getVideo(ctx context.Context, videoID VideoID) (*VideoInfo, error) {
	key := cacheKey(videoID)
	if info, ok := c.cachedVideo(ctx, key); ok {
		return info, nil
	}

	// The shared lookup outlives any single caller; each caller stops
	// waiting when its own context ends.
	ch := c.lookups.DoChan(string(videoID), func() (any, error) {
		ctx, cancel := withDefaultTimeout(context.WithoutCancel(ctx), c.config.RequestTimeout)
		defer cancel()

		meta, err := c.provider.Video(ctx, string(videoID))
		if err != nil {
			return nil, &ProviderError{Op: "video", VideoID: videoID, Err: err}
		}
		info := toVideoInfo(meta)
		if info.ID == "" {
			info.ID = string(videoID)
		}
		c.storeVideo(ctx, key, info)
		return info, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return cloneVideoInfo(res.Val.(*VideoInfo)), nil
}

// Inspect looks up a video and ranks its formats. A zero limit uses
// Config.PresentableLimit.
func (c *Client) Inspect(ctx context.Context, input string, limit int) (*Report, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit=%d", ErrInvalidArgument, limit)
	}
	if limit == 0 {
		limit = c.config.presentableLimit()
	}
	info, err := c.GetVideo(ctx, input)
	if err != nil {
		return nil, err
	}
	sel, err := SelectFormats(info.Formats, limit)
	if err != nil {
		return nil, err
	}
	rows := make([]FormatRow, 0, len(sel.Presentable))
	for _, f := range sel.Presentable {
		rows = append(rows, toFormatRow(f))
	}
	return &Report{Video: info, Selection: sel, Rows: rows}, nil
}

// ResolveStreamURL selects a format and returns its direct media URL.
func (c *Client) ResolveStreamURL(ctx context.Context, input string, opts DownloadOptions) (FormatInfo, string, error) {
	info, chosen, err := c.chooseFormat(ctx, input, opts)
	if err != nil {
		return FormatInfo{}, "", err
	}
	videoID := VideoID(info.ID)
	ctx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	streamURL, err := c.provider.StreamURL(ctx, string(videoID), chosen.Itag)
	if err != nil {
		return FormatInfo{}, "", &ProviderError{Op: "stream_url", VideoID: videoID, Err: err}
	}
	return chosen, streamURL, nil
}

// OpenStream resolves and opens a readable stream without writing a local file.
// The caller must close Download.Body.
func (c *Client) OpenStream(ctx context.Context, input string, opts DownloadOptions) (*Download, error) {
	info, chosen, err := c.chooseFormat(ctx, input, opts)
	if err != nil {
		return nil, err
	}
	videoID := VideoID(info.ID)
	body, size, err := c.provider.Stream(ctx, string(videoID), chosen.Itag)
	if err != nil {
		return nil, &ProviderError{Op: "stream", VideoID: videoID, Err: err}
	}
	if size <= 0 {
		size, _ = strconv.ParseInt(chosen.ContentLength, 10, 64)
	}
	return &Download{
		Body:        body,
		Size:        size,
		Filename:    downloadFilename(info.Title, videoID, chosen),
		ContentType: contentType(chosen.MimeType),
		Format:      chosen,
	}, nil
}

func (c *Client) chooseFormat(ctx context.Context, input string, opts DownloadOptions) (*VideoInfo, FormatInfo, error) {
	videoID, err := ResolveIdentifier(input)
	if err != nil {
		return nil, FormatInfo{}, err
	}
	info, err := c.getVideo(ctx, videoID)
	if err != nil {
		return nil, FormatInfo{}, err
	}
	chosen, err := selectDownloadFormat(info.Formats, opts)
	if err != nil {
		return nil, FormatInfo{}, err
	}
	// Providers may report a canonical id; stream calls use the resolved one.
	info.ID = string(videoID)
	return info, chosen, nil
}

func (c *Client) cachedVideo(ctx context.Context, key string) (*VideoInfo, bool) {
	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.warnf(ctx, "cache get failed: key=%s err=%v", key, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var info VideoInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		c.warnf(ctx, "cache entry corrupt: key=%s err=%v", key, err)
		_ = c.cache.Delete(ctx, key)
		return nil, false
	}
	return &info, true
}

func (c *Client) storeVideo(ctx context.Context, key string, info *VideoInfo) {
	raw, err := json.Marshal(info)
	if err != nil {
		c.warnf(ctx, "cache encode failed: key=%s err=%v", key, err)
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.config.cacheTTL()); err != nil && !errors.Is(err, context.Canceled) {
		c.warnf(ctx, "cache set failed: key=%s err=%v", key, err)
	}
}

func (c *Client) warnf(ctx context.Context, format string, args ...any) {
	if id, ok := types.RequestIDFromContext(ctx); ok {
		format = "request_id=%s " + format
		args = append([]any{id}, args...)
	}
	c.logger.Warnf(format, args...)
}

func cacheKey(videoID VideoID) string {
	return "video:" + string(videoID)
}

func toFormatRow(f FormatInfo) FormatRow {
	row := FormatRow{
		Itag:      f.Itag,
		Quality:   firstNonEmptyString(f.QualityLabel, f.Quality, "unknown"),
		Container: Container(f.MimeType),
		Size:      firstNonEmptyString(HumanSize(f.ContentLength), "unknown"),
		FPS:       f.FPS,
		Bitrate:   f.Bitrate,
	}
	if f.Width > 0 && f.Height > 0 {
		row.Resolution = strconv.Itoa(f.Width) + "x" + strconv.Itoa(f.Height)
	}
	return row
}

func contentType(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil || mediaType == "" {
		return "application/octet-stream"
	}
	return mediaType
}

func firstNonEmptyString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
