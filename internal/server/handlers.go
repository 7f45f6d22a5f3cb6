package server

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/famomatic/ytfetch/client"
	"github.com/famomatic/ytfetch/internal/history"
)

type videoSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author,omitempty"`
	ChannelID   string `json:"channelId,omitempty"`
	DurationSec int64  `json:"durationSec,omitempty"`
	ViewCount   int64  `json:"viewCount,omitempty"`
	PublishDate string `json:"publishDate,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
}

type infoResponse struct {
	Video   videoSummary       `json:"video"`
	Best    *client.FormatInfo `json:"best,omitempty"`
	Formats []client.FormatRow `json:"formats"`
	Showing int                `json:"showing"`
	Total   int                `json:"total"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": s.opts.Version,
	})
}

func (s *Server) handleResolve(c *gin.Context) {
	id, err := client.ResolveIdentifier(c.Query("url"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.record(c, history.Entry{Kind: history.KindResolve, VideoID: string(id)})
	c.JSON(http.StatusOK, gin.H{"videoId": id})
}

func (s *Server) handleInfo(c *gin.Context) {
	limit, err := queryInt(c, "limit", s.opts.PresentableLimit)
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx, cancel := s.withTimeout(c.Request.Context())
	defer cancel()

	report, err := s.opts.Service.Inspect(ctx, c.Query("url"), limit)
	if err != nil {
		s.record(c, history.Entry{Kind: history.KindInfo, VideoID: resolvedID(c.Query("url")), Error: err.Error()})
		s.fail(c, err)
		return
	}
	v := report.Video
	s.record(c, history.Entry{Kind: history.KindInfo, VideoID: v.ID, Title: v.Title})

	c.JSON(http.StatusOK, infoResponse{
		Video: videoSummary{
			ID:          v.ID,
			Title:       v.Title,
			Author:      v.Author,
			ChannelID:   v.ChannelID,
			DurationSec: v.DurationSec,
			ViewCount:   v.ViewCount,
			PublishDate: v.PublishDate,
			Thumbnail:   v.Thumbnail,
		},
		Best:    report.Selection.Best,
		Formats: report.Rows,
		Showing: len(report.Rows),
		Total:   report.Selection.TotalCombinedCount,
	})
}

func (s *Server) handleDownload(c *gin.Context) {
	opts, err := downloadOptions(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	input := c.Query("url")

	if c.Query("redirect") == "1" || c.Query("redirect") == "true" {
		ctx, cancel := s.withTimeout(c.Request.Context())
		defer cancel()
		f, streamURL, err := s.opts.Service.ResolveStreamURL(ctx, input, opts)
		if err != nil {
			s.record(c, history.Entry{Kind: history.KindURL, VideoID: resolvedID(input), Itag: opts.Itag, Error: err.Error()})
			s.fail(c, err)
			return
		}
		s.record(c, history.Entry{Kind: history.KindURL, VideoID: resolvedID(input), Itag: f.Itag})
		c.Redirect(http.StatusFound, streamURL)
		return
	}

	// No timeout here: the body is streamed for as long as the client reads.
	dl, err := s.opts.Service.OpenStream(c.Request.Context(), input, opts)
	if err != nil {
		s.record(c, history.Entry{Kind: history.KindDownload, VideoID: resolvedID(input), Itag: opts.Itag, Error: err.Error()})
		s.fail(c, err)
		return
	}
	defer dl.Body.Close()
	s.record(c, history.Entry{Kind: history.KindDownload, VideoID: resolvedID(input), Itag: dl.Format.Itag, SizeBytes: dl.Size})

	size := dl.Size
	if size <= 0 {
		size = -1
	}
	c.DataFromReader(http.StatusOK, size, dl.ContentType, dl.Body, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": dl.Filename}),
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.opts.History == nil {
		c.JSON(http.StatusOK, gin.H{"entries": []history.Entry{}})
		return
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		s.fail(c, err)
		return
	}
	entries, err := s.opts.History.Recent(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) record(c *gin.Context, e history.Entry) {
	if s.opts.History == nil || e.VideoID == "" {
		return
	}
	if _, err := s.opts.History.Record(c.Request.Context(), e); err != nil {
		s.log.Warn().Err(err).Str("video_id", e.VideoID).Msg("Failed to record history")
	}
}

func (s *Server) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.RequestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opts.RequestTimeout)
}

func downloadOptions(c *gin.Context) (client.DownloadOptions, error) {
	itag, err := queryInt(c, "itag", 0)
	if err != nil {
		return client.DownloadOptions{}, err
	}
	mode, err := client.ParseSelectionMode(c.Query("mode"))
	if err != nil {
		return client.DownloadOptions{}, err
	}
	return client.DownloadOptions{
		Itag:   itag,
		Mode:   mode,
		Format: strings.TrimSpace(c.Query("format")),
	}, nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s=%q", client.ErrInvalidArgument, key, raw)
	}
	return n, nil
}

func resolvedID(input string) string {
	id, err := client.ResolveIdentifier(input)
	if err != nil {
		return ""
	}
	return string(id)
}
