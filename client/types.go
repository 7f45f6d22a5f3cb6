package client

import (
	"io"

	"github.com/famomatic/ytfetch/internal/types"
)

// FormatInfo is the normalized public format model.
type FormatInfo = types.FormatInfo

// VideoInfo is the package-level metadata result.
type VideoInfo struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Author      string       `json:"author,omitempty"`
	ChannelID   string       `json:"channelId,omitempty"`
	Description string       `json:"description,omitempty"`
	DurationSec int64        `json:"durationSec,omitempty"`
	ViewCount   int64        `json:"viewCount,omitempty"`
	PublishDate string       `json:"publishDate,omitempty"`
	Thumbnail   string       `json:"thumbnail,omitempty"`
	Formats     []FormatInfo `json:"formats"`
}

// FormatRow is one display line of a presentable format.
type FormatRow struct {
	Itag       int    `json:"itag"`
	Quality    string `json:"quality"`
	Container  string `json:"container"`
	Size       string `json:"size"`
	Resolution string `json:"resolution,omitempty"`
	FPS        int    `json:"fps,omitempty"`
	Bitrate    int    `json:"bitrate,omitempty"`
}

// Report is what Inspect returns: metadata, the ranked selection and the
// presentable rows.
type Report struct {
	Video     *VideoInfo  `json:"video"`
	Selection Selection   `json:"selection"`
	Rows      []FormatRow `json:"rows"`
}

// Download is an open media stream for one selected format.
type Download struct {
	Body        io.ReadCloser
	Size        int64
	Filename    string
	ContentType string
	Format      FormatInfo
}

func toVideoInfo(m *types.VideoMetadata) *VideoInfo {
	return &VideoInfo{
		ID:          m.ID,
		Title:       m.Title,
		Author:      m.Author,
		ChannelID:   m.ChannelID,
		Description: m.Description,
		DurationSec: m.DurationSec,
		ViewCount:   m.ViewCount,
		PublishDate: m.PublishDate,
		Thumbnail:   m.Thumbnail,
		Formats:     append([]FormatInfo(nil), m.Formats...),
	}
}

func cloneVideoInfo(v *VideoInfo) *VideoInfo {
	if v == nil {
		return nil
	}
	out := *v
	out.Formats = append([]FormatInfo(nil), v.Formats...)
	return &out
}
