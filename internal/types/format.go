package types

// FormatInfo is one retrievable encoding of a video as reported by the
// metadata provider. Missing provider fields stay at their zero value.
type FormatInfo struct {
	Itag         int    `json:"itag"`
	URL          string `json:"url,omitempty"`
	MimeType     string `json:"mimeType,omitempty"`
	HasAudio     bool   `json:"hasAudio"`
	HasVideo     bool   `json:"hasVideo"`
	Bitrate      int    `json:"bitrate,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	FPS          int    `json:"fps,omitempty"`
	Quality      string `json:"quality,omitempty"`
	QualityLabel string `json:"qualityLabel,omitempty"`
	AudioQuality string `json:"audioQuality,omitempty"`
	// ContentLength is the byte size as a decimal string; empty when unknown.
	ContentLength string `json:"contentLength,omitempty"`
}

// IsCombined reports whether the format carries both audio and video.
func (f FormatInfo) IsCombined() bool {
	return f.HasVideo && f.HasAudio
}
