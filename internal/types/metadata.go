package types

// VideoMetadata is what a provider returns for one video identifier.
type VideoMetadata struct {
	ID          string
	Title       string
	Author      string
	ChannelID   string
	Description string
	DurationSec int64
	ViewCount   int64
	PublishDate string
	Thumbnail   string
	Formats     []FormatInfo
}
