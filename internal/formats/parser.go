package formats

import (
	"mime"
	"strconv"
	"strings"

	"github.com/kkdai/youtube/v2"

	"github.com/famomatic/ytfetch/internal/types"
)

// audioCodecPrefixes are codec ids that denote an audio track inside a
// video/* mime type.
var audioCodecPrefixes = []string{"mp4a", "opus", "vorbis", "ac-3", "ec-3", "flac"}

// FromYouTube converts provider formats into normalized formats,
// preserving provider order. It never fails: fields the provider did not
// report keep their zero value.
func FromYouTube(raw youtube.FormatList) []types.FormatInfo {
	out := make([]types.FormatInfo, 0, len(raw))
	for _, f := range raw {
		out = append(out, FromYouTubeFormat(f))
	}
	return out
}

// FromYouTubeFormat converts a single provider format.
func FromYouTubeFormat(f youtube.Format) types.FormatInfo {
	hasVideo, hasAudio := Capabilities(f.MimeType, f.AudioChannels)
	parsed := types.FormatInfo{
		Itag:         f.ItagNo,
		URL:          f.URL,
		MimeType:     f.MimeType,
		HasVideo:     hasVideo,
		HasAudio:     hasAudio,
		Bitrate:      f.Bitrate,
		Width:        f.Width,
		Height:       f.Height,
		FPS:          f.FPS,
		Quality:      f.Quality,
		QualityLabel: f.QualityLabel,
		AudioQuality: f.AudioQuality,
	}
	if parsed.Bitrate == 0 {
		parsed.Bitrate = f.AverageBitrate
	}
	if f.ContentLength > 0 {
		parsed.ContentLength = strconv.FormatInt(f.ContentLength, 10)
	}
	return parsed
}

// Capabilities derives the video/audio flags of a format from its mime
// type and reported audio channel count. Combined formats are video/*
// types listing an audio codec next to the video codec.
func Capabilities(mimeType string, audioChannels int) (hasVideo, hasAudio bool) {
	mediaType, codecs := splitMimeType(mimeType)
	major, _, _ := strings.Cut(mediaType, "/")

	switch major {
	case "audio":
		return false, true
	case "video":
		hasAudio = audioChannels > 0
		for _, codec := range codecs {
			if isAudioCodec(codec) {
				hasAudio = true
				break
			}
		}
		return true, hasAudio
	default:
		return false, audioChannels > 0
	}
}

func splitMimeType(mimeType string) (string, []string) {
	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		// Fall back to a plain split; provider values are not always RFC clean.
		head, rest, _ := strings.Cut(mimeType, ";")
		mediaType = strings.ToLower(strings.TrimSpace(head))
		params = map[string]string{}
		if _, v, ok := strings.Cut(rest, "codecs="); ok {
			params["codecs"] = strings.Trim(strings.TrimSpace(v), `"`)
		}
	}

	var codecs []string
	for _, c := range strings.Split(params["codecs"], ",") {
		if c = strings.TrimSpace(c); c != "" {
			codecs = append(codecs, strings.ToLower(c))
		}
	}
	return mediaType, codecs
}

func isAudioCodec(codec string) bool {
	for _, prefix := range audioCodecPrefixes {
		if strings.HasPrefix(codec, prefix) {
			return true
		}
	}
	return false
}
