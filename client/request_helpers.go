package client

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode"
)

func withDefaultTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

const maxFilenameRunes = 120

// downloadFilename builds "<title>.<ext>", falling back to "<id>-<itag>.<ext>".
func downloadFilename(title string, videoID VideoID, f FormatInfo) string {
	ext := Container(f.MimeType)
	switch ext {
	case UnknownContainer:
		ext = "bin"
	case "3gpp":
		ext = "3gp"
	case "mp4":
		if f.HasAudio && !f.HasVideo {
			ext = "m4a"
		}
	}

	base := sanitizeFilename(title)
	if base == "" {
		base = string(videoID) + "-" + strconv.Itoa(f.Itag)
	}
	return base + "." + ext
}

func sanitizeFilename(s string) string {
	var b strings.Builder
	n := 0
	lastSpace := false
	for _, r := range strings.TrimSpace(s) {
		if n >= maxFilenameRunes {
			break
		}
		switch {
		case strings.ContainsRune(`<>:"/\|?*`, r), unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			if lastSpace {
				continue
			}
			r = ' '
			lastSpace = true
		default:
			lastSpace = false
		}
		b.WriteRune(r)
		n++
	}
	return strings.Trim(b.String(), " .")
}
