package client

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/famomatic/ytfetch/internal/formats"
	"github.com/famomatic/ytfetch/internal/selector"
)

// Selection is the outcome of ranking one provider format list.
type Selection struct {
	Best               *FormatInfo  `json:"best,omitempty"`
	Presentable        []FormatInfo `json:"presentable"`
	TotalCombinedCount int          `json:"totalCombinedCount"`
}

// SelectFormats computes the best combined format and the presentable list.
func SelectFormats(list []FormatInfo, limit int) (Selection, error) {
	presentable, total, err := PresentableList(list, limit)
	if err != nil {
		return Selection{}, err
	}
	sel := Selection{
		Presentable:        presentable,
		TotalCombinedCount: total,
	}
	if best, ok := BestCombined(list); ok {
		sel.Best = &best
	}
	return sel, nil
}

// BestCombined returns the tallest format carrying both audio and video.
// Ties keep the earliest. When nothing is combined the first format is
// returned as-is; an empty list yields false.
func BestCombined(list []FormatInfo) (FormatInfo, bool) {
	if len(list) == 0 {
		return FormatInfo{}, false
	}
	best := -1
	for i, f := range list {
		if !f.IsCombined() {
			continue
		}
		if best < 0 || f.Height > list[best].Height {
			best = i
		}
	}
	if best < 0 {
		return list[0], true
	}
	return list[best], true
}

// PresentableList returns at most limit combined formats in their original
// order, one per itag, and the number of combined formats before truncation.
func PresentableList(list []FormatInfo, limit int) ([]FormatInfo, int, error) {
	if limit < 0 {
		return nil, 0, fmt.Errorf("%w: limit=%d", ErrInvalidArgument, limit)
	}
	seen := make(map[int]struct{}, len(list))
	combined := make([]FormatInfo, 0, len(list))
	for _, f := range list {
		if !f.IsCombined() {
			continue
		}
		if _, dup := seen[f.Itag]; dup {
			continue
		}
		seen[f.Itag] = struct{}{}
		combined = append(combined, f)
	}
	total := len(combined)
	if total > limit {
		combined = combined[:limit]
	}
	return combined, total, nil
}

// Container returns the mime subtype ("mp4", "webm") or "unknown".
func Container(mimeType string) string {
	return formats.Container(mimeType)
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// HumanSize renders a decimal byte count in base-1024 units with at most
// two decimals. Input that is not a byte count is returned unchanged.
func HumanSize(contentLength string) string {
	n, err := strconv.ParseUint(contentLength, 10, 64)
	if err != nil {
		return contentLength
	}
	v := float64(n)
	unit := 0
	for v >= 1024 && unit < len(sizeUnits)-1 {
		v /= 1024
		unit++
	}
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[unit]
}

// SelectionMode controls how a downloadable format is chosen when itag is not forced.
type SelectionMode string

const (
	SelectionModeBest      SelectionMode = "best"
	SelectionModeMP4AV     SelectionMode = "mp4av"
	SelectionModeVideoOnly SelectionMode = "videoonly" // Any container (webm/mp4)
	SelectionModeAudioOnly SelectionMode = "audioonly" // Any container (webm/m4a)
)

// ParseSelectionMode validates a user supplied mode; empty means best.
func ParseSelectionMode(raw string) (SelectionMode, error) {
	switch mode := SelectionMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "":
		return SelectionModeBest, nil
	case SelectionModeBest, SelectionModeMP4AV, SelectionModeVideoOnly, SelectionModeAudioOnly:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: mode=%q", ErrInvalidArgument, raw)
	}
}

func normalizeSelectionMode(mode SelectionMode) SelectionMode {
	m, err := ParseSelectionMode(string(mode))
	if err != nil {
		return SelectionModeBest
	}
	return m
}

// DownloadOptions picks one format. Itag wins over Format, Format wins
// over Mode.
type DownloadOptions struct {
	Itag   int
	Mode   SelectionMode
	Format string
}

func selectDownloadFormat(list []FormatInfo, opts DownloadOptions) (FormatInfo, error) {
	if len(list) == 0 {
		return FormatInfo{}, ErrNoPlayableFormats
	}

	if opts.Itag != 0 {
		for _, f := range list {
			if f.Itag == opts.Itag {
				return f, nil
			}
		}
		return FormatInfo{}, fmt.Errorf("%w: itag=%d", ErrFormatNotFound, opts.Itag)
	}

	if expr := strings.TrimSpace(opts.Format); expr != "" {
		sel, err := selector.Parse(expr)
		if err != nil {
			return FormatInfo{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		f, ok := selector.Select(list, sel)
		if !ok {
			return FormatInfo{}, fmt.Errorf("%w: format=%q", ErrNoPlayableFormats, expr)
		}
		return f, nil
	}

	mode := normalizeSelectionMode(opts.Mode)
	if mode == SelectionModeBest {
		f, _ := BestCombined(list)
		return f, nil
	}

	var best FormatInfo
	hasBest := false
	for _, f := range list {
		if !matchesSelectionMode(f, mode) {
			continue
		}
		if !hasBest || betterForMode(f, best, mode) {
			best = f
			hasBest = true
		}
	}
	if !hasBest {
		return FormatInfo{}, fmt.Errorf("%w: mode=%s", ErrNoPlayableFormats, mode)
	}
	return best, nil
}

func matchesSelectionMode(f FormatInfo, mode SelectionMode) bool {
	switch mode {
	case SelectionModeMP4AV:
		return Container(f.MimeType) == "mp4" && f.IsCombined()
	case SelectionModeVideoOnly:
		return f.HasVideo && !f.HasAudio
	case SelectionModeAudioOnly:
		return f.HasAudio && !f.HasVideo
	default:
		return f.HasAudio || f.HasVideo
	}
}

func betterForMode(a, b FormatInfo, mode SelectionMode) bool {
	if mode == SelectionModeAudioOnly {
		return compareKeys(
			[]int{a.Bitrate, -a.Itag},
			[]int{b.Bitrate, -b.Itag},
		)
	}
	return compareKeys(
		[]int{a.Height, a.Width, a.FPS, a.Bitrate, -a.Itag},
		[]int{b.Height, b.Width, b.FPS, b.Bitrate, -b.Itag},
	)
}

func compareKeys(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] == b[i] {
			continue
		}
		return a[i] > b[i]
	}
	return false
}

// UnknownContainer is what Container reports for absent or malformed types.
const UnknownContainer = formats.UnknownContainer
