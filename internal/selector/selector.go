package selector

import (
	"sort"
	"strconv"

	"github.com/famomatic/ytfetch/internal/formats"
	"github.com/famomatic/ytfetch/internal/types"
)

// Select returns the format chosen by the first alternative that matches
// anything. Ranking is stable: among equal keys the earlier format wins.
func Select(list []types.FormatInfo, sel *Selector) (types.FormatInfo, bool) {
	if sel == nil {
		return types.FormatInfo{}, false
	}
	for _, spec := range sel.Alternatives {
		if f, ok := pickBest(list, spec); ok {
			return f, true
		}
	}
	return types.FormatInfo{}, false
}

func pickBest(list []types.FormatInfo, spec *StreamSpec) (types.FormatInfo, bool) {
	var candidates []types.FormatInfo
	for _, f := range list {
		if matchesAll(f, spec.Filters) {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return types.FormatInfo{}, false
	}

	audioRank := wantsAudioOnly(spec)
	if wantsWorst(spec) {
		worst := 0
		for i := 1; i < len(candidates); i++ {
			if better(candidates[worst], candidates[i], audioRank) {
				worst = i
			}
		}
		return candidates[worst], true
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return better(candidates[i], candidates[j], audioRank)
	})
	return candidates[0], true
}

func wantsWorst(spec *StreamSpec) bool {
	for _, flt := range spec.Filters {
		if (flt.Type == "builtin" && flt.Value == "worst") || (flt.Type == "media" && flt.Op == "worst") {
			return true
		}
	}
	return false
}

func wantsAudioOnly(spec *StreamSpec) bool {
	for _, flt := range spec.Filters {
		if flt.Type == "media" && flt.Value == "audio" {
			return true
		}
	}
	return false
}

func matchesAll(f types.FormatInfo, filters []FormatFilter) bool {
	for _, flt := range filters {
		if !matches(f, flt) {
			return false
		}
	}
	return true
}

func matches(f types.FormatInfo, filter FormatFilter) bool {
	switch filter.Type {
	case "builtin":
		return f.IsCombined()
	case "media":
		if filter.Value == "video" {
			return f.HasVideo && !f.HasAudio
		}
		if filter.Value == "audio" {
			return f.HasAudio && !f.HasVideo
		}
	case "ext":
		return matchesExt(f, filter.Value)
	case "res":
		return checkNumeric(f.Height, filter)
	case "width":
		return checkNumeric(f.Width, filter)
	case "fps":
		return checkNumeric(f.FPS, filter)
	}
	return false
}

func matchesExt(f types.FormatInfo, ext string) bool {
	container := formats.Container(f.MimeType)
	switch ext {
	case "m4a":
		return container == "mp4" && f.HasAudio && !f.HasVideo
	case "3gp":
		return container == "3gpp"
	default:
		return container == ext
	}
}

func checkNumeric(a int, filter FormatFilter) bool {
	b, err := strconv.Atoi(filter.Value)
	if err != nil {
		return false
	}
	return checkOp(a, b, filter.Op)
}

func checkOp(a, b int, op string) bool {
	switch op {
	case ":", "=":
		return a == b
	case "<":
		return a < b
	case ">":
		return a > b
	case "<=":
		return a <= b
	case ">=":
		return a >= b
	case "!=":
		return a != b
	}
	return false
}

// better orders formats descending by quality keys.
func better(a, b types.FormatInfo, audioRank bool) bool {
	var ka, kb []int
	if audioRank {
		ka = []int{a.Bitrate}
		kb = []int{b.Bitrate}
	} else {
		ka = []int{a.Height, a.Width, a.FPS, a.Bitrate}
		kb = []int{b.Height, b.Width, b.FPS, b.Bitrate}
	}
	for i := range ka {
		if ka[i] != kb[i] {
			return ka[i] > kb[i]
		}
	}
	return false
}
