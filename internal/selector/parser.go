package selector

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrEmptyExpression is returned when the expression has no stream spec.
	ErrEmptyExpression = errors.New("empty format expression")
	// ErrMergeUnsupported is returned for "a+b" expressions; merging
	// separate streams needs a muxer, which this service does not run.
	ErrMergeUnsupported = errors.New("merging streams is not supported")
)

// Selector represents a parsed format expression.
type Selector struct {
	// Alternatives are tried in order; the first one that matches any
	// format wins. "a/b/c" -> [a, b, c].
	Alternatives []*StreamSpec
}

// StreamSpec defines criteria for ONE stream.
// It can have multiple filters (e.g. bestvideo AND ext=mp4).
type StreamSpec struct {
	Filters []FormatFilter
}

// FormatFilter represents a single criteria (e.g., bestvideo, res:1080).
type FormatFilter struct {
	Type  string // builtin, media, ext, res, width, fps
	Value string // best, video, mp4, 1080, ...
	Op    string // =, <, >, <=, >=, != for numeric filters; best/worst for media
}

// Parse parses a format expression.
// Syntax: spec1/spec2/spec3
// Modifier syntax: bestvideo[ext=mp4][height<=720]
func Parse(s string) (*Selector, error) {
	if strings.TrimSpace(s) == "" {
		return nil, ErrEmptyExpression
	}

	var alternatives []*StreamSpec
	for _, alt := range strings.Split(s, "/") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			return nil, fmt.Errorf("%w: %q", ErrEmptyExpression, s)
		}
		if strings.Contains(alt, "+") {
			return nil, fmt.Errorf("%w: %q", ErrMergeUnsupported, alt)
		}
		spec, err := parseStreamSpec(alt)
		if err != nil {
			return nil, err
		}
		alternatives = append(alternatives, spec)
	}

	return &Selector{Alternatives: alternatives}, nil
}

var (
	resRegex = regexp.MustCompile(`^(res|height|width)(:|<=|>=|=|<|>)(\d+)$`)
	modRegex = regexp.MustCompile(`\[([^\]]+)\]`)
)

func parseStreamSpec(s string) (*StreamSpec, error) {
	// s = "bestvideo[ext=mp4]"
	idx := strings.Index(s, "[")
	var base string
	var mods string
	if idx == -1 {
		base = s
	} else {
		base = s[:idx]
		mods = s[idx:]
	}

	spec := &StreamSpec{}

	if base != "" {
		f, err := parseFilter(base)
		if err != nil {
			return nil, err
		}
		spec.Filters = append(spec.Filters, *f)
	}

	matches := modRegex.FindAllStringSubmatch(mods, -1)
	if mods != "" && len(matches) == 0 {
		return nil, fmt.Errorf("unknown modifier syntax: %s", mods)
	}
	for _, m := range matches {
		f, err := parseModifier(m[1])
		if err != nil {
			return nil, err
		}
		spec.Filters = append(spec.Filters, *f)
	}

	return spec, nil
}

func parseModifier(s string) (*FormatFilter, error) {
	// s = "ext=mp4" or "height<720"
	ops := []string{"<=", ">=", "!=", "=", "<", ">", ":"}
	for _, op := range ops {
		if idx := strings.Index(s, op); idx != -1 {
			key := strings.ToLower(strings.TrimSpace(s[:idx]))
			val := strings.ToLower(strings.TrimSpace(s[idx+len(op):]))

			switch key {
			case "ext":
				return &FormatFilter{Type: "ext", Value: val}, nil
			case "res", "height":
				return &FormatFilter{Type: "res", Value: val, Op: op}, nil
			case "width":
				return &FormatFilter{Type: "width", Value: val, Op: op}, nil
			case "fps":
				return &FormatFilter{Type: "fps", Value: val, Op: op}, nil
			default:
				return nil, fmt.Errorf("unknown modifier key: %s", key)
			}
		}
	}
	return nil, fmt.Errorf("unknown modifier syntax: %s", s)
}

func parseFilter(s string) (*FormatFilter, error) {
	s = strings.ToLower(s)

	switch s {
	case "best", "b", "worst", "w":
		value := "best"
		if strings.HasPrefix(s, "w") {
			value = "worst"
		}
		return &FormatFilter{Type: "builtin", Value: value}, nil
	case "bestvideo", "bv":
		return &FormatFilter{Type: "media", Value: "video", Op: "best"}, nil
	case "worstvideo", "wv":
		return &FormatFilter{Type: "media", Value: "video", Op: "worst"}, nil
	case "bestaudio", "ba":
		return &FormatFilter{Type: "media", Value: "audio", Op: "best"}, nil
	case "worstaudio", "wa":
		return &FormatFilter{Type: "media", Value: "audio", Op: "worst"}, nil
	case "videoonly":
		return &FormatFilter{Type: "media", Value: "video"}, nil
	case "audioonly":
		return &FormatFilter{Type: "media", Value: "audio"}, nil
	case "mp4", "webm", "m4a", "3gp":
		return &FormatFilter{Type: "ext", Value: s}, nil
	}

	// Resolution shortcut (res:1080)
	if matches := resRegex.FindStringSubmatch(s); matches != nil {
		filterType := "res"
		if matches[1] == "width" {
			filterType = "width"
		}
		return &FormatFilter{
			Type:  filterType,
			Value: matches[3],
			Op:    matches[2],
		}, nil
	}

	// Allow standalone modifier-style filters as base tokens, e.g.:
	// "fps!=60", "ext=mp4", "height<=720"
	if flt, err := parseModifier(s); err == nil {
		return flt, nil
	}

	return nil, fmt.Errorf("unknown selector: %s", s)
}
