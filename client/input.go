package client

import (
	"net/url"
	"regexp"
	"strings"
)

// VideoID is the canonical 11-character YouTube video identifier.
type VideoID string

func (id VideoID) String() string { return string(id) }

var youtubeIDPattern = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)

// textualMatchers run in order after the structured parse; the first
// capture group of the first match is the identifier.
var textualMatchers = []*regexp.Regexp{
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/watch\?v=([0-9A-Za-z_-]{11})`),
	regexp.MustCompile(`(?:https?://)?youtu\.be/([0-9A-Za-z_-]{11})`),
	regexp.MustCompile(`(?:https?://)?m\.youtube\.com/watch\?v=([0-9A-Za-z_-]{11})`),
	regexp.MustCompile(`^([0-9A-Za-z_-]{11})$`),
}

type matcher func(string) (string, bool)

var matchers = []matcher{matchStructured, matchTextual}

// ResolveIdentifier extracts the video identifier from a bare id or a
// watch, short-link or mobile URL.
func ResolveIdentifier(input string) (VideoID, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", &InvalidInputDetailError{Input: input, Reason: "empty_input"}
	}
	for _, m := range matchers {
		if id, ok := m(s); ok {
			return VideoID(id), nil
		}
	}
	return "", &InvalidInputDetailError{Input: input, Reason: invalidReason(s)}
}

// ExtractVideoID accepts either a raw id or common YouTube URL shapes.
func ExtractVideoID(input string) (string, error) {
	id, err := ResolveIdentifier(input)
	return string(id), err
}

func matchStructured(s string) (string, bool) {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	var candidate string
	switch {
	case host == "youtu.be":
		candidate, _, _ = strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	case strings.Contains(host, "youtube.com") && u.Path == "/watch":
		candidate = u.Query().Get("v")
	default:
		return "", false
	}
	if !youtubeIDPattern.MatchString(candidate) {
		return "", false
	}
	return candidate, true
}

func matchTextual(s string) (string, bool) {
	for _, re := range textualMatchers {
		if m := re.FindStringSubmatch(s); len(m) == 2 {
			return m[1], true
		}
	}
	return "", false
}

func invalidReason(s string) string {
	u, err := url.Parse(s)
	if err == nil && u.Scheme != "" && u.Host != "" {
		host := strings.ToLower(u.Hostname())
		if host != "youtu.be" && !strings.Contains(host, "youtube.com") {
			return "unsupported_host"
		}
	}
	return "invalid_video_id"
}
