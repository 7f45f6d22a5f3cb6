package formats

import "strings"

// UnknownContainer is reported when a mime type has no usable subtype.
const UnknownContainer = "unknown"

// Container extracts the container name from a mime type: the text after
// the first '/' up to the next '/' or ';'. "video/mp4; codecs=..." -> "mp4".
func Container(mimeType string) string {
	mediaType, _, _ := strings.Cut(mimeType, ";")
	_, subtype, ok := strings.Cut(mediaType, "/")
	if !ok {
		return UnknownContainer
	}
	subtype, _, _ = strings.Cut(subtype, "/")
	subtype = strings.TrimSpace(subtype)
	if subtype == "" {
		return UnknownContainer
	}
	return subtype
}
