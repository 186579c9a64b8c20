package img

import "strings"

// Kind is the coarse media category that selects an extraction strategy.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindImage
	KindVideo
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "unrecognized"
	}
}

// Classify maps a content type to a Kind by its top level type. It never
// fails: anything that is not image/, video/ or audio/ is unrecognized.
func Classify(contentType string) Kind {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return KindImage
	case strings.HasPrefix(ct, "video/"):
		return KindVideo
	case strings.HasPrefix(ct, "audio/"):
		return KindAudio
	default:
		return KindUnrecognized
	}
}
