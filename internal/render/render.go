// Package render turns message text into typed segments for display.
package render

import (
	"html"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"leafchat/internal/domain"
)

// Kind classifies a segment of message text.
type Kind int

const (
	KindText Kind = iota
	KindLink
	KindImage
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindLink:
		return "link"
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "text"
	}
}

// Segment is a run of text or a single URL.
type Segment struct {
	Kind Kind
	Text string
}

var (
	urlPattern = regexp.MustCompile(`https?://[^\s]+`)

	imageExts = map[string]struct{}{"jpg": {}, "jpeg": {}, "png": {}, "gif": {}}
	videoExts = map[string]struct{}{"mp4": {}, "webm": {}, "ogg": {}}

	policy = bluemonday.StrictPolicy()
)

// Sanitize strips markup from untrusted message text.
func Sanitize(text string) string {
	return html.UnescapeString(policy.Sanitize(text))
}

// Tokenize splits text into plain text and URL segments in order.
// Empty text spans are omitted.
func Tokenize(text string) []Segment {
	var segments []Segment
	last := 0
	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		if loc[0] > last {
			segments = append(segments, Segment{Kind: KindText, Text: text[last:loc[0]]})
		}
		raw := text[loc[0]:loc[1]]
		segments = append(segments, Segment{Kind: ClassifyURL(raw), Text: raw})
		last = loc[1]
	}
	if last < len(text) {
		segments = append(segments, Segment{Kind: KindText, Text: text[last:]})
	}
	return segments
}

// ClassifyURL inspects the path extension of raw, ignoring case, query and fragment.
func ClassifyURL(raw string) Kind {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	if _, ok := imageExts[ext]; ok {
		return KindImage
	}
	if _, ok := videoExts[ext]; ok {
		return KindVideo
	}
	return KindLink
}

// KindFromMIME maps a detected MIME type to an attachment kind.
func KindFromMIME(mime string) Kind {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return KindImage
	case strings.HasPrefix(mime, "video/"):
		return KindVideo
	default:
		return KindLink
	}
}

// Message returns the segments for a feed entry. Attachments are rendered
// from their flags; only message text goes through URL classification.
func Message(m domain.Message) []Segment {
	segments := Tokenize(Sanitize(m.Message))
	if m.FileURL == "" {
		return segments
	}
	kind := KindLink
	switch {
	case m.IsImage:
		kind = KindImage
	case m.IsVideo:
		kind = KindVideo
	}
	return append(segments, Segment{Kind: kind, Text: m.FileURL})
}
