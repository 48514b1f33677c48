package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"leafchat/internal/domain"
)

func TestClassifyURL(t *testing.T) {
	tests := []struct {
		url  string
		want Kind
	}{
		{"http://host/cat.png", KindImage},
		{"https://host/a/b/CAT.JPEG", KindImage},
		{"https://host/anim.gif?size=2", KindImage},
		{"https://host/clip.mp4", KindVideo},
		{"https://host/clip.webm#t=10", KindVideo},
		{"http://host/sound.ogg", KindVideo},
		{"https://host/page", KindLink},
		{"https://host/file.png.html", KindLink},
		{"https://host/?q=x.png", KindLink},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyURL(tt.url))
		})
	}
}

func TestTokenize(t *testing.T) {
	segs := Tokenize("look https://host/a.png and https://example.com ok")
	assert.Equal(t, []Segment{
		{Kind: KindText, Text: "look "},
		{Kind: KindImage, Text: "https://host/a.png"},
		{Kind: KindText, Text: " and "},
		{Kind: KindLink, Text: "https://example.com"},
		{Kind: KindText, Text: " ok"},
	}, segs)
}

func TestExactURLMessages(t *testing.T) {
	assert.Equal(t, []Segment{{Kind: KindImage, Text: "http://h/x.png"}}, Tokenize("http://h/x.png"))
	assert.Equal(t, []Segment{{Kind: KindVideo, Text: "http://h/x.mp4"}}, Tokenize("http://h/x.mp4"))
	assert.Nil(t, Tokenize(""))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "hi there", Sanitize("<b>hi</b> <script>alert(1)</script>there"))
	assert.Equal(t, "a < b & c", Sanitize("a < b & c"))
}

func TestKindFromMIME(t *testing.T) {
	assert.Equal(t, KindImage, KindFromMIME("image/png"))
	assert.Equal(t, KindVideo, KindFromMIME("video/mp4"))
	assert.Equal(t, KindLink, KindFromMIME("application/pdf"))
}

func TestMessageUsesAttachmentFlags(t *testing.T) {
	// extension says image, flag says video: the flag wins
	segs := Message(domain.Message{FileURL: "http://h/upload.png", IsVideo: true})
	assert.Equal(t, []Segment{{Kind: KindVideo, Text: "http://h/upload.png"}}, segs)

	segs = Message(domain.Message{Message: "doc", FileURL: "http://h/readme.mp4"})
	assert.Equal(t, []Segment{{Kind: KindText, Text: "doc"}, {Kind: KindLink, Text: "http://h/readme.mp4"}}, segs)
}
