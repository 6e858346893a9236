package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "  just words  ", "just words"},
		{"tags stripped", "<b>bold</b> move", "bold move"},
		{"script dropped", "<script>alert(1)</script>hello", "hello"},
		{"entities kept readable", `Tom & "Jerry" <3`, `Tom & "Jerry" <3`},
		{"handler attributes", `<img src=x onerror="alert(1)">caption`, "caption"},
		{"encoded script", "&lt;script&gt;alert(1)&lt;/script&gt;hello", "hello"},
		{"encoded handler", "&lt;img src=x onerror=alert(1)&gt;", ""},
		{"double encoded", "&amp;lt;b&amp;gt;hi&amp;lt;/b&amp;gt;", "hi"},
		{"deeply encoded", "&amp;amp;amp;amp;lt;script&amp;amp;amp;amp;gt;x", "scriptx"},
		{"literal entity text", "5 &lt; 6", "5 < 6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeText(tt.in))
		})
	}
}
