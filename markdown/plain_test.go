package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"heading and emphasis", "# Title\n\nSome **bold** and `code`.", "Title Some bold and code."},
		{"link keeps text", "read [the docs](https://go.dev) first", "read the docs first"},
		{"image placeholder", "look: ![shot](x.png)", "look: [image]"},
		{"code block placeholder", "before\n\n```go\nfmt.Println()\n```\n\nafter", "before [code block] after"},
		{"lists and quotes", "> quoted\n\n- one\n- two", "quoted one two"},
		{"soft breaks collapse", "a\nb\n\n\n\nc", "a b c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText(tt.in))
		})
	}
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("short", 10))
	assert.Equal(t, "héllo…", Excerpt("héllo wörld", 5))
	assert.Equal(t, "héllo wörld", Excerpt("héllo wörld", 0))
}
