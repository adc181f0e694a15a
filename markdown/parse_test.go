package markdown

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Node
	}{
		{
			name: "empty",
			in:   "",
			want: nil,
		},
		{
			name: "bold and italic side by side",
			in:   "*a* **b**",
			want: []Node{Paragraph{Children: []Node{
				Italic{Children: []Node{Text{Value: "a"}}},
				Text{Value: " "},
				Bold{Children: []Node{Text{Value: "b"}}},
			}}},
		},
		{
			name: "bold inside italic",
			in:   "*a **b** c*",
			want: []Node{Paragraph{Children: []Node{
				Italic{Children: []Node{
					Text{Value: "a "},
					Bold{Children: []Node{Text{Value: "b"}}},
					Text{Value: " c"},
				}},
			}}},
		},
		{
			name: "image is not a link",
			in:   "![alt](x.png)",
			want: []Node{Paragraph{Children: []Node{Image{Alt: "alt", URL: "x.png"}}}},
		},
		{
			name: "link with emphasis",
			in:   "see [the *docs*](https://go.dev)",
			want: []Node{Paragraph{Children: []Node{
				Text{Value: "see "},
				Link{URL: "https://go.dev", Children: []Node{
					Text{Value: "the "},
					Italic{Children: []Node{Text{Value: "docs"}}},
				}},
			}}},
		},
		{
			name: "code span is literal",
			in:   "`**not bold**`",
			want: []Node{Paragraph{Children: []Node{Code{Value: "**not bold**"}}}},
		},
		{
			name: "underline",
			in:   "<u>under</u>",
			want: []Node{Paragraph{Children: []Node{Underline{Children: []Node{Text{Value: "under"}}}}}},
		},
		{
			name: "unbalanced markers stay verbatim",
			in:   "2 * 3 and `tick",
			want: []Node{Paragraph{Children: []Node{Text{Value: "2 * 3 and `tick"}}}},
		},
		{
			name: "lone bold marker",
			in:   "a ** b",
			want: []Node{Paragraph{Children: []Node{Text{Value: "a ** b"}}}},
		},
		{
			name: "lines and paragraphs",
			in:   "one\ntwo\n\nthree",
			want: []Node{
				Paragraph{Children: []Node{Text{Value: "one"}, LineBreak{}, Text{Value: "two"}}},
				Paragraph{Children: []Node{Text{Value: "three"}}},
			},
		},
		{
			name: "quote is line anchored",
			in:   "> quoted\nplain",
			want: []Node{
				Blockquote{Children: []Node{Text{Value: "quoted"}}},
				Paragraph{Children: []Node{Text{Value: "plain"}}},
			},
		},
		{
			name: "list runs merge across blank lines",
			in:   "- a\n\n- b\n1. c\n2. d",
			want: []Node{
				List{Items: [][]Node{{Text{Value: "a"}}, {Text{Value: "b"}}}},
				List{Ordered: true, Items: [][]Node{{Text{Value: "c"}}, {Text{Value: "d"}}}},
			},
		},
		{
			name: "quote interrupts a list",
			in:   "- a\n> q\n- b",
			want: []Node{
				List{Items: [][]Node{{Text{Value: "a"}}}},
				Blockquote{Children: []Node{Text{Value: "q"}}},
				List{Items: [][]Node{{Text{Value: "b"}}}},
			},
		},
		{
			name: "marker without content is text",
			in:   "-\n>",
			want: []Node{Paragraph{Children: []Node{Text{Value: "-"}, LineBreak{}, Text{Value: ">"}}}},
		},
		{
			name: "crlf",
			in:   "a\r\nb",
			want: []Node{Paragraph{Children: []Node{Text{Value: "a"}, LineBreak{}, Text{Value: "b"}}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.in)
			if diff := cmp.Diff(tt.want, got.Blocks); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestParseTripleAsterisk(t *testing.T) {
	got := Parse("***a***")
	want := []Node{Paragraph{Children: []Node{
		Bold{Children: []Node{Text{Value: "*a"}}},
		Text{Value: "*"},
	}}}
	if diff := cmp.Diff(want, got.Blocks); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
