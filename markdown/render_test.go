package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

// elements parses fragment and returns every element with the given tag.
func elements(t *testing.T, fragment, tag string) []*html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(fragment))
	require.NoError(t, err)

	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			found = append(found, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func TestRenderBold(t *testing.T) {
	assert.Contains(t, Render("**bold**"), "<strong>bold</strong>")
}

func TestRenderBoldAndItalicIndependently(t *testing.T) {
	out := Render("*a* **b**")
	assert.Contains(t, out, "<em>a</em>")
	assert.Contains(t, out, "<strong>b</strong>")
	assert.NotContains(t, out, "*")
}

func TestRenderImageIsNotLink(t *testing.T) {
	out := Render("![alt](x.png)")

	imgs := elements(t, out, "img")
	require.Len(t, imgs, 1)
	assert.Equal(t, "x.png", attr(imgs[0], "src"))
	assert.Equal(t, "alt", attr(imgs[0], "alt"))
	assert.Empty(t, elements(t, out, "a"))
}

func TestRenderLink(t *testing.T) {
	out := Render("[t](u)")

	links := elements(t, out, "a")
	require.Len(t, links, 1)
	assert.Equal(t, "u", attr(links[0], "href"))
	assert.Equal(t, "_blank", attr(links[0], "target"))
	assert.Equal(t, "noopener noreferrer", attr(links[0], "rel"))
	require.NotNil(t, links[0].FirstChild)
	assert.Equal(t, "t", links[0].FirstChild.Data)
	assert.Nil(t, links[0].FirstChild.NextSibling)
	assert.NotContains(t, out, "[")
	assert.NotContains(t, out, "](")
}

func TestRenderAbsoluteLinkKeepsRel(t *testing.T) {
	out := Render("see [docs](https://go.dev/doc)")

	links := elements(t, out, "a")
	require.Len(t, links, 1)
	assert.Equal(t, "https://go.dev/doc", attr(links[0], "href"))
	assert.Equal(t, "noopener noreferrer", attr(links[0], "rel"))
	assert.NotContains(t, out, "nofollow")
}

func TestRenderPlainTextIsOnlyWrapped(t *testing.T) {
	inputs := []string{
		"hello world",
		"just some words, nothing else.",
		"line one\nline two",
		"first paragraph\n\nsecond paragraph",
	}
	for _, in := range inputs {
		out := Render(in)
		stripped := out
		for _, tag := range []string{`<p class="text-base leading-7">`, "</p>", "<br/>"} {
			stripped = strings.ReplaceAll(stripped, tag, "")
		}
		want := strings.NewReplacer("\n", "").Replace(in)
		assert.Equal(t, want, stripped, "input %q rendered as %q", in, out)
	}
}

func TestRenderParagraphsAndBreaks(t *testing.T) {
	assert.Equal(t,
		`<p class="text-base leading-7">a<br/>b</p><p class="text-base leading-7">c</p>`,
		Render("a\nb\n\nc"))
}

func TestRenderLists(t *testing.T) {
	out := Render("- one\n- two\n\n1. first\n2. second")

	uls := elements(t, out, "ul")
	ols := elements(t, out, "ol")
	require.Len(t, uls, 1)
	require.Len(t, ols, 1)
	assert.Len(t, elements(t, out, "li"), 4)
}

func TestRenderListsSplitAcrossQuote(t *testing.T) {
	out := Render("- a\n> note\n- b")
	assert.Len(t, elements(t, out, "ul"), 2)
	assert.Len(t, elements(t, out, "blockquote"), 1)
}

func TestRenderCodeAndUnderline(t *testing.T) {
	out := Render("use `go test` and <u>read</u> it")
	assert.Contains(t, out, ">go test</code>")
	assert.Contains(t, out, "<u>read</u>")
}

func TestRenderEscapesHTML(t *testing.T) {
	out := Render(`<script>alert("x")</script> & <b>bold</b>`)
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "<b>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "&amp;")
}

func TestRenderDropsUnsafeURLs(t *testing.T) {
	out := Render("[x](javascript:alert(1)) ![y](javascript:alert(2))")
	assert.NotContains(t, out, "javascript:")
}

func TestRenderTotal(t *testing.T) {
	for _, in := range []string{"", "*", "**", "`", "[", "](", "![", "> ", "- ", "1. ", "\n\n\n", "***", "<u>"} {
		assert.NotPanics(t, func() { Render(in) }, "input %q", in)
	}
	assert.Equal(t, "", Render(""))
}

func TestRenderIsDeterministic(t *testing.T) {
	in := "# title\n**b** *i* `c`\n> q\n- l\n1. n\n[a](b) ![c](d)"
	assert.Equal(t, Render(in), Render(in))
}
