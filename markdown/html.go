package markdown

import (
	"html"
	"strings"
)

const (
	paragraphClass    = "text-base leading-7"
	codeClass         = "bg-muted px-1 py-0.5 rounded text-sm font-mono"
	quoteClass        = "border-l-4 border-muted pl-4 italic text-muted-foreground"
	imageClass        = "max-w-full h-auto rounded border"
	linkClass         = "text-blue-600 hover:text-blue-800 underline"
	bulletListClass   = "list-disc list-inside space-y-1 my-2"
	numberedListClass = "list-decimal list-inside space-y-1 my-2"
	itemClass         = "ml-4"
)

// Serialize writes doc as HTML. Literal text and attribute values are
// escaped; URLs are left to the sanitizer.
func Serialize(doc *Document) string {
	if doc == nil {
		return ""
	}
	var b strings.Builder
	for _, block := range doc.Blocks {
		writeBlock(&b, block)
	}
	return b.String()
}

func writeBlock(b *strings.Builder, n Node) {
	switch n := n.(type) {
	case Paragraph:
		b.WriteString(`<p class="` + paragraphClass + `">`)
		writeInlines(b, n.Children)
		b.WriteString("</p>")
	case Blockquote:
		b.WriteString(`<blockquote class="` + quoteClass + `">`)
		writeInlines(b, n.Children)
		b.WriteString("</blockquote>")
	case List:
		tag, class := "ul", bulletListClass
		if n.Ordered {
			tag, class = "ol", numberedListClass
		}
		b.WriteString("<" + tag + ` class="` + class + `">`)
		for _, item := range n.Items {
			b.WriteString(`<li class="` + itemClass + `">`)
			writeInlines(b, item)
			b.WriteString("</li>")
		}
		b.WriteString("</" + tag + ">")
	default:
		writeInline(b, n)
	}
}

func writeInlines(b *strings.Builder, nodes []Node) {
	for _, n := range nodes {
		writeInline(b, n)
	}
}

func writeInline(b *strings.Builder, n Node) {
	switch n := n.(type) {
	case Text:
		b.WriteString(html.EscapeString(n.Value))
	case LineBreak:
		b.WriteString("<br/>")
	case Bold:
		wrap(b, "strong", n.Children)
	case Italic:
		wrap(b, "em", n.Children)
	case Underline:
		wrap(b, "u", n.Children)
	case Code:
		b.WriteString(`<code class="` + codeClass + `">`)
		b.WriteString(html.EscapeString(n.Value))
		b.WriteString("</code>")
	case Link:
		b.WriteString(`<a href="` + html.EscapeString(n.URL) + `" class="` + linkClass +
			`" target="_blank" rel="noopener noreferrer">`)
		writeInlines(b, n.Children)
		b.WriteString("</a>")
	case Image:
		b.WriteString(`<img src="` + html.EscapeString(n.URL) + `" alt="` + html.EscapeString(n.Alt) +
			`" class="` + imageClass + `"/>`)
	}
}

func wrap(b *strings.Builder, tag string, children []Node) {
	b.WriteString("<" + tag + ">")
	writeInlines(b, children)
	b.WriteString("</" + tag + ">")
}
