package markdown

import (
	"regexp"
	"strings"
)

var (
	quoteLine    = regexp.MustCompile(`^> (.+)$`)
	bulletLine   = regexp.MustCompile(`^- (.+)$`)
	numberedLine = regexp.MustCompile(`^\d+\. (.+)$`)

	imagePattern = regexp.MustCompile(`^!\[([^\]]*)\]\(([^)]+)\)`)
	linkPattern  = regexp.MustCompile(`^\[([^\]]+)\]\(([^)]+)\)`)
)

// Parse builds the document tree for text. It never fails: anything that is
// not recognised ends up as Text.
func Parse(text string) *Document {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	p := &blockParser{}
	for _, line := range strings.Split(text, "\n") {
		p.line(line)
	}
	p.closeParagraph()
	p.closeList()
	return &Document{Blocks: p.blocks}
}

// blockParser decides block structure on the original line boundaries,
// before any inline markup is looked at.
type blockParser struct {
	blocks []Node
	para   []Node
	list   *List
}

func (p *blockParser) line(line string) {
	// Blank lines end a paragraph but not a list run.
	if strings.TrimSpace(line) == "" {
		p.closeParagraph()
		return
	}

	if m := bulletLine.FindStringSubmatch(line); m != nil {
		p.item(false, m[1])
		return
	}
	if m := numberedLine.FindStringSubmatch(line); m != nil {
		p.item(true, m[1])
		return
	}
	p.closeList()

	if m := quoteLine.FindStringSubmatch(line); m != nil {
		p.closeParagraph()
		p.blocks = append(p.blocks, Blockquote{Children: parseInline(m[1])})
		return
	}

	if len(p.para) > 0 {
		p.para = append(p.para, LineBreak{})
	}
	p.para = append(p.para, parseInline(line)...)
}

func (p *blockParser) item(ordered bool, content string) {
	p.closeParagraph()
	if p.list != nil && p.list.Ordered != ordered {
		p.closeList()
	}
	if p.list == nil {
		p.list = &List{Ordered: ordered}
	}
	p.list.Items = append(p.list.Items, parseInline(content))
}

func (p *blockParser) closeParagraph() {
	if len(p.para) == 0 {
		return
	}
	p.blocks = append(p.blocks, Paragraph{Children: p.para})
	p.para = nil
}

func (p *blockParser) closeList() {
	if p.list == nil {
		return
	}
	p.blocks = append(p.blocks, *p.list)
	p.list = nil
}

func parseInline(s string) []Node {
	return parseSpans(s, true)
}

// parseSpans scans one line left to right. Bold pairs are matched before
// single asterisks, and images before links, so "**" and "![" are never
// mistaken for their shorter forms.
func parseSpans(s string, allowBold bool) []Node {
	var (
		nodes []Node
		text  strings.Builder
	)
	flush := func() {
		if text.Len() > 0 {
			nodes = append(nodes, Text{Value: text.String()})
			text.Reset()
		}
	}
	emit := func(n Node) {
		flush()
		nodes = append(nodes, n)
	}

	for i := 0; i < len(s); {
		rest := s[i:]
		switch {
		case rest[0] == '`':
			if j := strings.IndexByte(rest[1:], '`'); j >= 0 {
				emit(Code{Value: rest[1 : 1+j]})
				i += j + 2
				continue
			}
		case strings.HasPrefix(rest, "!["):
			if m := imagePattern.FindStringSubmatch(rest); m != nil {
				emit(Image{Alt: m[1], URL: m[2]})
				i += len(m[0])
				continue
			}
		case rest[0] == '[':
			if m := linkPattern.FindStringSubmatch(rest); m != nil {
				emit(Link{URL: m[2], Children: parseSpans(m[1], allowBold)})
				i += len(m[0])
				continue
			}
		case strings.HasPrefix(rest, "<u>"):
			if j := strings.Index(rest[3:], "</u>"); j >= 0 {
				emit(Underline{Children: parseSpans(rest[3:3+j], allowBold)})
				i += 3 + j + 4
				continue
			}
		case strings.HasPrefix(rest, "**"):
			if !allowBold {
				break
			}
			if j := strings.Index(rest[2:], "**"); j >= 0 {
				emit(Bold{Children: parseSpans(rest[2:2+j], false)})
				i += j + 4
				continue
			}
		case rest[0] == '*':
			if j := italicEnd(rest, 1); j >= 0 {
				emit(Italic{Children: parseSpans(rest[1:j], allowBold)})
				i += j + 1
				continue
			}
		}
		text.WriteByte(s[i])
		i++
	}
	flush()
	return nodes
}

// italicEnd returns the index of the asterisk closing an italic span opened
// just before from, stepping over complete bold pairs so that "*a **b** c*"
// stays one span.
func italicEnd(s string, from int) int {
	for j := from; j < len(s); j++ {
		if s[j] != '*' {
			continue
		}
		if strings.HasPrefix(s[j:], "**") {
			if k := strings.Index(s[j+2:], "**"); k >= 0 {
				j += k + 3
				continue
			}
		}
		return j
	}
	return -1
}
