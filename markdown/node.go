// Package markdown renders the small markdown dialect used by the question,
// answer and comment editors.
//
// Rendering is split in two: Parse builds a Document tree and Serialize turns
// it into HTML. Render chains both and runs the result through an allow-list
// sanitizer; it is the only entry point the web pages and the live preview
// use, so both always produce the same bytes for the same input.
package markdown

// Node is an element of a parsed document.
type Node interface {
	node()
}

// Document is the root of a parsed text.
type Document struct {
	Blocks []Node
}

// Paragraph holds inline content; lines are separated by LineBreak nodes.
type Paragraph struct {
	Children []Node
}

// Blockquote is a single "> " line.
type Blockquote struct {
	Children []Node
}

// List is a run of consecutive items of the same kind.
type List struct {
	Ordered bool
	Items   [][]Node
}

// Text is literal text. It is escaped on output.
type Text struct {
	Value string
}

// LineBreak separates two lines of the same paragraph.
type LineBreak struct{}

type Bold struct {
	Children []Node
}

type Italic struct {
	Children []Node
}

type Underline struct {
	Children []Node
}

// Code is an inline code span. Its content is never parsed further.
type Code struct {
	Value string
}

type Link struct {
	URL      string
	Children []Node
}

type Image struct {
	URL string
	Alt string
}

func (Document) node()   {}
func (Paragraph) node()  {}
func (Blockquote) node() {}
func (List) node()       {}
func (Text) node()       {}
func (LineBreak) node()  {}
func (Bold) node()       {}
func (Italic) node()     {}
func (Underline) node()  {}
func (Code) node()       {}
func (Link) node()       {}
func (Image) node()      {}
