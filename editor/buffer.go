package editor

// Buffer is an in-memory TextView. Draft sessions use it to mirror the text
// area of a browser.
type Buffer struct {
	text       []rune
	start, end int
}

func NewBuffer(text string) *Buffer {
	return &Buffer{text: []rune(text)}
}

func (b *Buffer) Text() string { return string(b.text) }

func (b *Buffer) Selection() (int, int) { return b.start, b.end }

// SetText replaces the text and clamps the selection into it.
func (b *Buffer) SetText(text string) {
	b.text = []rune(text)
	b.start, b.end = clampSelection(len(b.text), b.start, b.end)
}

func (b *Buffer) Select(start, end int) {
	b.start, b.end = clampSelection(len(b.text), start, end)
}
