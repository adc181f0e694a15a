package editor

import (
	"fmt"
	"strings"
)

// TextView is the editable text the history is kept for.
type TextView interface {
	Text() string
	Selection() (start, end int)
	SetText(text string)
	Select(start, end int)
}

// Editor ties a History to a TextView. Callers report edits with Changed;
// Undo and Redo write the restored snapshot back into the view.
type Editor struct {
	view    TextView
	history *History
}

// New seeds a history of at most limit snapshots with the current text of
// view.
func New(view TextView, limit int) *Editor {
	e := &Editor{view: view, history: NewHistory(limit)}
	e.history.Seed(view.Text())
	return e
}

func (e *Editor) History() *History { return e.history }

func (e *Editor) View() TextView { return e.view }

// Changed observes the view after an edit. It reports whether a snapshot
// was recorded.
func (e *Editor) Changed() bool {
	start, end := e.view.Selection()
	return e.history.RecordIfChanged(e.view.Text(), start, end)
}

// Undo restores the previous snapshot, including its selection.
func (e *Editor) Undo() bool {
	s, ok := e.history.Undo()
	if !ok {
		return false
	}
	e.restore(s)
	return true
}

// Redo restores the next snapshot, including its selection.
func (e *Editor) Redo() bool {
	s, ok := e.history.Redo()
	if !ok {
		return false
	}
	e.restore(s)
	return true
}

func (e *Editor) restore(s Snapshot) {
	e.view.SetText(s.Content)
	// The replay is observed like any other change and swallowed by the
	// history.
	e.Changed()
	e.view.Select(s.SelectionStart, s.SelectionEnd)
}

// Insert wraps the current selection in before and after, leaves the
// wrapped text selected and records the change.
func (e *Editor) Insert(before, after string) {
	text := []rune(e.view.Text())
	selStart, selEnd := e.view.Selection()
	start, end := clampSelection(len(text), selStart, selEnd)

	var b strings.Builder
	b.WriteString(string(text[:start]))
	b.WriteString(before)
	b.WriteString(string(text[start:end]))
	b.WriteString(after)
	b.WriteString(string(text[end:]))

	e.view.SetText(b.String())
	offset := start + len([]rune(before))
	e.view.Select(offset, offset+(end-start))
	e.Changed()
}

// Action is a toolbar button.
type Action int

const (
	Bold Action = iota
	Italic
	Underline
	Code
	Quote
	BulletList
	NumberedList
	Link
	Image
)

var actions = []struct {
	name          string
	before, after string
}{
	Bold:         {"bold", "**", "**"},
	Italic:       {"italic", "*", "*"},
	Underline:    {"underline", "<u>", "</u>"},
	Code:         {"code", "`", "`"},
	Quote:        {"quote", "> ", ""},
	BulletList:   {"bullet-list", "- ", ""},
	NumberedList: {"numbered-list", "1. ", ""},
	Link:         {"link", "[", "](url)"},
	Image:        {"image", "![alt text](", ")"},
}

func (a Action) String() string {
	if a < 0 || int(a) >= len(actions) {
		return fmt.Sprintf("Action(%d)", int(a))
	}
	return actions[a].name
}

// ParseAction maps a toolbar button name such as "bold" to its Action.
func ParseAction(name string) (Action, error) {
	for i, a := range actions {
		if a.name == name {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("unknown format action %q", name)
}

// Apply runs a toolbar button against the current selection.
func (e *Editor) Apply(a Action) error {
	if a < 0 || int(a) >= len(actions) {
		return fmt.Errorf("unknown format action %d", int(a))
	}
	e.Insert(actions[a].before, actions[a].after)
	return nil
}

// Key is a key press with its modifiers. Name is the key value as reported
// by the browser, so Shift+z arrives as "Z".
type Key struct {
	Name  string
	Ctrl  bool
	Shift bool
}

// HandleKey runs the undo/redo shortcuts: Ctrl+Z undoes, Ctrl+Y and
// Ctrl+Shift+Z redo. It reports whether the key was consumed.
func (e *Editor) HandleKey(k Key) bool {
	if !k.Ctrl {
		return false
	}
	switch {
	case k.Name == "z" && !k.Shift:
		e.Undo()
		return true
	case k.Name == "y", k.Name == "Z" && k.Shift:
		e.Redo()
		return true
	}
	return false
}

func clampSelection(n, start, end int) (int, int) {
	start = min(max(start, 0), n)
	end = min(max(end, 0), n)
	if start > end {
		start, end = end, start
	}
	return start, end
}
