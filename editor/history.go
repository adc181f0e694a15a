// Package editor keeps the undo/redo history of a markdown text area and
// applies the formatting toolbar to it.
package editor

// DefaultHistoryLimit is the number of snapshots a History keeps when no
// limit is given.
const DefaultHistoryLimit = 50

// Snapshot is one recorded state of the text and its selection. Offsets are
// counted in characters (runes).
type Snapshot struct {
	Content        string `json:"content"`
	SelectionStart int    `json:"selectionStart"`
	SelectionEnd   int    `json:"selectionEnd"`
}

// ReplayState says whether the next observed change was caused by the
// history itself. It is consumed by the next RecordIfChanged call.
type ReplayState int

const (
	Idle ReplayState = iota
	ReplayingUndo
	ReplayingRedo
)

func (s ReplayState) String() string {
	switch s {
	case ReplayingUndo:
		return "replaying-undo"
	case ReplayingRedo:
		return "replaying-redo"
	default:
		return "idle"
	}
}

// History is a bounded list of snapshots with a cursor on the current one.
// The cursor is -1 only while the history is empty.
//
// History is not safe for concurrent use.
type History struct {
	entries []Snapshot
	cursor  int
	limit   int
	replay  ReplayState
	last    string
}

// NewHistory returns an empty history keeping at most limit snapshots.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{cursor: -1, limit: limit}
}

// Seed records content with an empty selection if nothing has been recorded
// yet. It reports whether the history was seeded.
func (h *History) Seed(content string) bool {
	if len(h.entries) > 0 {
		return false
	}
	h.entries = append(h.entries, Snapshot{Content: content})
	h.cursor = 0
	h.last = content
	return true
}

// RecordIfChanged records a snapshot when content differs from the last
// observed content and the change is not a replay of Undo or Redo. Entries
// after the cursor are discarded first. It reports whether a snapshot was
// added.
func (h *History) RecordIfChanged(content string, selectionStart, selectionEnd int) bool {
	if h.Seed(content) {
		return false
	}

	replaying := h.replay != Idle
	h.replay = Idle
	changed := content != h.last
	h.last = content
	if replaying || !changed {
		return false
	}

	h.entries = append(h.entries[:h.cursor+1], Snapshot{
		Content:        content,
		SelectionStart: selectionStart,
		SelectionEnd:   selectionEnd,
	})
	if len(h.entries) > h.limit {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:len(h.entries)-1]
	}
	h.cursor = len(h.entries) - 1
	return true
}

// Undo moves the cursor back and returns the snapshot to restore. At the
// oldest snapshot it does nothing and returns false.
func (h *History) Undo() (Snapshot, bool) {
	if h.cursor <= 0 {
		return Snapshot{}, false
	}
	h.cursor--
	h.replay = ReplayingUndo
	return h.entries[h.cursor], true
}

// Redo moves the cursor forward and returns the snapshot to restore. At the
// newest snapshot it does nothing and returns false.
func (h *History) Redo() (Snapshot, bool) {
	if h.cursor < 0 || h.cursor >= len(h.entries)-1 {
		return Snapshot{}, false
	}
	h.cursor++
	h.replay = ReplayingRedo
	return h.entries[h.cursor], true
}

func (h *History) CanUndo() bool { return h.cursor > 0 }

func (h *History) CanRedo() bool { return h.cursor >= 0 && h.cursor < len(h.entries)-1 }

// Len returns the number of recorded snapshots.
func (h *History) Len() int { return len(h.entries) }

// Cursor returns the index of the current snapshot, or -1 when empty.
func (h *History) Cursor() int { return h.cursor }

// Replay returns the pending replay state.
func (h *History) Replay() ReplayState { return h.replay }

// Current returns the snapshot under the cursor.
func (h *History) Current() (Snapshot, bool) {
	if h.cursor < 0 {
		return Snapshot{}, false
	}
	return h.entries[h.cursor], true
}

// Entries returns a copy of all snapshots, oldest first.
func (h *History) Entries() []Snapshot {
	out := make([]Snapshot, len(h.entries))
	copy(out, h.entries)
	return out
}
