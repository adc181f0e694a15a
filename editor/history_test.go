package editor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHistoryIsEmpty(t *testing.T) {
	h := NewHistory(0)
	assert.Equal(t, -1, h.Cursor())
	assert.Equal(t, 0, h.Len())
	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())

	_, ok := h.Undo()
	assert.False(t, ok)
	_, ok = h.Redo()
	assert.False(t, ok)
	_, ok = h.Current()
	assert.False(t, ok)
}

func TestFirstObservationSeeds(t *testing.T) {
	h := NewHistory(0)
	assert.False(t, h.RecordIfChanged("initial", 3, 4))

	require.Equal(t, 1, h.Len())
	assert.Equal(t, 0, h.Cursor())
	cur, ok := h.Current()
	require.True(t, ok)
	assert.Equal(t, Snapshot{Content: "initial"}, cur)

	_, ok = h.Undo()
	assert.False(t, ok, "undo on an untouched buffer is a no-op")
}

func TestUnchangedContentIsNotRecorded(t *testing.T) {
	h := NewHistory(0)
	h.Seed("a")
	assert.False(t, h.RecordIfChanged("a", 1, 1))
	assert.Equal(t, 1, h.Len())
}

func TestUndoRedoRoundTrip(t *testing.T) {
	h := NewHistory(0)
	h.Seed("seed")
	for _, s := range []string{"one", "two", "three"} {
		require.True(t, h.RecordIfChanged(s, len(s), len(s)))
	}

	var content string
	for i := 0; i < 3; i++ {
		s, ok := h.Undo()
		require.True(t, ok)
		content = s.Content
		// The host applies the snapshot and reports the change back.
		assert.False(t, h.RecordIfChanged(content, s.SelectionStart, s.SelectionEnd))
	}
	assert.Equal(t, "seed", content)
	assert.Equal(t, 0, h.Cursor())
	assert.Equal(t, 4, h.Len())

	for i := 0; i < 3; i++ {
		s, ok := h.Redo()
		require.True(t, ok)
		content = s.Content
		assert.False(t, h.RecordIfChanged(content, s.SelectionStart, s.SelectionEnd))
	}
	assert.Equal(t, "three", content)
	assert.Equal(t, 3, h.Cursor())

	_, ok := h.Redo()
	assert.False(t, ok)
}

func TestUndoRestoresSelection(t *testing.T) {
	h := NewHistory(0)
	h.Seed("")
	h.RecordIfChanged("abc", 1, 2)
	h.RecordIfChanged("abcd", 4, 4)

	s, ok := h.Undo()
	require.True(t, ok)
	assert.Equal(t, Snapshot{Content: "abc", SelectionStart: 1, SelectionEnd: 2}, s)
}

func TestReplaySuppressesExactlyOneChange(t *testing.T) {
	h := NewHistory(0)
	h.Seed("a")
	h.RecordIfChanged("ab", 2, 2)

	_, ok := h.Undo()
	require.True(t, ok)
	assert.Equal(t, ReplayingUndo, h.Replay())

	assert.False(t, h.RecordIfChanged("a", 1, 1), "the replay itself")
	assert.Equal(t, Idle, h.Replay())
	assert.True(t, h.RecordIfChanged("ax", 2, 2), "the next real edit")
}

func TestReplayFlagIsConsumedEvenWithoutChange(t *testing.T) {
	h := NewHistory(0)
	h.Seed("a")
	h.RecordIfChanged("ab", 2, 2)
	h.Undo()

	// A no-op observation still clears the flag.
	assert.False(t, h.RecordIfChanged("ab", 2, 2))
	assert.Equal(t, Idle, h.Replay())
}

func TestNewEditAfterUndoDropsRedoBranch(t *testing.T) {
	h := NewHistory(0)
	h.Seed("a")
	h.RecordIfChanged("ab", 2, 2)
	h.RecordIfChanged("abc", 3, 3)

	s, _ := h.Undo()
	h.RecordIfChanged(s.Content, s.SelectionStart, s.SelectionEnd)
	require.True(t, h.CanRedo())

	require.True(t, h.RecordIfChanged("abX", 3, 3))
	assert.False(t, h.CanRedo())
	assert.Equal(t, 3, h.Len())

	var contents []string
	for _, e := range h.Entries() {
		contents = append(contents, e.Content)
	}
	assert.Equal(t, []string{"a", "ab", "abX"}, contents)
}

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(DefaultHistoryLimit)
	h.Seed("v0")
	for i := 1; i <= DefaultHistoryLimit; i++ {
		require.True(t, h.RecordIfChanged(fmt.Sprintf("v%d", i), i, i))
	}

	// 51 distinct snapshots were offered; the seed was evicted.
	assert.Equal(t, DefaultHistoryLimit, h.Len())
	assert.Equal(t, DefaultHistoryLimit-1, h.Cursor())
	entries := h.Entries()
	assert.Equal(t, "v1", entries[0].Content)

	cur, ok := h.Current()
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf("v%d", DefaultHistoryLimit), cur.Content)
}

func TestHistoryCustomLimit(t *testing.T) {
	h := NewHistory(3)
	h.Seed("a")
	h.RecordIfChanged("b", 0, 0)
	h.RecordIfChanged("c", 0, 0)
	h.RecordIfChanged("d", 0, 0)

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, 2, h.Cursor())
	assert.Equal(t, "b", h.Entries()[0].Content)
}

func TestReplayStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "replaying-undo", ReplayingUndo.String())
	assert.Equal(t, "replaying-redo", ReplayingRedo.String())
}
