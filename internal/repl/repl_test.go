package repl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHistory(t *testing.T) *History {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	h, err := NewHistory()
	require.NoError(t, err)
	return h
}

func TestHistoryAddAndRecall(t *testing.T) {
	h := newTestHistory(t)
	h.Add("first")
	h.Add("second")

	line, ok := h.Prev()
	assert.True(t, ok)
	assert.Equal(t, "second", line)

	line, ok = h.Prev()
	assert.True(t, ok)
	assert.Equal(t, "first", line)

	_, ok = h.Prev()
	assert.False(t, ok, "stepping past the oldest entry")

	line, ok = h.Next()
	assert.True(t, ok)
	assert.Equal(t, "second", line)

	_, ok = h.Next()
	assert.False(t, ok, "stepping past the newest entry")
}

func TestHistorySkipsConsecutiveDuplicates(t *testing.T) {
	h := newTestHistory(t)
	h.Add("same")
	h.Add("same")
	assert.Equal(t, 1, h.Size())

	h.Add("other")
	h.Add("same")
	assert.Equal(t, 3, h.Size())
}

func TestHistoryTruncatesAtLimit(t *testing.T) {
	h := newTestHistory(t)
	h.Autosave = false
	for i := 0; i < historyLimit+10; i++ {
		h.Add("entry " + strings.Repeat("x", i%7) + string(rune('a'+i%26)))
	}
	assert.LessOrEqual(t, h.Size(), historyLimit)
}

func TestHistoryPersistsAcrossInstances(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	h, err := NewHistory()
	require.NoError(t, err)
	h.Add("remembered line")

	data, err := os.ReadFile(filepath.Join(home, ".please", "history"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "remembered line")

	h2, err := NewHistory()
	require.NoError(t, err)
	line, ok := h2.Prev()
	assert.True(t, ok)
	assert.Equal(t, "remembered line", line)
}

func TestEditStateInsertAndDelete(t *testing.T) {
	st := &editState{}
	for _, r := range "helo" {
		st.insert(r)
	}
	st.pos = 3
	st.insert('l')
	assert.Equal(t, "hello", string(st.line))
	assert.Equal(t, 4, st.pos)

	st.pos = 0
	st.deleteAt()
	assert.Equal(t, "ello", string(st.line))

	st.pos = len(st.line)
	st.deleteAt()
	assert.Equal(t, "ello", string(st.line), "delete at end is a no-op")
}

func TestEditStateWordMotion(t *testing.T) {
	st := &editState{line: []rune("one two  three"), pos: 14}

	st.moveLeftWord()
	assert.Equal(t, 9, st.pos, "start of three")

	st.moveLeftWord()
	assert.Equal(t, 4, st.pos, "start of two")

	st.moveLeftWord()
	assert.Equal(t, 0, st.pos)

	st.moveRightWord()
	assert.Equal(t, 4, st.pos, "past one and its space")
}

func TestEditStateDeleteWord(t *testing.T) {
	st := &editState{line: []rune("git commit  "), pos: 12}
	st.deleteWord()
	assert.Equal(t, "git ", string(st.line))
	assert.Equal(t, 4, st.pos)

	st.deleteWord()
	assert.Equal(t, "", string(st.line))
	assert.Equal(t, 0, st.pos)
}
