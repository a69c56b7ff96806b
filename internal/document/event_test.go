package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSetGetRoundTrip(t *testing.T) {
	ev := New()
	require.True(t, ev.Set("/a/b", "hello"))
	v, ok := ev.GetString("/a/b")
	require.True(t, ok)
	assert.Equal(t, "hello", v)
}

func TestEventSetFailsOnNonObjectIntermediate(t *testing.T) {
	ev := New()
	require.True(t, ev.Set("/a", "leaf"))
	assert.False(t, ev.Set("/a/b", "x"), "intermediate path element is not an object")
}

func TestEventSetFailsOnArrayGapFill(t *testing.T) {
	ev := New()
	require.True(t, ev.Set("/arr/0", "first"))
	assert.False(t, ev.Set("/arr/5", "gap"), "writing past the next free slot must fail, not null-fill")
	assert.True(t, ev.Set("/arr/1", "second"))
}

func TestEventExistsVsNotExists(t *testing.T) {
	ev := New()
	require.True(t, ev.Set("/x", "v"))
	assert.True(t, ev.Exists("/x"))
	assert.False(t, ev.Exists("/y"))
}

func TestEventTypedGetReturnsAbsentOnMismatch(t *testing.T) {
	ev := New()
	require.True(t, ev.Set("/n", "not-a-number"))
	_, ok := ev.GetInt("/n")
	assert.False(t, ok, "type-mismatched access returns absent, not failure")
}

func TestEventErase(t *testing.T) {
	ev := New()
	require.True(t, ev.Set("/a/b", 1))
	assert.True(t, ev.Erase("/a/b"))
	assert.False(t, ev.Exists("/a/b"))
	assert.False(t, ev.Erase("/a/b"), "erasing an absent path reports nothing removed")
}

func TestEventAppend(t *testing.T) {
	ev := New()
	require.True(t, ev.Append("/list", "one"))
	require.True(t, ev.Append("/list", "two"))
	arr, ok := ev.GetArray("/list")
	require.True(t, ok)
	assert.Equal(t, []any{"one", "two"}, arr)
}

func TestEventPathEscaping(t *testing.T) {
	ev := New()
	require.True(t, ev.Set("/a~1b", "slash-key"))
	v, ok := ev.GetString("/a~1b")
	require.True(t, ok)
	assert.Equal(t, "slash-key", v)
}

func TestEventClone(t *testing.T) {
	ev := New()
	require.True(t, ev.Set("/a", "orig"))
	clone := ev.Clone()
	require.True(t, clone.Set("/a", "mutated"))
	v, _ := ev.GetString("/a")
	assert.Equal(t, "orig", v, "mutating the clone must not affect the original")
}
