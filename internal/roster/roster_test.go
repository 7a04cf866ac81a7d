package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-canvas/pkg/canvas"
)

func ids(s ...string) []canvas.ParticipantID {
	out := make([]canvas.ParticipantID, 0, len(s))
	for _, v := range s {
		out = append(out, canvas.ParticipantID(v))
	}
	return out
}

func TestRoster_ReplaceThenLeave(t *testing.T) {
	r := New()
	r.Replace(ids("A", "B", "C"))

	assert.True(t, r.Remove("B"))

	assert.Equal(t, ids("A", "C"), r.Members())
	assert.False(t, r.Contains("B"))
}

func TestRoster_RepeatedLeaveIsNoop(t *testing.T) {
	var calls int
	r := New(WithDisplay(func([]canvas.ParticipantID) { calls++ }))
	r.Replace(ids("A", "B", "C"))

	require.True(t, r.Remove("B"))
	assert.False(t, r.Remove("B"))
	assert.False(t, r.Remove("Z"))

	assert.Equal(t, ids("A", "C"), r.Members())
	assert.Equal(t, 2, calls)
}

func TestRoster_ReplaceIsTotal(t *testing.T) {
	r := New()
	r.Replace(ids("A", "B"))
	r.Replace(ids("C"))

	assert.Equal(t, ids("C"), r.Members())
	assert.False(t, r.Contains("A"))
}

func TestRoster_ReplaceCollapsesDuplicates(t *testing.T) {
	r := New()
	r.Replace(ids("Anonymous", "B", "Anonymous"))

	assert.Equal(t, ids("Anonymous", "B"), r.Members())
	assert.Equal(t, 2, r.Len())

	r.Remove("Anonymous")
	assert.Equal(t, ids("B"), r.Members())
}

func TestRoster_Reset(t *testing.T) {
	r := New()
	r.Replace(ids("A"))

	r.Reset()

	assert.Equal(t, 0, r.Len())
	assert.False(t, r.Contains("A"))
}

func TestRoster_MembersIsACopy(t *testing.T) {
	r := New()
	r.Replace(ids("A", "B"))

	m := r.Members()
	m[0] = "mutated"

	assert.Equal(t, ids("A", "B"), r.Members())
}
