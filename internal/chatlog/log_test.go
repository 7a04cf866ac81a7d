package chatlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-canvas/pkg/canvas"
)

func entry(user string, ts int64) canvas.ChatEntry {
	return canvas.ChatEntry{UserID: canvas.ParticipantID(user), Message: user, Timestamp: ts}
}

func timestamps(entries []canvas.ChatEntry) []int64 {
	out := make([]int64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Timestamp)
	}
	return out
}

func TestLog_ApplyHistorySorts(t *testing.T) {
	tests := []struct {
		name  string
		input []canvas.ChatEntry
		want  []int64
	}{
		{name: "already sorted", input: []canvas.ChatEntry{entry("a", 1), entry("b", 2)}, want: []int64{1, 2}},
		{name: "reversed", input: []canvas.ChatEntry{entry("a", 30), entry("b", 20), entry("c", 10)}, want: []int64{10, 20, 30}},
		{name: "shuffled", input: []canvas.ChatEntry{entry("a", 5), entry("b", 1), entry("c", 9), entry("d", 3)}, want: []int64{1, 3, 5, 9}},
		{name: "empty", input: nil, want: []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New()
			l.ApplyHistory(tt.input)
			assert.Equal(t, tt.want, timestamps(l.Entries()))
		})
	}
}

func TestLog_ApplyHistoryTiesKeepInputOrder(t *testing.T) {
	l := New()
	l.ApplyHistory([]canvas.ChatEntry{entry("late", 9), entry("first", 5), entry("second", 5)})

	got := l.Entries()
	require.Len(t, got, 3)
	assert.Equal(t, canvas.ParticipantID("first"), got[0].UserID)
	assert.Equal(t, canvas.ParticipantID("second"), got[1].UserID)
}

func TestLog_ApplyHistoryIdempotent(t *testing.T) {
	history := []canvas.ChatEntry{entry("b", 150), entry("a", 50)}
	l := New()

	l.ApplyHistory(history)
	first := l.Entries()
	l.ApplyHistory(history)

	assert.Equal(t, first, l.Entries())
}

func TestLog_ApplyHistoryDoesNotAliasInput(t *testing.T) {
	history := []canvas.ChatEntry{entry("b", 2), entry("a", 1)}
	l := New()

	l.ApplyHistory(history)

	assert.Equal(t, int64(2), history[0].Timestamp)
}

func TestLog_HistoryReplacesLocalEntries(t *testing.T) {
	l := New()
	l.Append(entry("me", 100))

	l.ApplyHistory([]canvas.ChatEntry{entry("x", 50), entry("y", 150)})

	assert.Equal(t, []int64{50, 150}, timestamps(l.Entries()))
}

func TestLog_AppendAtTail(t *testing.T) {
	l := New()
	l.ApplyHistory([]canvas.ChatEntry{entry("a", 10), entry("b", 20)})
	before := l.Entries()

	l.Append(entry("old", 5))

	got := l.Entries()
	require.Len(t, got, len(before)+1)
	assert.Equal(t, before, got[:len(before)])
	assert.Equal(t, []int64{10, 20, 5}, timestamps(got))
}

func TestLog_SortedInsert(t *testing.T) {
	l := New(WithPolicy(SortedInsert))
	l.ApplyHistory([]canvas.ChatEntry{entry("a", 10), entry("b", 20), entry("c", 30)})

	l.Append(entry("d", 15))
	l.Append(entry("e", 40))
	l.Append(entry("f", 20))
	l.Append(entry("g", 1))

	got := l.Entries()
	assert.Equal(t, []int64{1, 10, 15, 20, 20, 30, 40}, timestamps(got))
	assert.Equal(t, canvas.ParticipantID("b"), got[3].UserID)
	assert.Equal(t, canvas.ParticipantID("f"), got[4].UserID)
}

func TestLog_AppendGrowsByOne(t *testing.T) {
	for _, policy := range []Policy{AppendAtTail, SortedInsert} {
		t.Run(policy.String(), func(t *testing.T) {
			l := New(WithPolicy(policy))
			for i, ts := range []int64{5, 3, 9, 1} {
				l.Append(entry("u", ts))
				assert.Equal(t, i+1, l.Len())
			}
		})
	}
}

func TestLog_Clear(t *testing.T) {
	l := New()
	l.ApplyHistory([]canvas.ChatEntry{entry("a", 1)})
	l.Append(entry("b", 2))

	l.Clear()

	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Entries())
}

func TestLog_DisplayCallback(t *testing.T) {
	var calls [][]canvas.ChatEntry
	l := New(WithDisplay(func(entries []canvas.ChatEntry) { calls = append(calls, entries) }))

	l.ApplyHistory([]canvas.ChatEntry{entry("a", 2), entry("b", 1)})
	l.Append(entry("c", 3))
	l.Clear()

	require.Len(t, calls, 3)
	assert.Equal(t, []int64{1, 2}, timestamps(calls[0]))
	assert.Equal(t, []int64{1, 2, 3}, timestamps(calls[1]))
	assert.Empty(t, calls[2])
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, AppendAtTail, p)

	p, err = ParsePolicy("sorted")
	require.NoError(t, err)
	assert.Equal(t, SortedInsert, p)

	_, err = ParsePolicy("random")
	assert.Error(t, err)
}
