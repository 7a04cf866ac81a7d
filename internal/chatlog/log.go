package chatlog

import (
	"fmt"
	"slices"

	"go-canvas/pkg/canvas"
)

// Policy decides where an entry older than the current tail goes.
type Policy int

const (
	// AppendAtTail keeps arrival order for incremental entries.
	AppendAtTail Policy = iota
	// SortedInsert places each entry after the last one not newer than it.
	SortedInsert
)

func (p Policy) String() string {
	switch p {
	case AppendAtTail:
		return "tail"
	case SortedInsert:
		return "sorted"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "tail":
		return AppendAtTail, nil
	case "sorted":
		return SortedInsert, nil
	default:
		return 0, fmt.Errorf("unknown chat append policy %q", s)
	}
}

// Log is the ordered chat stream. Not safe for concurrent use.
type Log struct {
	entries []canvas.ChatEntry
	policy  Policy
	display func([]canvas.ChatEntry)
}

type Option func(*Log)

func WithPolicy(p Policy) Option {
	return func(l *Log) {
		l.policy = p
	}
}

// WithDisplay registers a callback that receives a copy of the log after
// every change.
func WithDisplay(f func([]canvas.ChatEntry)) Option {
	return func(l *Log) {
		l.display = f
	}
}

func New(opts ...Option) *Log {
	l := &Log{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ApplyHistory replaces the log with entries sorted by timestamp. Entries
// sharing a timestamp keep their relative order.
func (l *Log) ApplyHistory(entries []canvas.ChatEntry) {
	l.entries = slices.Clone(entries)
	slices.SortStableFunc(l.entries, func(a, b canvas.ChatEntry) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		default:
			return 0
		}
	})
	l.notify()
}

// Append adds one entry. Entries already in the log never move.
func (l *Log) Append(e canvas.ChatEntry) {
	if l.policy == SortedInsert {
		i := len(l.entries)
		for i > 0 && l.entries[i-1].Timestamp > e.Timestamp {
			i--
		}
		l.entries = slices.Insert(l.entries, i, e)
	} else {
		l.entries = append(l.entries, e)
	}
	l.notify()
}

// Clear empties the log.
func (l *Log) Clear() {
	l.entries = nil
	l.notify()
}

func (l *Log) Entries() []canvas.ChatEntry {
	return slices.Clone(l.entries)
}

func (l *Log) Len() int {
	return len(l.entries)
}

func (l *Log) Policy() Policy {
	return l.policy
}

func (l *Log) notify() {
	if l.display != nil {
		l.display(l.Entries())
	}
}
