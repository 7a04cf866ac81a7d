package roster

import (
	"slices"

	"go-canvas/pkg/canvas"
)

// Roster is the set of participants currently online, kept in the order the
// relay listed them. Not safe for concurrent use.
type Roster struct {
	members []canvas.ParticipantID
	index   map[canvas.ParticipantID]struct{}
	display func([]canvas.ParticipantID)
}

type Option func(*Roster)

// WithDisplay registers a callback that receives a copy of the members after
// every change.
func WithDisplay(f func([]canvas.ParticipantID)) Option {
	return func(r *Roster) {
		r.display = f
	}
}

func New(opts ...Option) *Roster {
	r := &Roster{index: make(map[canvas.ParticipantID]struct{})}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Replace swaps the whole set. Duplicate ids collapse to their first
// occurrence; the relay lists one entry per connection.
func (r *Roster) Replace(ids []canvas.ParticipantID) {
	r.members = make([]canvas.ParticipantID, 0, len(ids))
	r.index = make(map[canvas.ParticipantID]struct{}, len(ids))
	for _, id := range ids {
		if _, seen := r.index[id]; seen {
			continue
		}
		r.index[id] = struct{}{}
		r.members = append(r.members, id)
	}
	r.notify()
}

// Remove drops id and reports whether it was present.
func (r *Roster) Remove(id canvas.ParticipantID) bool {
	if _, ok := r.index[id]; !ok {
		return false
	}
	delete(r.index, id)
	r.members = slices.DeleteFunc(r.members, func(m canvas.ParticipantID) bool { return m == id })
	r.notify()
	return true
}

func (r *Roster) Contains(id canvas.ParticipantID) bool {
	_, ok := r.index[id]
	return ok
}

func (r *Roster) Members() []canvas.ParticipantID {
	return slices.Clone(r.members)
}

func (r *Roster) Len() int {
	return len(r.members)
}

// Reset empties the roster without treating it as a relay update.
func (r *Roster) Reset() {
	r.members = nil
	clear(r.index)
	r.notify()
}

func (r *Roster) notify() {
	if r.display != nil {
		r.display(r.Members())
	}
}
