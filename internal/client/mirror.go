package client

import (
	"slices"
	"sync"

	"go-canvas/internal/session"
	"go-canvas/pkg/canvas"
)

// Mirror copies what the session pushes to its displays so the UI can read
// it from its own goroutine. Each change is signalled on Changed; bursts of
// changes collapse into one signal.
type Mirror struct {
	mu     sync.Mutex
	grid   [canvas.GridSize][canvas.GridSize]canvas.Color
	chat   []canvas.ChatEntry
	roster []canvas.ParticipantID
	state  session.State

	changed chan struct{}
}

func NewMirror() *Mirror {
	m := &Mirror{changed: make(chan struct{}, 1)}
	m.resetGrid()
	return m
}

func (m *Mirror) resetGrid() {
	for y := range m.grid {
		for x := range m.grid[y] {
			m.grid[y][x] = canvas.Background
		}
	}
}

func (m *Mirror) notify() {
	select {
	case m.changed <- struct{}{}:
	default:
	}
}

func (m *Mirror) Changed() <-chan struct{} {
	return m.changed
}

// DrawCell implements board.Renderer.
func (m *Mirror) DrawCell(c canvas.Coord, color canvas.Color) {
	if !c.Valid() {
		return
	}
	m.mu.Lock()
	m.grid[c.Y][c.X] = color
	m.mu.Unlock()
	m.notify()
}

// Clear implements board.Renderer.
func (m *Mirror) Clear() {
	m.mu.Lock()
	m.resetGrid()
	m.mu.Unlock()
	m.notify()
}

func (m *Mirror) ShowChat(entries []canvas.ChatEntry) {
	m.mu.Lock()
	m.chat = slices.Clone(entries)
	m.mu.Unlock()
	m.notify()
}

func (m *Mirror) ShowRoster(ids []canvas.ParticipantID) {
	m.mu.Lock()
	m.roster = slices.Clone(ids)
	m.mu.Unlock()
	m.notify()
}

func (m *Mirror) SetState(s session.State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.notify()
}

// Frame is one consistent read of the mirror.
type Frame struct {
	Grid   [canvas.GridSize][canvas.GridSize]canvas.Color
	Chat   []canvas.ChatEntry
	Roster []canvas.ParticipantID
	State  session.State
}

func (m *Mirror) Frame() Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Frame{
		Grid:   m.grid,
		Chat:   slices.Clone(m.chat),
		Roster: slices.Clone(m.roster),
		State:  m.state,
	}
}
