package board

import (
	"fmt"
	"slices"

	"go-canvas/pkg/canvas"
)

// Renderer receives every committed change to the board.
type Renderer interface {
	DrawCell(c canvas.Coord, color canvas.Color)
	Clear()
}

// Store is this participant's view of the board: a sparse map from cell to
// colour where absent cells are canvas.Background. Writes are last-write-wins
// in order of application; nothing is timestamped.
//
// A Store is not safe for concurrent use. The session loop owns it.
type Store struct {
	cells    map[canvas.Coord]canvas.Color
	renderer Renderer
	outbox   func(canvas.Pixel)
}

type Option func(*Store)

func WithRenderer(r Renderer) Option {
	return func(s *Store) {
		s.renderer = r
	}
}

// WithOutbox sets where LocalPaint hands the painted pixel after applying it.
func WithOutbox(f func(canvas.Pixel)) Option {
	return func(s *Store) {
		s.outbox = f
	}
}

// SetOutbox replaces the LocalPaint destination.
func (s *Store) SetOutbox(f func(canvas.Pixel)) {
	s.outbox = f
}

func NewStore(opts ...Option) *Store {
	s := &Store{cells: make(map[canvas.Coord]canvas.Color)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ApplySnapshot replaces the whole board with pixels. Later entries for the
// same cell win.
func (s *Store) ApplySnapshot(pixels []canvas.Pixel) {
	s.cells = make(map[canvas.Coord]canvas.Color, len(pixels))
	for _, p := range pixels {
		if !p.Coord().Valid() {
			continue
		}
		s.cells[p.Coord()] = p.Color
	}

	if s.renderer == nil {
		return
	}
	s.renderer.Clear()
	for _, p := range s.Cells() {
		s.renderer.DrawCell(p.Coord(), p.Color)
	}
}

// ApplyPaint overwrites one cell.
func (s *Store) ApplyPaint(c canvas.Coord, color canvas.Color) error {
	if !c.Valid() {
		return fmt.Errorf("paint (%d,%d): %w", c.X, c.Y, canvas.ErrOutOfBounds)
	}
	s.cells[c] = color
	if s.renderer != nil {
		s.renderer.DrawCell(c, color)
	}
	return nil
}

// ApplyClear empties the board.
func (s *Store) ApplyClear() {
	clear(s.cells)
	if s.renderer != nil {
		s.renderer.Clear()
	}
}

// LocalPaint applies a paint made here before the relay has seen it, then
// passes it to the outbox. The relay's echo is harmless since painting the
// same colour twice changes nothing.
func (s *Store) LocalPaint(c canvas.Coord, color canvas.Color) error {
	normalized, err := canvas.NormalizeColor(string(color))
	if err != nil {
		return err
	}
	if err := s.ApplyPaint(c, normalized); err != nil {
		return err
	}
	if s.outbox != nil {
		s.outbox(canvas.Pixel{X: c.X, Y: c.Y, Color: normalized})
	}
	return nil
}

// At returns the colour of c, or canvas.Background when unpainted.
func (s *Store) At(c canvas.Coord) canvas.Color {
	if color, ok := s.cells[c]; ok {
		return color
	}
	return canvas.Background
}

func (s *Store) Len() int {
	return len(s.cells)
}

// Cells returns a copy of every painted cell in row-major order.
func (s *Store) Cells() []canvas.Pixel {
	out := make([]canvas.Pixel, 0, len(s.cells))
	for c, color := range s.cells {
		out = append(out, canvas.Pixel{X: c.X, Y: c.Y, Color: color})
	}
	slices.SortFunc(out, func(a, b canvas.Pixel) int {
		if a.Y != b.Y {
			return a.Y - b.Y
		}
		return a.X - b.X
	})
	return out
}
