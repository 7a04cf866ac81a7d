package canvas

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// GridSize is the width and height of the shared board in cells.
	GridSize = 50

	// Background is the colour of every cell nobody has painted.
	Background Color = "#FFFFFF"

	// SystemAuthor marks chat entries emitted by the relay itself.
	SystemAuthor ParticipantID = "System"

	// MaxChatLength caps a chat message, in runes.
	MaxChatLength = 256
)

var (
	ErrOutOfBounds  = errors.New("coordinate out of bounds")
	ErrInvalidColor = errors.New("invalid color")
)

// ParticipantID names one connected participant. It is chosen client-side and
// is only unique in practice, not by construction.
type ParticipantID string

// Coord identifies one cell of the grid.
type Coord struct {
	X int
	Y int
}

func (c Coord) Valid() bool {
	return c.X >= 0 && c.X < GridSize && c.Y >= 0 && c.Y < GridSize
}

// String renders the coordinate as "x:y", the key the relay stores cells under.
func (c Coord) String() string {
	return strconv.Itoa(c.X) + ":" + strconv.Itoa(c.Y)
}

// ParseCoord is the inverse of Coord.String.
func ParseCoord(s string) (Coord, error) {
	xs, ys, ok := strings.Cut(s, ":")
	if !ok {
		return Coord{}, fmt.Errorf("parse coordinate %q: missing separator", s)
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return Coord{}, fmt.Errorf("parse coordinate %q: %w", s, err)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return Coord{}, fmt.Errorf("parse coordinate %q: %w", s, err)
	}
	c := Coord{X: x, Y: y}
	if !c.Valid() {
		return Coord{}, fmt.Errorf("parse coordinate %q: %w", s, ErrOutOfBounds)
	}
	return c, nil
}

// Pixel is one painted cell as it travels on the wire.
type Pixel struct {
	X      int           `json:"x"`
	Y      int           `json:"y"`
	Color  Color         `json:"color"`
	UserID ParticipantID `json:"userId,omitempty"`
}

func (p Pixel) Coord() Coord {
	return Coord{X: p.X, Y: p.Y}
}

// Validate checks the coordinate range and normalises the colour in place.
func (p *Pixel) Validate() error {
	if !p.Coord().Valid() {
		return fmt.Errorf("pixel (%d,%d): %w", p.X, p.Y, ErrOutOfBounds)
	}
	c, err := NormalizeColor(string(p.Color))
	if err != nil {
		return fmt.Errorf("pixel (%d,%d): %w", p.X, p.Y, err)
	}
	p.Color = c
	return nil
}

// ChatEntry is one line of the shared chat. Timestamp is unix milliseconds as
// stamped by the relay.
type ChatEntry struct {
	UserID    ParticipantID `json:"userId"`
	Message   string        `json:"message"`
	Timestamp int64         `json:"timestamp"`
	IsSystem  bool          `json:"isSystem,omitempty"`
}

func (e ChatEntry) SentAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}
