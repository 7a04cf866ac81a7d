package identity

import (
	"fmt"
	"math/rand"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"

	"go-canvas/pkg/canvas"
)

var (
	adjectives = []string{"Happy", "Sleepy", "Grumpy", "Dopey", "Sneezy", "Bashful", "Doc"}
	nouns      = []string{"Panda", "Tiger", "Lion", "Bear", "Fox", "Wolf", "Eagle"}
)

const digits = "0123456789"

// Allocator hands out memorable participant ids such as "SleepyFox".
type Allocator struct {
	suffixLen int
	pick      func(n int) int
}

type Option func(*Allocator)

// WithSuffix appends n random digits to every allocated id. Without it only
// 49 distinct ids exist.
func WithSuffix(n int) Option {
	return func(a *Allocator) {
		a.suffixLen = n
	}
}

func NewAllocator(opts ...Option) *Allocator {
	a := &Allocator{pick: rand.Intn}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate returns a fresh id.
func (a *Allocator) Allocate() (canvas.ParticipantID, error) {
	id := adjectives[a.pick(len(adjectives))] + nouns[a.pick(len(nouns))]
	if a.suffixLen > 0 {
		suffix, err := nanoid.Generate(digits, a.suffixLen)
		if err != nil {
			return "", fmt.Errorf("generate id suffix: %w", err)
		}
		id += suffix
	}
	return canvas.ParticipantID(id), nil
}

// Resolve returns override when it is non-blank and a freshly allocated id
// otherwise.
func (a *Allocator) Resolve(override string) (canvas.ParticipantID, error) {
	if trimmed := strings.TrimSpace(override); trimmed != "" {
		return canvas.ParticipantID(trimmed), nil
	}
	return a.Allocate()
}
