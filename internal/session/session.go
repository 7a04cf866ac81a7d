package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"go-canvas/internal/board"
	"go-canvas/internal/chatlog"
	"go-canvas/internal/identity"
	"go-canvas/internal/roster"
	"go-canvas/internal/transport"
	"go-canvas/pkg/canvas"
)

var (
	ErrEmptyMessage   = errors.New("chat message is empty")
	ErrMessageTooLong = errors.New("chat message too long")
	ErrNotConnected   = errors.New("session not connected")
	ErrAlreadyStarted = errors.New("session already started")
	ErrStopped        = errors.New("session stopped")

	// ErrClosed answers a Start whose dial was overtaken by Close.
	ErrClosed = errors.New("session closed while connecting")
)

// State is where a Session is in its startup sequence.
type State int32

const (
	Disconnected State = iota
	Connecting
	AwaitingSnapshots
	Live
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case AwaitingSnapshots:
		return "awaiting snapshots"
	case Live:
		return "live"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Channel is the transport a Session drives. *transport.Channel implements it.
type Channel interface {
	OnMessage(h func([]byte))
	Open(ctx context.Context, endpoint string, id canvas.ParticipantID) error
	Send(v any) error
	Close() error
	Done() <-chan struct{}
	Err() error
}

// Deps are the collaborators a Session is built from. Nil fields get defaults.
type Deps struct {
	Board      *board.Store
	Chat       *chatlog.Log
	Roster     *roster.Roster
	Identity   *identity.Allocator
	NewChannel func() Channel
	Logger     *zap.Logger

	// OnState observes every state transition. It runs on the session loop.
	OnState func(State)
}

// View is a consistent copy of everything a Session knows.
type View struct {
	State       State
	Participant canvas.ParticipantID
	Cells       []canvas.Pixel
	Chat        []canvas.ChatEntry
	Roster      []canvas.ParticipantID
}

// At returns the colour of c in the view.
func (v View) At(c canvas.Coord) canvas.Color {
	for _, p := range v.Cells {
		if p.Coord() == c {
			return p.Color
		}
	}
	return canvas.Background
}

// Session is the controller for one participant. All state is owned by a
// single loop goroutine; inbound frames, timers and caller intents are queued
// to it and handled one at a time.
type Session struct {
	cfg        Config
	log        *zap.Logger
	ids        *identity.Allocator
	newChannel func() Channel
	onState    func(State)

	board  *board.Store
	chat   *chatlog.Log
	roster *roster.Roster

	ctx   context.Context
	inbox chan msg
	state atomic.Int32

	// lost receives once per connection end: the drop cause, or nil after Close.
	lost chan error

	// closed receives after every Close, so a Run waiting to reconnect stops.
	closed chan struct{}

	// Loop-owned.
	id             canvas.ParticipantID
	ch             Channel
	gen            int
	requested      bool
	canvasReceived bool
	chatReceived   bool
	timer          *time.Timer
	retry          *backoff.ExponentialBackOff
}

// New builds a Session and starts its loop, which runs until ctx is done.
func New(ctx context.Context, cfg Config, deps Deps) *Session {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	if deps.Board == nil {
		deps.Board = board.NewStore()
	}
	if deps.Chat == nil {
		deps.Chat = chatlog.New(chatlog.WithPolicy(cfg.ChatPolicy))
	}
	if deps.Roster == nil {
		deps.Roster = roster.New()
	}
	if deps.Identity == nil {
		deps.Identity = identity.NewAllocator()
	}
	if deps.NewChannel == nil {
		logger := deps.Logger
		deps.NewChannel = func() Channel {
			return transport.New(transport.Options{Logger: logger.Named("transport")})
		}
	}

	s := &Session{
		cfg:        cfg,
		log:        deps.Logger,
		ids:        deps.Identity,
		newChannel: deps.NewChannel,
		onState:    deps.OnState,
		board:      deps.Board,
		chat:       deps.Chat,
		roster:     deps.Roster,
		ctx:        ctx,
		inbox:      make(chan msg, 64),
		lost:       make(chan error, 1),
		closed:     make(chan struct{}, 1),
	}
	s.board.SetOutbox(s.sendPaint)

	go s.loop()
	return s
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Start allocates a participant id and opens the channel. It returns once
// the channel is open or the open has failed.
func (s *Session) Start(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := s.post(startMsg{ctx: ctx, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-s.ctx.Done():
		return ErrStopped
	}
}

// Close drops the channel and empties all state. Calling it when already
// disconnected is a no-op.
func (s *Session) Close() error {
	reply := make(chan error, 1)
	if err := s.post(closeMsg{reply: reply}); err != nil {
		return nil
	}
	select {
	case <-reply:
	case <-s.ctx.Done():
	}
	return nil
}

// Paint colours one cell immediately and sends it to the relay.
func (s *Session) Paint(c canvas.Coord, color canvas.Color) error {
	return s.do(func() error {
		if !s.connected() {
			return ErrNotConnected
		}
		return s.board.LocalPaint(c, color)
	})
}

// Chat sends text to the relay. Nothing is appended locally; the relay's
// broadcast brings it back with its timestamp.
func (s *Session) Chat(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > canvas.MaxChatLength {
		return ErrMessageTooLong
	}
	return s.do(func() error {
		if !s.connected() {
			return ErrNotConnected
		}
		s.send(canvas.ChatRequest(text))
		return nil
	})
}

// ClearChat asks the relay to wipe the chat. The local log is cleared when
// the relay's reset arrives.
func (s *Session) ClearChat() error {
	return s.do(func() error {
		if !s.connected() {
			return ErrNotConnected
		}
		s.send(canvas.ClearChatRequest())
		return nil
	})
}

// ClearCanvas asks the relay to wipe the board. The local board is cleared
// when the relay's reset arrives, so paints the relay ordered before the
// reset are not resurrected.
func (s *Session) ClearCanvas() error {
	return s.do(func() error {
		if !s.connected() {
			return ErrNotConnected
		}
		s.send(canvas.ClearCanvasRequest(s.id))
		return nil
	})
}

// View returns a copy of the current state taken on the loop.
func (s *Session) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := s.post(viewMsg{reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-s.ctx.Done():
		return View{}, ErrStopped
	}
}

// Run starts the session and keeps it connected until ctx is done or Close
// is called. Without Config.Reconnect it returns when the channel drops.
func (s *Session) Run(ctx context.Context) error {
	b := newBackOff(s.cfg.ReconnectInitial, s.cfg.ReconnectMaxElapsed)
	for {
		err := s.Start(ctx)
		if err == nil {
			b.Reset()
			select {
			case err = <-s.lost:
				if err == nil {
					return nil
				}
			case <-ctx.Done():
				_ = s.Close()
				return ctx.Err()
			}
		}
		if errors.Is(err, ErrClosed) {
			return nil
		}
		if errors.Is(err, ErrStopped) || errors.Is(err, ErrAlreadyStarted) {
			return err
		}
		if !s.cfg.Reconnect {
			return err
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return fmt.Errorf("giving up reconnecting: %w", err)
		}
		s.log.Info("reconnecting", zap.Duration("in", wait), zap.Error(err))
		select {
		case <-time.After(wait):
		case <-s.closed:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) do(f func() error) error {
	reply := make(chan error, 1)
	if err := s.post(intentMsg{run: f, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-s.ctx.Done():
		return ErrStopped
	}
}

func (s *Session) post(m msg) error {
	select {
	case s.inbox <- m:
		return nil
	case <-s.ctx.Done():
		return ErrStopped
	}
}
