package session

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"go-canvas/internal/transport"
	"go-canvas/pkg/canvas"
)

type msg interface{ isSessionMsg() }

type startMsg struct {
	ctx   context.Context
	reply chan error
}

type openedMsg struct {
	gen   int
	ch    Channel
	err   error
	reply chan error
}

type frameMsg struct {
	gen  int
	data []byte
}

type droppedMsg struct {
	gen int
	err error
}

type timerKind int

const (
	settleTimer timerKind = iota
	retryTimer
)

type timerMsg struct {
	gen  int
	kind timerKind
}

type intentMsg struct {
	run   func() error
	reply chan error
}

type viewMsg struct {
	reply chan View
}

type closeMsg struct {
	reply chan error
}

func (startMsg) isSessionMsg()   {}
func (openedMsg) isSessionMsg()  {}
func (frameMsg) isSessionMsg()   {}
func (droppedMsg) isSessionMsg() {}
func (timerMsg) isSessionMsg()   {}
func (intentMsg) isSessionMsg()  {}
func (viewMsg) isSessionMsg()    {}
func (closeMsg) isSessionMsg()   {}

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.teardown(nil)
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case startMsg:
				s.handleStart(msg)

			case openedMsg:
				s.handleOpened(msg)

			case frameMsg:
				if msg.gen == s.gen {
					s.route(msg.data)
				}

			case droppedMsg:
				if msg.gen == s.gen && s.State() != Disconnected {
					s.log.Warn("connection lost", zap.Error(msg.err))
					s.teardown(msg.err)
				}

			case timerMsg:
				if msg.gen == s.gen {
					s.handleTimer(msg.kind)
				}

			case intentMsg:
				msg.reply <- msg.run()

			case viewMsg:
				msg.reply <- View{
					State:       s.State(),
					Participant: s.id,
					Cells:       s.board.Cells(),
					Chat:        s.chat.Entries(),
					Roster:      s.roster.Members(),
				}

			case closeMsg:
				if s.State() != Disconnected {
					s.teardown(nil)
				}
				select {
				case s.closed <- struct{}{}:
				default:
				}
				s.resetStores()
				msg.reply <- nil
			}
		}
	}
}

func (s *Session) setState(st State) {
	if State(s.state.Swap(int32(st))) == st {
		return
	}
	s.log.Debug("session state", zap.Stringer("state", st))
	if s.onState != nil {
		s.onState(st)
	}
}

func (s *Session) connected() bool {
	st := s.State()
	return st == AwaitingSnapshots || st == Live
}

func (s *Session) handleStart(m startMsg) {
	if s.State() != Disconnected {
		m.reply <- ErrAlreadyStarted
		return
	}
	select {
	case <-s.lost:
	default:
	}
	select {
	case <-s.closed:
	default:
	}

	id, err := s.ids.Resolve(s.cfg.ParticipantID)
	if err != nil {
		m.reply <- err
		return
	}

	// Nothing from a previous connection survives into this one.
	s.resetStores()
	s.gen++
	s.id = id
	s.requested = false
	s.canvasReceived = false
	s.chatReceived = false
	s.setState(Connecting)

	gen := s.gen
	ch := s.newChannel()
	ch.OnMessage(func(data []byte) {
		select {
		case s.inbox <- frameMsg{gen: gen, data: data}:
		case <-ch.Done():
		case <-s.ctx.Done():
		}
	})
	s.ch = ch

	s.log.Info("connecting", zap.String("endpoint", s.cfg.Endpoint), zap.String("participant", string(id)))
	go func() {
		err := ch.Open(m.ctx, s.cfg.Endpoint, id)
		_ = s.post(openedMsg{gen: gen, ch: ch, err: err, reply: m.reply})
	}()
}

func (s *Session) handleOpened(m openedMsg) {
	if m.gen != s.gen || s.State() != Connecting {
		// Closed while dialing. A dial that still succeeded must not linger.
		if m.err == nil {
			_ = m.ch.Close()
		}
		m.reply <- ErrClosed
		return
	}
	if m.err != nil {
		s.log.Warn("open failed", zap.Error(m.err))
		s.ch = nil
		s.setState(Disconnected)
		m.reply <- m.err
		return
	}

	ch, gen := s.ch, s.gen
	go func() {
		<-ch.Done()
		_ = s.post(droppedMsg{gen: gen, err: ch.Err()})
	}()

	switch {
	case s.canvasReceived:
		s.setState(Live)
	default:
		s.setState(AwaitingSnapshots)
	}
	if !s.requested {
		wait := s.cfg.SettleDelay
		if s.cfg.AwaitReady {
			wait = s.cfg.ReadyTimeout
		}
		s.schedule(wait, settleTimer)
	}
	m.reply <- nil
}

func (s *Session) handleTimer(kind timerKind) {
	switch kind {
	case settleTimer:
		if s.requested {
			return
		}
		if s.cfg.AwaitReady {
			s.log.Info("relay never signalled ready, requesting snapshots anyway")
		}
		s.requestSnapshots()

	case retryTimer:
		if s.canvasReceived || s.retry == nil {
			return
		}
		s.log.Info("snapshot not received, asking again")
		s.send(canvas.RequestCanvas())
		if !s.chatReceived {
			s.send(canvas.RequestChat())
		}
		s.scheduleRetry()
	}
}

func (s *Session) requestSnapshots() {
	s.requested = true
	s.send(canvas.RequestCanvas())
	s.send(canvas.RequestChat())
	if s.cfg.SnapshotRetry && !s.canvasReceived {
		s.retry = newBackOff(s.cfg.RetryInitial, s.cfg.RetryMaxElapsed)
		s.scheduleRetry()
	}
}

func (s *Session) scheduleRetry() {
	wait := s.retry.NextBackOff()
	if wait == backoff.Stop {
		s.log.Warn("giving up on canvas snapshot")
		s.retry = nil
		return
	}
	s.schedule(wait, retryTimer)
}

func (s *Session) schedule(d time.Duration, kind timerKind) {
	if s.timer != nil {
		s.timer.Stop()
	}
	gen := s.gen
	s.timer = time.AfterFunc(d, func() {
		_ = s.post(timerMsg{gen: gen, kind: kind})
	})
}

// route decodes one inbound frame and applies it. Routing does not depend on
// the session state.
func (s *Session) route(data []byte) {
	ev, err := canvas.DecodeWith(data, canvas.DecodeOptions{RejectLegacy: s.cfg.RejectLegacyPixels})
	if err != nil {
		s.log.Warn("dropping inbound message", zap.Error(err), zap.Int("bytes", len(data)))
		return
	}

	switch e := ev.(type) {
	case canvas.UserList:
		s.roster.Replace(e.Users)

	case canvas.UserLeave:
		s.roster.Remove(e.UserID)

	case canvas.ChatMessage:
		s.chat.Append(e.Entry)

	case canvas.ChatHistory:
		s.chatReceived = true
		s.chat.ApplyHistory(e.Messages)

	case canvas.ClearChat:
		s.chat.Clear()

	case canvas.CanvasState:
		if e.Skipped > 0 {
			s.log.Warn("canvas snapshot had invalid pixels", zap.Int("skipped", e.Skipped))
		}
		s.board.ApplySnapshot(e.Pixels)
		s.canvasReceived = true
		s.retry = nil
		if s.State() == AwaitingSnapshots {
			s.setState(Live)
		}

	case canvas.ClearCanvas:
		s.board.ApplyClear()

	case canvas.PixelEvent:
		if err := s.board.ApplyPaint(e.Pixel.Coord(), e.Pixel.Color); err != nil {
			s.log.Warn("dropping paint", zap.Error(err))
		}

	case canvas.Ready:
		if s.cfg.AwaitReady && !s.requested {
			s.requestSnapshots()
		}
	}
}

func (s *Session) sendPaint(p canvas.Pixel) {
	p.UserID = s.id
	s.send(canvas.PaintRequest(p))
}

// send is fire and forget: a frame the channel cannot take is dropped.
func (s *Session) send(req canvas.Request) {
	if s.ch == nil {
		return
	}
	if err := s.ch.Send(req); err != nil {
		s.log.Debug("outbound dropped", zap.String("type", req.Type), zap.Error(err))
	}
}

// teardown ends the current connection. cause is nil for a deliberate close.
func (s *Session) teardown(cause error) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.retry = nil
	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}
	s.gen++
	s.setState(Disconnected)

	select {
	case s.lost <- cause:
	default:
	}
}

func (s *Session) resetStores() {
	s.board.ApplyClear()
	s.chat.Clear()
	s.roster.Reset()
}

var _ Channel = (*transport.Channel)(nil)
