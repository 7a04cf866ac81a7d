package relay

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"go-canvas/pkg/canvas"
)

type directMsg struct {
	client *Client
	data   []byte
}

// Hub owns the set of connected clients on this relay. All membership
// changes and deliveries happen on the Run goroutine.
type Hub struct {
	members []*Client
	present map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	direct     chan directMsg
	roster     chan chan []canvas.ParticipantID
	done       chan struct{}

	sendReady bool
	log       *zap.Logger
}

func NewHub(sendReady bool, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		present:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		direct:     make(chan directMsg, 64),
		roster:     make(chan chan []canvas.ParticipantID),
		done:       make(chan struct{}),
		sendReady:  sendReady,
		log:        log,
	}
}

// Run serves the hub until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for _, c := range h.members {
				close(c.send)
			}
			h.members = nil
			clear(h.present)
			return nil

		case c := <-h.register:
			h.members = append(h.members, c)
			h.present[c] = true
			h.log.Info("participant joined", zap.String("participant", string(c.id)), zap.Int("online", len(h.members)))
			h.deliverAll(h.encode(canvas.UserList{Users: h.ids()}))
			if h.sendReady {
				h.deliver(c, h.encode(canvas.Ready{}))
			}

		case c := <-h.unregister:
			h.remove(c)

		case data := <-h.broadcast:
			h.deliverAll(data)

		case m := <-h.direct:
			if h.present[m.client] {
				h.deliver(m.client, m.data)
			}

		case reply := <-h.roster:
			reply <- h.ids()
		}
	}
}

// Register adds c. It reports false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues data for every connected client.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// Send queues data for one client. It is dropped if the client has left.
func (h *Hub) Send(c *Client, data []byte) {
	select {
	case h.direct <- directMsg{client: c, data: data}:
	case <-h.done:
	}
}

// Participants lists connected ids in join order.
func (h *Hub) Participants(ctx context.Context) ([]canvas.ParticipantID, error) {
	reply := make(chan []canvas.ParticipantID, 1)
	select {
	case h.roster <- reply:
	case <-h.done:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return <-reply, nil
}

func (h *Hub) ids() []canvas.ParticipantID {
	out := make([]canvas.ParticipantID, 0, len(h.members))
	for _, c := range h.members {
		out = append(out, c.id)
	}
	return out
}

// remove drops c and tells everyone left. Removing an absent client is a no-op.
func (h *Hub) remove(c *Client) {
	if !h.present[c] {
		return
	}
	delete(h.present, c)
	h.members = slices.DeleteFunc(h.members, func(m *Client) bool { return m == c })
	close(c.send)

	h.log.Info("participant left", zap.String("participant", string(c.id)), zap.Int("online", len(h.members)))
	h.deliverAll(h.encode(canvas.UserLeave{UserID: c.id}))
}

func (h *Hub) deliverAll(data []byte) {
	if data == nil {
		return
	}
	for _, c := range slices.Clone(h.members) {
		h.deliver(c, data)
	}
}

// deliver never blocks the hub: a client whose buffer is full is cut off.
func (h *Hub) deliver(c *Client, data []byte) {
	if data == nil || !h.present[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		h.log.Warn("participant too slow, disconnecting", zap.String("participant", string(c.id)))
		h.remove(c)
	}
}

func (h *Hub) encode(ev canvas.Event) []byte {
	data, err := canvas.Encode(ev)
	if err != nil {
		h.log.Error("encode event", zap.Error(err))
		return nil
	}
	return data
}
