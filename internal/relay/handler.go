package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"go-canvas/internal/storage"
	"go-canvas/pkg/canvas"
)

// Handler applies one participant request: persist, then publish.
type Handler struct {
	store  *storage.Store
	bus    Bus
	hub    *Hub
	log    *zap.Logger
	legacy bool
	now    func() time.Time
}

func NewHandler(store *storage.Store, bus Bus, hub *Hub, legacyPixels bool, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		store:  store,
		bus:    bus,
		hub:    hub,
		log:    log,
		legacy: legacyPixels,
		now:    time.Now,
	}
}

// HandleMessage decodes and applies one frame from c. Bad frames are logged
// and dropped; the connection stays up.
func (h *Handler) HandleMessage(ctx context.Context, c *Client, data []byte) {
	var req canvas.IncomingRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.log.Warn("dropping malformed request", zap.String("participant", string(c.id)), zap.Error(err))
		return
	}

	var err error
	switch req.Type {
	case canvas.TypePixel:
		err = h.handlePixel(ctx, c, req.Payload)
	case canvas.TypeChat:
		err = h.handleChat(ctx, c, req.Payload)
	case canvas.TypeClearCanvas:
		err = h.handleClearCanvas(ctx, c)
	case canvas.TypeClearChat:
		err = h.handleClearChat(ctx, c)
	case canvas.TypeRequestCanvas:
		err = h.sendCanvas(ctx, c)
	case canvas.TypeRequestChat:
		err = h.sendHistory(ctx, c)
	default:
		err = fmt.Errorf("%w: %q", canvas.ErrUnknownType, req.Type)
	}
	if err != nil {
		h.log.Warn("request failed",
			zap.String("participant", string(c.id)),
			zap.String("type", req.Type),
			zap.Error(err))
	}
}

func (h *Handler) handlePixel(ctx context.Context, c *Client, payload json.RawMessage) error {
	var p canvas.Pixel
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("%w: %v", canvas.ErrMalformed, err)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if p.UserID == "" {
		p.UserID = c.id
	}

	// A failed save is logged but still broadcast so painters do not diverge
	// from the participant who painted optimistically.
	if err := h.store.SavePixel(ctx, p, h.stamp()); err != nil {
		h.log.Error("persist pixel", zap.Error(err))
	}
	return h.publish(ctx, canvas.PixelEvent{Pixel: p, Legacy: h.legacy})
}

func (h *Handler) handleChat(ctx context.Context, c *Client, payload json.RawMessage) error {
	var body canvas.ChatPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return fmt.Errorf("%w: %v", canvas.ErrMalformed, err)
	}
	text := strings.TrimSpace(body.Message)
	if text == "" || utf8.RuneCountInString(text) > canvas.MaxChatLength {
		return fmt.Errorf("%w: chat of %d bytes", canvas.ErrMalformed, len(text))
	}

	entry := canvas.ChatEntry{UserID: c.id, Message: text, Timestamp: h.stamp()}
	return h.appendChat(ctx, entry)
}

func (h *Handler) handleClearCanvas(ctx context.Context, c *Client) error {
	if err := h.store.ClearPixels(ctx); err != nil {
		return err
	}
	if err := h.publish(ctx, canvas.ClearCanvas{}); err != nil {
		return err
	}
	return h.announce(ctx, fmt.Sprintf("%s wiped the canvas", c.id))
}

func (h *Handler) handleClearChat(ctx context.Context, c *Client) error {
	if err := h.store.ClearChat(ctx); err != nil {
		return err
	}
	if err := h.publish(ctx, canvas.ClearChat{}); err != nil {
		return err
	}
	return h.announce(ctx, fmt.Sprintf("%s wiped the chat", c.id))
}

func (h *Handler) sendCanvas(ctx context.Context, c *Client) error {
	pixels, err := h.store.Pixels(ctx)
	if err != nil {
		return err
	}
	return h.reply(c, canvas.CanvasState{Pixels: pixels})
}

func (h *Handler) sendHistory(ctx context.Context, c *Client) error {
	history, err := h.store.History(ctx)
	if err != nil {
		return err
	}
	return h.reply(c, canvas.ChatHistory{Messages: history})
}

// announce posts a relay-authored chat entry.
func (h *Handler) announce(ctx context.Context, text string) error {
	return h.appendChat(ctx, canvas.ChatEntry{
		UserID:    canvas.SystemAuthor,
		Message:   text,
		Timestamp: h.stamp(),
		IsSystem:  true,
	})
}

func (h *Handler) appendChat(ctx context.Context, entry canvas.ChatEntry) error {
	if err := h.store.AppendChat(ctx, entry); err != nil {
		h.log.Error("persist chat", zap.Error(err))
	}
	return h.publish(ctx, canvas.ChatMessage{Entry: entry})
}

func (h *Handler) publish(ctx context.Context, ev canvas.Event) error {
	data, err := canvas.Encode(ev)
	if err != nil {
		return err
	}
	if err := h.bus.Publish(ctx, data); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (h *Handler) reply(c *Client, ev canvas.Event) error {
	data, err := canvas.Encode(ev)
	if err != nil {
		return err
	}
	h.hub.Send(c, data)
	return nil
}

func (h *Handler) stamp() int64 {
	return h.now().UnixMilli()
}
