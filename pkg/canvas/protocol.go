package canvas

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message tags. The same tag can travel in both directions ("chat",
// "clear_chat", "clear_canvas", "pixel") with a different body shape.
const (
	TypeRequestCanvas = "request_canvas"
	TypeRequestChat   = "request_chat"
	TypePixel         = "pixel"
	TypeChat          = "chat"
	TypeClearChat     = "clear_chat"
	TypeClearCanvas   = "clear_canvas"
	TypeCanvasState   = "canvas_state"
	TypeChatHistory   = "chat_history"
	TypeUserList      = "user_list"
	TypeUserLeave     = "user_leave"
	TypeReady         = "ready"
)

var (
	ErrUnknownType = errors.New("unknown message type")
	ErrMalformed   = errors.New("malformed message")
)

// Request is a participant-to-relay message.
type Request struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type ChatPayload struct {
	Message string `json:"message"`
}

type ClearCanvasPayload struct {
	UserID ParticipantID `json:"userId"`
}

func RequestCanvas() Request { return Request{Type: TypeRequestCanvas} }

func RequestChat() Request { return Request{Type: TypeRequestChat} }

func PaintRequest(p Pixel) Request { return Request{Type: TypePixel, Payload: p} }

func ChatRequest(text string) Request {
	return Request{Type: TypeChat, Payload: ChatPayload{Message: text}}
}

func ClearChatRequest() Request { return Request{Type: TypeClearChat, Payload: struct{}{}} }

func ClearCanvasRequest(id ParticipantID) Request {
	return Request{Type: TypeClearCanvas, Payload: ClearCanvasPayload{UserID: id}}
}

// IncomingRequest is a Request as the relay reads it, with the payload left
// raw until the tag is known.
type IncomingRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Event is a relay-to-participant message.
type Event interface{ isEvent() }

// CanvasState is the full board. Skipped counts entries dropped as invalid.
type CanvasState struct {
	Pixels  []Pixel
	Skipped int
}

type ChatHistory struct {
	Messages []ChatEntry
}

type ChatMessage struct {
	Entry ChatEntry
}

type ClearChat struct{}

type ClearCanvas struct{}

type UserList struct {
	Users []ParticipantID
}

type UserLeave struct {
	UserID ParticipantID
}

// PixelEvent is one paint broadcast. Legacy is set when it arrived untagged.
type PixelEvent struct {
	Pixel  Pixel
	Legacy bool
}

// Ready tells a freshly connected participant the relay will answer requests.
type Ready struct{}

func (CanvasState) isEvent() {}
func (ChatHistory) isEvent() {}
func (ChatMessage) isEvent() {}
func (ClearChat) isEvent()   {}
func (ClearCanvas) isEvent() {}
func (UserList) isEvent()    {}
func (UserLeave) isEvent()   {}
func (PixelEvent) isEvent()  {}
func (Ready) isEvent()       {}

type canvasStateWire struct {
	Type   string  `json:"type"`
	Pixels []Pixel `json:"pixels"`
}

type chatHistoryWire struct {
	Type     string      `json:"type"`
	Messages []ChatEntry `json:"messages"`
}

type chatWire struct {
	Type string `json:"type"`
	ChatEntry
}

type userListWire struct {
	Type  string          `json:"type"`
	Users []ParticipantID `json:"users"`
}

type userLeaveWire struct {
	Type   string        `json:"type"`
	UserID ParticipantID `json:"userId"`
}

type pixelWire struct {
	Type string `json:"type"`
	Pixel
}

type bareWire struct {
	Type string `json:"type"`
}

// DecodeOptions tunes Decode.
type DecodeOptions struct {
	// RejectLegacy refuses untagged pixel objects.
	RejectLegacy bool
}

// Decode parses one relay frame. Errors wrap ErrMalformed or ErrUnknownType.
func Decode(data []byte) (Event, error) {
	return DecodeWith(data, DecodeOptions{})
}

func DecodeWith(data []byte, opts DecodeOptions) (Event, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	rawType, tagged := probe["type"]
	if !tagged {
		if opts.RejectLegacy {
			return nil, fmt.Errorf("%w: missing type", ErrMalformed)
		}
		return decodeLegacyPixel(data, probe)
	}

	var typ string
	if err := json.Unmarshal(rawType, &typ); err != nil {
		return nil, fmt.Errorf("%w: type: %v", ErrMalformed, err)
	}

	switch typ {
	case TypeCanvasState:
		var w canvasStateWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, typ, err)
		}
		state := CanvasState{Pixels: make([]Pixel, 0, len(w.Pixels))}
		for _, p := range w.Pixels {
			if err := p.Validate(); err != nil {
				state.Skipped++
				continue
			}
			state.Pixels = append(state.Pixels, p)
		}
		return state, nil

	case TypeChatHistory:
		var w chatHistoryWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, typ, err)
		}
		if w.Messages == nil {
			w.Messages = []ChatEntry{}
		}
		return ChatHistory{Messages: w.Messages}, nil

	case TypeChat:
		var w chatWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, typ, err)
		}
		return ChatMessage{Entry: w.ChatEntry}, nil

	case TypeClearChat:
		return ClearChat{}, nil

	case TypeClearCanvas:
		return ClearCanvas{}, nil

	case TypeUserList:
		var w userListWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, typ, err)
		}
		return UserList{Users: w.Users}, nil

	case TypeUserLeave:
		var w userLeaveWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, typ, err)
		}
		if w.UserID == "" {
			return nil, fmt.Errorf("%w: %s: missing userId", ErrMalformed, typ)
		}
		return UserLeave{UserID: w.UserID}, nil

	case TypePixel:
		var w pixelWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, typ, err)
		}
		if err := w.Pixel.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return PixelEvent{Pixel: w.Pixel}, nil

	case TypeReady:
		return Ready{}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
}

func decodeLegacyPixel(data []byte, probe map[string]json.RawMessage) (Event, error) {
	for _, key := range []string{"x", "y", "color"} {
		if _, ok := probe[key]; !ok {
			return nil, fmt.Errorf("%w: untagged message without %q", ErrMalformed, key)
		}
	}
	var p Pixel
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: legacy pixel: %v", ErrMalformed, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return PixelEvent{Pixel: p, Legacy: true}, nil
}

// Encode renders an Event in its wire form.
func Encode(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case CanvasState:
		pixels := e.Pixels
		if pixels == nil {
			pixels = []Pixel{}
		}
		return json.Marshal(canvasStateWire{Type: TypeCanvasState, Pixels: pixels})
	case ChatHistory:
		msgs := e.Messages
		if msgs == nil {
			msgs = []ChatEntry{}
		}
		return json.Marshal(chatHistoryWire{Type: TypeChatHistory, Messages: msgs})
	case ChatMessage:
		return json.Marshal(chatWire{Type: TypeChat, ChatEntry: e.Entry})
	case ClearChat:
		return json.Marshal(bareWire{Type: TypeClearChat})
	case ClearCanvas:
		return json.Marshal(bareWire{Type: TypeClearCanvas})
	case UserList:
		users := e.Users
		if users == nil {
			users = []ParticipantID{}
		}
		return json.Marshal(userListWire{Type: TypeUserList, Users: users})
	case UserLeave:
		return json.Marshal(userLeaveWire{Type: TypeUserLeave, UserID: e.UserID})
	case PixelEvent:
		if e.Legacy {
			return json.Marshal(e.Pixel)
		}
		return json.Marshal(pixelWire{Type: TypePixel, Pixel: e.Pixel})
	case Ready:
		return json.Marshal(bareWire{Type: TypeReady})
	default:
		return nil, fmt.Errorf("encode %T: %w", ev, ErrUnknownType)
	}
}
