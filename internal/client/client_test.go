package client

import (
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-canvas/internal/session"
	"go-canvas/pkg/canvas"
)

type paintCall struct {
	coord canvas.Coord
	color canvas.Color
}

type fakeIntents struct {
	mu          sync.Mutex
	paints      []paintCall
	chats       []string
	clearChat   int
	clearCanvas int
	err         error
}

func (f *fakeIntents) Paint(c canvas.Coord, color canvas.Color) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paints = append(f.paints, paintCall{c, color})
	return f.err
}

func (f *fakeIntents) Chat(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, text)
	return f.err
}

func (f *fakeIntents) ClearChat() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearChat++
	return f.err
}

func (f *fakeIntents) ClearCanvas() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCanvas++
	return f.err
}

func keys(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var space = tea.KeyMsg{Type: tea.KeySpace}

// press feeds msg to m and drops any command, such as cursor blinks.
func press(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

// act feeds msg to m, runs the intent command it returns and feeds the
// result back.
func act(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	require.NotNil(t, cmd)
	res, ok := cmd().(resultMsg)
	require.True(t, ok)
	next, _ = m.Update(res)
	return next.(Model)
}

func TestMirror_DrawAndClear(t *testing.T) {
	m := NewMirror()

	m.DrawCell(canvas.Coord{X: 2, Y: 3}, "#FF0000")
	m.DrawCell(canvas.Coord{X: 60, Y: 0}, "#FF0000")

	f := m.Frame()
	assert.Equal(t, canvas.Color("#FF0000"), f.Grid[3][2])
	assert.Equal(t, canvas.Background, f.Grid[0][0])

	m.Clear()
	assert.Equal(t, canvas.Background, m.Frame().Grid[3][2])
}

func TestMirror_ChangesCoalesce(t *testing.T) {
	m := NewMirror()

	m.ShowRoster([]canvas.ParticipantID{"a"})
	m.ShowChat([]canvas.ChatEntry{{UserID: "a", Message: "hi", Timestamp: 1}})
	m.SetState(session.Live)

	select {
	case <-m.Changed():
	case <-time.After(time.Second):
		t.Fatalf("no change signalled")
	}
	select {
	case <-m.Changed():
		t.Fatalf("changes not coalesced")
	default:
	}

	f := m.Frame()
	assert.Equal(t, []canvas.ParticipantID{"a"}, f.Roster)
	assert.Len(t, f.Chat, 1)
	assert.Equal(t, session.Live, f.State)
}

func TestMirror_FrameIsACopy(t *testing.T) {
	m := NewMirror()
	ids := []canvas.ParticipantID{"a", "b"}
	m.ShowRoster(ids)
	ids[0] = "mutated"

	f := m.Frame()
	f.Roster[1] = "also mutated"
	assert.Equal(t, []canvas.ParticipantID{"a", "b"}, m.Frame().Roster)
}

func TestModel_CursorStaysOnBoard(t *testing.T) {
	m := NewModel(&fakeIntents{}, NewMirror(), "me")
	m.cursor = canvas.Coord{X: 0, Y: 0}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyUp})
	m = press(t, m, keys("h"))
	assert.Equal(t, canvas.Coord{X: 0, Y: 0}, m.cursor)

	m.cursor = canvas.Coord{X: canvas.GridSize - 1, Y: canvas.GridSize - 1}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = press(t, m, keys("l"))
	assert.Equal(t, canvas.Coord{X: canvas.GridSize - 1, Y: canvas.GridSize - 1}, m.cursor)

	m = press(t, m, keys("k"))
	assert.Equal(t, canvas.GridSize-2, m.cursor.Y)
}

func TestModel_PaintUsesCursorAndPalette(t *testing.T) {
	intents := &fakeIntents{}
	m := NewModel(intents, NewMirror(), "me")
	m.cursor = canvas.Coord{X: 4, Y: 9}

	m = press(t, m, keys("5"))
	m = act(t, m, space)

	require.Len(t, intents.paints, 1)
	assert.Equal(t, paintCall{canvas.Coord{X: 4, Y: 9}, canvas.Palette[4].Value}, intents.paints[0])
}

func TestModel_ChatMode(t *testing.T) {
	intents := &fakeIntents{}
	m := NewModel(intents, NewMirror(), "me")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, chatMode, m.mode)

	m = press(t, m, keys("hello"))
	m = act(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, []string{"hello"}, intents.chats)
	assert.Empty(t, m.input.Value())

	// Letters typed while chatting never move the cursor.
	before := m.cursor
	m = press(t, m, keys("hjkl"))
	assert.Equal(t, before, m.cursor)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, paintMode, m.mode)
}

func TestModel_ClearKeys(t *testing.T) {
	intents := &fakeIntents{}
	m := NewModel(intents, NewMirror(), "me")

	m = act(t, m, keys("X"))
	m = act(t, m, keys("C"))

	assert.Equal(t, 1, intents.clearCanvas)
	assert.Equal(t, 1, intents.clearChat)
}

func TestModel_ErrorsShowInStatus(t *testing.T) {
	intents := &fakeIntents{err: errors.New("session not connected")}
	m := NewModel(intents, NewMirror(), "me")

	m = act(t, m, space)
	assert.Contains(t, m.status, "session not connected")
	assert.Contains(t, m.View(), "session not connected")

	intents.err = nil
	m = act(t, m, space)
	assert.Empty(t, m.status)
}

func TestModel_RendersMirror(t *testing.T) {
	mirror := NewMirror()
	m := NewModel(&fakeIntents{}, mirror, "me")

	mirror.ShowRoster([]canvas.ParticipantID{"me", "HappyPanda"})
	mirror.ShowChat([]canvas.ChatEntry{
		{UserID: "HappyPanda", Message: "nice board", Timestamp: 1},
		{UserID: canvas.SystemAuthor, Message: "me wiped the chat", Timestamp: 2, IsSystem: true},
	})

	cmd := m.waitForChange()
	next, _ := m.Update(cmd())
	m = next.(Model)

	view := m.View()
	assert.Contains(t, view, "HappyPanda")
	assert.Contains(t, view, "me (you)")
	assert.Contains(t, view, "Online (2)")
	assert.Contains(t, view, "nice board")
	assert.Contains(t, view, "me wiped the chat")
}

func TestModel_Quit(t *testing.T) {
	m := NewModel(&fakeIntents{}, NewMirror(), "me")

	_, cmd := m.Update(keys("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
