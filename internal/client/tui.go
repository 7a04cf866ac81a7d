package client

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-canvas/pkg/canvas"
)

// Intents are the actions the UI can ask of a session.
type Intents interface {
	Paint(c canvas.Coord, color canvas.Color) error
	Chat(text string) error
	ClearChat() error
	ClearCanvas() error
}

type mode int

const (
	paintMode mode = iota
	chatMode
)

type changedMsg struct{}

type resultMsg struct {
	action string
	err    error
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	systemStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#F97316"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	paneStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Model is the terminal front end: the board on the left, roster and chat
// on the right. Intents run as commands so a slow session never stalls input.
type Model struct {
	intents Intents
	mirror  *Mirror
	self    canvas.ParticipantID

	frame  Frame
	cursor canvas.Coord
	color  int
	mode   mode

	input  textinput.Model
	chat   viewport.Model
	status string

	width, height int
	styles        map[canvas.Color]lipgloss.Style
}

func NewModel(intents Intents, mirror *Mirror, self canvas.ParticipantID) Model {
	ti := textinput.New()
	ti.Placeholder = "Say something"
	ti.CharLimit = canvas.MaxChatLength
	ti.Width = 40

	m := Model{
		intents: intents,
		mirror:  mirror,
		self:    self,
		frame:   mirror.Frame(),
		cursor:  canvas.Coord{X: canvas.GridSize / 2, Y: canvas.GridSize / 2},
		input:   ti,
		chat:    viewport.New(40, 20),
		styles:  make(map[canvas.Color]lipgloss.Style),
	}
	m.refreshChat()
	return m
}

func (m Model) Init() tea.Cmd {
	return m.waitForChange()
}

func (m Model) waitForChange() tea.Cmd {
	changed := m.mirror.Changed()
	return func() tea.Msg {
		<-changed
		return changedMsg{}
	}
}

func (m Model) run(action string, f func() error) tea.Cmd {
	return func() tea.Msg {
		return resultMsg{action: action, err: f()}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.chat.Width = max(msg.Width-canvas.GridSize*2-8, 20)
		m.chat.Height = max(msg.Height-12, 5)
		m.input.Width = m.chat.Width - 4
		m.refreshChat()
		return m, nil

	case changedMsg:
		m.frame = m.mirror.Frame()
		m.refreshChat()
		return m, m.waitForChange()

	case resultMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s: %v", msg.action, msg.err)
		} else {
			m.status = ""
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.mode == chatMode {
			return m.updateChat(msg)
		}
		return m.updatePaint(msg)
	}
	return m, nil
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = paintMode
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		text := m.input.Value()
		m.input.Reset()
		intents := m.intents
		return m, m.run("chat", func() error { return intents.Chat(text) })
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updatePaint(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	intents := m.intents
	switch key := msg.String(); key {
	case "q":
		return m, tea.Quit
	case "up", "k":
		m.cursor.Y = max(m.cursor.Y-1, 0)
	case "down", "j":
		m.cursor.Y = min(m.cursor.Y+1, canvas.GridSize-1)
	case "left", "h":
		m.cursor.X = max(m.cursor.X-1, 0)
	case "right", "l":
		m.cursor.X = min(m.cursor.X+1, canvas.GridSize-1)
	case " ", "enter":
		c, color := m.cursor, canvas.Palette[m.color].Value
		return m, m.run("paint", func() error { return intents.Paint(c, color) })
	case "tab", "t":
		m.mode = chatMode
		return m, m.input.Focus()
	case "X":
		return m, m.run("clear canvas", intents.ClearCanvas)
	case "C":
		return m, m.run("clear chat", intents.ClearChat)
	case "pgup":
		m.chat.HalfViewUp()
	case "pgdown":
		m.chat.HalfViewDown()
	default:
		if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
			if i := int(key[0] - '1'); i < len(canvas.Palette) {
				m.color = i
			}
		}
	}
	return m, nil
}

func (m *Model) refreshChat() {
	var b strings.Builder
	for i, e := range m.frame.Chat {
		if i > 0 {
			b.WriteByte('\n')
		}
		stamp := dimStyle.Render(e.SentAt().Format("15:04"))
		if e.IsSystem {
			b.WriteString(stamp + " " + systemStyle.Render(e.Message))
			continue
		}
		b.WriteString(fmt.Sprintf("%s %s: %s", stamp, headerStyle.Render(string(e.UserID)), e.Message))
	}
	m.chat.SetContent(b.String())
	m.chat.GotoBottom()
}

func (m Model) cellStyle(color canvas.Color) lipgloss.Style {
	if s, ok := m.styles[color]; ok {
		return s
	}
	s := lipgloss.NewStyle().Background(lipgloss.Color(string(color)))
	m.styles[color] = s
	return s
}

func (m Model) renderGrid() string {
	var b strings.Builder
	for y := 0; y < canvas.GridSize; y++ {
		for x := 0; x < canvas.GridSize; x++ {
			cell := "  "
			if m.cursor.X == x && m.cursor.Y == y {
				cell = "[]"
			}
			b.WriteString(m.cellStyle(m.frame.Grid[y][x]).Render(cell))
		}
		if y < canvas.GridSize-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (m Model) renderSide() string {
	names := make([]string, 0, len(m.frame.Roster))
	for _, id := range m.frame.Roster {
		name := string(id)
		if id == m.self {
			name += " (you)"
		}
		names = append(names, name)
	}
	online := headerStyle.Render(fmt.Sprintf("Online (%d)", len(names))) + "\n" + strings.Join(names, "\n")

	bottom := dimStyle.Render("tab to chat")
	if m.mode == chatMode {
		bottom = m.input.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		paneStyle.Render(online),
		paneStyle.Render(m.chat.View()),
		bottom,
	)
}

func (m Model) View() string {
	swatch := canvas.Palette[m.color]
	header := fmt.Sprintf("%s  %s  %s %s  (%d,%d)",
		headerStyle.Render(string(m.self)),
		dimStyle.Render(m.frame.State.String()),
		m.cellStyle(swatch.Value).Render("  "),
		swatch.Name,
		m.cursor.X, m.cursor.Y,
	)

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderGrid(), "  ", m.renderSide())

	help := dimStyle.Render("arrows/hjkl move · space paint · 1-9 colour · X clear canvas · C clear chat · q quit")
	if m.status != "" {
		help = errorStyle.Render(m.status)
	}
	return header + "\n" + body + "\n" + help
}
