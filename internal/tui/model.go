package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Responder answers one message. *agent.Orchestrator implements it.
type Responder interface {
	Respond(ctx context.Context, input string) string
}

const (
	headerText  = "👑 GRIND · personalidad Jarvis-Chat activada"
	goodbyeText = "Apagando núcleo de GRIND..."
)

// exitWords end the console session.
var exitWords = map[string]bool{"salir": true, "exit": true, "quit": true}

// ChatMessage is one line of the transcript.
type ChatMessage struct {
	Role      string // "user" or "assistant"
	Content   string
	Timestamp time.Time
}

// responseMsg carries the orchestrator reply back to Update.
type responseMsg struct {
	content string
}

// Model is the console chat state.
type Model struct {
	ctx       context.Context
	responder Responder

	width  int
	height int
	ready  bool

	waiting  bool
	quitting bool

	messages []ChatMessage
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	styles   Styles
}

// NewModel creates a chat model answering through responder.
func NewModel(ctx context.Context, responder Responder) Model {
	ti := textinput.New()
	ti.Placeholder = "Ordene, jefe..."
	ti.Prompt = "Tú: "
	ti.CharLimit = 4096
	ti.Width = 76
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.SetContent("")

	return Model{
		ctx:       ctx,
		responder: responder,
		viewport:  vp,
		input:     ti,
		spinner:   sp,
		styles:    DefaultStyles(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m = m.resize()
		return m, nil

	case responseMsg:
		m.waiting = false
		m.messages = append(m.messages, ChatMessage{Role: "assistant", Content: msg.content, Timestamp: time.Now()})
		m = m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyEnter:
		return m.send()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// send submits the typed text. Blank input is ignored and an exit word
// quits.
func (m Model) send() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.waiting {
		return m, nil
	}
	if exitWords[strings.ToLower(text)] {
		m.quitting = true
		return m, tea.Quit
	}

	m.input.Reset()
	m.waiting = true
	m.messages = append(m.messages, ChatMessage{Role: "user", Content: text, Timestamp: time.Now()})
	m = m.refresh()

	return m, tea.Batch(m.respond(text), m.spinner.Tick)
}

func (m Model) respond(text string) tea.Cmd {
	ctx, responder := m.ctx, m.responder
	return func() tea.Msg {
		return responseMsg{content: responder.Respond(ctx, text)}
	}
}

func (m Model) resize() Model {
	inputHeight := 3
	headerHeight := 2
	statusHeight := 1
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-inputHeight-headerHeight-statusHeight, 3)
	m.input.Width = max(m.width-8, 10)
	return m.refresh()
}

func (m Model) refresh() Model {
	m.viewport.SetContent(m.renderChat())
	m.viewport.GotoBottom()
	return m
}

func (m Model) renderChat() string {
	var b strings.Builder
	sep := m.styles.Separator.Render(strings.Repeat("-", max(min(m.width, 80), 10)))
	for _, msg := range m.messages {
		if msg.Role == "user" {
			b.WriteString(m.styles.User.Render("Tú: "))
			b.WriteString(msg.Content)
			b.WriteString("\n")
			continue
		}
		b.WriteString("\n")
		b.WriteString(m.styles.Assistant.Render("GRIND: "))
		b.WriteString(msg.Content)
		b.WriteString("\n")
		b.WriteString(sep)
		b.WriteString("\n")
	}
	return b.String()
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return goodbyeText + "\n"
	}

	status := "Escribe 'salir' para terminar."
	if m.waiting {
		status = m.spinner.View() + " GRIND está pensando..."
	}

	return strings.Join([]string{
		m.styles.Header.Render(headerText),
		m.viewport.View(),
		m.styles.Status.Render(status),
		m.styles.Input.Render(m.input.View()),
	}, "\n")
}

// Messages returns the transcript so far.
func (m Model) Messages() []ChatMessage {
	return m.messages
}
