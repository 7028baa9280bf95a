package chatcmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/papercomputeco/parley/pkg/completion"
	"github.com/papercomputeco/parley/pkg/llm"
)

// sender is the part of the completion client the chat needs.
type sender interface {
	SendRequest(ctx context.Context, turns []llm.Message, systemMessage string, opts ...completion.CallOption) completion.Result
}

// answerMsg carries the result of one SendRequest.
type answerMsg struct {
	result completion.Result
}

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	fallbackStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("9"))
	statusStyle    = lipgloss.NewStyle().Faint(true)
)

// chromeHeight is the number of lines below the viewport.
const chromeHeight = 3

type model struct {
	ctx    context.Context
	client sender
	system string
	opts   []completion.CallOption

	// turns is the history sent with the next prompt. Turns the client had
	// to drop for the context window are dropped here too.
	turns []llm.Message
	lines []string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	waiting bool
	status  string
}

func newModel(ctx context.Context, client sender, system string, opts ...completion.CallOption) model {
	input := textinput.New()
	input.Placeholder = "Say something, esc to quit"
	input.Prompt = "> "
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return model{
		ctx:      ctx,
		client:   client,
		system:   system,
		opts:     opts,
		input:    input,
		viewport: viewport.New(80, 20),
		spinner:  sp,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chromeHeight, 1)
		m.input.Width = max(msg.Width-len(m.input.Prompt)-1, 1)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case answerMsg:
		return m.answered(msg.result), nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var inputCmd, viewportCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	m.viewport, viewportCmd = m.viewport.Update(msg)
	return m, tea.Batch(inputCmd, viewportCmd)
}

func (m model) submit() (tea.Model, tea.Cmd) {
	prompt := strings.TrimSpace(m.input.Value())
	if m.waiting || prompt == "" {
		return m, nil
	}

	m.turns = append(m.turns, llm.User(prompt))
	m.lines = append(m.lines, userStyle.Render("you: ")+prompt)
	m.input.Reset()
	m.waiting = true
	m.status = ""
	m.refresh()

	turns := append([]llm.Message(nil), m.turns...)
	send := func() tea.Msg {
		return answerMsg{result: m.client.SendRequest(m.ctx, turns, m.system, m.opts...)}
	}
	return m, tea.Batch(m.spinner.Tick, send)
}

func (m model) answered(result completion.Result) model {
	m.waiting = false

	if result.Fallback {
		// The prompt went unanswered; keep turns alternating.
		if n := len(m.turns); n > 0 && m.turns[n-1].Role == llm.RoleUser {
			m.turns = m.turns[:n-1]
		}
		m.lines = append(m.lines, fallbackStyle.Render(result.Text))
		if result.Err != nil {
			m.status = result.Err.Error()
		}
		m.refresh()
		return m
	}

	if result.Dropped > 0 && result.Dropped < len(m.turns) {
		m.turns = m.turns[result.Dropped:]
		m.status = fmt.Sprintf("dropped %d oldest turns to fit the context window", result.Dropped)
	}
	m.turns = append(m.turns, llm.Assistant(result.Text))
	m.lines = append(m.lines, assistantStyle.Render("assistant: ")+result.Text)
	m.refresh()
	return m
}

func (m *model) refresh() {
	content := lipgloss.NewStyle().Width(m.viewport.Width).Render(strings.Join(m.lines, "\n\n"))
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m model) View() string {
	status := statusStyle.Render(m.status)
	if m.waiting {
		status = m.spinner.View() + " thinking..."
	}
	return m.viewport.View() + "\n" + status + "\n" + m.input.View()
}
