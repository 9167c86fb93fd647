package tui

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/opsdesk/opsdesk/internal/apiclient"
	"github.com/opsdesk/opsdesk/internal/config"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	youStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	agentStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("36"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle = lipgloss.NewStyle().Faint(true)
)

type chatLine struct {
	speaker string
	text    string
}

type replyMsg struct {
	response apiclient.ChatResponse
	err      error
}

type model struct {
	cfg       config.Config
	logger    *slog.Logger
	client    *apiclient.Client
	sessionID string

	input    textinput.Model
	viewport viewport.Model
	spin     spinner.Model

	history []chatLine
	loading bool
	errText string
	width   int
	height  int
	ready   bool
}

func Run(cfg config.Config, logger *slog.Logger) error {
	client, err := apiclient.New(cfg)
	if err != nil {
		return err
	}

	input := textinput.New()
	input.Placeholder = "Describe a problem, paste a ticket key, or ask a question"
	input.Focus()
	input.CharLimit = 2048

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	program := tea.NewProgram(model{
		cfg:       cfg,
		logger:    logger,
		client:    client,
		sessionID: uuid.NewString(),
		input:     input,
		spin:      spin,
	}, tea.WithAltScreen())
	_, err = program.Run()
	return err
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		viewHeight := typed.Height - 4
		if viewHeight < 3 {
			viewHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(typed.Width, viewHeight)
			m.ready = true
		} else {
			m.viewport.Width = typed.Width
			m.viewport.Height = viewHeight
		}
		m.viewport.SetContent(m.renderHistory())
		return m, nil

	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if m.loading {
				return m, nil
			}
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.SetValue("")
			m.errText = ""
			m.loading = true
			m.history = append(m.history, chatLine{speaker: "you", text: text})
			m.viewport.SetContent(m.renderHistory())
			m.viewport.GotoBottom()
			return m, tea.Batch(m.sendCmd(text), m.spin.Tick)
		}

	case replyMsg:
		m.loading = false
		if typed.err != nil {
			m.errText = typed.err.Error()
			return m, nil
		}
		m.history = append(m.history, chatLine{speaker: "agent", text: typed.response.Reply})
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var inputCmd, viewCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	m.viewport, viewCmd = m.viewport.Update(msg)
	return m, tea.Batch(inputCmd, viewCmd)
}

func (m model) sendCmd(text string) tea.Cmd {
	client := m.client
	sessionID := m.sessionID
	timeout := boundedTimeout(m.cfg.ChatTimeoutSec)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		response, err := client.Chat(ctx, apiclient.ChatRequest{
			SessionID: sessionID,
			Text:      text,
		})
		return replyMsg{response: response, err: err}
	}
}

func (m model) View() string {
	if !m.ready {
		return "starting..."
	}

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("opsdesk chat") + statusStyle.Render("  session "+m.sessionID) + "\n")
	builder.WriteString(m.viewport.View() + "\n")

	switch {
	case m.loading:
		builder.WriteString(m.spin.View() + " waiting for reply...\n")
	case m.errText != "":
		builder.WriteString(errorStyle.Render("error: "+m.errText) + "\n")
	default:
		builder.WriteString(statusStyle.Render("enter to send, esc to quit") + "\n")
	}

	builder.WriteString(m.input.View())
	return builder.String()
}

func (m model) renderHistory() string {
	if len(m.history) == 0 {
		return statusStyle.Render("No messages yet.")
	}
	var builder strings.Builder
	for _, line := range m.history {
		switch line.speaker {
		case "you":
			builder.WriteString(youStyle.Render("you> ") + line.text + "\n")
		default:
			builder.WriteString(agentStyle.Render("agent> ") + line.text + "\n")
		}
	}
	return builder.String()
}

func boundedTimeout(seconds int) time.Duration {
	if seconds < 1 {
		seconds = 120
	}
	if seconds > 600 {
		seconds = 600
	}
	return time.Duration(seconds) * time.Second
}
