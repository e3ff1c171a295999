// Package tui is the terminal chat screen. It renders a chat.Session and
// forwards input to it; all state lives in the session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/soyeahso/zeyn/internal/chat"
	"github.com/soyeahso/zeyn/internal/domain"
)

// Session is the part of *chat.Session the screen uses.
type Session interface {
	Snapshot() chat.Snapshot
	Observe(f func(chat.Snapshot)) (cancel func())
	Send(ctx context.Context, text string) error
	LoadMore(ctx context.Context) error
}

// SnapshotMsg carries a session change into the program.
type SnapshotMsg chat.Snapshot

type sendDoneMsg struct{ err error }
type loadDoneMsg struct{ err error }

const (
	headerHeight = 2
	footerHeight = 3
)

// Model is the bubbletea model of the chat screen.
type Model struct {
	ctx     context.Context
	session Session
	title   string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	mdStyle  string
	styles   styles

	snap   chat.Snapshot
	err    error
	width  int
	height int
	ready  bool
}

// Option configures a Model.
type Option func(*Model)

// WithMarkdownStyle selects a glamour standard style ("dark", "light",
// "notty", ...) instead of detecting one from the terminal.
func WithMarkdownStyle(name string) Option {
	return func(m *Model) { m.mdStyle = name }
}

func New(ctx context.Context, session Session, title string, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message (Enter to send, PgUp for history, Esc to quit)"
	ti.Prompt = "│ "
	ti.CharLimit = 4000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:      ctx,
		session:  session,
		title:    title,
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		styles:   defaultStyles(),
		snap:     session.Snapshot(),
		width:    80,
		height:   24,
	}
	for _, o := range opts {
		o(&m)
	}
	m.renderer = m.newRenderer(80)
	return m
}

func (m Model) newRenderer(width int) *glamour.TermRenderer {
	if width < 20 {
		width = 20
	}
	style := glamour.WithAutoStyle()
	if m.mdStyle != "" {
		style = glamour.WithStandardStyle(m.mdStyle)
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return nil
	}
	return r
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-headerHeight-footerHeight)
		m.input.Width = max(10, msg.Width-4)
		m.renderer = m.newRenderer(msg.Width - 4)
		m.ready = true
		m.refresh(true)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			text := m.input.Value()
			m.input.Reset()
			if strings.TrimSpace(text) == "" {
				return m, nil
			}
			m.err = nil
			return m, m.sendCmd(text)
		case tea.KeyPgUp:
			if m.viewport.AtTop() && m.snap.HasMore {
				cmds = append(cmds, m.loadCmd())
			}
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, tea.Batch(append(cmds, cmd)...)
		case tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case SnapshotMsg:
		atBottom := m.viewport.AtBottom()
		m.snap = chat.Snapshot(msg)
		m.refresh(atBottom)
		return m, nil

	case sendDoneMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		return m, nil

	case loadDoneMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return sendDoneMsg{err: m.session.Send(m.ctx, text)}
	}
}

func (m Model) loadCmd() tea.Cmd {
	return func() tea.Msg {
		return loadDoneMsg{err: m.session.LoadMore(m.ctx)}
	}
}

func (m *Model) refresh(gotoBottom bool) {
	m.viewport.SetContent(m.renderTranscript())
	if gotoBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) renderTranscript() string {
	var b strings.Builder
	if m.snap.HasMore && len(m.snap.Messages) > 0 {
		b.WriteString(m.styles.hint.Render("PgUp at the top loads older messages"))
		b.WriteString("\n\n")
	}
	for _, msg := range m.snap.Messages {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	if m.snap.Live != "" {
		b.WriteString(m.styles.assistant.Render("Zeyn"))
		b.WriteString("\n")
		b.WriteString(m.styles.live.Render(m.snap.Live + "▍"))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderMessage(msg domain.Message) string {
	switch msg.Role {
	case domain.RoleUser:
		line := m.styles.user.Render("You") + "\n" + msg.Content
		switch msg.Status {
		case domain.DeliveryPending:
			line += " " + m.styles.hint.Render("(sending)")
		case domain.DeliveryFailed:
			line += " " + m.styles.failed.Render("(not delivered)")
		}
		return line + "\n"
	case domain.RoleAssistant:
		return m.styles.assistant.Render("Zeyn") + "\n" + m.markdown(msg.Content)
	default:
		return m.styles.system.Render(msg.Content) + "\n"
	}
}

func (m Model) markdown(s string) string {
	if m.renderer == nil {
		return s + "\n"
	}
	out, err := m.renderer.Render(s)
	if err != nil {
		return s + "\n"
	}
	return strings.Trim(out, "\n") + "\n"
}

func (m Model) View() string {
	if !m.ready {
		return "Connecting…\n"
	}
	status := m.snap.State.String()
	if m.snap.Streaming {
		status = m.spinner.View() + " " + status
	}
	header := m.styles.header.Render(m.title) + "  " + m.styles.status.Render(status)

	footer := m.input.View()
	if m.err != nil {
		footer += "\n" + m.styles.err.Render(fmt.Sprintf("error: %v", m.err))
	}
	return header + "\n\n" + m.viewport.View() + "\n" + footer
}

// Run shows the chat screen until the user quits or ctx is canceled.
func Run(ctx context.Context, session Session, title string, opts ...Option) error {
	p := tea.NewProgram(New(ctx, session, title, opts...), tea.WithAltScreen(), tea.WithContext(ctx))
	stop := session.Observe(func(s chat.Snapshot) { p.Send(SnapshotMsg(s)) })
	defer stop()
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
