package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"Shurahub/internal/chatbot"
	"Shurahub/internal/protocol"
	"Shurahub/internal/view"
)

const noticeLines = 6

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("62")).Padding(0, 1)
	statusStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF")).PaddingLeft(1)
	activeStatusStyle = statusStyle.Foreground(lipgloss.Color("170"))
	userStyle         = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	debateTitleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	roleStyles        = map[string]lipgloss.Style{
		protocol.RoleOpener:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		protocol.RoleCritiquer:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		protocol.RoleSynthesizer: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220")),
	}
	defaultRoleStyle = lipgloss.NewStyle().Bold(true)
	typingStyle      = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#888888"))
	noticeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).
				BorderStyle(lipgloss.NormalBorder()).BorderTop(true).BorderForeground(lipgloss.Color("62"))
)

// changedMsg tells the model the document changed
type changedMsg struct{}

// notices collects command output for the bottom pane
type notices struct {
	mu    sync.Mutex
	lines []string
}

func (n *notices) Write(p []byte) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		n.lines = append(n.lines, line)
	}
	if len(n.lines) > noticeLines {
		n.lines = n.lines[len(n.lines)-noticeLines:]
	}
	return len(p), nil
}

func (n *notices) String() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return strings.Join(n.lines, "\n")
}

// Model is the bubbletea model of the debate chat
type Model struct {
	ctx     context.Context
	bot     *chatbot.ChatBot
	notices *notices

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	ready    bool
	width    int
}

// New creates the model for bot
func New(ctx context.Context, bot *chatbot.ChatBot) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask the council a question, or /help"
	ti.Focus()
	ti.CharLimit = 2000

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	n := &notices{}
	bot.SetOutput(n)

	return Model{
		ctx:     ctx,
		bot:     bot,
		notices: n,
		input:   ti,
		spinner: sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if quit := m.submit(m.input.Value()); quit {
				return m, tea.Quit
			}
			m.input.Reset()
			m.refresh()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		height := msg.Height - 4 - noticeLines
		if height < 3 {
			height = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.input.Width = msg.Width - 4
		if err := m.bot.Terminal().SetWidth(msg.Width - 4); err != nil {
			fmt.Fprintf(m.notices, "Error: %v\n", err)
		}
		m.refresh()

	case changedMsg:
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// submit handles one line of input and reports whether to quit
func (m *Model) submit(line string) bool {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		m.bot.Controller().Submit(line)
		return false
	}
	quit, err := m.bot.Exec(m.ctx, line)
	if err != nil {
		fmt.Fprintf(m.notices, "Error: %v\n", err)
	}
	return quit
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderDocument(m.bot.Document().Snapshot()))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderDocument(st view.State) string {
	var sb strings.Builder
	for _, e := range st.Entries {
		switch e.Kind {
		case view.EntryUser:
			sb.WriteString(userStyle.Render("You: "))
			sb.WriteString(e.Text)
			sb.WriteString("\n\n")
		case view.EntryDebate:
			m.renderDebate(&sb, e.Debate)
		}
	}
	if st.Typing != "" {
		sb.WriteString(typingStyle.Render(st.Typing + " is typing..."))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m *Model) renderDebate(sb *strings.Builder, b *view.DebateBlock) {
	if b == nil {
		return
	}
	sb.WriteString(debateTitleStyle.Render(b.Title))
	sb.WriteString("\n")
	for _, node := range b.Roles {
		if node.Role == protocol.RoleSynthesizer && b.VerdictMarkdown != "" {
			continue
		}
		style, ok := roleStyles[node.Role]
		if !ok {
			style = defaultRoleStyle
		}
		header := fmt.Sprintf("%s · %s", node.Label, node.Sender)
		if node.Streaming {
			header += " " + m.spinner.View()
		}
		sb.WriteString(style.Render(header))
		sb.WriteString("\n")
		if node.Argument != nil {
			fmt.Fprintf(sb, "Stance: %s\n", node.Argument.Stance)
		}
		sb.WriteString(m.markdown(node.Markdown))
	}
	if b.VerdictMarkdown != "" {
		sb.WriteString(roleStyles[protocol.RoleSynthesizer].Render(fmt.Sprintf("%s · %s", protocol.RoleLabel(protocol.RoleSynthesizer), b.VerdictSender)))
		sb.WriteString("\n")
		sb.WriteString(m.markdown(b.VerdictMarkdown))
	}
	if b.FeedbackVisible {
		sb.WriteString(typingStyle.Render("/feedback <up|down> [note] · /rate <opener|final> <1-5>"))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

func (m *Model) markdown(md string) string {
	out, err := m.bot.Terminal().Render(md)
	if err != nil {
		return md + "\n"
	}
	return out
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	st := m.bot.Document().Snapshot()

	status := statusStyle.Render(st.Status)
	if st.StatusActive {
		status = activeStatusStyle.Render(m.spinner.View() + " " + st.Status)
	}
	header := lipgloss.JoinHorizontal(lipgloss.Center, titleStyle.Render("Shurahub"), status)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		noticeStyle.Width(m.width).Height(noticeLines).Render(m.notices.String()),
		m.input.View(),
	)
}

// loadHistory lists the user's debates into the notices pane
func loadHistory(ctx context.Context, bot *chatbot.ChatBot, w io.Writer) {
	if _, err := bot.Exec(ctx, "/history"); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}

// Run starts the bot and blocks in the TUI until the user quits
func Run(ctx context.Context, bot *chatbot.ChatBot) error {
	defer bot.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := New(ctx, bot)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	// Coalesce document changes so slow redraws never block the controller
	notify := make(chan struct{}, 1)
	bot.Document().Subscribe(func(view.Change) {
		select {
		case notify <- struct{}{}:
		default:
		}
	})
	go func() {
		for {
			select {
			case <-notify:
				p.Send(changedMsg{})
			case <-ctx.Done():
				return
			}
		}
	}()

	bot.Start(ctx)
	if bot.Config().LoggedIn() {
		go func() {
			loadHistory(ctx, bot, m.notices)
			p.Send(changedMsg{})
		}()
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui failed: %w", err)
	}
	return nil
}
