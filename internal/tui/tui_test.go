package tui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Shurahub/internal/chatbot"
	"Shurahub/internal/config"
	"Shurahub/internal/debate"
	"Shurahub/internal/telemetry"
)

func newModel(t *testing.T) Model {
	t.Helper()
	return newModelWithCookie(t, "")
}

func newModelWithCookie(t *testing.T, cookie string) Model {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	cfg := config.Config{
		BaseURL:        srv.URL,
		SessionCookie:  cookie,
		DBPath:         ":memory:",
		Theme:          config.ThemeDark,
		UIMode:         config.UIModeTUI,
		NoColor:        true,
		FlushWindow:    10 * time.Millisecond,
		ReconnectDelay: time.Hour,
	}
	bot, err := chatbot.NewWithIO(cfg, telemetry.NopLogger(), nil, nil, strings.NewReader(""), &strings.Builder{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bot.Close() })

	m := New(context.Background(), bot)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(Model)
}

func TestNoticesKeepLastLines(t *testing.T) {
	n := &notices{}
	for i := 0; i < noticeLines+3; i++ {
		_, _ = n.Write([]byte("line\n"))
	}
	_, _ = n.Write([]byte("last\n"))
	lines := strings.Split(n.String(), "\n")
	assert.Len(t, lines, noticeLines)
	assert.Equal(t, "last", lines[len(lines)-1])
}

func TestViewRendersDocument(t *testing.T) {
	m := newModel(t)
	doc := m.bot.Document()
	doc.AppendUserMessage("Rent or buy?")
	doc.BeginDebate("Rent or buy?")
	doc.RenderRole("opener", "llama", "Buy a house", "<p>Buy a house</p>")
	doc.SetArgument("opener", "llama", debate.Argument{Claim: "Buy", Stance: debate.StancePro})
	doc.SetSynthesis("gpt", "Rent for now", "<p>Rent for now</p>", debate.Synthesis{})
	doc.ShowFeedback()
	doc.SetStatus("Ready for the next decision.", false)

	updated, _ := m.Update(changedMsg{})
	m = updated.(Model)
	out := m.View()

	assert.Contains(t, out, "Shurahub")
	assert.Contains(t, out, "Ready for the next decision.")
	assert.Contains(t, out, "You: Rent or buy?")
	assert.Contains(t, out, "Opener · llama")
	assert.Contains(t, out, "Stance: Pro")
	assert.Contains(t, out, "Buy a house")
	assert.Contains(t, out, "Judge · gpt")
	assert.Contains(t, out, "Rent for now")
}

func TestCommandsWriteToNotices(t *testing.T) {
	m := newModel(t)
	m.input.SetValue("/theme")
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)

	assert.Contains(t, m.notices.String(), "Theme set to light")
	assert.Empty(t, m.input.Value())

	m.input.SetValue("/nope")
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	assert.Contains(t, m.notices.String(), "unknown command: /nope")
}

func TestPromptWhileDisconnected(t *testing.T) {
	m := newModel(t)
	m.input.SetValue("Go or Rust?")
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)

	st := m.bot.Document().Snapshot()
	assert.Equal(t, "Connecting to the council...", st.Status)
	assert.Empty(t, st.Entries)
}

func TestQuitKeys(t *testing.T) {
	m := newModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	m.input.SetValue("/quit")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestInitialHistoryErrorReachesNotices(t *testing.T) {
	m := newModelWithCookie(t, "tok")
	loadHistory(context.Background(), m.bot, m.notices)

	got := m.notices.String()
	assert.Contains(t, got, "Failed to load debates")
	assert.Contains(t, got, "Error: fetch debates failed: HTTP error 404")
}
