// Package tui renders the assistant's terminal interface: a conversation
// sidebar next to the transcript of the current conversation, with a
// single input line.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/opencampus/assistant-cli/internal/chat"
	"github.com/opencampus/assistant-cli/internal/domain"
	"github.com/opencampus/assistant-cli/internal/store"
)

// focusArea is the pane receiving key input.
type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

// promptTemplates are the built-in prompt presets cycled with Ctrl+T. The
// empty id means free-form questions without a template.
var promptTemplates = []struct {
	id   string
	name string
}{
	{"", "自由提问"},
	{"tpl_explain", "概念讲解"},
	{"tpl_solve", "解题步骤"},
	{"tpl_review", "复习计划"},
}

// Model is the bubbletea model for the whole screen.
type Model struct {
	store   *store.ConversationStore
	chat    *chat.Service
	logger  *zap.Logger
	timeout time.Duration

	width    int
	height   int
	focus    focusArea
	selected int
	input    string
	status   string
	sending  bool
}

// New creates the screen model.
func New(s *store.ConversationStore, c *chat.Service, timeout time.Duration, logger *zap.Logger) Model {
	return Model{
		store:   s,
		chat:    c,
		logger:  logger,
		timeout: timeout,
		status:  "Ctrl+N 新对话 · Ctrl+S 收藏 · Ctrl+D 删除 · Ctrl+T 模板 · Ctrl+R 刷新 · Tab 切换焦点",
	}
}

// Messages produced by background commands.
type (
	conversationsRefreshedMsg struct{}
	replyMsg                  struct {
		conversationID string
		reply          string
		err            error
	}
	createdMsg struct{ id string }
	deletedMsg struct {
		id string
		ok bool
	}
	starToggledMsg struct{ ok bool }
)

// Init triggers the initial conversation load.
func (m Model) Init() tea.Cmd {
	return m.refreshCmd()
}

func (m Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		m.store.Load(ctx)
		return conversationsRefreshedMsg{}
	}
}

func (m Model) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		reply, err := m.chat.Send(ctx, text)
		return replyMsg{conversationID: m.store.CurrentID(), reply: reply, err: err}
	}
}

func (m Model) createCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		return createdMsg{id: m.store.Create(ctx, "")}
	}
}

func (m Model) deleteCmd(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		return deletedMsg{id: id, ok: m.store.Delete(ctx, id)}
	}
}

func (m Model) starCmd(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		return starToggledMsg{ok: m.store.ToggleStar(ctx, id)}
	}
}

// Update handles events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case conversationsRefreshedMsg:
		m.clampSelection()
		return m, nil

	case createdMsg:
		if msg.id == "" {
			m.status = "创建对话失败"
		} else {
			m.selected = 0
			m.status = "已创建新对话"
		}
		return m, nil

	case deletedMsg:
		if msg.ok {
			m.status = "对话已删除"
			m.chat.ClearTranscript(msg.id)
			m.clampSelection()
		} else {
			m.status = "删除失败"
		}
		return m, nil

	case starToggledMsg:
		if !msg.ok {
			m.status = "收藏操作失败"
		}
		return m, nil

	case replyMsg:
		m.sending = false
		// Only a reply for the conversation still on screen may touch
		// the status line; the transcript itself is re-read from the
		// service on every render.
		if msg.conversationID == m.store.CurrentID() {
			if msg.err != nil {
				m.status = "发送失败，请稍后再试"
			} else {
				m.status = ""
			}
		}
		return m, m.refreshCmd()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit

	case "tab":
		if m.focus == focusInput {
			m.focus = focusSidebar
		} else {
			m.focus = focusInput
		}
		return m, nil

	case "ctrl+n":
		return m, m.createCmd()

	case "ctrl+t":
		next := m.cycleTemplate()
		m.status = "模板：" + next
		return m, nil

	case "ctrl+r":
		return m, m.refreshCmd()

	case "ctrl+s":
		if conv, ok := m.selectedConversation(); ok {
			return m, m.starCmd(conv.ID)
		}
		return m, nil

	case "ctrl+d":
		if conv, ok := m.selectedConversation(); ok {
			return m, m.deleteCmd(conv.ID)
		}
		return m, nil

	case "up":
		if m.focus == focusSidebar && m.selected > 0 {
			m.selected--
		}
		return m, nil

	case "down":
		if m.focus == focusSidebar && m.selected < len(m.store.Conversations())-1 {
			m.selected++
		}
		return m, nil

	case "enter":
		if m.focus == focusSidebar {
			if conv, ok := m.selectedConversation(); ok {
				m.store.SetCurrent(conv.ID)
				m.focus = focusInput
			}
			return m, nil
		}
		return m.submit()

	case "backspace":
		if m.focus == focusInput && len(m.input) > 0 {
			runes := []rune(m.input)
			m.input = string(runes[:len(runes)-1])
		}
		return m, nil

	default:
		if m.focus == focusInput && msg.Type == tea.KeyRunes {
			m.input += string(msg.Runes)
		}
		return m, nil
	}
}

// submit launches the send flow for the typed message. The send control is
// disabled while a request is outstanding.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.sending || m.chat.Sending() {
		m.status = "上一条消息仍在发送中"
		return m, nil
	}
	text := m.input
	if text == "" {
		return m, nil
	}
	m.input = ""
	m.sending = true
	m.status = "思考中…"
	return m, m.sendCmd(text)
}

func (m *Model) clampSelection() {
	if n := len(m.store.Conversations()); m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

// cycleTemplate advances to the next prompt template and returns its
// display name.
func (m Model) cycleTemplate() string {
	current := m.chat.SelectedTemplate()
	for i, tpl := range promptTemplates {
		if tpl.id == current {
			next := promptTemplates[(i+1)%len(promptTemplates)]
			m.chat.SelectTemplate(next.id)
			return next.name
		}
	}
	// Unknown selection (e.g. stale cache entry): reset to free-form.
	m.chat.SelectTemplate(promptTemplates[0].id)
	return promptTemplates[0].name
}

func (m Model) selectedConversation() (domain.Conversation, bool) {
	conversations := m.store.Conversations()
	if m.selected < 0 || m.selected >= len(conversations) {
		return domain.Conversation{}, false
	}
	return conversations[m.selected], true
}
