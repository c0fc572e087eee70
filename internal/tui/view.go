package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/opencampus/assistant-cli/internal/domain"
)

const sidebarWidth = 28

var (
	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Width(sidebarWidth).
			Padding(0, 1)

	chatStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	selectedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	currentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	statusStyle    = lipgloss.NewStyle().Faint(true)
	inputStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("229"))
)

// View renders the sidebar and chat pane side by side.
func (m Model) View() string {
	if m.width == 0 {
		return "加载中…"
	}

	chatWidth := m.width - sidebarWidth - 6
	if chatWidth < 20 {
		chatWidth = 20
	}
	bodyHeight := m.height - 4
	if bodyHeight < 5 {
		bodyHeight = 5
	}

	sidebar := sidebarStyle.Height(bodyHeight).Render(m.renderSidebar(bodyHeight))
	chatPane := chatStyle.Width(chatWidth).Height(bodyHeight).Render(m.renderChat(chatWidth, bodyHeight))

	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, chatPane)
	return lipgloss.JoinVertical(lipgloss.Left, body, statusStyle.Render(m.status))
}

func (m Model) renderSidebar(height int) string {
	conversations := m.store.Conversations()
	if len(conversations) == 0 {
		return "暂无对话\n\nCtrl+N 新建"
	}

	currentID := m.store.CurrentID()
	var b strings.Builder
	for i, conv := range conversations {
		if i >= height-1 {
			break
		}
		line := conversationLine(conv)
		switch {
		case m.focus == focusSidebar && i == m.selected:
			line = selectedStyle.Render("> " + line)
		case conv.ID == currentID:
			line = currentStyle.Render("* " + line)
		default:
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func conversationLine(conv domain.Conversation) string {
	title := conv.Title
	if runes := []rune(title); len(runes) > 18 {
		title = string(runes[:18]) + "…"
	}
	if conv.Starred {
		return "★ " + title
	}
	return title
}

func (m Model) renderChat(width, height int) string {
	currentID := m.store.CurrentID()
	if currentID == "" {
		return "选择或创建一个对话开始提问。"
	}

	transcript := m.chat.Transcript(currentID)
	var lines []string
	for _, msg := range transcript {
		prefix := assistantStyle.Render("助手")
		if msg.Role == domain.RoleUser {
			prefix = userStyle.Render("我")
		}
		lines = append(lines, fmt.Sprintf("%s  %s", prefix, msg.Content))
	}

	// Keep the tail of the transcript in view above the input line.
	visible := height - 3
	if visible > 0 && len(lines) > visible {
		lines = lines[len(lines)-visible:]
	}

	prompt := "> "
	if m.sending {
		prompt = "… "
	}
	lines = append(lines, "", inputStyle.Render(prompt+m.input))
	return strings.Join(lines, "\n")
}
