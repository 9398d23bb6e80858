package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/drover/types"
)

// HistoryModel is a Bubble Tea model for the archived transfer view.
type HistoryModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewHistoryModel creates a new history model.
func NewHistoryModel(viewType string, data any) HistoryModel {
	return HistoryModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m HistoryModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m HistoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m HistoryModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "history_transfers":
		content = m.renderTransfers()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m HistoryModel) renderTransfers() string {
	data, ok := m.data.([]types.TransferState)
	if !ok {
		return "Invalid data type for history_transfers"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Transfer History"))
	b.WriteString("\n\n")

	completed, failed := 0, 0
	for i := range data {
		switch data[i].Status {
		case types.TransferCompleted:
			completed++
		case types.TransferFailed:
			failed++
		}
	}

	boxes := []string{
		m.renderStatBox("Total", len(data), accent),
		m.renderStatBox("Completed", completed, good),
		m.renderStatBox("Failed", failed, bad),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	if len(data) == 0 {
		b.WriteString(ValueStyle.Render("(no archived transfers)"))
		return b.String()
	}

	for i := range data {
		st := &data[i]
		status := StateStyle(string(st.Status)).Render(string(st.Status))
		line := fmt.Sprintf("%s  %s  %s  %s  %s",
			ValueStyle.Render(st.ID),
			LabelStyle.Render(string(st.Provider)),
			status,
			ValueStyle.Render(formatBytes(st.BytesDone)),
			LabelStyle.Render(st.UpdatedAt.Format("2006-01-02 15:04:05")),
		)
		b.WriteString(line)
		b.WriteString("\n")
		if st.Error != "" {
			b.WriteString(ErrorStyle.Render("    " + st.Error))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m HistoryModel) renderStatBox(label string, value int, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunHistoryTUI runs the history TUI.
func RunHistoryTUI(viewType string, data any) error {
	model := NewHistoryModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderHistoryStatic renders history data without full TUI (for fallback).
func RenderHistoryStatic(viewType string, data any) string {
	model := NewHistoryModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
