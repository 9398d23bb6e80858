package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/drover/types"
)

// TuneView is the payload for the tune_profile view: the profile before
// and after adjustment, plus the conditions that drove the adjustment.
type TuneView struct {
	Provider   types.Provider          `json:"provider"`
	Conditions types.NetworkConditions `json:"conditions"`
	Base       types.ProviderProfile   `json:"base"`
	Tuned      types.ProviderProfile   `json:"tuned"`
}

// TuneModel is a Bubble Tea model for the tuned profile view.
type TuneModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewTuneModel creates a new tune model.
func NewTuneModel(viewType string, data any) TuneModel {
	return TuneModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m TuneModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m TuneModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
func (m TuneModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "tune_profile":
		content = m.renderProfile()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m TuneModel) renderProfile() string {
	data, ok := m.data.(*TuneView)
	if !ok {
		return "Invalid data type for tune_profile"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Tuned Profile: %s", data.Provider)))
	b.WriteString("\n\n")

	bw := "unknown"
	if data.Conditions.BandwidthBPS > 0 {
		bw = formatBytes(data.Conditions.BandwidthBPS) + "/s"
	}

	b.WriteString(TitleStyle.Render("Conditions"))
	b.WriteString("\n")
	b.WriteString(m.row("Bandwidth", bw))
	b.WriteString(m.row("Latency", data.Conditions.Latency.String()))
	b.WriteString(m.row("Loss", fmt.Sprintf("%.1f%%", data.Conditions.LossFraction*100)))
	b.WriteString(m.row("Shared Link", fmt.Sprintf("%v", data.Conditions.SharedConnection)))
	b.WriteString("\n")

	b.WriteString(TitleStyle.Render("Parameters"))
	b.WriteString("\n")
	b.WriteString(m.diffRow("Chunk Size", formatBytes(data.Base.ChunkSize), formatBytes(data.Tuned.ChunkSize)))
	b.WriteString(m.diffRow("Concurrency", fmt.Sprintf("%d", data.Base.MaxConcurrent), fmt.Sprintf("%d", data.Tuned.MaxConcurrent)))
	b.WriteString(m.diffRow("Max Attempts", fmt.Sprintf("%d", data.Base.MaxAttempts), fmt.Sprintf("%d", data.Tuned.MaxAttempts)))
	b.WriteString(m.diffRow("Base Delay", data.Base.BaseDelay.String(), data.Tuned.BaseDelay.String()))
	b.WriteString(m.diffRow("Compression", string(data.Base.Compression), string(data.Tuned.Compression)))
	b.WriteString(m.diffRow("Rate Limit", formatRate(data.Base.RateLimit), formatRate(data.Tuned.RateLimit)))
	b.WriteString(m.diffRow("Timeout", data.Base.Timeout.Round(time.Second).String(), data.Tuned.Timeout.Round(time.Second).String()))

	return BoxStyle.Render(b.String())
}

func (m TuneModel) row(label, value string) string {
	return fmt.Sprintf("%s %s\n", LabelStyle.Render(label+":"), ValueStyle.Render(value))
}

// diffRow highlights values the tuner changed.
func (m TuneModel) diffRow(label, base, tuned string) string {
	rendered := ValueStyle.Render(tuned)
	if base != tuned {
		rendered = WarningStyle.Render(fmt.Sprintf("%s (was %s)", tuned, base))
	}
	return fmt.Sprintf("%s %s\n", LabelStyle.Render(label+":"), rendered)
}

// formatRate renders bytes per second; zero means unlimited/unknown.
func formatRate(bps int64) string {
	if bps == 0 {
		return "unlimited"
	}
	return formatBytes(bps) + "/s"
}

// RunTuneTUI runs the tune TUI.
func RunTuneTUI(viewType string, data any) error {
	model := NewTuneModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderTuneStatic renders tune data without full TUI (for fallback).
func RenderTuneStatic(viewType string, data any) string {
	model := NewTuneModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
