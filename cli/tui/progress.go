package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/drover/sink"
	"github.com/justapithecus/drover/types"
)

// ScrollbackLines is how much recent tool output the live view retains.
// The authoritative capture is unaffected; this only bounds the display.
const ScrollbackLines = 8

// snapshotMsg carries one progress snapshot into the Bubble Tea loop.
type snapshotMsg types.ProgressSnapshot

// progressClosedMsg signals that the snapshot channel has closed and the
// run is over.
type progressClosedMsg struct{}

// tickMsg repaints the view so scrollback stays fresh for commands that
// emit plain lines but no status snapshots.
type tickMsg struct{}

func tick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// ProgressModel is the live view for a running transfer. It consumes the
// same progress snapshots the wire protocol and the registry consume.
type ProgressModel struct {
	runID    string
	command  string
	ch       <-chan types.ProgressSnapshot
	tail     *sink.Tail
	bar      progress.Model
	last     types.ProgressSnapshot
	seen     bool
	done     bool
	quitting bool
	width    int
}

// NewProgressModel creates a live progress model bound to a snapshot
// channel. The channel is owned by the caller and closes when the run
// finishes. tail, when non-nil, supplies recent tool output for the
// scrollback section; it is fed by the supervisor's line sinks.
func NewProgressModel(runID, command string, ch <-chan types.ProgressSnapshot, tail *sink.Tail) ProgressModel {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 50
	return ProgressModel{
		runID:   runID,
		command: command,
		bar:     bar,
		ch:      ch,
		tail:    tail,
	}
}

// Init implements tea.Model.
func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(waitForSnapshot(m.ch), tick())
}

// Update implements tea.Model.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if w := msg.Width - 10; w > 10 && w < 80 {
			m.bar.Width = w
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case snapshotMsg:
		m.last = types.ProgressSnapshot(msg)
		m.seen = true
		if m.last.Final || m.last.Aborted {
			m.done = true
		}
		return m, waitForSnapshot(m.ch)

	case progressClosedMsg:
		m.done = true
		return m, tea.Quit

	case tickMsg:
		if m.done || m.quitting {
			return m, nil
		}
		return m, tick()
	}

	return m, nil
}

// View implements tea.Model.
func (m ProgressModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("%s  %s", m.command, m.runID)))
	b.WriteString("\n\n")

	if !m.seen {
		b.WriteString(ValueStyle.Render("waiting for progress..."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.bar.ViewAs(m.last.Percent))
		b.WriteString("\n\n")

		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Bytes:"),
			ValueStyle.Render(fmt.Sprintf("%s / %s", formatBytes(m.last.BytesDone), formatBytes(m.last.TotalBytes)))))
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Files:"),
			ValueStyle.Render(fmt.Sprintf("%d / %d", m.last.FilesDone, m.last.TotalFiles))))
		if m.last.CurrentFile != "" {
			b.WriteString(fmt.Sprintf("%s %s\n",
				LabelStyle.Render("Current:"),
				ValueStyle.Render(m.last.CurrentFile)))
		}
		if m.last.Aborted {
			b.WriteString("\n")
			b.WriteString(ErrorStyle.Render("aborted"))
			b.WriteString("\n")
		} else if m.last.Final {
			b.WriteString("\n")
			b.WriteString(SuccessStyle.Render("done"))
			b.WriteString("\n")
		}
	}

	if scrollback := m.renderScrollback(); scrollback != "" {
		b.WriteString("\n")
		b.WriteString(scrollback)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to detach")
	return BoxStyle.Render(b.String()) + "\n" + help
}

// renderScrollback renders the retained window of recent tool output.
// Stderr lines are marked so failures stand out in the stream.
func (m ProgressModel) renderScrollback() string {
	if m.tail == nil || m.tail.Len() == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(LabelStyle.Render("Output:"))
	b.WriteString("\n")
	for _, line := range m.tail.Lines() {
		style := ScrollbackStyle
		text := line.Text
		if line.Origin == types.OriginStderr {
			style = WarningStyle
			text = "! " + text
		}
		b.WriteString(style.Render("  " + text))
		b.WriteString("\n")
	}
	return b.String()
}

// waitForSnapshot blocks on the channel and converts receives into
// messages. One command per receive keeps the loop backpressure-free.
func waitForSnapshot(ch <-chan types.ProgressSnapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return progressClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

// RunProgressTUI runs the live progress view until the snapshot channel
// closes or the user detaches. Detaching does not cancel the run.
func RunProgressTUI(runID, command string, ch <-chan types.ProgressSnapshot, tail *sink.Tail) error {
	model := NewProgressModel(runID, command, ch, tail)
	p := tea.NewProgram(model)
	_, err := p.Run()
	return err
}
