// Command walview is a terminal browser over a write-ahead log file,
// adapted from the teacher's pkg/debug/logreader Bubble Tea program: load
// every record up front, list them, and drill into one for detail.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rennervale/pagestore/internal/tui"
	"github.com/rennervale/pagestore/pkg/storage"
	"github.com/rennervale/pagestore/pkg/walog"
)

type model struct {
	records    []*walog.Record
	cursor     int
	selected   *walog.Record
	viewport   viewport.Model
	detailMode bool
	err        error
	logPath    string
}

func initialModel(logPath string) model {
	return model{logPath: logPath}
}

func (m model) Init() tea.Cmd {
	return loadRecords(m.logPath)
}

type recordsLoadedMsg struct {
	records []*walog.Record
	err     error
}

func loadRecords(logPath string) tea.Cmd {
	return func() tea.Msg {
		log, err := walog.Open(logPath, storage.PageSize)
		if err != nil {
			return recordsLoadedMsg{err: err}
		}
		defer log.Close()

		var records []*walog.Record
		err = log.ScanForward(walog.HeaderLen, func(rec *walog.Record) error {
			records = append(records, rec)
			return nil
		})
		if err != nil {
			return recordsLoadedMsg{err: err}
		}
		return recordsLoadedMsg{records: records}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case recordsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.records = msg.records
		return m, nil

	case tea.WindowSizeMsg:
		m.viewport = viewport.New(msg.Width-4, msg.Height-10)
		return m, nil

	case tea.KeyMsg:
		if m.detailMode {
			switch {
			case key.Matches(msg, tui.Keys.Back):
				m.detailMode = false
				return m, nil
			case key.Matches(msg, tui.Keys.Quit):
				return m, tea.Quit
			}
		} else {
			switch {
			case key.Matches(msg, tui.Keys.Quit):
				return m, tea.Quit
			case key.Matches(msg, tui.Keys.Up):
				if m.cursor > 0 {
					m.cursor--
				}
			case key.Matches(msg, tui.Keys.Down):
				if m.cursor < len(m.records)-1 {
					m.cursor++
				}
			case key.Matches(msg, tui.Keys.Select):
				if m.cursor < len(m.records) {
					m.selected = m.records[m.cursor]
					m.detailMode = true
					m.viewport.SetContent(m.renderDetailView())
				}
			}
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.err != nil {
		return tui.ErrorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if len(m.records) == 0 {
		return "Loading log records...\n"
	}

	var b strings.Builder
	b.WriteString(tui.TitleStyle.Render("write-ahead log viewer") + "\n\n")

	if m.detailMode {
		b.WriteString(m.viewport.View())
		b.WriteString("\n\n")
		b.WriteString(tui.HelpStyle.Render("esc: back | q: quit"))
	} else {
		b.WriteString(m.renderListView())
	}

	b.WriteString("\n" + m.renderStatusBar())
	return b.String()
}

func (m model) renderListView() string {
	var b strings.Builder
	b.WriteString(tui.HeaderStyle.Render(fmt.Sprintf(" %d records ", len(m.records))) + "\n\n")

	start := max(0, m.cursor-10)
	end := min(len(m.records), start+20)
	for i := start; i < end; i++ {
		line := m.formatRecordLine(m.records[i], i)
		if i == m.cursor {
			line = tui.SelectedItemStyle.Render("> " + line)
		} else {
			line = tui.ItemStyle.Render("  " + line)
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	b.WriteString(tui.HelpStyle.Render("up/down: navigate | enter: view details | q: quit"))
	return b.String()
}

func (m model) formatRecordLine(rec *walog.Record, index int) string {
	typeStr := m.colorizeType(rec.Type)
	offsetStr := tui.LabelStyle.Render("offset:") + " " + tui.ValueStyle.Render(fmt.Sprintf("%d", rec.StartOffset))

	tidStr := ""
	if rec.Type == walog.RecBegin || rec.Type == walog.RecUpdate || rec.Type == walog.RecCommit || rec.Type == walog.RecAbort {
		tidStr = tui.LabelStyle.Render("tid:") + " " + tui.ValueStyle.Render(fmt.Sprintf("%d", rec.TID))
	}

	return fmt.Sprintf("[%3d] %s | %s | %s", index+1, typeStr, offsetStr, tidStr)
}

func (m model) colorizeType(t walog.RecordType) string {
	var color lipgloss.AdaptiveColor
	var name string

	switch t {
	case walog.RecBegin:
		color, name = tui.SuccessColor, "BEGIN     "
	case walog.RecCommit:
		color, name = tui.SuccessColor, "COMMIT    "
	case walog.RecAbort:
		color, name = tui.ErrorColor, "ABORT     "
	case walog.RecUpdate:
		color, name = tui.WarningColor, "UPDATE    "
	case walog.RecCheckpointBegin:
		color, name = tui.PrimaryColor, "CKPT BEGIN"
	case walog.RecCheckpoint:
		color, name = tui.PrimaryColor, "CHECKPOINT"
	default:
		color, name = tui.MutedColor, "UNKNOWN   "
	}
	return lipgloss.NewStyle().Foreground(color).Render(name)
}

func (m model) renderDetailView() string {
	if m.selected == nil {
		return "no record selected"
	}
	rec := m.selected

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(tui.PrimaryColor).Render("Record Details") + "\n\n")
	b.WriteString(m.renderKeyValue("Type", m.colorizeType(rec.Type)))
	b.WriteString(m.renderKeyValue("Start offset", fmt.Sprintf("%d", rec.StartOffset)))

	switch rec.Type {
	case walog.RecBegin, walog.RecCommit, walog.RecAbort:
		b.WriteString(m.renderKeyValue("Transaction ID", fmt.Sprintf("%d", rec.TID)))

	case walog.RecUpdate:
		b.WriteString(m.renderKeyValue("Transaction ID", fmt.Sprintf("%d", rec.TID)))
		b.WriteString(m.renderKeyValue("Page", rec.PageID.String()))
		b.WriteString(m.renderKeyValue("Before image", fmt.Sprintf("%d bytes", len(rec.Before))))
		b.WriteString(m.renderKeyValue("After image", fmt.Sprintf("%d bytes", len(rec.After))))

	case walog.RecCheckpoint:
		b.WriteString(m.renderKeyValue("Live transactions", fmt.Sprintf("%d", len(rec.Checkpoint))))
		for _, e := range rec.Checkpoint {
			b.WriteString(m.renderKeyValue(fmt.Sprintf("  tid %d earliest offset", e.TID), fmt.Sprintf("%d", e.FirstOffset)))
		}
	}

	return tui.DetailStyle.Render(b.String())
}

func (m model) renderKeyValue(k, v string) string {
	return fmt.Sprintf("%s %s\n", tui.LabelStyle.Render(k+":"), tui.ValueStyle.Render(v))
}

func (m model) renderStatusBar() string {
	mode := "list"
	if m.detailMode {
		mode = "detail"
	}
	return tui.StatusBarStyle.Render(fmt.Sprintf(" %s view | record %d/%d | %s ", mode, m.cursor+1, len(m.records), m.logPath))
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: walview <path-to-wal-file>")
		os.Exit(1)
	}

	p := tea.NewProgram(initialModel(os.Args[1]), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
