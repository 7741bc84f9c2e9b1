package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/skaldhq/skald/pkg/playbook"
	"github.com/skaldhq/skald/pkg/runtime"
)

type blockStatus int

const (
	statusPending blockStatus = iota
	statusCurrent
	statusPassed
	statusFailed
	statusSkipped
)

type blockRow struct {
	block  *playbook.Block
	status blockStatus
}

// Event messages delivered from the run goroutine.
type stateMsg runtime.State

type highlightMsg struct {
	currentLine int
	failedLine  int
}

type runDoneMsg struct{ err error }

// Model is the Bubble Tea model for the playbook runner.
type Model struct {
	title string
	pb    *playbook.Playbook
	exec  *runtime.Executor
	sess  *runtime.Session

	rows    []blockRow
	state   runtime.State
	spin    spinner.Model
	events  chan tea.Msg
	width   int
	height  int
	paused  bool
	started bool
	done    bool
	runErr  error
}

// NewModel builds the runner model. The session is created here so its
// hooks can feed the event channel.
func NewModel(title string, pb *playbook.Playbook, exec *runtime.Executor) *Model {
	events := make(chan tea.Msg, 64)
	hooks := runtime.Hooks{
		OnState: func(id string, st runtime.State) {
			select {
			case events <- stateMsg(st):
			default:
			}
		},
		OnHighlight: func(id string, current, failed int) {
			select {
			case events <- highlightMsg{currentLine: current, failedLine: failed}:
			default:
			}
		},
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	rows := make([]blockRow, len(pb.Blocks))
	for i, b := range pb.Blocks {
		rows[i] = blockRow{block: b}
	}

	return &Model{
		title:  title,
		pb:     pb,
		exec:   exec,
		sess:   runtime.NewSession(title, hooks),
		rows:   rows,
		state:  runtime.StateIdle,
		spin:   sp,
		events: events,
	}
}

// Run starts the TUI and blocks until the user quits.
func Run(title string, pb *playbook.Playbook, exec *runtime.Executor) error {
	_, err := tea.NewProgram(NewModel(title, pb, exec), tea.WithAltScreen()).Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.waitForEvent())
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}

func (m *Model) startRun() tea.Cmd {
	m.started = true
	m.done = false
	m.runErr = nil
	m.paused = false
	for i := range m.rows {
		m.rows[i].status = statusPending
	}
	return func() tea.Msg {
		err := m.exec.Run(context.Background(), m.sess, m.pb)
		return runDoneMsg{err: err}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.sess.RequestStop()
			return m, tea.Quit
		case "r":
			switch m.state {
			case runtime.StateIdle:
				return m, m.startRun()
			case runtime.StateError:
				// Restart is always from the top.
				if err := m.sess.Reset(); err == nil {
					m.state = runtime.StateIdle
					return m, m.startRun()
				}
			}
			return m, nil
		case " ":
			if m.state == runtime.StateRunning {
				m.sess.RequestPause()
				m.paused = true
			} else if m.state == runtime.StatePaused {
				m.sess.Resume()
				m.paused = false
			}
			return m, nil
		case "s":
			m.sess.RequestStop()
			return m, nil
		}
		return m, nil

	case stateMsg:
		m.state = runtime.State(msg)
		return m, m.waitForEvent()

	case highlightMsg:
		m.applyHighlight(msg.currentLine, msg.failedLine)
		return m, m.waitForEvent()

	case runDoneMsg:
		m.done = true
		m.runErr = msg.err
		if msg.err == nil {
			for i := range m.rows {
				if m.rows[i].status == statusCurrent {
					m.rows[i].status = statusPassed
				}
			}
		}
		return m, m.waitForEvent()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

// applyHighlight maps line-based highlight events onto block rows: the
// previous current block has completed, the new current one is marked,
// and a failed line paints its block red.
func (m *Model) applyHighlight(currentLine, failedLine int) {
	for i := range m.rows {
		row := &m.rows[i]
		switch {
		case failedLine != 0 && row.block.Line == failedLine:
			row.status = statusFailed
		case currentLine != 0 && row.block.Line == currentLine:
			row.status = statusCurrent
		case row.status == statusCurrent:
			row.status = statusPassed
		}
	}
}

func (m *Model) View() string {
	var b strings.Builder

	badge := stateBadgeStyle.Render(strings.ToUpper(string(m.state)))
	b.WriteString(headerStyle.Render("skald · "+m.title) + " " + badge + "\n\n")

	width := m.width
	if width <= 0 {
		width = 80
	}

	for _, row := range m.rows {
		if row.block.Name == playbook.PlainComment {
			continue
		}
		glyph, style := glyphFor(row.status)
		label := describeRow(row.block)
		if row.status == statusCurrent && m.state == runtime.StateRunning {
			glyph = m.spin.View()
		}
		line := fmt.Sprintf(" %s %3d  %s", glyph, row.block.Line, label)
		b.WriteString(style.Render(runewidth.Truncate(line, width-2, "…")) + "\n")
	}

	if preview := m.currentPreview(); preview != "" {
		b.WriteString("\n" + panelTitle.Render("current block") + "\n")
		b.WriteString(panelBorder.Width(width - 4).Render(preview) + "\n")
	}

	if m.runErr != nil {
		b.WriteString("\n" + errorStyle.Render("run failed: "+m.runErr.Error()) + "\n")
	}

	b.WriteString("\n" + m.keyBar())
	return b.String()
}

func (m *Model) currentPreview() string {
	for _, row := range m.rows {
		if row.status == statusCurrent || row.status == statusFailed {
			return renderMarkdown(row.block.Content)
		}
	}
	return ""
}

func (m *Model) keyBar() string {
	keys := [][2]string{
		{"r", "run"},
		{"space", "pause/resume"},
		{"s", "stop"},
		{"q", "quit"},
	}
	var parts []string
	for _, k := range keys {
		parts = append(parts, keyStyle.Render(k[0])+" "+keyDescStyle.Render(k[1]))
	}
	return keyBarStyle.Render(strings.Join(parts, "  "))
}

func glyphFor(st blockStatus) (string, interface{ Render(...string) string }) {
	switch st {
	case statusCurrent:
		return GlyphCurrent, blockCurrent
	case statusPassed:
		return GlyphPassed, blockPassed
	case statusFailed:
		return GlyphFailed, blockFailed
	case statusSkipped:
		return GlyphSkipped, blockSkipped
	}
	return GlyphPending, blockNormal
}

func describeRow(b *playbook.Block) string {
	switch b.Name {
	case playbook.PlainText:
		line := strings.TrimSpace(b.Content)
		if i := strings.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
		}
		return line
	case playbook.PlainCodeBlock:
		if b.Language != "" {
			return "``` " + b.Language
		}
		return "```"
	}
	var flags []string
	for _, f := range b.Flags {
		if f.Name != "" {
			flags = append(flags, "--"+f.Name)
		}
	}
	if len(flags) > 0 {
		return "@" + b.Name + " " + strings.Join(flags, " ")
	}
	return "@" + b.Name
}
