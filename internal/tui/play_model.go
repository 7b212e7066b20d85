package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/timer"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"therapyctl/internal/api"
	"therapyctl/internal/session"
)

// revealDelay is how long a flipped pair stays visible before it resolves.
const revealDelay = 700 * time.Millisecond

// refreshMsg re-snapshots the controller after a transport command finished.
type refreshMsg struct{}

// resolveMsg settles a pending memory-match pair after the reveal delay.
type resolveMsg struct{}

// PlayModel runs one game session from start to summary.
type PlayModel struct {
	ctrl  *session.Controller
	mode  session.InputMode
	theme Theme

	childID     api.ID
	trials      int
	timeLimitMS int

	ctx    context.Context
	cancel context.CancelFunc

	width  int
	height int

	cursor  int
	picker  *session.Picker
	text    textinput.Model
	board   *session.Board
	spin    spinner.Model
	clock   timer.Model
	ticking bool

	trialID  api.ID // trial the current view state belongs to
	inputErr string
	quitting bool
}

func NewPlayModel(ctrl *session.Controller, childID api.ID, trials, timeLimitMS int, theme Theme) *PlayModel {
	ti := textinput.New()
	ti.Placeholder = "Describe the scene, then press Enter"
	ti.CharLimit = 400

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ctx, cancel := context.WithCancel(context.Background())
	return &PlayModel{
		ctrl:        ctrl,
		mode:        session.ModeForGame(ctrl.Game()),
		theme:       theme,
		childID:     childID,
		trials:      trials,
		timeLimitMS: timeLimitMS,
		ctx:         ctx,
		cancel:      cancel,
		width:       100,
		height:      30,
		picker:      session.NewPicker(),
		text:        ti,
		spin:        sp,
	}
}

func (m *PlayModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.startCmd())
}

func (m *PlayModel) startCmd() tea.Cmd {
	return func() tea.Msg {
		_ = m.ctrl.Start(m.ctx, m.childID, m.trials, m.timeLimitMS)
		return refreshMsg{}
	}
}

func (m *PlayModel) submitCmd(value string) tea.Cmd {
	trialID := m.trialID
	return func() tea.Msg {
		_ = m.ctrl.SubmitFor(m.ctx, trialID, value)
		return refreshMsg{}
	}
}

func (m *PlayModel) timeoutCmd() tea.Cmd {
	trialID := m.trialID
	return func() tea.Msg {
		_ = m.ctrl.SubmitTimeoutFor(m.ctx, trialID)
		return refreshMsg{}
	}
}

func (m *PlayModel) summaryCmd() tea.Cmd {
	return func() tea.Msg {
		_ = m.ctrl.RequestSummaryEarly(m.ctx)
		return refreshMsg{}
	}
}

func (m *PlayModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case refreshMsg:
		return m.onRefresh()

	case resolveMsg:
		return m.onResolve()

	case timer.TickMsg, timer.StartStopMsg:
		var cmd tea.Cmd
		m.clock, cmd = m.clock.Update(msg)
		return m, cmd

	case timer.TimeoutMsg:
		if !m.ticking {
			return m, nil
		}
		m.ticking = false
		if m.mode == session.PairedMatch && m.board != nil {
			// The external timer ends the board: submit what was found.
			return m, m.submitCmd(m.board.Result().Encode())
		}
		return m, m.timeoutCmd()

	case tea.KeyMsg:
		return m.onKey(msg)
	}
	return m, nil
}

// onRefresh reacts to a controller state change: a new trial re-arms the
// per-trial view state and the countdown, completion stops the clock.
func (m *PlayModel) onRefresh() (tea.Model, tea.Cmd) {
	view := m.ctrl.View()

	switch view.State {
	case session.StateCompleted, session.StateIdle:
		m.ticking = false
		m.trialID = ""
		return m, nil

	case session.StateAwaitingResponse:
		if view.Trial != nil && view.Trial.ID != m.trialID {
			return m, m.installTrial(view.Trial)
		}
	}
	return m, nil
}

func (m *PlayModel) installTrial(t *session.Trial) tea.Cmd {
	m.trialID = t.ID
	m.cursor = 0
	m.inputErr = ""
	m.picker.Clear()
	m.text.Reset()
	m.board = nil

	if m.mode == session.PairedMatch {
		board, err := session.BoardFromTrial(t)
		if err != nil {
			m.inputErr = err.Error()
		} else {
			m.board = board
		}
	}
	if m.mode == session.FreeText {
		m.text.Focus()
	}

	m.clock = timer.NewWithInterval(t.TimeLimit, time.Second)
	m.ticking = true
	return m.clock.Init()
}

func (m *PlayModel) onResolve() (tea.Model, tea.Cmd) {
	if m.board == nil {
		return m, nil
	}
	m.board.Resolve()
	if m.board.Complete() {
		m.ticking = false
		return m, m.submitCmd(m.board.Result().Encode())
	}
	return m, nil
}

func (m *PlayModel) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	view := m.ctrl.View()

	switch msg.String() {
	case "ctrl+c", "q":
		if m.mode == session.FreeText && msg.String() == "q" && m.text.Focused() {
			break // plain letter inside the text field
		}
		m.quitting = true
		m.cancel()
		return m, tea.Quit
	case "esc":
		if view.State == session.StateAwaitingResponse {
			return m, m.summaryCmd()
		}
		m.quitting = true
		m.cancel()
		return m, tea.Quit
	}

	if view.State != session.StateAwaitingResponse || view.Trial == nil {
		return m, nil
	}

	switch m.mode {
	case session.SingleSelect:
		return m.onSingleKey(msg, view.Trial)
	case session.MultiSelect:
		return m.onMultiKey(msg, view.Trial)
	case session.PairedMatch:
		return m.onBoardKey(msg)
	case session.FreeText:
		return m.onTextKey(msg)
	}
	return m, nil
}

// onSingleKey: first pick submits immediately.
func (m *PlayModel) onSingleKey(msg tea.KeyMsg, t *session.Trial) (tea.Model, tea.Cmd) {
	n := len(t.Options)
	if n == 0 {
		return m, nil
	}
	switch msg.String() {
	case "up", "k":
		m.cursor = (m.cursor - 1 + n) % n
	case "down", "j":
		m.cursor = (m.cursor + 1) % n
	case "enter", " ":
		return m, m.submitCmd(t.Options[m.cursor].ID)
	default:
		if i := digitIndex(msg.String(), n); i >= 0 {
			return m, m.submitCmd(t.Options[i].ID)
		}
	}
	return m, nil
}

// onMultiKey: space toggles, enter confirms; confirm needs a selection.
func (m *PlayModel) onMultiKey(msg tea.KeyMsg, t *session.Trial) (tea.Model, tea.Cmd) {
	n := len(t.Options)
	if n == 0 {
		return m, nil
	}
	switch msg.String() {
	case "up", "k":
		m.cursor = (m.cursor - 1 + n) % n
	case "down", "j":
		m.cursor = (m.cursor + 1) % n
	case " ":
		m.picker.Toggle(t.Options[m.cursor].ID)
		m.inputErr = ""
	case "enter":
		value, err := m.picker.Value()
		if err != nil {
			m.inputErr = err.Error()
			return m, nil
		}
		return m, m.submitCmd(value)
	default:
		if i := digitIndex(msg.String(), n); i >= 0 {
			m.picker.Toggle(t.Options[i].ID)
			m.inputErr = ""
		}
	}
	return m, nil
}

func (m *PlayModel) onBoardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.board == nil {
		return m, nil
	}
	cards := m.board.Cards()
	n := len(cards)
	cols := m.board.Cols()
	switch msg.String() {
	case "left", "h":
		m.cursor = (m.cursor - 1 + n) % n
	case "right", "l":
		m.cursor = (m.cursor + 1) % n
	case "up", "k":
		m.cursor = (m.cursor - cols + n) % n
	case "down", "j":
		m.cursor = (m.cursor + cols + n) % n
	case "enter", " ":
		if m.board.Flip(cards[m.cursor].ID) {
			// Second card of the pair is up; hold it briefly, then settle.
			return m, tea.Tick(revealDelay, func(time.Time) tea.Msg { return resolveMsg{} })
		}
	}
	return m, nil
}

func (m *PlayModel) onTextKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "enter" {
		value, err := session.TextValue(m.text.Value())
		if err != nil {
			m.inputErr = err.Error()
			return m, nil
		}
		return m, m.submitCmd(value)
	}
	var cmd tea.Cmd
	m.text, cmd = m.text.Update(msg)
	return m, cmd
}

func digitIndex(key string, n int) int {
	if len(key) != 1 || key[0] < '1' || key[0] > '9' {
		return -1
	}
	i := int(key[0] - '1')
	if i >= n {
		return -1
	}
	return i
}

func (m *PlayModel) View() string {
	if m.quitting {
		return ""
	}
	view := m.ctrl.View()
	var b strings.Builder

	b.WriteString(m.theme.Title.Render("therapyctl · "+m.ctrl.Game()) + "\n\n")

	switch view.State {
	case session.StateStarting:
		b.WriteString(m.spin.View() + " starting session…\n")
	case session.StateSubmitting:
		b.WriteString(m.spin.View() + " submitting…\n")
	case session.StateCompleted:
		b.WriteString(renderSummary(m.theme, view.Summary))
		b.WriteString("\n" + m.theme.Footer.Render("q quit"))
	case session.StateIdle:
		if view.Status != "" {
			b.WriteString(m.theme.Status.Render(view.Status) + "\n")
		}
		b.WriteString(m.theme.Footer.Render("q quit"))
	case session.StateAwaitingResponse:
		m.renderTrial(&b, view)
	}

	if view.State != session.StateIdle && view.Status != "" && view.State != session.StateCompleted {
		b.WriteString("\n" + m.theme.Status.Render(view.Status))
	}
	return b.String()
}

func (m *PlayModel) renderTrial(b *strings.Builder, view session.View) {
	t := view.Trial
	b.WriteString(m.theme.Prompt.Render(t.Prompt) + "\n")
	if t.AIHint != "" {
		b.WriteString(m.theme.Hint.Render(t.AIHint) + "\n")
	}
	if view.Feedback != "" {
		b.WriteString(m.theme.Feedback.Render(view.Feedback) + "\n")
	}
	b.WriteString("\n")

	switch m.mode {
	case session.PairedMatch:
		m.renderBoard(b)
	case session.FreeText:
		b.WriteString(m.text.View() + "\n")
	default:
		m.renderOptions(b, t)
	}

	if m.inputErr != "" {
		b.WriteString(m.theme.Status.Render(m.inputErr) + "\n")
	}

	remaining := m.clock.Timeout
	timerStyle := m.theme.TimerOK
	if remaining <= 3*time.Second {
		timerStyle = m.theme.TimerLow
	}
	b.WriteString("\n" + timerStyle.Render(fmt.Sprintf("⏱ %ds", int(remaining/time.Second))))
	b.WriteString("  " + m.theme.Footer.Render(m.footerHelp()))
}

func (m *PlayModel) renderOptions(b *strings.Builder, t *session.Trial) {
	for i, opt := range t.Options {
		style := m.theme.Option
		marker := "  "
		if i == m.cursor {
			style = m.theme.OptionFocus
			marker = "> "
		}
		label := fmt.Sprintf("%s%d. %s", marker, i+1, opt.Label)
		if m.mode == session.MultiSelect && m.picker.Selected(opt.ID) {
			style = m.theme.OptionPick
			label += " ✓"
		}
		if t.Highlight != "" && t.Highlight == opt.ID {
			label += " ←"
		}
		b.WriteString(style.Render(label) + "\n")
	}
}

func (m *PlayModel) renderBoard(b *strings.Builder) {
	if m.board == nil {
		return
	}
	cards := m.board.Cards()
	cols := m.board.Cols()
	var rows []string
	for start := 0; start < len(cards); start += cols {
		end := start + cols
		if end > len(cards) {
			end = len(cards)
		}
		var cells []string
		for i := start; i < end; i++ {
			c := cards[i]
			style := m.theme.CardDown
			face := "· "
			switch {
			case m.board.Matched(c.ID):
				style = m.theme.CardMatched
				face = c.Emoji
			case m.board.FaceUp(c.ID):
				style = m.theme.CardUp
				face = c.Emoji
			}
			if i == m.cursor {
				style = style.Inherit(m.theme.CardFocus)
			}
			cells = append(cells, style.Render(face))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	b.WriteString(strings.Join(rows, "\n") + "\n")
	b.WriteString(m.theme.Footer.Render(fmt.Sprintf("pairs %d/%d · moves %d",
		m.board.PairsFound(), m.board.TotalPairs(), m.board.Moves())) + "\n")
}

func (m *PlayModel) footerHelp() string {
	switch m.mode {
	case session.MultiSelect:
		return "space toggle · enter confirm · esc results · q quit"
	case session.PairedMatch:
		return "arrows move · enter flip · esc results · q quit"
	case session.FreeText:
		return "enter submit · esc results"
	default:
		return "arrows move · enter pick · esc results · q quit"
	}
}
