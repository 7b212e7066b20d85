package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"therapyctl/internal/api"
	"therapyctl/internal/session"
)

// speechRefreshMsg re-snapshots the flow after an async step finished.
type speechRefreshMsg struct{}

// SpeechModel runs one speech-therapy session: per trial the therapist
// records the child, the recording uploads and analyses in the background,
// and the therapist files the score that actually completes the trial.
type SpeechModel struct {
	flow  *session.SpeechFlow
	theme Theme

	childID    api.ID
	activityID api.ID
	trials     int

	ctx    context.Context
	cancel context.CancelFunc

	spin     spinner.Model
	width    int
	quitting bool
}

func NewSpeechModel(flow *session.SpeechFlow, childID, activityID api.ID, trials int, theme Theme) *SpeechModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	ctx, cancel := context.WithCancel(context.Background())
	return &SpeechModel{
		flow:       flow,
		theme:      theme,
		childID:    childID,
		activityID: activityID,
		trials:     trials,
		ctx:        ctx,
		cancel:     cancel,
		spin:       sp,
		width:      100,
	}
}

func (m *SpeechModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, func() tea.Msg {
		_ = m.flow.Start(m.ctx, m.childID, m.activityID, m.trials)
		return speechRefreshMsg{}
	})
}

func (m *SpeechModel) uploadCmd() tea.Cmd {
	return func() tea.Msg {
		_ = m.flow.StopAndUpload(m.ctx)
		return speechRefreshMsg{}
	}
}

func (m *SpeechModel) scoreCmd(score string) tea.Cmd {
	return func() tea.Msg {
		_ = m.flow.Score(m.ctx, score, "")
		return speechRefreshMsg{}
	}
}

func (m *SpeechModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case speechRefreshMsg:
		return m, nil
	case tea.KeyMsg:
		return m.onKey(msg)
	}
	return m, nil
}

func (m *SpeechModel) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		m.quitting = true
		m.cancel()
		return m, tea.Quit
	}

	switch m.flow.Phase() {
	case session.SpeechIdle:
		if msg.String() == "r" && m.flow.CanRecord() {
			_ = m.flow.Record()
		}
	case session.SpeechRecording:
		if msg.String() == "s" {
			return m, m.uploadCmd()
		}
	case session.SpeechAwaitingScore:
		switch msg.String() {
		case "1":
			return m, m.scoreCmd("success")
		case "2":
			return m, m.scoreCmd("partial")
		case "3":
			return m, m.scoreCmd("fail")
		}
	}
	return m, nil
}

func (m *SpeechModel) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.theme.Title.Render("therapyctl · speech therapy") + "\n\n")

	phase := m.flow.Phase()
	if phase == session.SpeechSessionDone {
		b.WriteString(renderSummary(m.theme, m.flow.Summary()))
		b.WriteString("\n" + m.theme.Footer.Render("q quit"))
		return b.String()
	}

	if trial := m.flow.Current(); trial != nil {
		num, total := m.flow.TrialNumber()
		b.WriteString(m.theme.Footer.Render(fmt.Sprintf("trial %d/%d", num, total)) + "\n")
		b.WriteString(m.theme.Prompt.Render(trial.Prompt) + "\n")
		b.WriteString(m.theme.Hint.Render("target: "+trial.TargetText) + "\n\n")
	}

	switch phase {
	case session.SpeechIdle:
		if m.flow.CanRecord() {
			b.WriteString(m.theme.Footer.Render("r record · q quit"))
		} else {
			b.WriteString(m.theme.Status.Render("no microphone capture available on this machine"))
		}
	case session.SpeechRecording:
		b.WriteString(m.theme.Status.Render("● recording") + "  " + m.theme.Footer.Render("s stop & upload"))
	case session.SpeechUploading:
		b.WriteString(m.spin.View() + " uploading recording…")
	case session.SpeechAnalyzing:
		b.WriteString(m.spin.View() + " waiting for analysis…")
	case session.SpeechAwaitingScore:
		if a := m.flow.Analysis(); a != nil {
			if a.Transcript != "" {
				b.WriteString("heard: " + m.theme.Prompt.Render(a.Transcript) + "\n")
			}
			if a.Feedback != "" {
				b.WriteString(m.theme.Hint.Render(a.Feedback) + "\n")
			}
			if a.Similarity > 0 {
				b.WriteString(m.theme.Footer.Render(fmt.Sprintf("similarity %.0f%%", a.Similarity*100)) + "\n")
			}
		}
		b.WriteString("\n" + m.theme.Footer.Render("score: 1 success · 2 partial · 3 fail"))
	case session.SpeechScored:
		b.WriteString(m.spin.View() + " saving score…")
	}

	if status := m.flow.Status(); status != "" {
		b.WriteString("\n" + m.theme.Status.Render(status))
	}
	return b.String()
}
