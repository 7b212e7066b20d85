package tui

import (
	"fmt"
	"strings"

	"therapyctl/internal/api"
)

// renderSummary shows the server's terminal statistics verbatim. Accuracy
// and averages come from the server; the client never recomputes them.
func renderSummary(theme Theme, s *api.Summary) string {
	if s == nil {
		return theme.Status.Render("session over, but no summary was available")
	}
	var b strings.Builder
	b.WriteString(theme.Title.Render("Session complete") + "\n\n")
	b.WriteString(fmt.Sprintf("  Trials     %d of %d completed\n", s.Completed, s.TotalTrials))
	b.WriteString(fmt.Sprintf("  Correct    %d\n", s.Correct))
	b.WriteString(fmt.Sprintf("  Accuracy   %.1f%%\n", s.Accuracy*100))
	if s.AvgResponseMS != nil {
		b.WriteString(fmt.Sprintf("  Avg time   %dms\n", *s.AvgResponseMS))
	}
	b.WriteString(fmt.Sprintf("  Level      %d\n", s.CurrentLevel))
	if s.Suggestion != "" {
		b.WriteString("\n" + theme.Hint.Render(s.Suggestion) + "\n")
	}
	return b.String()
}
