// ABOUTME: Run summary and status rendering for operators
// ABOUTME: Uses lipgloss styles on terminals and plain text when output is piped
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/harperreed/leadsync/errs"
	"github.com/harperreed/leadsync/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Underline(true)

	labelStyle = lipgloss.NewStyle().
			Width(18)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func paint(style lipgloss.Style, s string, styled bool) string {
	if !styled {
		return s
	}
	return style.Render(s)
}

// ReportPrinter prints the summary when a run reaches REPORT.
type ReportPrinter struct {
	Out    io.Writer
	Styled bool
}

func (p *ReportPrinter) Report(run *models.SyncRun) {
	_, _ = fmt.Fprintln(p.Out, RenderSummary(run, p.Styled))
}

// RenderSummary formats the counters of run. It never includes identifiers.
func RenderSummary(run *models.SyncRun, styled bool) string {
	var s strings.Builder
	r := run.Result

	s.WriteString("\n")
	s.WriteString(paint(titleStyle, fmt.Sprintf("Sync summary: %s", run.Flow), styled))
	s.WriteString("\n")
	s.WriteString(paint(mutedStyle, "run "+run.ID, styled))
	s.WriteString("\n\n")

	row := func(label string, value int) {
		s.WriteString(paint(labelStyle, label, styled))
		if !styled {
			s.WriteString(strings.Repeat(" ", max(1, 18-len(label))))
		}
		s.WriteString(fmt.Sprintf("%d\n", value))
	}

	row("Candidate deals", r.TotalCandidateDeals)
	row("Skipped (stage)", r.Skipped)
	row("Resolved", r.Resolved)
	row("Unresolved", r.Unresolved)
	row("Normalized", r.Normalized)
	row("Excluded", r.Excluded)
	row("Deduplicated", r.Deduplicated)
	row("Duplicates", r.Duplicates)
	row("Prepared", r.Prepared)
	row("Attempted", r.Attempted)
	row("Uploaded", r.Uploaded)
	row("Failed", r.Failed)

	if run.Target != nil {
		s.WriteString("\n")
		s.WriteString(paint(mutedStyle, fmt.Sprintf("target %s %q → %s", run.Target.Kind, run.Target.Name, run.Target.ResourceName), styled))
		s.WriteString("\n")
	}

	if len(run.Failures) > 0 {
		s.WriteString("\n")
		s.WriteString(paint(headerStyle, "Platform rejections", styled))
		s.WriteString("\n")
		shown := run.Failures
		if len(shown) > 5 {
			shown = shown[:5]
		}
		for _, msg := range shown {
			s.WriteString(paint(warnStyle, "  ✗ "+msg, styled))
			s.WriteString("\n")
		}
		if extra := len(run.Failures) - len(shown); extra > 0 {
			s.WriteString(paint(mutedStyle, fmt.Sprintf("  … %d more (leadsync runs --id %s)", extra, run.ID), styled))
			s.WriteString("\n")
		}
	}

	return s.String()
}

// RenderFailure formats a fatal error with its remediation step.
func RenderFailure(err error, styled bool) string {
	var s strings.Builder
	s.WriteString(paint(errorStyle, "✗ "+err.Error(), styled))
	s.WriteString("\n")
	if remedy := errs.RemedyOf(err); remedy != "" {
		s.WriteString("  → " + remedy + "\n")
	}
	return s.String()
}

// RenderStatus formats per-flow sync state, listing flows that never ran.
func RenderStatus(states []models.SyncState, styled bool) string {
	var s strings.Builder
	s.WriteString(paint(titleStyle, "Sync status", styled))
	s.WriteString("\n\n")

	byFlow := make(map[string]models.SyncState, len(states))
	for _, st := range states {
		byFlow[st.Service] = st
	}

	for _, flow := range models.Flows {
		name := string(flow)
		s.WriteString(paint(labelStyle, name, styled))
		if !styled {
			s.WriteString(strings.Repeat(" ", max(1, 18-len(name))))
		}

		state, ok := byFlow[name]
		switch {
		case !ok:
			s.WriteString(paint(mutedStyle, "Not synced yet", styled))
		case state.Status == models.SyncStatusSyncing:
			s.WriteString(paint(warnStyle, "⟳ Syncing", styled))
		case state.Status == models.SyncStatusError:
			s.WriteString(paint(errorStyle, "✗ Error", styled))
			if state.ErrorMessage != "" {
				s.WriteString(paint(errorStyle, ": "+state.ErrorMessage, styled))
			}
		default:
			s.WriteString(paint(okStyle, "✓ Idle", styled))
			if state.LastSyncTime != nil {
				s.WriteString(paint(mutedStyle, " • Last synced "+state.LastSyncTime.Local().Format(time.DateTime), styled))
			}
		}
		s.WriteString("\n")
	}

	return s.String()
}
