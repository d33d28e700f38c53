package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Failure is one failed item in a run summary.
type Failure struct {
	// Label names the item, such as a host or "host (source)".
	Label string
	// Message is the error text; only its first line is shown.
	Message string
}

// SummaryRenderer formats end-of-run summaries.
type SummaryRenderer struct {
	errorStyle   lipgloss.Style
	successStyle lipgloss.Style
	warnStyle    lipgloss.Style
	labelStyle   lipgloss.Style
	mutedStyle   lipgloss.Style
}

// NewSummaryRenderer creates a renderer with default styles.
func NewSummaryRenderer() *SummaryRenderer {
	return &SummaryRenderer{
		errorStyle:   ErrorStyle(),
		successStyle: SuccessStyle(),
		warnStyle:    WarningStyle(),
		labelStyle:   InfoStyle(),
		mutedStyle:   MutedStyle(),
	}
}

// Success renders a single success line.
func (r *SummaryRenderer) Success(text string) string {
	return r.successStyle.Render(SymbolSuccess+" "+text) + "\n"
}

// Notice renders a warning that doesn't fail the run.
func (r *SummaryRenderer) Notice(text string) string {
	return r.warnStyle.Render(SymbolWarning+" "+text) + "\n"
}

// Failures renders header followed by a numbered list, in the given order.
func (r *SummaryRenderer) Failures(header string, failures []Failure) string {
	if len(failures) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(r.errorStyle.Render(SymbolFail + " " + header))
	sb.WriteString("\n")

	width := len(fmt.Sprint(len(failures)))
	for i, f := range failures {
		fmt.Fprintf(&sb, "  %*d. %s", width, i+1, r.labelStyle.Render(f.Label))
		if msg := firstLine(f.Message); msg != "" {
			sb.WriteString(": ")
			sb.WriteString(r.mutedStyle.Render(msg))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(strings.TrimPrefix(line, SymbolFail))
}
