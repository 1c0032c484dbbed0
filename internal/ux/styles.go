package ux

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Styles is the palette used for text output.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warn    lipgloss.Style
	Error   lipgloss.Style
}

// NewStyles builds styles for w. The color profile follows w, so output to
// a pipe or buffer carries no escape codes; noColor forces plain output.
func NewStyles(w io.Writer, noColor bool) Styles {
	r := lipgloss.NewRenderer(w)
	if noColor {
		plain := r.NewStyle()
		return Styles{
			Title:   plain.Bold(true),
			Label:   plain,
			Header:  plain.Bold(true).Padding(0, 1),
			Cell:    plain.Padding(0, 1),
			Muted:   plain,
			Success: plain,
			Warn:    plain,
			Error:   plain.Bold(true),
		}
	}

	return Styles{
		Title:   r.NewStyle().Foreground(lipgloss.Color("86")).Bold(true),
		Label:   r.NewStyle().Foreground(lipgloss.Color("8")),
		Header:  r.NewStyle().Foreground(lipgloss.Color("12")).Bold(true).Padding(0, 1),
		Cell:    r.NewStyle().Padding(0, 1),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		Success: r.NewStyle().Foreground(lipgloss.Color("2")),
		Warn:    r.NewStyle().Foreground(lipgloss.Color("3")),
		Error:   r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
}
