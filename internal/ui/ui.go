// Package ui renders command output: one-line status messages and tables.
package ui

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// Severity of a status line.
type Severity int

const (
	Info Severity = iota
	Success
	Warning
	Error
)

func (s Severity) icon() string {
	switch s {
	case Success:
		return "✓"
	case Warning:
		return "!"
	case Error:
		return "✗"
	default:
		return "•"
	}
}

// Theme holds lipgloss styles for command output.
type Theme struct {
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
	Muted   lipgloss.Style
	Header  lipgloss.Style
}

// ColorEnabled reports whether styled output should be used. NO_COLOR,
// CLICOLOR=0 and TERM=dumb turn color off.
func ColorEnabled(noColorFlag bool) bool {
	if noColorFlag {
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("CLICOLOR") == "0" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return true
}

// NewTheme creates a Theme. When color is false all styles are empty.
func NewTheme(color bool) Theme {
	if !color {
		return Theme{}
	}

	return Theme{
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Header:  lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true),
	}
}

func (t Theme) style(s Severity) lipgloss.Style {
	switch s {
	case Success:
		return t.Success
	case Warning:
		return t.Warning
	case Error:
		return t.Error
	default:
		return t.Info
	}
}

// Printer writes styled output.
type Printer struct {
	w     io.Writer
	theme Theme
}

func NewPrinter(w io.Writer, theme Theme) *Printer {
	return &Printer{w: w, theme: theme}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.w
}

// Status prints one icon-prefixed line.
func (p *Printer) Status(s Severity, format string, args ...any) {
	icon := p.theme.style(s).Render(s.icon())
	fmt.Fprintf(p.w, "%s %s\n", icon, fmt.Sprintf(format, args...))
}

// Muted prints a dimmed line.
func (p *Printer) Muted(format string, args ...any) {
	fmt.Fprintln(p.w, p.theme.Muted.Render(fmt.Sprintf(format, args...)))
}

// Table prints rows under headers with rounded borders.
func (p *Printer) Table(headers []string, rows [][]string) {
	fmt.Fprintln(p.w, RenderTable(headers, rows, p.theme))
}

// RenderTable renders rows as a table. Header cells take the theme's header
// style. An empty row set renders only the header.
func RenderTable(headers []string, rows [][]string, theme Theme) string {
	var buf bytes.Buffer

	t := tablewriter.NewTable(&buf,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleRounded),
		})),
		tablewriter.WithPadding(tw.Padding{Left: " ", Right: " "}),
	)

	styled := make([]string, len(headers))
	for i, h := range headers {
		styled[i] = theme.Header.Render(h)
	}
	t.Header(styled)

	for _, row := range rows {
		_ = t.Append(row)
	}
	_ = t.Render()

	return strings.TrimRight(buf.String(), "\n")
}
