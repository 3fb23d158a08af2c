// Package output renders user-facing terminal lines with consistent styling.
//
// [Printer] wraps an io.Writer with a lipgloss renderer, so styling degrades
// to plain text automatically when the destination is not a terminal. All
// commands print through a Printer; nothing in the engine writes to the
// terminal directly.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Printer writes styled lines to a single destination.
type Printer struct {
	w        io.Writer
	success  lipgloss.Style
	failure  lipgloss.Style
	warning  lipgloss.Style
	muted    lipgloss.Style
	emphasis lipgloss.Style
}

// NewPrinter creates a Printer bound to stdout.
func NewPrinter() *Printer {
	return NewPrinterWithWriter(os.Stdout)
}

// NewPrinterWithWriter creates a Printer bound to w. Tests pass a buffer
// here; styles render as plain text for non-terminal writers.
func NewPrinterWithWriter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:        w,
		success:  r.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true),
		failure:  r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
		warning:  r.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true),
		muted:    r.NewStyle().Foreground(lipgloss.Color("#888888")),
		emphasis: r.NewStyle().Bold(true),
	}
}

// Println writes an unstyled line.
func (p *Printer) Println(args ...any) {
	fmt.Fprintln(p.w, args...)
}

// Printf writes unstyled formatted text.
func (p *Printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

// Block writes a pre-rendered multi-line block followed by a newline.
func (p *Printer) Block(block string) {
	fmt.Fprintln(p.w, block)
}

// Success writes a green check line.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.success.Render("✓")+" "+fmt.Sprintf(format, args...))
}

// Failure writes a red cross line.
func (p *Printer) Failure(format string, args ...any) {
	fmt.Fprintln(p.w, p.failure.Render("✗")+" "+fmt.Sprintf(format, args...))
}

// Warning writes a yellow exclamation line.
func (p *Printer) Warning(format string, args ...any) {
	fmt.Fprintln(p.w, p.warning.Render("!")+" "+fmt.Sprintf(format, args...))
}

// Muted writes a dimmed line for secondary detail.
func (p *Printer) Muted(format string, args ...any) {
	fmt.Fprintln(p.w, p.muted.Render(fmt.Sprintf(format, args...)))
}

// Heading writes a bold line.
func (p *Printer) Heading(format string, args ...any) {
	fmt.Fprintln(p.w, p.emphasis.Render(fmt.Sprintf(format, args...)))
}
