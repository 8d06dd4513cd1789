package ui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Colors names the foreground colors of a [Palette].
type Colors struct {
	Title string
	OK    string
	Err   string
	Warn  string
	Help  string
}

var DefaultColors = Colors{Title: "#7D56F4", OK: "#04B575", Err: "#FF0000", Warn: "#FFA500", Help: "#626262"}

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

// NewPalette builds a palette for text written to w.
//
// Color support is detected on w itself, so pipes and buffers get plain text.
func NewPalette(w io.Writer, c Colors) *Palette {
	r := lipgloss.NewRenderer(w)
	return &Palette{
		title: NewBold(r, c.Title),
		ok:    NewBold(r, c.OK),
		err:   NewBold(r, c.Err),
		warn:  NewStyle(r, c.Warn),
		help:  NewEm(r, c.Help),
	}
}

func (p *Palette) Title(s string) string { return p.title.Render(s) }
func (p *Palette) OK(s string) string    { return p.ok.Render(s) }
func (p *Palette) Err(s string) string   { return p.err.Render(s) }
func (p *Palette) Warn(s string) string  { return p.warn.Render(s) }
func (p *Palette) Help(s string) string  { return p.help.Render(s) }

func NewStyle(r *lipgloss.Renderer, fg string) lipgloss.Style {
	return r.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(r *lipgloss.Renderer, fg string) lipgloss.Style {
	return NewStyle(r, fg).Bold(true)
}

func NewEm(r *lipgloss.Renderer, fg string) lipgloss.Style {
	return NewStyle(r, fg).Italic(true)
}
