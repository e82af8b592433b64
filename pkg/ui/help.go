package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Context identifies which help content applies.
type Context int

const (
	ContextTree Context = iota
	ContextEmpty
	ContextDir
)

// ContextHelpContent contains compact help content for each context.
// Content should fit on one screen without scrolling.
var ContextHelpContent = map[Context]string{
	ContextTree:  contextHelpTree,
	ContextEmpty: contextHelpEmpty,
	ContextDir:   contextHelpTree + contextHelpDir,
}

// GetContextHelp returns the help content for a given context.
// Falls back to the tree help if the context has no specific content.
func GetContextHelp(ctx Context) string {
	if content, ok := ContextHelpContent[ctx]; ok {
		return content
	}
	return contextHelpTree
}

// RenderContextHelp renders the help modal. The markdown is rendered with
// glamour; if that fails the raw text is shown.
func RenderContextHelp(ctx Context, theme Theme, width, height int) string {
	content := GetContextHelp(ctx)
	r := theme.Renderer

	modalWidth := 64
	if modalWidth > width-4 {
		modalWidth = width - 4
	}
	if modalWidth < 20 {
		modalWidth = 20
	}

	body := content
	if md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(modalWidth-6),
	); err == nil {
		if out, err := md.Render(content); err == nil {
			body = strings.Trim(out, "\n")
		}
	}

	titleStyle := r.NewStyle().
		Bold(true).
		Foreground(theme.Primary)

	footerStyle := r.NewStyle().
		Foreground(theme.Muted).
		Italic(true)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Quick Reference"))
	b.WriteString("\n")
	b.WriteString(r.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", modalWidth-4)))
	b.WriteString("\n")
	b.WriteString(body)
	b.WriteString("\n\n")
	b.WriteString(footerStyle.Render("Press ? or Esc to close"))

	modalStyle := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Secondary).
		Padding(1, 2).
		Width(modalWidth)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, modalStyle.Render(b.String()))
}

const contextHelpTree = `## Tree

**Navigation**

    j/k       Move up/down
    Ctrl+d/u  Half page down/up
    g/G       Jump to top/bottom
    p         Jump to parent

**Expand and collapse**

    Enter     Toggle the selected node
    l/→       Expand, or move to first child
    h/←       Collapse, or jump to parent
    E         Expand all (up to the row limit)
    C         Collapse all

**Other**

    r         Reload the source
    y         Copy the selected path
    q         Quit
`

const contextHelpDir = `
**Live updates**

Files created or removed on disk appear and
disappear without losing your place. Entries
matched by .gitignore or .ftignore are hidden.
`

const contextHelpEmpty = `## Nothing to show

The source has no entries. Press r to reload
after adding some, or q to quit.
`
