// Package ui provides the terminal user interface for ft.
package ui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/vanderheijden86/flatree/pkg/source"
)

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithClipboard replaces the clipboard writer.
func WithClipboard(write func(string) error) ModelOption {
	return func(m *Model) { m.copy = write }
}

// WithModelLogger sets the logger.
func WithModelLogger(l zerolog.Logger) ModelOption {
	return func(m *Model) { m.log = l }
}

// Model is the top-level bubbletea model: a header, the tree and a footer
// with key help or the last status message.
type Model struct {
	tree  TreeModel
	keys  keyMap
	help  help.Model
	theme Theme
	log   zerolog.Logger
	copy  func(string) error

	ready    bool
	width    int
	height   int
	showHelp bool

	status    string
	statusErr bool
}

// NewModel wraps tree, initializing it if needed.
func NewModel(tree TreeModel, theme Theme, opts ...ModelOption) Model {
	m := Model{
		tree:  tree,
		keys:  treeKeys,
		help:  help.New(),
		theme: theme,
		log:   zerolog.Nop(),
		copy:  clipboard.WriteAll,
	}
	for _, opt := range opts {
		opt(&m)
	}
	if !m.tree.IsBuilt() {
		if err := m.tree.Init(); err != nil {
			m.setError(err)
		}
	}
	return m
}

// Tree exposes the tree view (for testing and control).
func (m *Model) Tree() *TreeModel { return &m.tree }

// Status returns the current status message.
func (m Model) Status() string { return m.status }

func (m Model) Init() tea.Cmd {
	return nil
}

func (m *Model) setStatus(s string) {
	m.status, m.statusErr = s, false
}

func (m *Model) setError(err error) {
	if err == nil {
		return
	}
	m.status, m.statusErr = err.Error(), true
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		// One line each for the header and footer
		m.tree.SetSize(msg.Width, max(msg.Height-2, 1))

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ChangesMsg:
		if err := m.tree.ApplyEvents(msg.Events); err != nil {
			m.setError(err)
		}

	case DocumentReadyMsg:
		if err := m.tree.ReplaceTree(msg.Tree); err != nil {
			m.setError(err)
		} else {
			m.setStatus("reloaded")
		}

	case SourceChangedMsg:
		if err := m.tree.Reload(); err != nil {
			m.setError(err)
		} else {
			m.setStatus("reloaded")
		}

	case WorkerErrorMsg:
		m.setError(msg.Err)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		switch {
		case key.Matches(msg, m.keys.Help), msg.String() == "esc":
			m.showHelp = false
		case key.Matches(msg, m.keys.Quit):
			return m.quit()
		}
		return m, nil
	}

	m.status = ""
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.Up):
		m.tree.MoveUp()
	case key.Matches(msg, m.keys.Down):
		m.tree.MoveDown()
	case key.Matches(msg, m.keys.HalfPageUp):
		m.tree.PageUp()
	case key.Matches(msg, m.keys.HalfPageDown):
		m.tree.PageDown()
	case key.Matches(msg, m.keys.GotoTop):
		m.tree.JumpToTop()
	case key.Matches(msg, m.keys.GotoBottom):
		m.tree.JumpToBottom()
	case key.Matches(msg, m.keys.Parent):
		m.tree.JumpToParent()
	case key.Matches(msg, m.keys.Toggle):
		m.tree.ToggleExpand()
	case key.Matches(msg, m.keys.Expand):
		m.tree.ExpandOrMoveToChild()
	case key.Matches(msg, m.keys.Collapse):
		m.tree.CollapseOrJumpToParent()
	case key.Matches(msg, m.keys.ExpandAll):
		m.tree.ExpandAll()
	case key.Matches(msg, m.keys.CollapseAll):
		m.tree.CollapseAll()
	case key.Matches(msg, m.keys.Reload):
		if err := m.tree.Reload(); err != nil {
			m.setError(err)
			return m, nil
		}
		m.setStatus("reloaded")
	case key.Matches(msg, m.keys.Yank):
		m.yank()
	}
	if err := m.tree.Err(); err != nil && m.status == "" {
		m.setError(err)
	}
	return m, nil
}

func (m *Model) yank() {
	crumb := m.tree.Breadcrumb()
	if crumb == "" {
		return
	}
	if err := m.copy(crumb); err != nil {
		m.log.Warn().Err(err).Msg("clipboard")
		m.setError(fmt.Errorf("copy failed: %w", err))
		return
	}
	m.setStatus("copied " + crumb)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if err := m.tree.Close(); err != nil {
		m.log.Warn().Err(err).Msg("closing tree view")
	}
	return m, tea.Quit
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.showHelp {
		return RenderContextHelp(m.helpContext(), m.theme, m.width, m.height)
	}

	body := m.tree.View()
	// Pad so the footer stays on the last line
	lines := strings.Count(body, "\n")
	if pad := m.height - 2 - lines; pad > 0 {
		body += strings.Repeat("\n", pad)
	}

	return m.renderHeader() + "\n" + body + m.renderFooter()
}

func (m Model) helpContext() Context {
	if m.tree.NodeCount() == 0 {
		return ContextEmpty
	}
	if _, ok := m.tree.Source().(*source.DirSource); ok {
		return ContextDir
	}
	return ContextTree
}

// renderHeader shows the source name, the row count and the scroll
// position.
func (m Model) renderHeader() string {
	r := m.theme.Renderer
	name := m.theme.Status.Render(m.tree.Source().Name())

	count := m.tree.NodeCount()
	pos := "top"
	if f, err := m.tree.List().ScrollFactor(); err == nil && count > m.tree.List().Height() {
		pos = fmt.Sprintf("%3.0f%%", f*100)
	}
	info := r.NewStyle().Foreground(m.theme.Subtext).Padding(0, 1).
		Render(fmt.Sprintf("%d rows · %s", count, pos))

	remaining := m.width - lipgloss.Width(name) - lipgloss.Width(info)
	if remaining < 0 {
		remaining = 0
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, name, strings.Repeat(" ", remaining), info)
}

func (m Model) renderFooter() string {
	if m.status != "" {
		style := m.theme.Renderer.NewStyle().Foreground(m.theme.Subtext)
		if m.statusErr {
			style = m.theme.Error
		}
		return style.Render(truncateTitle(m.status, max(m.width, 10)))
	}
	return m.help.View(m.keys)
}
