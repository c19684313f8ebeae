package sidebar

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/b/tabsync/pkg/colors"
	"github.com/b/tabsync/pkg/config"
	"github.com/b/tabsync/pkg/rowmodel"
)

const (
	newTabLabel = "[+] New Tab"
	closeLabel  = "[x] Close Tab"
)

type styles struct {
	active    lipgloss.Style
	inactive  lipgloss.Style
	attention lipgloss.Style
	button    lipgloss.Style
	prompt    lipgloss.Style
	title     lipgloss.Style
	icon      string
}

func newStyles(cfg *config.Config, dark bool) styles {
	c := cfg.Sidebar.Colors
	pal := colors.DefaultPalette(dark)
	or := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	activeFg := colors.EnsureContrast(or(c.ActiveFg, colors.TextOn(c.ActiveBg)), c.ActiveBg, colors.MinContrast)
	return styles{
		active: lipgloss.NewStyle().
			Foreground(lipgloss.Color(activeFg)).
			Background(lipgloss.Color(c.ActiveBg)).
			Bold(true),
		inactive:  lipgloss.NewStyle().Foreground(lipgloss.Color(or(c.InactiveFg, pal.Inactive))),
		attention: lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Indicators.Attention.Color)),
		button:    lipgloss.NewStyle().Foreground(lipgloss.Color(or(c.ButtonFg, pal.Button))),
		prompt:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(or(c.PromptFg, pal.Prompt))).Padding(1, 1),
		title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(pal.Text)),
		icon:      cfg.Indicators.Attention.Icon,
	}
}

// item is a list entry. The row is a copy taken when the item was last
// written; selection is always read live from the row model.
type item struct {
	row rowmodel.Row
}

func (i item) FilterValue() string { return i.row.Title }

// delegate draws one row per line: cursor marker, attention icon, title.
type delegate struct {
	rows   *rowmodel.Model
	styles *styles
	width  int
}

func (d *delegate) Height() int                             { return 1 }
func (d *delegate) Spacing() int                            { return 0 }
func (d *delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d *delegate) Render(w io.Writer, m list.Model, index int, li list.Item) {
	it, ok := li.(item)
	if !ok {
		return
	}
	row := it.row
	if live, ok := d.rows.Row(row.ID); ok {
		row = live
	}
	fmt.Fprint(w, d.renderRow(row, index == m.Index()))
}

func (d *delegate) renderRow(row rowmodel.Row, cursor bool) string {
	marker := " "
	if cursor {
		marker = ">"
	}
	// No indicator on the selected row; the user is already looking at it.
	alert := " "
	if row.NeedsAttention && !row.Selected {
		alert = d.styles.attention.Render(d.styles.icon)
	}

	contentWidth := d.width - 2
	if contentWidth < 1 {
		contentWidth = 1
	}
	title := runewidth.Truncate(row.Title, contentWidth-1, "~")

	style := d.styles.inactive
	if row.Selected {
		style = d.styles.active
	}
	return marker + alert + style.Width(contentWidth-1).Render(title)
}

func (m *Model) footerLines() int {
	n := 0
	if m.cfg.Sidebar.NewTabButton || m.cfg.Sidebar.CloseButton {
		n++ // blank separator
	}
	if m.cfg.Sidebar.NewTabButton {
		n++
	}
	if m.cfg.Sidebar.CloseButton {
		n++
	}
	return n
}

func (m *Model) listHeight() int {
	h := m.height - m.footerLines()
	if h < 1 {
		h = 1
	}
	return h
}

// buttonLines returns the screen lines of the two buttons, -1 when hidden.
func (m *Model) buttonLines() (newTab, closeTab int) {
	newTab, closeTab = -1, -1
	line := m.listHeight() + 1
	if m.cfg.Sidebar.NewTabButton {
		newTab = line
		line++
	}
	if m.cfg.Sidebar.CloseButton {
		closeTab = line
	}
	return newTab, closeTab
}

func (m *Model) View() string {
	if m.confirm != nil {
		return m.styles.prompt.Render("Close tab?") + "\n\n" +
			m.styles.title.Render("  "+runewidth.Truncate(m.confirm.Title, m.delegate.width-2, "~")) + "\n\n" +
			"  y: confirm, n: cancel"
	}

	var b strings.Builder
	body := m.list.View()
	if len(m.list.Items()) == 0 {
		body = m.styles.inactive.Render(" no tabs")
	}
	h := m.listHeight()
	b.WriteString(lipgloss.NewStyle().Height(h).MaxHeight(h).Render(body))

	if m.footerLines() > 0 {
		b.WriteString("\n")
	}
	if m.cfg.Sidebar.NewTabButton {
		b.WriteString("\n" + m.styles.button.Render(newTabLabel))
	}
	if m.cfg.Sidebar.CloseButton {
		b.WriteString("\n" + m.styles.button.Render(closeLabel))
	}
	return b.String()
}
