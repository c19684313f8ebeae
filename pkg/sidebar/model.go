// Package sidebar renders a reconcile.Controller's rows as a bubbletea list
// and turns key presses and mouse clicks into controller actions.
//
// The engine is single-threaded, so the sidebar runs it on the program's own
// goroutine: timers and tmux readers post closures through PostFunc and
// Update executes them. The row model listener therefore always runs inside
// Update and may touch the list directly.
package sidebar

import (
	"log/slog"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/b/tabsync/pkg/colors"
	"github.com/b/tabsync/pkg/config"
	"github.com/b/tabsync/pkg/eventloop"
	"github.com/b/tabsync/pkg/logging"
	"github.com/b/tabsync/pkg/reconcile"
	"github.com/b/tabsync/pkg/rowmodel"
)

var sidebarLog = logging.ForComponent(logging.CompSidebar)

const defaultHeight = 24

type execMsg struct{ fn func() }

// Exec wraps fn in a message that Update runs.
func Exec(fn func()) tea.Msg { return execMsg{fn: fn} }

// PostFunc adapts a program's Send into an eventloop.PostFunc.
func PostFunc(send func(tea.Msg)) eventloop.PostFunc {
	return func(fn func()) { send(execMsg{fn: fn}) }
}

// ConfigMsg carries a reloaded configuration into the program.
type ConfigMsg struct {
	Config *config.Config
}

// Model is the sidebar's tea.Model.
type Model struct {
	ctrl     *reconcile.Controller
	cfg      *config.Config
	list     list.Model
	delegate *delegate
	styles   *styles
	keys     keyMap

	width, height int
	dark          bool

	// Row awaiting close confirmation.
	confirm *rowmodel.Row

	token rowmodel.Token
	quit  bool
}

// New builds a sidebar over ctrl's rows. The controller may be bound before
// or after.
func New(ctrl *reconcile.Controller, cfg *config.Config) *Model {
	if cfg == nil {
		cfg = config.Default()
	}
	dark := colors.NewBackgroundDetector(colors.ThemeMode(cfg.Sidebar.Theme)).IsDark()
	st := newStyles(cfg, dark)
	d := &delegate{rows: ctrl.Rows(), styles: &st, width: cfg.Sidebar.Width}

	l := list.New(nil, d, cfg.Sidebar.Width, defaultHeight)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	m := &Model{
		ctrl:     ctrl,
		cfg:      cfg,
		list:     l,
		delegate: d,
		styles:   &st,
		keys:     defaultKeyMap(),
		height:   defaultHeight,
		dark:     dark,
	}
	m.resize()
	m.token = ctrl.Rows().Subscribe(m.onChange)
	ctrl.OnContainerClosed(func() { m.quit = true })
	m.reset()
	return m
}

// Close detaches the sidebar from the row model.
func (m *Model) Close() {
	m.ctrl.Rows().Unsubscribe(m.token)
}

func (m *Model) Init() tea.Cmd { return nil }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case execMsg:
		msg.fn()
	case ConfigMsg:
		m.applyConfig(msg.Config)
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
	case tea.KeyMsg:
		cmd = m.handleKey(msg)
	case tea.MouseMsg:
		cmd = m.handleMouse(msg)
	}
	if m.quit {
		return m, tea.Quit
	}
	return m, cmd
}

// onChange mirrors one row model change into the list.
func (m *Model) onChange(ch rowmodel.Change) {
	switch ch.Kind {
	case rowmodel.Reset:
		m.reset()
	case rowmodel.Inserted:
		m.list.InsertItem(ch.Position, item{row: ch.Row})
	case rowmodel.Removed:
		m.list.RemoveItem(ch.Position)
		if m.confirm != nil && m.confirm.ID == ch.Row.ID {
			m.confirm = nil
		}
		m.clampCursor()
	case rowmodel.Moved:
		m.list.RemoveItem(ch.From)
		m.list.InsertItem(ch.Position, item{row: ch.Row})
	case rowmodel.Retitled:
		m.list.SetItem(ch.Position, item{row: ch.Row})
	case rowmodel.Selected:
		if ch.Position >= 0 {
			m.list.Select(ch.Position)
		}
	}
}

func (m *Model) reset() {
	rows := m.ctrl.Rows().Rows()
	items := make([]list.Item, len(rows))
	for i, r := range rows {
		items[i] = item{row: r}
	}
	m.list.SetItems(items)
	if sel, ok := m.ctrl.Rows().Selected(); ok {
		m.list.Select(sel.Position)
	}
	if m.confirm != nil {
		if _, ok := m.ctrl.Rows().Row(m.confirm.ID); !ok {
			m.confirm = nil
		}
	}
	m.clampCursor()
}

func (m *Model) clampCursor() {
	n := len(m.list.Items())
	if n > 0 && m.list.Index() >= n {
		m.list.Select(n - 1)
	}
}

func (m *Model) resize() {
	w := m.width
	if w <= 0 {
		w = m.cfg.Sidebar.Width
	}
	m.delegate.width = w
	m.list.SetSize(w, m.listHeight())
}

func (m *Model) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.Sync != m.cfg.Sync {
		sidebarLog.Info("sync_settings_changed", slog.String("note", "takes effect on restart"))
	}
	if cfg.Sidebar.Theme != m.cfg.Sidebar.Theme {
		m.dark = colors.NewBackgroundDetector(colors.ThemeMode(cfg.Sidebar.Theme)).IsDark()
	}
	m.cfg = cfg
	*m.styles = newStyles(cfg, m.dark)
	m.resize()
}

// cursorRow returns the live row under the list cursor.
func (m *Model) cursorRow() (rowmodel.Row, bool) {
	it, ok := m.list.SelectedItem().(item)
	if !ok {
		return rowmodel.Row{}, false
	}
	return m.ctrl.Rows().Row(it.row.ID)
}

// rowAt maps a screen line to a list index on the current page.
func (m *Model) rowAt(y int) (int, bool) {
	if y < 0 || y >= m.listHeight() {
		return 0, false
	}
	idx := m.list.Paginator.Page*m.list.Paginator.PerPage + y
	if idx >= len(m.list.Items()) {
		return 0, false
	}
	return idx, true
}

func (m *Model) requestClose(row rowmodel.Row) {
	if !m.cfg.Sidebar.ConfirmClose {
		m.ctrl.CloseRow(row.ID)
		return
	}
	m.confirm = &row
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.confirm != nil {
		// Other keys leave the prompt open.
		switch {
		case key.Matches(msg, m.keys.Confirm):
			row := *m.confirm
			m.confirm = nil
			m.ctrl.CloseRow(row.ID)
		case key.Matches(msg, m.keys.Cancel):
			m.confirm = nil
		case key.Matches(msg, m.keys.Quit):
			m.confirm = nil
			m.quit = true
		}
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quit = true
	case key.Matches(msg, m.keys.Up):
		m.list.CursorUp()
	case key.Matches(msg, m.keys.Down):
		m.list.CursorDown()
	case key.Matches(msg, m.keys.Select):
		if row, ok := m.cursorRow(); ok {
			m.ctrl.SelectRow(row.ID)
		}
	case key.Matches(msg, m.keys.Close):
		if row, ok := m.cursorRow(); ok {
			m.requestClose(row)
		}
	case key.Matches(msg, m.keys.NewTab):
		m.ctrl.RequestNewTab()
	}
	return nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if m.confirm != nil || msg.Action != tea.MouseActionPress {
		return nil
	}
	idx, onRow := m.rowAt(msg.Y)
	newTab, closeTab := m.buttonLines()

	switch msg.Button {
	case tea.MouseButtonLeft:
		switch {
		case onRow:
			m.list.Select(idx)
			if row, ok := m.cursorRow(); ok {
				m.ctrl.SelectRow(row.ID)
			}
		case msg.Y == newTab:
			m.ctrl.RequestNewTab()
		case msg.Y == closeTab:
			if row, ok := m.cursorRow(); ok {
				m.requestClose(row)
			}
		}
	case tea.MouseButtonMiddle:
		if onRow {
			m.list.Select(idx)
			if row, ok := m.cursorRow(); ok {
				m.requestClose(row)
			}
		}
	case tea.MouseButtonWheelUp:
		m.list.CursorUp()
	case tea.MouseButtonWheelDown:
		m.list.CursorDown()
	}
	return nil
}
