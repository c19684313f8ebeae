package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/b/tabsync/pkg/config"
	"github.com/b/tabsync/pkg/eventloop"
	"github.com/b/tabsync/pkg/logging"
	"github.com/b/tabsync/pkg/sidebar"
)

var errNoTerminal = errors.New("sidebar needs a terminal on stdin and stdout")

func newSidebarCmd(app *App) *cobra.Command {
	var noMouse bool
	cmd := &cobra.Command{
		Use:   "sidebar",
		Short: "Run the interactive sidebar in this pane",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
				return errNoTerminal
			}
			return runSidebar(cmd.Context(), app, !noMouse)
		},
	}
	cmd.Flags().BoolVar(&noMouse, "no-mouse", false, "Disable mouse support")
	return cmd
}

func runSidebar(ctx context.Context, app *App, mouse bool) (err error) {
	log := logging.ForComponent(logging.CompSidebar)
	defer logging.RecoverAndLog(log, "sidebar.main")

	// Partial 24-bit escape sequences garble narrow panes; ANSI256 is safe.
	lipgloss.SetColorProfile(termenv.ANSI256)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// prog is assigned before anything can post: posts only come from timer
	// and tmux watcher goroutines started by Bind and start below.
	var prog *tea.Program
	post := sidebar.PostFunc(func(msg tea.Msg) { prog.Send(msg) })

	eng := app.newEngine(eventloop.NewClock(post), post)
	model := sidebar.New(eng.ctrl, app.cfg)

	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if mouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	prog = tea.NewProgram(model, opts...)

	eng.start(ctx, app.cfg)
	eng.ctrl.Bind(eng.source)

	if err := config.Watch(ctx, app.ConfigPath, func(cfg *config.Config) {
		prog.Send(sidebar.ConfigMsg{Config: cfg})
	}); err != nil {
		log.Warn("config_watch_failed", slog.String("error", err.Error()))
	}

	log.Info("sidebar_started", slog.String("session", app.Session), slog.String("mode", eng.ctrl.Mode().String()))
	_, err = prog.Run()

	// The program goroutine is gone; the engine is ours again.
	model.Close()
	eng.stop()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("sidebar: %w", err)
	}
	return nil
}
