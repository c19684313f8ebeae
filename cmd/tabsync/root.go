package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/b/tabsync/pkg/config"
	"github.com/b/tabsync/pkg/eventloop"
	"github.com/b/tabsync/pkg/logging"
	"github.com/b/tabsync/pkg/paths"
	"github.com/b/tabsync/pkg/reconcile"
	"github.com/b/tabsync/pkg/tabsource"
	"github.com/b/tabsync/pkg/tmux"
)

// App carries the resolved persistent flags and config to subcommands.
type App struct {
	Session    string
	ConfigPath string
	Debug      bool

	cfg *config.Config
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func newRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "tabsync",
		Short:        "Mirror a tmux session's windows in a sidebar",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Run the sidebar in the current pane
  tabsync sidebar

  # Run the headless engine and serve rows over a socket
  tabsync daemon --session work

  # Print the rows a running daemon publishes
  tabsync rows --session work
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return app.load(cmd.Context(), cmd.Name())
	}
	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		logging.Shutdown()
	}

	cmd.PersistentFlags().StringVar(&app.Session, "session", envOr("TABSYNC_SESSION", ""), "tmux session (default: the session this client runs in)")
	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("TABSYNC_CONFIG", config.DefaultConfigPath()), "Path to config.yaml")
	cmd.PersistentFlags().BoolVar(&app.Debug, "debug", false, "Debug logging")

	cmd.AddCommand(newSidebarCmd(app))
	cmd.AddCommand(newDaemonCmd(app))
	cmd.AddCommand(newRowsCmd(app))
	cmd.AddCommand(newActionCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// load reads the config, resolves the session and initializes logging.
func (a *App) load(ctx context.Context, command string) error {
	cfg, err := config.LoadConfig(a.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", a.ConfigPath, err)
	}
	a.cfg = cfg

	if a.Session == "" {
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		s, err := tmux.CurrentSession(ctx)
		if err != nil {
			return fmt.Errorf("no --session given and not inside tmux: %w", err)
		}
		a.Session = s
	}

	lc := logging.Config{
		Dir:        cfg.Log.Dir,
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Debug:      a.Debug,
	}
	if a.Debug {
		lc.Level = "debug"
	}
	switch command {
	case "daemon", "sidebar":
		// The sidebar owns the terminal, so it never logs to stderr.
		if lc.Dir == "" && (command == "daemon" || a.Debug) {
			dir, err := paths.EnsureStateDir()
			if err != nil {
				return err
			}
			lc.Dir = dir
		}
	default:
		// Client commands print results on stdout.
		lc.Debug = false
	}
	logging.Init(lc)
	return nil
}

// engine is the reconciliation stack bound to one tmux session.
type engine struct {
	client *tmux.Client
	source *tmux.Source
	ctrl   *reconcile.Controller
}

func (a *App) newEngine(sched eventloop.Scheduler, post eventloop.PostFunc) *engine {
	cfg := a.cfg
	client := tmux.NewClient(a.Session)
	source := tmux.NewSource(client, post,
		tmux.WithAttention(tmux.Attention{
			Activity: cfg.Indicators.Activity,
			Bell:     cfg.Indicators.Bell,
			Silence:  cfg.Indicators.Silence,
		}),
		tmux.WithRefreshInterval(cfg.Sync.RefreshInterval),
	)
	ctrl := reconcile.New(sched,
		reconcile.WithMode(cfg.SyncMode()),
		reconcile.WithPollInterval(cfg.Sync.PollInterval),
		reconcile.WithRepollDelay(cfg.Sync.RepollDelay),
		reconcile.WithTabCreator(client),
	)
	return &engine{client: client, source: source, ctrl: ctrl}
}

// start attaches push delivery when possible. Pull mode never needs it.
func (e *engine) start(ctx context.Context, cfg *config.Config) {
	if cfg.SyncMode() == tabsource.ModePull {
		return
	}
	if err := e.source.Start(ctx); err != nil {
		logging.ForComponent(logging.CompTmux).Warn("control_pipe_unavailable", slog.String("error", err.Error()))
	}
}

func (e *engine) stop() {
	e.ctrl.Close()
	e.source.Stop()
}
