package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/b/tabsync/pkg/daemon"
	"github.com/b/tabsync/pkg/eventloop"
	"github.com/b/tabsync/pkg/logging"
	"github.com/b/tabsync/pkg/rowmodel"
)

const sessionCheckInterval = 5 * time.Second

func newDaemonCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the engine headless and publish rows on a unix socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runDaemon(ctx, app)
		},
	}
}

func runDaemon(ctx context.Context, app *App) error {
	log := logging.ForComponent(logging.CompDaemon)
	defer logging.RecoverAndLog(log, "daemon.main")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := eventloop.New(256)
	eng := app.newEngine(loop, loop.Post)
	srv := daemon.NewServer(app.Session)
	wireServer(srv, loop, eng)

	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Stop()

	eng.start(ctx, app.cfg)
	loop.Post(func() { eng.ctrl.Bind(eng.source) })

	// tmux gives no signal when a session goes away between refreshes.
	check := loop.Every(sessionCheckInterval, func() {
		if !eng.source.Available() {
			log.Info("session_gone", slog.String("session", app.Session))
			loop.Stop()
		}
	})
	defer check.Stop()

	log.Info("daemon_started",
		slog.String("session", app.Session),
		slog.Int("pid", os.Getpid()),
		slog.String("socket", srv.GetSocketPath()))

	err := loop.Run(ctx)
	eng.stop()
	log.Info("daemon_stopped", slog.String("session", app.Session))
	if errors.Is(err, context.Canceled) || errors.Is(err, eventloop.ErrStopped) {
		return nil
	}
	return err
}

// wireServer connects the socket server to the engine. Server callbacks run
// on connection goroutines, so everything touching the engine is posted.
func wireServer(srv *daemon.Server, loop *eventloop.Loop, eng *engine) {
	rows := func() *daemon.RowsPayload {
		return daemon.NewRowsPayload(eng.ctrl.Mode().String(), eng.ctrl.Rows().Rows())
	}

	srv.RowsNeeded = func() *daemon.RowsPayload {
		res := make(chan *daemon.RowsPayload, 1)
		loop.Post(func() { res <- rows() })
		select {
		case r := <-res:
			return r
		case <-loop.Done():
			return nil
		}
	}

	srv.OnAction = func(clientID string, a daemon.ActionPayload) {
		loop.Post(func() {
			switch a.Action {
			case daemon.ActionSelect:
				eng.ctrl.SelectRow(a.RowID)
			case daemon.ActionClose:
				eng.ctrl.CloseRow(a.RowID)
			case daemon.ActionNewTab:
				eng.ctrl.RequestNewTab()
			}
		})
	}

	// One step can change the model several times; publish once after it.
	var flush eventloop.Timer
	eng.ctrl.Rows().Subscribe(func(rowmodel.Change) {
		if flush != nil {
			return
		}
		flush = loop.After(0, func() {
			flush = nil
			srv.BroadcastRows(rows())
		})
	})

	eng.ctrl.OnContainerClosed(loop.Stop)
}
