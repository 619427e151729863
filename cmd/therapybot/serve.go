package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/liuscraft/orion-therapy/internal/logging"
	"github.com/liuscraft/orion-therapy/internal/nlu"
	"github.com/liuscraft/orion-therapy/internal/server"
	"github.com/liuscraft/orion-therapy/internal/store"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve therapy sessions over websocket",
		Long:  `Start the HTTP server. Each websocket connection on /ws runs its own therapy session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), a)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	return cmd
}

func runServe(parent context.Context, a *app) error {
	defer logging.Sync()
	cfg := a.cfg

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialogueCfg := cfg.DialogueConfig()
	interp, err := nlu.New(ctx, cfg.NLU, dialogueCfg.CalibrationPhrases)
	if err != nil {
		return err
	}
	logging.Infof("nlu backend: %s", interp.Name())

	var repo store.Repository
	if cfg.Store.Enabled {
		sqlite, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer sqlite.Close()
		repo = sqlite
		logging.Infof("session journal: %s", cfg.Store.Path)
	}

	srv := server.New(dialogueCfg, interp, repo, server.Options{
		ResetDelay:      cfg.Server.ResetDelay.Std(),
		NoSpeechTimeout: cfg.Server.NoSpeechTimeout.Std(),
	})

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Infof("server listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv.CloseSessions()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
