package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentworkforce/recordmirror/internal/config"
	"github.com/agentworkforce/recordmirror/internal/httpapi"
	"github.com/agentworkforce/recordmirror/internal/snapshot"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	var noWatch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the record view and its mutations over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if changed(cmd, "addr") {
				a.cfg.Addr = addr
			}
			if noWatch {
				a.cfg.WatchSnapshot = false
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "listen address (RECORDMIRROR_ADDR)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not watch the snapshot file for outside changes")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	loadCtx, cancel := a.context(ctx)
	if _, err := a.session.Load(loadCtx); err != nil {
		log.Printf("initial load failed, serving an empty store: %v", err)
	}
	cancel()

	server := httpapi.NewServer(a.session, httpapi.ServerConfig{
		RequestTimeout: a.cfg.Timeout,
		AccessLog:      true,
		Logger:         log.Default(),
	})
	defer server.Close()

	if fb, ok := a.backend.(*snapshot.FileBackend); ok && a.cfg.WatchSnapshot {
		go func() {
			if err := snapshot.Watch(ctx, fb, log.Default()); err != nil {
				log.Printf("snapshot watch stopped: %v", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	log.Printf("recordmirror listening on %s (remote %s)", a.cfg.Addr, a.client.BaseURL())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Printf("recordmirror stopping: %v", ctx.Err())
	server.Close()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	return httpServer.Shutdown(shutdownCtx)
}
