package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/dashboard-auth/server"
	"github.com/jrsteele09/dashboard-auth/session"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

// WatchCommand keeps the session alive in the foreground, refreshing it on
// schedule and following changes made by other instances.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Keep the session refreshed and print every auth transition",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address",
			},
		},
		Action: watch,
	}
}

func watch(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}
	displayAppname(c.App.Writer, rt.cfg.GetAppName())

	w := c.App.Writer
	cancel := rt.session.Subscribe(func(st session.State) {
		if st.Authenticated {
			fmt.Fprintf(w, "%s signed in as %s\n", time.Now().Format(time.Kitchen), st.Username)
			return
		}
		fmt.Fprintf(w, "%s signed out\n", time.Now().Format(time.Kitchen))
	})
	defer cancel()

	if err := rt.session.Start(c.Context); err != nil {
		return err
	}
	printState(w, rt.session.State())

	addr := c.String("metrics-addr")
	if addr == "" {
		addr = rt.cfg.GetMetricsAddr()
	}
	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle(server.RouteMetrics, rt.metrics.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go listenAndServe(rt, srv)
		defer func() {
			if err := shutdown(srv); err != nil {
				rt.logger.Warn().Err(err).Msg("metrics server shutdown")
			}
		}()
	}

	waitForStopSignal(c.Context)
	return nil
}

// ServeCommand hosts the dashboard over HTTP for the stored session.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the dashboard web UI and JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to server.addr from config)",
			},
		},
		Action: serve,
	}
}

func serve(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}
	displayAppname(c.App.Writer, rt.cfg.GetAppName())

	if err := rt.session.Start(c.Context); err != nil {
		return err
	}

	handler, err := server.New(rt.cfg, server.Deps{
		Session: rt.session,
		Auth:    rt.auth,
		Bearer:  rt.issuer,
		Metrics: rt.metrics,
	})
	if err != nil {
		return err
	}

	addr := c.String("addr")
	if addr == "" {
		addr = rt.cfg.GetServerAddr()
	}
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- listenAndServe(rt, srv) }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return shutdown(srv)
}

func listenAndServe(rt *runtime, srv *http.Server) error {
	rt.logger.Info().Str("addr", srv.Addr).Msg("Server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		rt.logger.Error().Err(err).Str("addr", srv.Addr).Msg("Server stopped")
		return errors.Wrap(err, "server.ListenAndServe")
	}
	return nil
}

func waitForStopSignal(ctx context.Context) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server.Shutdown")
	}
	return nil
}

func printState(w io.Writer, st session.State) {
	if st.Authenticated {
		fmt.Fprintf(w, "Watching session for %s\n", st.Username)
		return
	}
	fmt.Fprintln(w, "Watching, not signed in")
}

func displayAppname(w io.Writer, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(w, myFigure.String())
}
