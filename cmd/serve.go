package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/spotdown/internal/server"
	"github.com/desertthunder/spotdown/internal/services"
	"github.com/desertthunder/spotdown/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

var errInterrupted = errors.New("interrupted")

// Serve runs the download API until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadedConfig()
	if err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = config.Server.Addr()
	}

	handler, err := r.apiHandler()
	if err != nil {
		return err
	}

	srv := server.NewServer(addr, handler, r.logger)
	r.logger.Info("serving downloads", "addr", addr, "transcoder", r.transcoder.Name())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			r.logger.Info("received signal", "signal", sig)
			return errInterrupted
		case <-gctx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errInterrupted) {
		return err
	}
	return nil
}

// apiHandler wires the in-process pipeline into the API routes.
func (r *Runner) apiHandler() (http.Handler, error) {
	p, err := r.pipeline()
	if err != nil {
		return nil, err
	}

	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger), server.Recover(r.logger))
	server.NewAPI(tasks.PipelineDownloader{Pipeline: p}, r.catalog, r.logger).Register(router)

	for _, route := range router.Routes() {
		r.logger.Debug("route", "route", route)
	}
	return router, nil
}

// Health checks a remote spotdown server.
func (r *Runner) Health(ctx context.Context, cmd *cli.Command) error {
	remote := cmd.String("remote")
	if remote == "" {
		remote = "http://" + r.config.Server.Addr()
	}

	if err := services.NewPipelineClient(remote, r.httpClient).Health(ctx); err != nil {
		return fmt.Errorf("%s: %w", remote, err)
	}

	r.writePlain("✓ %s is healthy\n", remote)
	return nil
}
