package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tendant/events-compiler/internal/bus"
	"github.com/tendant/events-compiler/internal/compiler"
	"github.com/tendant/events-compiler/internal/metrics"
	"github.com/tendant/events-compiler/internal/process"
	"github.com/tendant/events-compiler/internal/project"
	"github.com/tendant/events-compiler/internal/watch"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var compileOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Compile scene events on request until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts, compileOnStart)
		},
	}
	cmd.Flags().BoolVar(&compileOnStart, "compile-all", false, "request compilation of every scene at startup")
	return cmd
}

func serve(ctx context.Context, opts *rootOptions, compileOnStart bool) error {
	cfg, logger := opts.cfg, opts.logger
	logger.Info("compilerd starting", "nats_url", cfg.NATSURL, "request_subject", cfg.RequestSubject, "event_subject", cfg.EventSubject, "project", cfg.ProjectFile, "cxx", cfg.CXX, "metrics_addr", cfg.MetricsAddr, "watch", cfg.WatchProject)

	proj, err := project.Load(cfg.ProjectFile)
	if err != nil {
		fatal(logger, "load project", err, "project", cfg.ProjectFile)
	}
	logger.Info("loaded project", "game_id", proj.Game().ID(), "scenes", len(proj.Scenes()))

	nc, err := bus.Connect(cfg.NATSURL, logger)
	if err != nil {
		fatal(logger, "connect to NATS", err, "nats_url", cfg.NATSURL)
	}
	logger.Info("connected to NATS", "nats_url", cfg.NATSURL)
	defer nc.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	c, err := startCompiler(cfg, proj, logger,
		metrics.New(registry),
		bus.NewPublisher(nc, cfg.EventSubject, logger),
	)
	if err != nil {
		fatal(logger, "start compiler", err, "cxx", cfg.CXX)
	}
	// Runs before nc.Close so the last job's events are still published.
	defer compiler.DestroyInstance()

	commands := &bus.Commands{
		Target: c,
		Game:   proj.Game(),
		Lookup: lookupScene(proj),
		Forget: func(id process.SceneID) { proj.Remove(id) },
		Logger: logger,
	}
	sub, err := nc.SubscribeJSON(cfg.RequestSubject, commands.Handle)
	if err != nil {
		fatal(logger, "subscribe to compile requests", err, "subject", cfg.RequestSubject)
	}
	defer func() { _ = sub.Unsubscribe() }()
	logger.Info("listening for compile requests", "subject", cfg.RequestSubject)

	if compileOnStart {
		for _, scene := range proj.Scenes() {
			if err := requestScene(c, proj, scene.ID()); err != nil {
				logger.Warn("initial compilation request failed", "scene_id", scene.ID(), "err", err)
			}
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.WatchProject {
		w, err := watch.New(proj.EventDirs(), func(path string) {
			scene, ok := proj.SceneForPath(path)
			if !ok {
				return
			}
			if err := requestScene(c, proj, scene.ID()); err != nil {
				logger.Warn("compilation request from file change failed", "path", path, "err", err)
			}
		})
		if err != nil {
			fatal(logger, "watch project", err)
		}
		w.Debounce = cfg.WatchDebounce
		w.Logger = logger
		w.Filter = func(path string) bool {
			_, ok := proj.SceneForPath(path)
			return ok
		}
		g.Go(func() error { return w.Run(ctx) })
		logger.Info("watching scene events files", "dirs", proj.EventDirs())
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return nil
	})

	return g.Wait()
}
