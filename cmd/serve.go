package main

import (
	"context"
	"github.com/google/gops/agent"
	"github.com/pkg/errors"
	"github.com/revolution1/unitgate/caching"
	"github.com/revolution1/unitgate/config"
	"github.com/revolution1/unitgate/manage"
	"github.com/revolution1/unitgate/middleware"
	"github.com/revolution1/unitgate/proxy"
	"github.com/revolution1/unitgate/server"
	"github.com/revolution1/unitgate/state"
	"github.com/revolution1/unitgate/types"
	"github.com/revolution1/unitgate/utils"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"
)

type serveOptions struct {
	path         string
	control      string
	attach       []string
	proxyTimeout time.Duration
	cacheMaxCost int64
	accessLog    bool
	noGops       bool
	statePath    string
	resume       bool
	grace        time.Duration
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the listeners of a document and the control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
	addConfigFlag(cmd, &opts.path)
	flags := cmd.Flags()
	flags.StringVar(&opts.control, "control", "unix:/var/run/control.unit.sock", "control API address, host:port or unix:/path, empty disables it")
	flags.StringArrayVar(&opts.attach, "attach", nil, "serve an application by an upstream, <application>=<url>, repeatable")
	flags.DurationVar(&opts.proxyTimeout, "proxy-timeout", proxy.DefaultTimeout, "timeout of proxied requests")
	flags.Int64Var(&opts.cacheMaxCost, "cache-size", 1<<16, "max number of cached route decisions, 0 disables the cache")
	flags.BoolVar(&opts.accessLog, "access-log", true, "log every request")
	flags.DurationVar(&opts.grace, "shutdown-grace", server.DefaultShutdownGrace, "time given to requests in flight on shutdown")
	flags.BoolVar(&opts.noGops, "no-gops", false, "do not start the gops agent")
	flags.StringVar(&opts.statePath, "state", "", "sqlite file recording every applied document, empty disables it")
	flags.BoolVar(&opts.resume, "resume", false, "start from the latest document in --state instead of --config")
	return cmd
}

func runServe(opts *serveOptions) error {
	if !opts.noGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			return err
		}
		defer agent.Close()
	}
	utils.CheckFdLimit()
	log.Infof("Version: %s", printVersion())
	log.Infof("Build: %s %s %s, PID: %d", runtime.GOOS, runtime.Compiler, runtime.Version(), os.Getpid())
	var store *state.Store
	if opts.statePath != "" {
		var err error
		if store, err = state.Open(opts.statePath, middleware.DebugMode); err != nil {
			return err
		}
		defer store.Close()
	} else if opts.resume {
		return errors.New("--resume requires --state")
	}
	conf, err := loadStartup(opts, store)
	if err != nil {
		return err
	}
	for _, w := range config.Lint(conf) {
		log.Warn(w)
	}
	attach, err := server.ParseAttachments(opts.attach)
	if err != nil {
		return err
	}
	var cache caching.Cache = caching.Nop{}
	if opts.cacheMaxCost > 0 {
		rc, err := caching.NewRisCache(opts.cacheMaxCost)
		if err != nil {
			return err
		}
		cache = rc
	}
	defer cache.Close()
	srv, err := server.New(conf, server.Options{
		Attach:        attach,
		Cache:         cache,
		Proxy:         proxy.NewClient(opts.proxyTimeout),
		AccessLog:     opts.accessLog,
		ShutdownGrace: opts.grace,
	})
	if err != nil {
		return err
	}
	gw := &gateway{Server: srv, store: store}
	gw.record(srv.Generation(), conf)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return srv.Serve(egCtx) })
	if opts.control != "" {
		ln, err := manage.Listen(opts.control)
		if err != nil {
			cancel()
			_ = eg.Wait()
			return err
		}
		var history manage.History
		if store != nil {
			history = store
		}
		m := manage.NewManage(gw, history)
		eg.Go(func() error { return m.Serve(egCtx, ln) })
	}
	eg.Go(func() error {
		handleSignals(egCtx, cancel, func() error {
			next, err := config.Load(opts.path)
			if err != nil {
				return err
			}
			return gw.Reload(next)
		})
		return nil
	})
	return eg.Wait()
}

// handleSignals reloads on SIGHUP and cancels on SIGINT or SIGTERM.
func handleSignals(ctx context.Context, cancel context.CancelFunc, reload func() error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				log.Info("received signal 'HUP', reloading config...")
				if err := reload(); err != nil {
					log.WithError(err).Error("reload failed, keeping the running config")
				}
				continue
			}
			log.Infof("received signal '%s', shutting down server...", strings.ToUpper(sig.String()))
			cancel()
			return
		}
	}
}

func loadStartup(opts *serveOptions, store *state.Store) (*types.Config, error) {
	if opts.resume {
		conf, err := store.Restore()
		if err == nil {
			log.Infof("Resuming from the latest document in %s", opts.statePath)
			return conf, config.Validate(conf)
		}
		if !errors.Is(err, state.ErrNoRevision) {
			return nil, err
		}
		log.Infof("No document recorded in %s yet", opts.statePath)
	}
	log.Infof("Loading config from %s", opts.path)
	return loadValid(opts.path)
}

// gateway records every document the server applies.
type gateway struct {
	*server.Server
	store *state.Store
}

func (g *gateway) Reload(conf *types.Config) error {
	if err := g.Server.Reload(conf); err != nil {
		return err
	}
	g.record(g.Server.Generation(), conf)
	return nil
}

func (g *gateway) record(generation uint64, conf *types.Config) {
	if g.store == nil {
		return
	}
	if _, err := g.store.Record(generation, conf); err != nil {
		log.WithError(err).Error("unable to record the applied document")
	}
}
