package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/a2achat/pkg/auth"
	"github.com/kadirpekel/a2achat/pkg/config"
	"github.com/kadirpekel/a2achat/pkg/config/provider"
	"github.com/kadirpekel/a2achat/pkg/history"
	"github.com/kadirpekel/a2achat/pkg/observability"
	"github.com/kadirpekel/a2achat/pkg/remoteagent"
	"github.com/kadirpekel/a2achat/pkg/server"
	"github.com/kadirpekel/a2achat/pkg/translator"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Address string `help:"Listen address, e.g. :8080 (overrides config)."`
	Watch   bool   `help:"Watch the config source and apply agent and translator changes without restart."`
}

func (c *ServeCmd) Run(ctx context.Context, cli *CLI) error {
	var (
		mu  sync.Mutex
		srv *server.Server
		obs *observability.Manager
	)

	opts, err := cli.providerOptions()
	if err != nil {
		return err
	}
	loader, err := config.NewLoader(opts, config.WithOnChange(func(cfg *config.Config) {
		mu.Lock()
		defer mu.Unlock()
		if srv == nil {
			return
		}
		srv.SetTranslator(translator.New(cfg.TranslatorOptions(slog.Default(), obs.Metrics())))
	}))
	if err != nil {
		return err
	}
	defer loader.Close()

	cfg, err := loader.Load(ctx)
	if err != nil {
		return err
	}
	if err := cli.setupLogger(&cfg.Logger); err != nil {
		return err
	}
	if c.Address != "" {
		cfg.Server.Address = c.Address
	}

	obs, shutdown, err := startObservability(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	var streamer remoteagent.Streamer
	if cfg.Remote.IsSet() {
		client, err := remoteagent.NewClient(ctx, cfg.Remote.ClientConfig(cfg.Agent.Name))
		if err != nil {
			return err
		}
		defer client.Close()
		streamer = client
		slog.Info("Remote agent ready", "agent", client.Name())
	} else {
		slog.Warn("No remote agent configured; session routes are disabled")
	}

	var validator auth.TokenValidator
	if cfg.Server.Auth.Enabled {
		v, err := auth.NewJWTValidator(ctx, cfg.Server.Auth)
		if err != nil {
			return err
		}
		validator = v
		slog.Info("Bearer token auth enabled", "issuer", cfg.Server.Auth.Issuer)
	}

	var store history.Store
	if cfg.History.Enabled() {
		sqlStore, err := history.Open(ctx, cfg.History)
		if err != nil {
			return err
		}
		defer sqlStore.Close()
		store = sqlStore
		slog.Info("Session history persisted", "driver", cfg.History.Driver)
	}

	mu.Lock()
	srv = server.New(server.Options{
		Config:     cfg.Server,
		Translator: translator.New(cfg.TranslatorOptions(slog.Default(), obs.Metrics())),
		Streamer:   streamer,
		Metrics:    obs.Metrics(),
		Tracer:     obs.Tracer("a2achat"),
		Auth:       validator,
		History:    store,
	})
	mu.Unlock()

	fmt.Fprintf(stdout, "a2achat server listening on %s\n", cfg.Server.Address)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	if c.Watch && opts.Type != provider.TypeStatic {
		g.Go(func() error {
			return loader.Watch(gctx)
		})
	}
	return g.Wait()
}
