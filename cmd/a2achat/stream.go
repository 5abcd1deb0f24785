package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/a2achat/pkg/agui"
	"github.com/kadirpekel/a2achat/pkg/config"
	"github.com/kadirpekel/a2achat/pkg/observability"
	"github.com/kadirpekel/a2achat/pkg/remoteagent"
	"github.com/kadirpekel/a2achat/pkg/translator"
)

// StreamCmd sends one message to the remote agent and prints the chat items
// as they stream in.
type StreamCmd struct {
	Text      string `short:"t" required:"" help:"Message text to send."`
	URL       string `help:"Remote agent URL (overrides config)."`
	AgentCard string `name:"agent-card" help:"Agent card URL or file (overrides config)."`
	Format    string `short:"f" help:"Output format: text prints finalized items, json prints every delta." default:"text" enum:"text,json"`
}

func (c *StreamCmd) Run(ctx context.Context, cli *CLI) error {
	cfg, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	c.applyOverrides(&cfg.Remote)
	if !cfg.Remote.IsSet() {
		return errors.New("no remote agent configured (set remote.url or pass --url)")
	}

	obs, shutdown, err := startObservability(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	client, err := remoteagent.NewClient(ctx, cfg.Remote.ClientConfig(cfg.Agent.Name))
	if err != nil {
		return err
	}
	defer client.Close()

	sess := remoteagent.NewSession(client, remoteagent.SessionConfig{
		Translator: translator.New(cfg.TranslatorOptions(slog.Default(), obs.Metrics())),
		Tracer:     obs.Tracer("a2achat"),
	})

	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: c.Text})
	res, err := sess.Send(ctx, msg, deltaPrinter(stdout, c.Format))
	if err != nil {
		return err
	}
	if res.Canceled {
		fmt.Fprintln(os.Stderr, "canceled")
		return nil
	}
	slog.Info("Stream finished", "agent", client.Name(), "state", string(res.State), "task_id", res.TaskID)
	return nil
}

func (c *StreamCmd) applyOverrides(remote *config.RemoteConfig) {
	if c.URL != "" {
		remote.URL = c.URL
	}
	if c.AgentCard != "" {
		remote.AgentCardSource = c.AgentCard
	}
}

// deltaPrinter returns an emit function. Text output prints each item once,
// when it is finalized.
func deltaPrinter(w io.Writer, format string) func(agui.Delta) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		return func(d agui.Delta) error {
			return enc.Encode(d)
		}
	}
	return func(d agui.Delta) error {
		if d.Type != agui.DeltaFinalized {
			return nil
		}
		_, err := fmt.Fprintln(w, renderText(d.Message))
		return err
	}
}

// startObservability initializes tracing and metrics from cfg. The returned
// func flushes and stops them.
func startObservability(ctx context.Context, cfg *config.Config) (*observability.Manager, func(), error) {
	obs, err := observability.Start(ctx, cfg.Observability())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	return obs, func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			slog.Warn("Observability shutdown failed", "error", err)
		}
	}, nil
}
