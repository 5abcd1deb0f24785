// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command a2achat renders A2A agent output as chat messages.
//
// Usage:
//
//	a2achat translate task.json
//	a2achat stream --config a2achat.yaml "What is the weather in Paris?"
//	a2achat serve --config a2achat.yaml --watch
//	a2achat validate a2achat.yaml
//	a2achat serve --config-type consul --config-endpoints localhost:8500 -c a2achat/config
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/a2achat/pkg/config"
	"github.com/kadirpekel/a2achat/pkg/config/provider"
	"github.com/kadirpekel/a2achat/pkg/logger"
)

// stdout is where commands write their results.
var stdout io.Writer = os.Stdout

// CLI defines the command-line interface.
type CLI struct {
	Version   VersionCmd   `cmd:"" help:"Show version information."`
	Translate TranslateCmd `cmd:"" help:"Translate a task or message JSON document into chat messages."`
	Stream    StreamCmd    `cmd:"" help:"Send a message to the remote agent and print chat deltas as they arrive."`
	Serve     ServeCmd     `cmd:"" help:"Start the HTTP server."`
	Validate  ValidateCmd  `cmd:"" help:"Validate configuration file."`
	Schema    SchemaCmd    `cmd:"" help:"Generate JSON Schema for the configuration file."`

	Config          string   `short:"c" help:"Path to config file, or the KV key or znode path for remote config types."`
	ConfigType      string   `name:"config-type" help:"Config source: file, consul, etcd, zookeeper." default:"file" enum:"file,consul,etcd,zookeeper"`
	ConfigEndpoints []string `name:"config-endpoints" help:"Endpoints of the remote config store (comma-separated)." sep:","`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, json)."`
}

// providerOptions maps the config flags to a provider. No --config with
// the file type yields the built-in defaults.
func (c *CLI) providerOptions() (provider.Options, error) {
	typ, err := provider.ParseType(c.ConfigType)
	if err != nil {
		return provider.Options{}, err
	}
	switch typ {
	case provider.TypeFile:
		if c.Config == "" {
			return provider.Options{Type: provider.TypeStatic}, nil
		}
		return provider.Options{Type: typ, Path: c.Config}, nil
	default:
		return provider.Options{Type: typ, Endpoints: c.ConfigEndpoints, Key: c.Config}, nil
	}
}

// loadConfig loads the configured source and re-applies the logger with
// the config's logger section as the lowest-priority source.
func (c *CLI) loadConfig(ctx context.Context) (*config.Config, error) {
	opts, err := c.providerOptions()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFrom(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := c.setupLogger(&cfg.Logger); err != nil {
		return nil, err
	}
	return cfg, nil
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Fprintf(stdout, "a2achat version %s\n", version())
	return nil
}

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			return info.Main.Version
		}
	}
	return "dev"
}

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env files: %v\n", err)
	}

	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("a2achat"),
		kong.Description("a2achat - render A2A agent tasks and streams as chat messages"),
		kong.UsageOnError(),
	)

	if err := cli.setupLogger(nil); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLogFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))

	err := kctx.Run(&cli)
	if err != nil {
		slog.Debug("Command failed", "command", kctx.Command(), "error", err)
	}
	kctx.FatalIfErrorf(err)
}

var logCleanup func()

func closeLogFile() {
	if logCleanup != nil {
		logCleanup()
		logCleanup = nil
	}
}

// setupLogger resolves logger options (flags > env > config > defaults)
// and installs the logger.
func (c *CLI) setupLogger(fromConfig *config.LoggerConfig) error {
	opts := resolveLogOptions(c.LogLevel, c.LogFile, c.LogFormat, fromConfig)
	closeLogFile()
	cleanup, err := logger.Setup(opts)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logCleanup = cleanup
	return nil
}

const (
	logLevelEnvVar  = "LOG_LEVEL"
	logFileEnvVar   = "LOG_FILE"
	logFormatEnvVar = "LOG_FORMAT"
)

func resolveLogOptions(level, file, format string, fromConfig *config.LoggerConfig) logger.Options {
	var cfg config.LoggerConfig
	if fromConfig != nil {
		cfg = *fromConfig
	}
	cfg.SetDefaults()
	return logger.Options{
		Level:  firstSet(level, os.Getenv(logLevelEnvVar), cfg.Level),
		File:   firstSet(file, os.Getenv(logFileEnvVar), cfg.File),
		Format: firstSet(format, os.Getenv(logFormatEnvVar), cfg.Format),
	}
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
