package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/a2achat/pkg/config/provider"
)

// Loader loads configuration from a provider and optionally reloads it.
type Loader struct {
	provider provider.Provider

	mu       sync.RWMutex
	current  *Config
	onChange func(*Config)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithOnChange registers a callback invoked with each successfully reloaded
// configuration.
func WithOnChange(fn func(*Config)) LoaderOption {
	return func(l *Loader) {
		l.onChange = fn
	}
}

// NewLoader creates a loader for the given provider options.
func NewLoader(opts provider.Options, options ...LoaderOption) (*Loader, error) {
	p, err := provider.New(opts)
	if err != nil {
		return nil, err
	}
	l := &Loader{provider: p}
	for _, opt := range options {
		opt(l)
	}
	return l, nil
}

// Load reads, parses and validates the configuration.
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	data, err := l.provider.Load(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Current returns the last successfully loaded configuration.
func (l *Loader) Current() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Watch reloads on every provider change until ctx is done. A reload that
// fails to parse or validate is logged and the previous config stays active.
func (l *Loader) Watch(ctx context.Context) error {
	changes, err := l.provider.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch config: %w", err)
	}
	if changes == nil {
		<-ctx.Done()
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			cfg, err := l.Load(ctx)
			if err != nil {
				slog.Error("Config reload failed, keeping previous config", "error", err)
				continue
			}
			slog.Info("Config reloaded", "provider", l.provider.Type())
			if l.onChange != nil {
				l.onChange(cfg)
			}
		}
	}
}

// Close releases the provider.
func (l *Loader) Close() error {
	return l.provider.Close()
}

// Provider returns the underlying provider.
func (l *Loader) Provider() provider.Provider {
	return l.provider
}

// LoadConfigFile loads a configuration file once. An empty path yields the
// default configuration.
func LoadConfigFile(ctx context.Context, path string) (*Config, error) {
	opts := provider.Options{Type: provider.TypeFile, Path: path}
	if path == "" {
		opts = provider.Options{Type: provider.TypeStatic}
	}
	return LoadFrom(ctx, opts)
}

// LoadFrom loads configuration once from any provider.
func LoadFrom(ctx context.Context, opts provider.Options) (*Config, error) {
	l, err := NewLoader(opts)
	if err != nil {
		return nil, err
	}
	defer l.Close()
	return l.Load(ctx)
}

// Parse runs the full pipeline on raw bytes.
func Parse(data []byte) (*Config, error) {
	raw, err := parseBytes(data)
	if err != nil {
		return nil, err
	}
	expanded := expandEnvVars(raw)

	cfg, err := decodeConfig(expanded)
	if err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseBytes(data []byte) (map[string]any, error) {
	raw := map[string]any{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return raw, nil
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		if jsonErr := json.Unmarshal(data, &raw); jsonErr != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	return raw, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces ${VAR}, ${VAR:-default} and $VAR in every string
// value.
func expandEnvVars(v any) any {
	switch val := v.(type) {
	case string:
		return expandString(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = expandEnvVars(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = expandEnvVars(item)
		}
		return out
	default:
		return v
	}
}

func expandString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if groups[2] != "" {
			return os.Getenv(groups[2])
		}
		name, def, hasDefault := strings.Cut(groups[1], ":-")
		if value, ok := os.LookupEnv(name); ok && value != "" {
			return value
		}
		if hasDefault {
			return def
		}
		return ""
	})
}

func decodeConfig(raw any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
