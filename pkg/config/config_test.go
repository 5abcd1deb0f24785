package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/a2achat/pkg/config/provider"
	"github.com/kadirpekel/a2achat/pkg/protocol"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, "1", cfg.Version)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 30*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "simple", cfg.Logger.Format)
	assert.Equal(t, protocol.DefaultExtensions(), cfg.Translator.Extensions)
	assert.False(t, cfg.Remote.IsSet())
}

func TestParse_YAML(t *testing.T) {
	doc := `
agent:
  name: Researcher
  icon_url: https://example.com/r.png
remote:
  url: http://localhost:9000
  timeout: 5s
  headers:
    Authorization: Bearer abc
  tls:
    insecure_skip_verify: true
server:
  address: 127.0.0.1:9090
  cors_origins: "http://a.test,http://b.test"
translator:
  extensions:
    trajectory: urn:test:trajectory
  phrases:
    reasoning: [pondering]
metrics:
  enabled: true
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "Researcher", cfg.Agent.Profile().Name)
	assert.Equal(t, "https://example.com/r.png", cfg.Agent.Profile().IconURL)
	assert.Equal(t, 5*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, "Bearer abc", cfg.Remote.Headers["Authorization"])
	require.NotNil(t, cfg.Remote.TLS)
	assert.True(t, cfg.Remote.TLS.InsecureSkipVerify)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "urn:test:trajectory", cfg.Translator.Extensions.Trajectory)
	assert.Equal(t, protocol.DefaultExtensions().Citation, cfg.Translator.Extensions.Citation)
	assert.Equal(t, []string{"pondering"}, cfg.Translator.Phrases.Reasoning)
	assert.True(t, cfg.Metrics.Enabled)

	client := cfg.Remote.ClientConfig(cfg.Agent.Name)
	assert.Equal(t, "Researcher", client.Name)
	assert.Equal(t, "http://localhost:9000", client.URL)
	assert.Equal(t, 5*time.Second, client.Timeout)

	topts := cfg.TranslatorOptions(nil, nil)
	assert.Equal(t, "Researcher", topts.Agent.Name)
	assert.Equal(t, "urn:test:trajectory", topts.Extensions.Trajectory)
}

func TestParse_JSONFallback(t *testing.T) {
	cfg, err := Parse([]byte(`{"agent": {"name": "J"}, "server": {"address": ":7000"}}`))
	require.NoError(t, err)
	assert.Equal(t, "J", cfg.Agent.Name)
	assert.Equal(t, ":7000", cfg.Server.Address)
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("A2ACHAT_TEST_URL", "https://agent.test")
	t.Setenv("A2ACHAT_TEST_NAME", "Env Agent")

	doc := `
agent:
  name: $A2ACHAT_TEST_NAME
remote:
  url: ${A2ACHAT_TEST_URL}
server:
  address: ${A2ACHAT_TEST_UNSET:-:6060}
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "Env Agent", cfg.Agent.Name)
	assert.Equal(t, "https://agent.test", cfg.Remote.URL)
	assert.Equal(t, ":6060", cfg.Server.Address)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		problem string
	}{
		{"bad url", "remote:\n  url: ftp://x\n", "remote: invalid url"},
		{"bad address", "server:\n  address: nope\n", "server: address"},
		{"bad log level", "logger:\n  level: loud\n", "logger: invalid log level"},
		{"auth without jwks", "server:\n  auth:\n    enabled: true\n", "server: auth: jwks_url is required"},
		{"bad history driver", "history:\n  driver: oracle\n  database: x\n", "history: invalid driver"},
		{"bad exporter", "tracing:\n  enabled: true\n  exporter: zipkin\n", "tracing: unknown trace exporter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Len(t, verr.Problems, 1)
			assert.Contains(t, verr.Problems[0], tt.problem)
		})
	}

	_, err := Parse([]byte("agent: [unclosed"))
	assert.Error(t, err)
}

func TestParse_CollectsAllProblems(t *testing.T) {
	_, err := Parse([]byte("server:\n  address: nope\nlogger:\n  level: loud\n"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 2)
	assert.Contains(t, err.Error(), "invalid configuration:")
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a2achat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  name: File\n"), 0o600))

	cfg, err := LoadConfigFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "File", cfg.Agent.Name)

	cfg, err = LoadConfigFile(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)

	_, err = LoadConfigFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoader_WatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a2achat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  name: One\n"), 0o600))

	reloaded := make(chan *Config, 4)
	l, err := NewLoader(provider.Options{Type: provider.TypeFile, Path: path}, WithOnChange(func(c *Config) {
		reloaded <- c
	}))
	require.NoError(t, err)
	defer l.Close()

	cfg, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "One", cfg.Agent.Name)
	assert.Same(t, cfg, l.Current())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  name: Two\n"), 0o600))

	select {
	case c := <-reloaded:
		assert.Equal(t, "Two", c.Agent.Name)
		assert.Equal(t, "Two", l.Current().Agent.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestLoader_StaticWatchBlocksUntilDone(t *testing.T) {
	l, err := NewLoader(provider.Options{Type: provider.TypeStatic, Data: []byte("agent:\n  name: S\n")})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, l.Watch(ctx))
	assert.Equal(t, provider.TypeStatic, l.Provider().Type())
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, ".env.local")
	shared := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(local, []byte("A2ACHAT_ENV_TEST=local\n"), 0o600))
	require.NoError(t, os.WriteFile(shared, []byte("A2ACHAT_ENV_TEST=shared\nA2ACHAT_ENV_OTHER=shared\n"), 0o600))

	t.Setenv("A2ACHAT_ENV_TEST", "")
	os.Unsetenv("A2ACHAT_ENV_TEST")
	t.Setenv("A2ACHAT_ENV_OTHER", "")
	os.Unsetenv("A2ACHAT_ENV_OTHER")

	require.NoError(t, LoadEnvFiles(local, shared, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "local", os.Getenv("A2ACHAT_ENV_TEST"))
	assert.Equal(t, "shared", os.Getenv("A2ACHAT_ENV_OTHER"))
}

func TestSchema(t *testing.T) {
	data, err := SchemaJSON()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, SchemaID, doc["$id"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"agent", "remote", "server", "translator", "logger", "metrics", "tracing", "history"} {
		assert.Contains(t, props, key)
	}
}
