package remoteagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"
	"github.com/a2aproject/a2a-go/a2aclient/agentcard"
)

// Streamer sends a message and yields the remote agent's events.
type Streamer interface {
	SendStreamingMessage(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error]
}

// Config configures a remote A2A agent.
type Config struct {
	// Name is the local name for this remote agent.
	Name string

	// URL is the base URL of the remote A2A server.
	// Example: "http://localhost:9000"
	URL string

	// AgentCard provides the agent card directly.
	// Takes precedence over URL and AgentCardSource.
	AgentCard *a2a.AgentCard

	// AgentCardSource is a URL or file path to resolve the agent card.
	// Example: "./agent-card.json"
	AgentCardSource string

	// Headers are sent with agent card requests.
	Headers map[string]string

	TLS *TLSConfig

	// Timeout bounds agent card resolution. Default: 30s.
	Timeout time.Duration

	// MessageSendConfig is attached to every message sent to the remote agent.
	MessageSendConfig *a2a.MessageSendConfig
}

// Validate checks that a card can be located.
func (c *Config) Validate() error {
	if c.URL == "" && c.AgentCard == nil && c.AgentCardSource == "" {
		return errors.New("one of url, agent card or agent card source must be provided")
	}
	return nil
}

// SetDefaults fills in unset values.
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// Client talks to one remote agent.
type Client struct {
	cfg    Config
	card   *a2a.AgentCard
	client *a2aclient.Client
}

// NewClient resolves the agent card and connects to the agent it describes.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()

	card, err := resolveAgentCard(ctx, cfg)
	if err != nil {
		return nil, &TransportError{Op: "resolve agent card", Err: err}
	}

	client, err := a2aclient.NewFromCard(ctx, card)
	if err != nil {
		return nil, &TransportError{Op: "create client", Err: err}
	}

	return &Client{cfg: cfg, card: card, client: client}, nil
}

// Card returns the resolved agent card.
func (c *Client) Card() *a2a.AgentCard { return c.card }

// Name returns the configured name, falling back to the card's name.
func (c *Client) Name() string {
	if c.cfg.Name != "" {
		return c.cfg.Name
	}
	return c.card.Name
}

// SendStreamingMessage streams the agent's response. Agents that do not
// advertise streaming are called once and their result is yielded as the
// only event.
func (c *Client) SendStreamingMessage(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
	if params.Config == nil {
		params.Config = c.cfg.MessageSendConfig
	}
	if c.card.Capabilities.Streaming {
		return c.client.SendStreamingMessage(ctx, params)
	}
	return func(yield func(a2a.Event, error) bool) {
		result, err := c.client.SendMessage(ctx, params)
		if err != nil {
			yield(nil, err)
			return
		}
		yield(result, nil)
	}
}

// GetTask fetches the current snapshot of a task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*a2a.Task, error) {
	task, err := c.client.GetTask(ctx, &a2a.TaskQueryParams{ID: a2a.TaskID(taskID)})
	if err != nil {
		return nil, &TransportError{Op: "get task", Err: err}
	}
	return task, nil
}

// CancelTask asks the agent to cancel a task.
func (c *Client) CancelTask(ctx context.Context, taskID string) (*a2a.Task, error) {
	task, err := c.client.CancelTask(ctx, &a2a.TaskIDParams{ID: a2a.TaskID(taskID)})
	if err != nil {
		return nil, &TransportError{Op: "cancel task", Err: err}
	}
	return task, nil
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.client.Destroy()
}

func resolveAgentCard(ctx context.Context, cfg Config) (*a2a.AgentCard, error) {
	if cfg.AgentCard != nil {
		return cfg.AgentCard, nil
	}

	source := cfg.AgentCardSource
	if source == "" {
		source = strings.TrimSuffix(cfg.URL, "/")
	}

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		httpClient, err := newHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		card, err := agentcard.NewResolver(httpClient).Resolve(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch agent card from %s: %w", source, err)
		}
		return card, nil
	}

	return LoadAgentCard(source)
}

// LoadAgentCard reads an agent card from a JSON file.
func LoadAgentCard(path string) (*a2a.AgentCard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent card from %q: %w", path, err)
	}
	var card a2a.AgentCard
	if err := json.Unmarshal(data, &card); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent card: %w", err)
	}
	return &card, nil
}

func newHTTPClient(cfg Config) (*http.Client, error) {
	transport, err := ConfigureTLS(cfg.TLS)
	if err != nil {
		return nil, err
	}
	var rt http.RoundTripper = transport
	if len(cfg.Headers) > 0 {
		rt = &headerTransport{headers: cfg.Headers, next: transport}
	}
	return &http.Client{Transport: rt, Timeout: cfg.Timeout}, nil
}

type headerTransport struct {
	headers map[string]string
	next    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.next.RoundTrip(req)
}
