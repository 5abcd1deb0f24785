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

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kadirpekel/a2achat/pkg/auth"
	"github.com/kadirpekel/a2achat/pkg/chat"
	"github.com/kadirpekel/a2achat/pkg/classifier"
	"github.com/kadirpekel/a2achat/pkg/protocol"
	"github.com/kadirpekel/a2achat/pkg/remoteagent"
)

// AgentConfig is the identity attached to every rendered message.
type AgentConfig struct {
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	IconURL     string `yaml:"icon_url,omitempty" json:"icon_url,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Profile converts the section into a chat agent profile.
func (c AgentConfig) Profile() chat.AgentProfile {
	return chat.AgentProfile{Name: c.Name, IconURL: c.IconURL, Description: c.Description}
}

// RemoteConfig locates the remote A2A agent.
//
// Example:
//
//	remote:
//	  url: http://localhost:9000
//	  headers:
//	    Authorization: Bearer ${AGENT_TOKEN}
//	  timeout: 30s
type RemoteConfig struct {
	URL             string                 `yaml:"url,omitempty" json:"url,omitempty"`
	AgentCardSource string                 `yaml:"agent_card,omitempty" json:"agent_card,omitempty"`
	Headers         map[string]string      `yaml:"headers,omitempty" json:"headers,omitempty"`
	Timeout         time.Duration          `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"type=string"`
	TLS             *remoteagent.TLSConfig `yaml:"tls,omitempty" json:"tls,omitempty"`
}

func (c *RemoteConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// Validate accepts an empty section; commands that need a remote agent
// check IsSet.
func (c *RemoteConfig) Validate() error {
	if c.URL == "" {
		return nil
	}
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid url %q", c.URL)
	}
	return nil
}

// IsSet reports whether a remote agent is configured.
func (c *RemoteConfig) IsSet() bool {
	return c.URL != "" || c.AgentCardSource != ""
}

// ClientConfig converts the section into a remote agent client config.
func (c *RemoteConfig) ClientConfig(name string) remoteagent.Config {
	return remoteagent.Config{
		Name:            name,
		URL:             c.URL,
		AgentCardSource: c.AgentCardSource,
		Headers:         c.Headers,
		Timeout:         c.Timeout,
		TLS:             c.TLS,
	}
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Address         string        `yaml:"address,omitempty" json:"address,omitempty"`
	CORSOrigins     []string      `yaml:"cors_origins,omitempty" json:"cors_origins,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty" jsonschema:"type=string"`
	Auth            auth.Config   `yaml:"auth,omitempty" json:"auth,omitempty"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	c.Auth.SetDefaults()
}

func (c *ServerConfig) Validate() error {
	if !strings.Contains(c.Address, ":") {
		return fmt.Errorf("address %q must be host:port or :port", c.Address)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

// TranslatorConfig overrides extension keys and classifier phrase sets.
//
// Example:
//
//	translator:
//	  extensions:
//	    trajectory: urn:example:trajectory
//	  phrases:
//	    reasoning: [thinking, pondering]
type TranslatorConfig struct {
	Extensions protocol.Extensions   `yaml:"extensions,omitempty" json:"extensions,omitempty"`
	Phrases    classifier.PhraseSets `yaml:"phrases,omitempty" json:"phrases,omitempty"`
}

func (c *TranslatorConfig) SetDefaults() {
	c.Extensions = c.Extensions.WithDefaults()
}

func (c *TranslatorConfig) Validate() error {
	for name, key := range map[string]string{
		"trajectory":   c.Extensions.Trajectory,
		"citation":     c.Extensions.Citation,
		"error":        c.Extensions.Error,
		"form_request": c.Extensions.FormRequest,
	} {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("extension key %s is empty", name)
		}
	}
	return nil
}

// LoggerConfig configures logging.
//
// Priority order (highest to lowest):
//  1. CLI flags (--log-level, --log-file, --log-format)
//  2. Environment variables (LOG_LEVEL, LOG_FILE, LOG_FORMAT)
//  3. Config file (logger section)
//  4. Defaults (info level, simple format, stderr)
type LoggerConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

func (c *LoggerConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

func (c *LoggerConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return errors.New("invalid log level " + fmt.Sprintf("%q", c.Level) + " (valid: debug, info, warn, error)")
}
