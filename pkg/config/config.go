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

// Package config loads the a2achat configuration file.
//
// Loading runs in a fixed order: read bytes from a provider, parse YAML
// (falling back to JSON), expand environment variables, decode into Config,
// apply defaults, validate.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kadirpekel/a2achat/pkg/history"
	"github.com/kadirpekel/a2achat/pkg/observability"
	"github.com/kadirpekel/a2achat/pkg/translator"
)

// Config is the root configuration.
//
// Example:
//
//	agent:
//	  name: Researcher
//	remote:
//	  url: ${AGENT_URL:-http://localhost:9000}
//	server:
//	  address: :8080
type Config struct {
	Version    string                      `yaml:"version,omitempty" json:"version,omitempty"`
	Agent      AgentConfig                 `yaml:"agent,omitempty" json:"agent,omitempty"`
	Remote     RemoteConfig                `yaml:"remote,omitempty" json:"remote,omitempty"`
	Server     ServerConfig                `yaml:"server,omitempty" json:"server,omitempty"`
	Translator TranslatorConfig            `yaml:"translator,omitempty" json:"translator,omitempty"`
	Logger     LoggerConfig                `yaml:"logger,omitempty" json:"logger,omitempty"`
	Metrics    observability.MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	Tracing    observability.TracerConfig  `yaml:"tracing,omitempty" json:"tracing,omitempty"`
	History    history.Config              `yaml:"history,omitempty" json:"history,omitempty"`
}

// SetDefaults applies default values to every section.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1"
	}
	c.Remote.SetDefaults()
	c.Server.SetDefaults()
	c.Translator.SetDefaults()
	c.Logger.SetDefaults()
	c.Metrics.SetDefaults()
	c.Tracing.SetDefaults()
	c.History.SetDefaults()
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	verr := &ValidationError{}
	verr.add("remote", c.Remote.Validate())
	verr.add("server", c.Server.Validate())
	verr.add("translator", c.Translator.Validate())
	verr.add("logger", c.Logger.Validate())
	verr.add("tracing", c.Tracing.Validate())
	verr.add("history", c.History.Validate())
	if len(verr.Problems) > 0 {
		return verr
	}
	return nil
}

// Observability returns the observability section in the form the
// observability manager expects.
func (c *Config) Observability() observability.Config {
	return observability.Config{Tracing: c.Tracing, Metrics: c.Metrics}
}

// TranslatorOptions assembles the translator configuration from the agent
// and translator sections.
func (c *Config) TranslatorOptions(logger *slog.Logger, metrics observability.Metrics) translator.Config {
	return translator.Config{
		Agent:      c.Agent.Profile(),
		Extensions: c.Translator.Extensions,
		Phrases:    c.Translator.Phrases,
		Logger:     logger,
		Metrics:    metrics,
	}
}

// ValidationError lists configuration problems by section.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) add(section string, err error) {
	if err == nil {
		return
	}
	var nested *ValidationError
	if errors.As(err, &nested) {
		for _, p := range nested.Problems {
			e.Problems = append(e.Problems, section+"."+p)
		}
		return
	}
	e.Problems = append(e.Problems, fmt.Sprintf("%s: %v", section, err))
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}
