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

// Package translator turns A2A tasks, messages, parts and trajectory
// metadata into normalized chat messages.
//
// Every function here is pure with respect to its input: no network, no
// retained state. Fragments that cannot be translated are dropped with a
// debug log and a metric, never an error.
package translator

import (
	"log/slog"
	"strings"

	"github.com/kadirpekel/a2achat/pkg/chat"
	"github.com/kadirpekel/a2achat/pkg/classifier"
	"github.com/kadirpekel/a2achat/pkg/observability"
	"github.com/kadirpekel/a2achat/pkg/protocol"
)

// Mode selects the default status of steps whose fragment carries none.
type Mode int

const (
	// ModeFinal is used for completed content: open steps default to success.
	ModeFinal Mode = iota
	// ModeStreaming is used while a response is in flight: open steps
	// default to processing.
	ModeStreaming
)

func (m Mode) String() string {
	if m == ModeStreaming {
		return "streaming"
	}
	return "final"
}

func (m Mode) defaultStatus() chat.StepStatus {
	if m == ModeStreaming {
		return chat.StepProcessing
	}
	return chat.StepSuccess
}

// Config configures a Translator.
type Config struct {
	// Agent is attached to every produced message.
	Agent      chat.AgentProfile
	Extensions protocol.Extensions
	Phrases    classifier.PhraseSets
	Logger     *slog.Logger
	Metrics    observability.Metrics
}

// Translator is stateless and safe for concurrent use.
type Translator struct {
	agent      chat.AgentProfile
	ext        protocol.Extensions
	classifier *classifier.Classifier
	logger     *slog.Logger
	metrics    observability.Metrics
}

// New creates a Translator. Unset extensions and phrase sets use defaults.
func New(cfg Config) *Translator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{
		agent:      cfg.Agent,
		ext:        cfg.Extensions.WithDefaults(),
		classifier: classifier.New(cfg.Phrases),
		logger:     logger.With("component", "translator"),
		metrics:    observability.OrNoop(cfg.Metrics),
	}
}

// Extensions returns the resolved extension keys.
func (t *Translator) Extensions() protocol.Extensions { return t.ext }

// Agent returns the configured agent identity.
func (t *Translator) Agent() chat.AgentProfile { return t.agent }

// Metrics returns the recorder used by the translator.
func (t *Translator) Metrics() observability.Metrics { return t.metrics }

// Logger returns the translator's logger.
func (t *Translator) Logger() *slog.Logger { return t.logger }

// Item is a translated message plus the correlation hints a streaming
// consumer needs to merge it with later chunks.
type Item struct {
	Message    chat.Message
	Kind       classifier.ContentKind
	ToolName   string
	GroupID    string
	ToolCallID string
}

func (t *Translator) emit(msg chat.Message, kind classifier.ContentKind) Item {
	t.metrics.RecordMessage(string(msg.Kind))
	return Item{Message: msg.WithAgent(t.agent), Kind: kind}
}

func (t *Translator) drop(reason string, args ...any) {
	t.metrics.RecordDropped(reason)
	t.logger.Debug("Dropped fragment", append([]any{"reason", reason}, args...)...)
}

func messages(items []Item) []chat.Message {
	if len(items) == 0 {
		return nil
	}
	out := make([]chat.Message, len(items))
	for i, it := range items {
		out[i] = it.Message
	}
	return out
}

// stepStatus maps a free-form status onto a step status.
func stepStatus(explicit string, fallback chat.StepStatus) chat.StepStatus {
	switch strings.ToLower(strings.TrimSpace(explicit)) {
	case "error", "failed", "failure":
		return chat.StepError
	case "success", "succeeded", "completed", "complete", "done", "ok":
		return chat.StepSuccess
	case "processing", "running", "pending", "in_progress", "working", "started":
		return chat.StepProcessing
	}
	return fallback
}
