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

package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/consul/api"
)

// consulWaitTime bounds a single blocking query.
const consulWaitTime = 5 * time.Minute

// ConsulProvider reads config from a Consul KV key.
type ConsulProvider struct {
	client *api.Client
	key    string
}

// NewConsulProvider creates a provider for key on the agent at endpoints[0].
func NewConsulProvider(endpoints []string, key string) (*ConsulProvider, error) {
	if err := requireRemote("consul", endpoints, key); err != nil {
		return nil, err
	}
	cfg := api.DefaultConfig()
	cfg.Address = endpoints[0]
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	return &ConsulProvider{client: client, key: key}, nil
}

func (p *ConsulProvider) Type() Type { return TypeConsul }

func (p *ConsulProvider) Load(ctx context.Context) ([]byte, error) {
	pair, _, err := p.client.KV().Get(p.key, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to read consul key %s: %w", p.key, err)
	}
	if pair == nil {
		return nil, fmt.Errorf("consul key %s not found", p.key)
	}
	return pair.Value, nil
}

// Watch runs blocking queries against the key and signals whenever its
// modify index moves.
func (p *ConsulProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		var index uint64
		for {
			opts := (&api.QueryOptions{WaitIndex: index, WaitTime: consulWaitTime}).WithContext(ctx)
			_, meta, err := p.client.KV().Get(p.key, opts)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				slog.Error("Consul watch failed", "key", p.key, "error", err)
				if !sleepCtx(ctx, time.Second) {
					return
				}
				continue
			}
			switch {
			case meta.LastIndex < index:
				index = 0
			case index != 0 && meta.LastIndex > index:
				slog.Debug("Consul key changed", "key", p.key)
				signal(ch)
				index = meta.LastIndex
			default:
				index = meta.LastIndex
			}
		}
	}()
	slog.Info("Watching consul key", "key", p.key)
	return ch, nil
}

func (p *ConsulProvider) Close() error { return nil }

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

var _ Provider = (*ConsulProvider)(nil)
