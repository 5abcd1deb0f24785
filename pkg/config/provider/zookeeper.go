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

	"github.com/go-zookeeper/zk"
)

// ZookeeperProvider reads config from a znode.
type ZookeeperProvider struct {
	conn *zk.Conn
	path string
}

// NewZookeeperProvider connects to the ensemble at endpoints. The session is
// established in the background.
func NewZookeeperProvider(endpoints []string, path string) (*ZookeeperProvider, error) {
	if err := requireRemote("zookeeper", endpoints, path); err != nil {
		return nil, err
	}
	conn, _, err := zk.Connect(endpoints, 10*time.Second, zk.WithLogger(zkLogger{}))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper: %w", err)
	}
	return &ZookeeperProvider{conn: conn, path: path}, nil
}

func (p *ZookeeperProvider) Type() Type { return TypeZookeeper }

func (p *ZookeeperProvider) Load(context.Context) ([]byte, error) {
	data, _, err := p.conn.Get(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zookeeper path %s: %w", p.path, err)
	}
	return data, nil
}

// Watch re-arms a one-shot data watch after every event.
func (p *ZookeeperProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		for {
			_, _, events, err := p.conn.GetW(p.path)
			if err != nil {
				slog.Error("Zookeeper watch failed", "path", p.path, "error", err)
				if !sleepCtx(ctx, time.Second) {
					return
				}
				continue
			}

			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				switch ev.Type {
				case zk.EventNodeDataChanged, zk.EventNodeCreated:
					slog.Debug("Zookeeper node changed", "path", p.path)
					signal(ch)
				case zk.EventNodeDeleted:
					slog.Warn("Zookeeper config node was deleted", "path", p.path)
				case zk.EventNotWatching:
					slog.Warn("Zookeeper watch lost, re-arming", "path", p.path)
				}
			}
		}
	}()
	slog.Info("Watching zookeeper node", "path", p.path)
	return ch, nil
}

func (p *ZookeeperProvider) Close() error {
	p.conn.Close()
	return nil
}

// zkLogger routes the client's connection chatter to debug logs.
type zkLogger struct{}

func (zkLogger) Printf(format string, args ...any) {
	slog.Debug(fmt.Sprintf(format, args...), "component", "zookeeper")
}

var _ Provider = (*ZookeeperProvider)(nil)
