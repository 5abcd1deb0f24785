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

// Package provider defines where configuration bytes come from.
package provider

import (
	"context"
	"fmt"
)

// Type identifies the config source type.
type Type string

const (
	TypeFile      Type = "file"
	TypeStatic    Type = "static"
	TypeConsul    Type = "consul"
	TypeEtcd      Type = "etcd"
	TypeZookeeper Type = "zookeeper"
)

// ParseType converts a string to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "file", "":
		return TypeFile, nil
	case "static":
		return TypeStatic, nil
	case "consul":
		return TypeConsul, nil
	case "etcd":
		return TypeEtcd, nil
	case "zookeeper", "zk":
		return TypeZookeeper, nil
	default:
		return "", fmt.Errorf("invalid provider type: %s (valid types: file, consul, etcd, zookeeper)", s)
	}
}

// Provider abstracts config sources.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Type returns the provider type for logging.
	Type() Type

	// Load reads raw config bytes from the source.
	Load(ctx context.Context) ([]byte, error)

	// Watch signals on the returned channel whenever the config changes.
	// The channel is closed when ctx is done. A nil channel means the
	// provider cannot be watched.
	Watch(ctx context.Context) (<-chan struct{}, error)

	Close() error
}

// Options configures provider creation.
type Options struct {
	Type Type

	// Path is the config file path.
	Path string

	// Data is the config document for static providers.
	Data []byte

	// Endpoints are the addresses of a consul, etcd or zookeeper cluster.
	Endpoints []string

	// Key is the KV key (consul, etcd) or znode path (zookeeper) holding
	// the config document.
	Key string
}

// New creates a Provider.
func New(opts Options) (Provider, error) {
	switch opts.Type {
	case TypeFile, "":
		if opts.Path == "" {
			return nil, fmt.Errorf("config path is required")
		}
		return NewFileProvider(opts.Path)
	case TypeStatic:
		return NewStaticProvider(opts.Data), nil
	case TypeConsul:
		return NewConsulProvider(opts.Endpoints, opts.Key)
	case TypeEtcd:
		return NewEtcdProvider(opts.Endpoints, opts.Key)
	case TypeZookeeper:
		return NewZookeeperProvider(opts.Endpoints, opts.Key)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", opts.Type)
	}
}

func requireRemote(kind string, endpoints []string, key string) error {
	if len(endpoints) == 0 {
		return fmt.Errorf("%s endpoints are required", kind)
	}
	if key == "" {
		return fmt.Errorf("%s key is required", kind)
	}
	return nil
}

// signal delivers a change without blocking. Signals coalesce.
func signal(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// StaticProvider serves a fixed document. It is used when no config file
// is given.
type StaticProvider struct {
	data []byte
}

// NewStaticProvider creates a provider that always returns data.
func NewStaticProvider(data []byte) *StaticProvider {
	return &StaticProvider{data: data}
}

func (p *StaticProvider) Type() Type { return TypeStatic }

func (p *StaticProvider) Load(context.Context) ([]byte, error) { return p.data, nil }

func (p *StaticProvider) Watch(context.Context) (<-chan struct{}, error) { return nil, nil }

func (p *StaticProvider) Close() error { return nil }

var _ Provider = (*StaticProvider)(nil)
