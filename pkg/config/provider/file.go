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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceDelay coalesces bursts of writes into one change signal.
const DebounceDelay = 100 * time.Millisecond

// FileProvider loads config from a local file and watches it for changes.
type FileProvider struct {
	path string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// NewFileProvider creates a provider that reads from path.
func NewFileProvider(path string) (*FileProvider, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	return &FileProvider{path: absPath}, nil
}

// Type returns TypeFile.
func (p *FileProvider) Type() Type { return TypeFile }

// Path returns the absolute path of the watched file.
func (p *FileProvider) Path() string { return p.path }

// Load reads the config file.
func (p *FileProvider) Load(context.Context) ([]byte, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", p.path, err)
	}
	return data, nil
}

// Watch watches the file's directory, since editors often replace files
// rather than write them in place.
func (p *FileProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errors.New("provider is closed")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	p.watcher = watcher

	ch := make(chan struct{}, 1)
	go p.watchLoop(ctx, watcher, ch)

	slog.Info("Watching config file", "path", p.path)
	return ch, nil
}

func (p *FileProvider) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, ch chan<- struct{}) {
	defer close(ch)

	name := filepath.Base(p.path)
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			_ = p.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				pending = time.After(DebounceDelay)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				slog.Warn("Config file was removed", "path", p.path)
			}

		case <-pending:
			pending = nil
			select {
			case ch <- struct{}{}:
				slog.Debug("Config file changed", "path", p.path)
			default:
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", "error", err)
		}
	}
}

// Close stops watching.
func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.watcher == nil {
		return nil
	}
	err := p.watcher.Close()
	p.watcher = nil
	return err
}

var _ Provider = (*FileProvider)(nil)
