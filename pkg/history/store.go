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

// Package history persists chat session transcripts so sessions survive a
// server restart. Postgres, MySQL and SQLite are supported.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kadirpekel/a2achat/pkg/remoteagent"
)

// ErrNotFound is returned by Load for unknown keys.
var ErrNotFound = errors.New("session not found")

// Store saves and restores session snapshots by key.
type Store interface {
	Load(ctx context.Context, key string) (remoteagent.Snapshot, error)
	Save(ctx context.Context, key string, snap remoteagent.Snapshot) error
	Delete(ctx context.Context, key string) error
	Close() error
}

const createSessionsTableSQL = `
CREATE TABLE IF NOT EXISTS chat_sessions (
    session_key VARCHAR(255) NOT NULL PRIMARY KEY,
    context_id VARCHAR(255) NOT NULL,
    task_id VARCHAR(255) NOT NULL,
    state VARCHAR(50) NOT NULL,
    history_json TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

// SQLStore keeps one row per session.
type SQLStore struct {
	db      *sql.DB
	dialect string
	owned   bool
}

// Open connects to the configured database and prepares the schema.
func Open(ctx context.Context, cfg Config) (*SQLStore, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid history config: %w", err)
	}

	db, err := sql.Open(cfg.DriverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single connection avoids "database is locked".
	if cfg.Dialect() == "sqlite" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Dialect() == "sqlite" {
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=10000"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				slog.Warn("SQLite pragma failed", "pragma", pragma, "error", err)
			}
		}
	}

	store, err := NewSQLStore(ctx, db, cfg.Dialect())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store.owned = true
	slog.Debug("History store ready", "driver", cfg.Driver)
	return store, nil
}

// NewSQLStore uses an existing connection pool. Close does not close db.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect string) (*SQLStore, error) {
	if dialect == "sqlite3" {
		dialect = "sqlite"
	}
	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}
	if _, err := db.ExecContext(ctx, createSessionsTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create chat_sessions table: %w", err)
	}
	return &SQLStore{db: db, dialect: dialect}, nil
}

func (s *SQLStore) Load(ctx context.Context, key string) (remoteagent.Snapshot, error) {
	var (
		snap    remoteagent.Snapshot
		state   string
		history string
	)
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT context_id, task_id, state, history_json FROM chat_sessions WHERE session_key = ?`), key)
	if err := row.Scan(&snap.ContextID, &snap.TaskID, &state, &history); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return remoteagent.Snapshot{}, ErrNotFound
		}
		return remoteagent.Snapshot{}, fmt.Errorf("failed to load session %s: %w", key, err)
	}
	snap.State = a2a.TaskState(state)
	if err := json.Unmarshal([]byte(history), &snap.History); err != nil {
		return remoteagent.Snapshot{}, fmt.Errorf("failed to decode history of session %s: %w", key, err)
	}
	return snap, nil
}

func (s *SQLStore) Save(ctx context.Context, key string, snap remoteagent.Snapshot) error {
	history, err := json.Marshal(snap.History)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.upsertQuery(),
		key, snap.ContextID, snap.TaskID, string(snap.State), string(history), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM chat_sessions WHERE session_key = ?`), key); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", key, err)
	}
	return nil
}

// Close closes the pool when Open created it.
func (s *SQLStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) upsertQuery() string {
	const insert = `INSERT INTO chat_sessions (session_key, context_id, task_id, state, history_json, updated_at)
                VALUES (?, ?, ?, ?, ?, ?)`
	switch s.dialect {
	case "mysql":
		return insert + `
                ON DUPLICATE KEY UPDATE context_id = VALUES(context_id), task_id = VALUES(task_id),
                state = VALUES(state), history_json = VALUES(history_json), updated_at = VALUES(updated_at)`
	default:
		return s.rebind(insert + `
                ON CONFLICT (session_key) DO UPDATE SET context_id = excluded.context_id, task_id = excluded.task_id,
                state = excluded.state, history_json = excluded.history_json, updated_at = excluded.updated_at`)
	}
}

// rebind rewrites ? placeholders as $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ Store = (*SQLStore)(nil)
