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

// Package server exposes the translator and remote agent sessions over HTTP.
//
// Routes:
//   - POST   /v1/translate                  → task or message JSON to chat messages
//   - POST   /v1/sessions/{id}/messages     → send a user message, stream SSE deltas
//   - GET    /v1/sessions/{id}/messages     → session history
//   - POST   /v1/sessions/{id}/forms        → submit a form, stream SSE deltas
//   - DELETE /v1/sessions/{id}/stream       → cancel the active stream
//   - DELETE /v1/sessions/{id}              → forget the session and its saved history
//   - GET    /healthz                       → liveness
//   - GET    /metrics                       → Prometheus metrics
//
// With auth configured every route outside server.auth.excluded_paths
// requires a bearer token.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/a2achat/pkg/auth"
	"github.com/kadirpekel/a2achat/pkg/config"
	"github.com/kadirpekel/a2achat/pkg/history"
	"github.com/kadirpekel/a2achat/pkg/observability"
	"github.com/kadirpekel/a2achat/pkg/remoteagent"
	"github.com/kadirpekel/a2achat/pkg/translator"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 10 << 20

// Options configures a Server.
type Options struct {
	Config     config.ServerConfig
	Translator *translator.Translator

	// Streamer reaches the remote agent. Session routes answer 503 when nil.
	Streamer remoteagent.Streamer

	Metrics observability.Metrics
	Tracer  trace.Tracer

	// Auth validates bearer tokens. Nil leaves every route open. When set,
	// sessions are private to the token subject.
	Auth auth.TokenValidator

	// History saves sessions after every exchange and restores them on
	// first use. Nil keeps sessions in memory only.
	History history.Store
}

// Server is the a2achat HTTP server.
type Server struct {
	cfg      config.ServerConfig
	streamer remoteagent.Streamer
	metrics  observability.Metrics
	tracer   trace.Tracer
	auth     auth.TokenValidator
	history  history.Store
	tr       atomic.Pointer[translator.Translator]
	sessions *sessionRegistry
	handler  http.Handler
}

// New creates a server. Options.Config is defaulted in place.
func New(opts Options) *Server {
	cfg := opts.Config
	cfg.SetDefaults()

	tracer := opts.Tracer
	if tracer == nil {
		tracer = observability.NoopTracer("server")
	}

	s := &Server{
		cfg:      cfg,
		streamer: opts.Streamer,
		metrics:  observability.OrNoop(opts.Metrics),
		tracer:   tracer,
		auth:     opts.Auth,
		history:  opts.History,
		sessions: newSessionRegistry(),
	}
	tr := opts.Translator
	if tr == nil {
		tr = translator.New(translator.Config{Metrics: s.metrics})
	}
	s.tr.Store(tr)
	s.handler = s.routes()
	return s
}

// SetTranslator swaps the translator used for translation requests and for
// sessions created afterwards. Existing sessions keep their translator.
func (s *Server) SetTranslator(tr *translator.Translator) {
	if tr == nil {
		return
	}
	s.tr.Store(tr)
	slog.Info("Translator updated", "agent", tr.Agent().Name)
}

// Translator returns the active translator.
func (s *Server) Translator() *translator.Translator {
	return s.tr.Load()
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(observability.HTTPMiddleware(s.metrics))
	r.Use(loggingMiddleware)
	r.Use(corsMiddleware(s.cfg.CORSOrigins))
	if s.auth != nil {
		r.Use(auth.Middleware(s.auth, s.cfg.Auth.ExcludedPaths))
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", s.metrics.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/translate", s.handleTranslate)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Post("/messages", s.handleSendMessage)
			r.Get("/messages", s.handleHistory)
			r.Post("/forms", s.handleSubmitForm)
			r.Delete("/stream", s.handleCancel)
			r.Delete("/", s.handleDeleteSession)
		})
	})

	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully and
// cancels every active stream.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("HTTP server starting", "address", s.cfg.Address)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("HTTP server shutting down")
	s.sessions.cancelAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown error: %w", err)
	}
	return nil
}

// newSession creates the session for key, resuming its saved state when
// the history store has one.
func (s *Server) newSession(ctx context.Context, key, id string) *remoteagent.Session {
	cfg := remoteagent.SessionConfig{
		ID:         id,
		Translator: s.tr.Load(),
		Tracer:     s.tracer,
	}
	if snap, ok := s.restore(ctx, key); ok {
		cfg.Restore = &snap
	}
	return remoteagent.NewSession(s.streamer, cfg)
}

// lookup finds the session named by the request, resuming it from the
// history store if it is not in memory.
func (s *Server) lookup(r *http.Request) (*remoteagent.Session, string, bool) {
	id := chi.URLParam(r, "id")
	key := sessionKey(r.Context(), id)
	if sess, ok := s.sessions.get(key); ok {
		return sess, key, true
	}
	snap, ok := s.restore(r.Context(), key)
	if !ok {
		return nil, key, false
	}
	sess := s.sessions.getOrCreate(key, func() *remoteagent.Session {
		return remoteagent.NewSession(s.streamer, remoteagent.SessionConfig{
			ID:         id,
			Translator: s.tr.Load(),
			Tracer:     s.tracer,
			Restore:    &snap,
		})
	})
	return sess, key, true
}

func (s *Server) restore(ctx context.Context, key string) (remoteagent.Snapshot, bool) {
	if s.history == nil {
		return remoteagent.Snapshot{}, false
	}
	snap, err := s.history.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, history.ErrNotFound) {
			slog.Error("Failed to restore session", "session", key, "error", err)
		}
		return remoteagent.Snapshot{}, false
	}
	return snap, true
}

func (s *Server) persist(ctx context.Context, key string, sess *remoteagent.Session) {
	if s.history == nil {
		return
	}
	if err := s.history.Save(ctx, key, sess.Snapshot()); err != nil {
		slog.Error("Failed to save session", "session", key, "error", err)
	}
}
