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

// Package auth validates bearer tokens issued by an external identity
// provider. Keys are fetched from the provider's JWKS endpoint and
// refreshed in the background.
//
//	server:
//	  auth:
//	    enabled: true
//	    jwks_url: "https://auth.example.com/.well-known/jwks.json"
//	    issuer: "https://auth.example.com"
//	    audience: "a2achat"
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Common authentication errors.
var (
	ErrUnauthorized = errors.New("unauthorized: authentication required")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Config configures bearer token validation.
type Config struct {
	Enabled  bool   `yaml:"enabled" json:"enabled,omitempty"`
	JWKSURL  string `yaml:"jwks_url" json:"jwks_url,omitempty"`
	Issuer   string `yaml:"issuer" json:"issuer,omitempty"`
	Audience string `yaml:"audience" json:"audience,omitempty"`

	// RefreshInterval is the minimum time between JWKS fetches. Default: 15m.
	RefreshInterval time.Duration `yaml:"refresh_interval" json:"refresh_interval,omitempty" jsonschema:"type=string"`

	// ExcludedPaths skip authentication. An entry ending in "/" matches
	// every path below it.
	ExcludedPaths []string `yaml:"excluded_paths" json:"excluded_paths,omitempty"`
}

// SetDefaults fills in unset values.
func (c *Config) SetDefaults() {
	if c.RefreshInterval == 0 {
		c.RefreshInterval = 15 * time.Minute
	}
	if c.ExcludedPaths == nil {
		c.ExcludedPaths = []string{"/healthz", "/metrics"}
	}
}

// Validate checks an enabled config names a provider completely.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.JWKSURL == "" {
		return errors.New("jwks_url is required when auth is enabled")
	}
	if u, err := url.Parse(c.JWKSURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid jwks_url %q", c.JWKSURL)
	}
	if c.Issuer == "" {
		return errors.New("issuer is required when auth is enabled")
	}
	if c.Audience == "" {
		return errors.New("audience is required when auth is enabled")
	}
	return nil
}

// Claims are the validated claims of a token.
type Claims struct {
	Subject  string         `json:"sub"`
	Email    string         `json:"email,omitempty"`
	Role     string         `json:"role,omitempty"`
	TenantID string         `json:"tenant_id,omitempty"`
	Custom   map[string]any `json:"-"`
}

// GetStringClaim returns a custom claim as a string, or "".
func (c *Claims) GetStringClaim(key string) string {
	s, _ := c.Custom[key].(string)
	return s
}

type contextKey struct{}

// ClaimsFromContext returns the claims stored by Middleware, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(contextKey{}).(*Claims)
	return claims
}

// ContextWithClaims returns a copy of ctx carrying claims.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}
