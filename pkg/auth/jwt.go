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

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TokenValidator turns a raw bearer token into claims.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

// JWTValidator validates tokens against a cached, auto-refreshed JWKS.
type JWTValidator struct {
	jwksURL  string
	cache    *jwk.Cache
	issuer   string
	audience string
}

// NewJWTValidator registers the JWKS URL and fetches it once so a bad
// configuration fails at startup. The cache refreshes until ctx is done.
func NewJWTValidator(ctx context.Context, cfg Config) (*JWTValidator, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}

	cache := jwk.NewCache(ctx)
	if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(cfg.RefreshInterval)); err != nil {
		return nil, fmt.Errorf("failed to register JWKS URL: %w", err)
	}
	if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", cfg.JWKSURL, err)
	}

	return &JWTValidator{
		jwksURL:  cfg.JWKSURL,
		cache:    cache,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
	}, nil
}

// standardClaims are registered claim names kept out of Claims.Custom.
var standardClaims = map[string]bool{
	"sub": true, "email": true, "role": true, "tenant_id": true,
	"iss": true, "aud": true, "exp": true, "iat": true, "nbf": true, "jti": true,
}

// ValidateToken checks the signature, expiry, issuer and audience.
func (v *JWTValidator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	keyset, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := &Claims{
		Subject: token.Subject(),
		Custom:  make(map[string]any),
	}
	for key, value := range token.PrivateClaims() {
		if standardClaims[key] {
			continue
		}
		claims.Custom[key] = value
	}
	claims.Email = stringClaim(token, "email")
	claims.Role = stringClaim(token, "role")
	claims.TenantID = stringClaim(token, "tenant_id")
	return claims, nil
}

func stringClaim(token jwt.Token, key string) string {
	v, ok := token.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

var _ TokenValidator = (*JWTValidator)(nil)
