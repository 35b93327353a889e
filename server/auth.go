// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 60 * time.Minute

// JWTManager mints and verifies HS256 bearer tokens. It backs the auth
// middleware and doubles as the token service the security agent uses.
type JWTManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewJWTManager creates a manager signing with the given secret. A zero
// ttl falls back to one hour.
func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &JWTManager{
		secret: []byte(secret),
		issuer: "genesis-backend",
		ttl:    ttl,
	}
}

// Mint issues a signed token for the subject. Extra claims are merged in;
// sub, iss, iat and exp are always set by the manager.
func (m *JWTManager) Mint(subject string, claims map[string]any) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}

	now := time.Now()
	mapClaims := jwt.MapClaims{}
	for k, v := range claims {
		mapClaims[k] = v
	}
	mapClaims["sub"] = subject
	mapClaims["iss"] = m.issuer
	mapClaims["iat"] = now.Unix()
	mapClaims["exp"] = now.Add(m.ttl).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims.
func (m *JWTManager) Verify(tokenString string) (map[string]any, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", token.Claims)
	}
	return map[string]any(claims), nil
}

// Middleware rejects requests without a valid bearer token. A nil manager
// passes everything through, which keeps local development tokenless.
func (m *JWTManager) Middleware(next http.Handler) http.Handler {
	if m == nil || len(m.secret) == 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			sendErrorResponse(w, "Missing bearer token", http.StatusUnauthorized)
			return
		}

		claims, err := m.Verify(token)
		if err != nil {
			sendErrorResponse(w, "Invalid bearer token", http.StatusUnauthorized)
			return
		}

		// Expose the subject to handlers for audit attribution.
		if sub, ok := claims["sub"].(string); ok {
			r.Header.Set("X-Actor", sub)
		}

		next.ServeHTTP(w, r)
	})
}
