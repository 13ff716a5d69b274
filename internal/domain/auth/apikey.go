// Package auth describes API keys and how they are hashed for storage.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"slices"

	"github.com/go-faster/errors"
)

// Scopes granted to API keys.
const (
	ScopeCartWrite   = "cart:write"
	ScopeCreateOrder = "create_order"
)

// ErrNotFound is returned when no active key matches a hash.
var ErrNotFound = errors.New("api key not found")

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key was granted scope.
func (i *APIKeyInfo) HasScope(scope string) bool {
	return slices.Contains(i.Scopes, scope)
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// Hash returns the raw HMAC-SHA256 of key under pepper.
func Hash(key string, pepper []byte) []byte {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return mac.Sum(nil)
}

// HashHex returns Hash hex encoded, as stored in the repository.
func HashHex(key string, pepper []byte) string {
	return hex.EncodeToString(Hash(key, pepper))
}

type ctxKey struct{}

// WithKey returns a context carrying the authenticated key.
func WithKey(ctx context.Context, info *APIKeyInfo) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

// KeyFrom returns the authenticated key of ctx, if any.
func KeyFrom(ctx context.Context) (*APIKeyInfo, bool) {
	info, ok := ctx.Value(ctxKey{}).(*APIKeyInfo)
	return info, ok
}
