package handler

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-promo/internal/domain/auth"
)

// APIKeyHeader carries the client API key.
const APIKeyHeader = "api_key"

var errUnauthorized = errors.New("unauthorized")

// SecurityHandler authenticates API requests via HMAC-SHA256 hashed API keys.
type SecurityHandler struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository and HMAC pepper.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Authenticate resolves the key to its stored record. The stored hash is
// compared in constant time.
func (s *SecurityHandler) Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error) {
	if key == "" {
		return nil, errUnauthorized
	}
	hash := auth.Hash(key, s.pepper)

	info, err := s.apikeys.FindByHash(ctx, hex.EncodeToString(hash))
	if err != nil {
		if !errors.Is(err, auth.ErrNotFound) {
			zctx.From(ctx).Error("Find API key", zap.Error(err))
		}
		return nil, errUnauthorized
	}

	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
		return nil, errUnauthorized
	}
	return info, nil
}

// Require returns a middleware admitting requests whose key holds scope.
func (s *SecurityHandler) Require(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := s.Authenticate(r.Context(), r.Header.Get(APIKeyHeader))
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			if !info.HasScope(scope) {
				writeError(w, http.StatusForbidden, "missing scope "+scope)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithKey(r.Context(), info)))
		})
	}
}
