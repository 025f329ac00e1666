package utils

import (
	"context"
	"sync"
	"time"
)

// Revoked tokens live under an app-scoped Redis prefix with a TTL matching
// the token's own expiry, so revocations clean themselves up.
const revokedTokenPrefix = "langleague:token:revoked:"

type revocationEntry struct {
	expiresAt time.Time
}

var (
	revokedTokens   = map[string]revocationEntry{}
	revokedTokensMu sync.RWMutex
)

// RevokeToken invalidates a JWT until its natural expiration, backing logout.
func RevokeToken(token string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = rc.Set(ctx, revokedTokenPrefix+token, "1", ttl).Err()
		return
	}
	revokedTokensMu.Lock()
	revokedTokens[token] = revocationEntry{expiresAt: expiresAt}
	revokedTokensMu.Unlock()
}

// IsTokenRevoked reports whether a token was invalidated before expiry.
func IsTokenRevoked(token string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := rc.Exists(ctx, revokedTokenPrefix+token).Result()
		if err == nil {
			return n > 0
		}
		// Redis unreachable: fail open rather than locking everyone out.
		return false
	}

	revokedTokensMu.RLock()
	entry, ok := revokedTokens[token]
	revokedTokensMu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(entry.expiresAt) {
		revokedTokensMu.Lock()
		delete(revokedTokens, token)
		revokedTokensMu.Unlock()
		return false
	}
	return true
}
