// Package mirror is the local key-value mirror of storefront state: the
// anonymous cart, the pending order draft, fallback orders and the session
// snapshot. Reads and writes never fail towards the caller; a broken or
// corrupted store degrades to the caller's fallback value and is logged.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
)

// Keys used by the storefront.
const (
	KeyCart         = "cart"
	KeyPendingOrder = "pendingOrder"
	KeyOrders       = "orders"
	KeyUser         = "usuarioActivo"
	KeyPrefill      = "checkoutPrefill"
	KeyToken        = "token"
)

// ErrNotFound is returned by backends for a missing key.
var ErrNotFound = errors.New("mirror key not found")

// Backend stores raw values. Implementations must be safe for concurrent use.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Mirror struct {
	backend Backend
	log     *slog.Logger

	// listMu serialises read-modify-write cycles on list values.
	listMu sync.Mutex
}

func New(backend Backend, log *slog.Logger) *Mirror {
	if log == nil {
		log = slog.Default()
	}
	return &Mirror{backend: backend, log: log.With("component", "mirror")}
}

// Get decodes the value stored under key, returning fallback when the key is
// missing, unreadable or not decodable into T.
func Get[T any](ctx context.Context, m *Mirror, key string, fallback T) T {
	raw, err := m.backend.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.log.WarnContext(ctx, "mirror read failed", "key", key, "error", err)
		}
		return fallback
	}
	if len(raw) == 0 {
		return fallback
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		m.log.WarnContext(ctx, "mirror value corrupted", "key", key, "error", err)
		return fallback
	}
	return v
}

// Has reports whether key holds a value.
func (m *Mirror) Has(ctx context.Context, key string) bool {
	raw, err := m.backend.Load(ctx, key)
	return err == nil && len(raw) > 0
}

// Set stores value under key. Failures are logged and swallowed.
func (m *Mirror) Set(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		m.log.WarnContext(ctx, "mirror encode failed", "key", key, "error", err)
		return
	}
	if err := m.backend.Save(ctx, key, raw); err != nil {
		m.log.WarnContext(ctx, "mirror write failed", "key", key, "error", err)
	}
}

// Remove deletes key. Failures are logged and swallowed.
func (m *Mirror) Remove(ctx context.Context, key string) {
	if err := m.backend.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		m.log.WarnContext(ctx, "mirror delete failed", "key", key, "error", err)
	}
}

func (m *Mirror) Close() error {
	return m.backend.Close()
}
