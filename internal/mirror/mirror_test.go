package mirror

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a mirror on top of it
func setupTestRedis(t *testing.T) (*Mirror, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	m := New(NewRedisBackend(client, "dev1", 0), nil)
	t.Cleanup(func() { _ = m.Close() })
	return m, mr
}

func setupTestSQLite(t *testing.T, path string) *SQLiteBackend {
	b, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func backends(t *testing.T) map[string]*Mirror {
	redisMirror, _ := setupTestRedis(t)

	return map[string]*Mirror{
		"memory": New(NewMemoryBackend(), nil),
		"sqlite": New(setupTestSQLite(t, filepath.Join(t.TempDir(), "state", "mirror.db")), nil),
		"redis":  redisMirror,
	}
}

func TestMirror_CartRoundTrip(t *testing.T) {
	for name, m := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := domain.NewCart([]domain.CartLine{
				{ProductID: 1, Name: "Mouse", UnitPrice: 9990, Quantity: 2},
				{ProductID: 4, Name: "Pad", UnitPrice: 2990, Quantity: 1, ImageRef: "pad.png"},
			})

			m.SaveCart(ctx, c)

			assert.Equal(t, c, m.Cart(ctx))
		})
	}
}

func TestMirror_MissingKeyReturnsFallback(t *testing.T) {
	for name, m := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.True(t, m.Cart(ctx).IsEmpty())
			assert.Empty(t, m.Orders(ctx))
			assert.Equal(t, "none", Get(ctx, m, KeyToken, "none"))
			assert.False(t, m.Has(ctx, KeyPendingOrder))
		})
	}
}

func TestMirror_RemoveIsIdempotent(t *testing.T) {
	for name, m := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m.Set(ctx, KeyToken, "abc")
			require.True(t, m.Has(ctx, KeyToken))

			m.Remove(ctx, KeyToken)
			m.Remove(ctx, KeyToken)

			assert.False(t, m.Has(ctx, KeyToken))
		})
	}
}

func TestMirror_CorruptedValueDegradesToFallback(t *testing.T) {
	m, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("storefront:dev1:cart", "{not json"))

	assert.True(t, m.Cart(ctx).IsEmpty())
}

func TestMirror_LegacyCartIsMigratedOnWrite(t *testing.T) {
	m, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("storefront:dev1:cart", `[{"id":3,"nombre":"Cable","precio":1500,"qty":2}]`))

	c := m.Cart(ctx)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 2, c.Lines[0].Quantity)

	m.SaveCart(ctx, c)
	raw, err := mr.Get("storefront:dev1:cart")
	require.NoError(t, err)
	assert.Contains(t, raw, `"quantity":2`)
	assert.NotContains(t, raw, `"qty"`)
}

func TestMirror_OrdersHelpers(t *testing.T) {
	m := New(NewMemoryBackend(), nil)
	ctx := context.Background()

	m.AppendOrder(ctx, domain.Order{ID: "1", Status: domain.OrderStatusPending, Total: 100})
	m.AppendOrder(ctx, domain.Order{ID: "2", Status: domain.OrderStatusPending, Total: 200})

	o, ok := m.FindOrder(ctx, "2")
	require.True(t, ok)
	assert.Equal(t, float64(200), o.Total)

	updated, ok := m.UpdateOrder(ctx, "1", func(o *domain.Order) { o.Status = domain.OrderStatusPaid })
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusPaid, updated.Status)

	stored, _ := m.FindOrder(ctx, "1")
	assert.Equal(t, domain.OrderStatusPaid, stored.Status)

	_, ok = m.UpdateOrder(ctx, "9", func(*domain.Order) {})
	assert.False(t, ok)
	assert.Len(t, m.Orders(ctx), 2)
}

func TestRedisBackend_TTLWithJitter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	b := NewRedisBackend(client, "", 10*time.Minute)
	require.NoError(t, b.Save(context.Background(), KeyCart, []byte(`[]`)))

	ttl := mr.TTL("storefront:cart")
	assert.GreaterOrEqual(t, ttl, 10*time.Minute)
	assert.Less(t, ttl, 15*time.Minute)
}

func TestRedisBackend_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	m := New(NewRedisBackend(client, "dev1", 0), nil)
	defer m.Close()
	mr.Close()

	ctx := context.Background()
	m.Set(ctx, KeyToken, "abc")

	assert.Equal(t, "", Get(ctx, m, KeyToken, ""))
}

func TestSQLiteBackend_CorruptedValueIsReplacedOnWrite(t *testing.T) {
	b := setupTestSQLite(t, filepath.Join(t.TempDir(), "mirror.db"))
	m := New(b, nil)
	ctx := context.Background()

	_, err := b.db.ExecContext(ctx, `INSERT INTO mirror (key, value) VALUES (?, ?)`, KeyCart, []byte("garbage"))
	require.NoError(t, err)

	assert.True(t, m.Cart(ctx).IsEmpty())

	m.SaveCart(ctx, domain.NewCart([]domain.CartLine{{ProductID: 1, Name: "Mouse", UnitPrice: 9990, Quantity: 1}}))
	assert.Equal(t, 1, m.Cart(ctx).Count())
}

func TestSQLiteBackend_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.db")
	ctx := context.Background()

	first, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	New(first, nil).Set(ctx, KeyToken, "abc")
	require.NoError(t, first.Close())

	second := setupTestSQLite(t, path)
	assert.Equal(t, "abc", Get(ctx, New(second, nil), KeyToken, ""))
}

func TestSQLiteBackend_ClosedDatabaseDegradesToFallback(t *testing.T) {
	b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	m := New(b, nil)
	require.NoError(t, b.Close())

	ctx := context.Background()
	m.Set(ctx, KeyToken, "abc")

	assert.Equal(t, "none", Get(ctx, m, KeyToken, "none"))
}

func TestMirror_ConcurrentAppendsKeepEveryOrder(t *testing.T) {
	for name, m := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m.AppendOrder(ctx, domain.Order{ID: "0", Status: domain.OrderStatusPaid})

			var wg sync.WaitGroup
			for i := 1; i <= 20; i++ {
				wg.Add(2)
				go func(id int) {
					defer wg.Done()
					m.AppendOrder(ctx, domain.Order{ID: domain.OrderID(fmt.Sprint(id)), Status: domain.OrderStatusPending})
				}(i)
				go func() {
					defer wg.Done()
					m.UpdateOrder(ctx, "0", func(o *domain.Order) { o.Total++ })
				}()
			}
			wg.Wait()

			orders := m.Orders(ctx)
			assert.Len(t, orders, 21)
			first, ok := m.FindOrder(ctx, "0")
			require.True(t, ok)
			assert.Equal(t, float64(20), first.Total)
		})
	}
}
