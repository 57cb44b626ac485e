package cart

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/mirror"
	"github.com/fjod/go_cart/storefront/internal/remote"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRemote struct {
	m        sync.Mutex
	cart     *domain.Cart
	products stubProducts
	err      error
	calls    []string
	gets     atomic.Int32
	block    chan struct{}
}

func (m *mockRemote) record(call string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.calls = append(m.calls, call)
	return m.err
}

func (m *mockRemote) GetCart(ctx context.Context) (*domain.Cart, error) {
	m.gets.Add(1)
	if m.block != nil {
		<-m.block
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.record("get"); err != nil {
		return nil, err
	}
	m.m.Lock()
	defer m.m.Unlock()
	return m.cart.Clone(), nil
}

func (m *mockRemote) AddCartItem(_ context.Context, id int64, q int) error {
	if err := m.record("add"); err != nil {
		return err
	}
	m.m.Lock()
	defer m.m.Unlock()
	line := domain.CartLine{ProductID: id}
	if p, ok := m.products[id]; ok {
		line = p.Line(0)
	}
	m.cart.Add(line, q)
	return nil
}

func (m *mockRemote) UpdateCartItem(_ context.Context, id int64, q int) error {
	if err := m.record("update"); err != nil {
		return err
	}
	m.m.Lock()
	defer m.m.Unlock()
	m.cart.SetQuantity(id, q)
	return nil
}

func (m *mockRemote) RemoveCartItem(_ context.Context, id int64) error {
	if err := m.record("remove"); err != nil {
		return err
	}
	m.m.Lock()
	defer m.m.Unlock()
	m.cart.Remove(id)
	return nil
}

func (m *mockRemote) Calls() []string {
	m.m.Lock()
	defer m.m.Unlock()
	return append([]string(nil), m.calls...)
}

type stubProducts map[int64]domain.Product

func (s stubProducts) Lookup(_ context.Context, id int64) (domain.Product, error) {
	if p, ok := s[id]; ok {
		return p, nil
	}
	return domain.Product{}, errors.New("not found")
}

func stock(n int) *int { return &n }

var networkErr = &remote.Error{Code: remote.CodeNetwork, Message: "Fallo de red o CORS"}

type fixture struct {
	r       *Reconciler
	remote  *mockRemote
	mirror  *mirror.Mirror
	session *session.Session
	events  *atomic.Int32
}

func setup(t *testing.T, token string) fixture {
	t.Helper()
	m := mirror.New(mirror.NewMemoryBackend(), nil)
	sess := session.New(m, nil)
	if token != "" {
		sess.SignIn(context.Background(), token, &domain.User{Email: "ana@x.cl"})
	}
	products := stubProducts{
		1: {ID: 1, Name: "Mouse", Price: 9990, Image: "m.png"},
		2: {ID: 2, Name: "Pad", Price: 2990, Stock: stock(3)},
		3: {ID: 3, Name: "Agotado", Price: 100, Stock: stock(0)},
	}
	rc := &mockRemote{cart: domain.NewCart(nil), products: products}
	events := &atomic.Int32{}
	sess.Bus().Subscribe(session.TopicCartChanged, func(context.Context, string) { events.Add(1) })

	return fixture{
		r:       NewReconciler(rc, products, m, sess, nil),
		remote:  rc,
		mirror:  m,
		session: sess,
		events:  events,
	}
}

func TestAddLine_AnonymousUsesMirrorOnly(t *testing.T) {
	f := setup(t, "")
	ctx := context.Background()

	src, err := f.r.AddLine(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceLocal, src)
	_, err = f.r.AddLine(ctx, 1, 2)
	require.NoError(t, err)

	c := f.mirror.Cart(ctx)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, domain.CartLine{ProductID: 1, Name: "Mouse", UnitPrice: 9990, Quantity: 3, ImageRef: "m.png"}, c.Lines[0])
	assert.Empty(t, f.remote.Calls())
	assert.Equal(t, int32(2), f.events.Load())

	cur := f.r.CurrentCart(ctx)
	assert.Equal(t, domain.SourceLocal, cur.Source)
	assert.False(t, cur.IsFallback())
	assert.Equal(t, 3, f.r.Count(ctx))
}

func TestAddLine_InvalidQuantity(t *testing.T) {
	f := setup(t, "")

	_, err := f.r.AddLine(context.Background(), 1, 0)

	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Zero(t, f.events.Load())
}

func TestAddLine_ClampsToStock(t *testing.T) {
	f := setup(t, "")
	ctx := context.Background()

	_, err := f.r.AddLine(ctx, 2, 2)
	require.NoError(t, err)
	_, err = f.r.AddLine(ctx, 2, 5)
	require.NoError(t, err)

	line, ok := f.mirror.Cart(ctx).Line(2)
	require.True(t, ok)
	assert.Equal(t, 3, line.Quantity)
}

func TestAddLine_OutOfStock(t *testing.T) {
	f := setup(t, "")

	_, err := f.r.AddLine(context.Background(), 3, 1)

	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.True(t, f.mirror.Cart(context.Background()).IsEmpty())
}

func TestAddLine_UnknownProduct(t *testing.T) {
	f := setup(t, "")
	ctx := context.Background()

	_, err := f.r.AddLine(ctx, 42, 1)
	assert.ErrorIs(t, err, ErrUnknownProduct)

	// an existing line merges without product data
	f.mirror.SaveCart(ctx, domain.NewCart([]domain.CartLine{{ProductID: 42, Name: "Viejo", UnitPrice: 5, Quantity: 1}}))
	_, err = f.r.AddLine(ctx, 42, 1)
	require.NoError(t, err)
	line, _ := f.mirror.Cart(ctx).Line(42)
	assert.Equal(t, 2, line.Quantity)
}

func TestMutations_RemoteWhenSignedIn(t *testing.T) {
	f := setup(t, "tok")
	ctx := context.Background()

	src, err := f.r.AddLine(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceRemote, src)

	_, err = f.r.SetQuantity(ctx, 1, 5)
	require.NoError(t, err)
	_, err = f.r.SetQuantity(ctx, 1, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"add", "update", "remove"}, f.remote.Calls())
	assert.True(t, f.mirror.Cart(ctx).IsEmpty())
	assert.Equal(t, int32(3), f.events.Load())

	cur := f.r.CurrentCart(ctx)
	assert.Equal(t, domain.SourceRemote, cur.Source)
	assert.True(t, cur.Value.IsEmpty())
}

func TestMutations_FallBackToMirrorOnRemoteFailure(t *testing.T) {
	f := setup(t, "tok")
	f.remote.err = networkErr
	ctx := context.Background()

	src, err := f.r.AddLine(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceLocal, src)

	_, err = f.r.SetQuantity(ctx, 1, 4)
	require.NoError(t, err)

	cur := f.r.CurrentCart(ctx)
	assert.Equal(t, domain.SourceLocal, cur.Source)
	require.True(t, cur.IsFallback())
	assert.Equal(t, remote.CodeNetwork, cur.Fallback.Code)
	assert.Equal(t, 0, cur.Fallback.Status)
	assert.Equal(t, 4, cur.Value.Count())

	_, err = f.r.RemoveLine(ctx, 1)
	require.NoError(t, err)
	assert.True(t, f.mirror.Cart(ctx).IsEmpty())
}

func TestAddLine_RepeatedAddsMerge(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		remoteErr  error
		wantSource domain.Source
	}{
		{"anonymous", "", nil, domain.SourceLocal},
		{"signed in", "tok", nil, domain.SourceRemote},
		{"signed in, api down", "tok", networkErr, domain.SourceLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, tt.token)
			f.remote.err = tt.remoteErr
			ctx := context.Background()
			q1, q2 := 2, 3

			_, err := f.r.AddLine(ctx, 1, q1)
			require.NoError(t, err)
			src, err := f.r.AddLine(ctx, 1, q2)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSource, src)

			cur := f.r.CurrentCart(ctx)
			assert.Equal(t, tt.wantSource, cur.Source)
			require.Len(t, cur.Value.Lines, 1)
			assert.Equal(t, q1+q2, cur.Value.Lines[0].Quantity)
			assert.Equal(t, 9990*float64(q1+q2), cur.Value.Total())
		})
	}
}

func TestSetQuantity_NonPositiveRemovesLocally(t *testing.T) {
	for _, q := range []int{0, -3} {
		f := setup(t, "")
		ctx := context.Background()
		f.mirror.SaveCart(ctx, domain.NewCart([]domain.CartLine{
			{ProductID: 1, UnitPrice: 10, Quantity: 2},
			{ProductID: 2, UnitPrice: 10, Quantity: 1},
		}))

		_, err := f.r.SetQuantity(ctx, 1, q)

		require.NoError(t, err)
		c := f.mirror.Cart(ctx)
		_, found := c.Line(1)
		assert.False(t, found)
		assert.Equal(t, 1, c.Count())
	}
}

func TestClear_RemovesRemoteLinesAndMirror(t *testing.T) {
	f := setup(t, "tok")
	ctx := context.Background()
	f.remote.cart = domain.NewCart([]domain.CartLine{{ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 2}})
	f.mirror.SaveCart(ctx, domain.NewCart([]domain.CartLine{{ProductID: 9, Quantity: 1}}))

	src := f.r.Clear(ctx)

	assert.Equal(t, domain.SourceRemote, src)
	assert.Equal(t, []string{"get", "remove", "remove"}, f.remote.Calls())
	assert.True(t, f.remote.cart.IsEmpty())
	assert.True(t, f.mirror.Cart(ctx).IsEmpty())
	assert.Equal(t, int32(1), f.events.Load())
}

func TestClear_RemoteFailureStillClearsMirror(t *testing.T) {
	f := setup(t, "tok")
	f.remote.err = networkErr
	ctx := context.Background()
	f.mirror.SaveCart(ctx, domain.NewCart([]domain.CartLine{{ProductID: 9, Quantity: 1}}))

	src := f.r.Clear(ctx)

	assert.Equal(t, domain.SourceLocal, src)
	assert.True(t, f.mirror.Cart(ctx).IsEmpty())
}

func TestCurrentCart_ConcurrentLoadsCollapse(t *testing.T) {
	f := setup(t, "tok")
	f.remote.block = make(chan struct{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.r.CurrentCart(ctx)
		}()
	}

	require.Eventually(t, func() bool { return f.remote.gets.Load() >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(f.remote.block)
	wg.Wait()

	assert.Less(t, f.remote.gets.Load(), int32(10))
}

func TestCurrentCart_SharedLoadOutlivesCallerContext(t *testing.T) {
	f := setup(t, "tok")
	f.remote.cart = domain.NewCart([]domain.CartLine{{ProductID: 1, UnitPrice: 9990, Quantity: 1}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cur := f.r.CurrentCart(ctx)

	assert.Equal(t, domain.SourceRemote, cur.Source)
	assert.Equal(t, 1, cur.Value.Count())
}
