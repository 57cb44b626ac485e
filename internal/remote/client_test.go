package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token(context.Context) string { return string(s) }

func newTestClient(t *testing.T, h http.HandlerFunc, token string) (*Client, *httptest.Server) {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, staticToken(token), nil), srv
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestIsPublic(t *testing.T) {
	cases := []struct {
		method, path string
		want         bool
	}{
		{http.MethodGet, "/api/v1/productos", true},
		{http.MethodGet, "/api/v1/productos/3", true},
		{http.MethodPost, "/api/v1/productos", false},
		{http.MethodPost, "/api/v1/imagenes/upload", true},
		{http.MethodPost, "/api/v1/auth/login", true},
		{http.MethodGet, "/api/v1/cart", false},
		{http.MethodGet, "/api/v1/orders", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsPublic(tc.method, tc.path), "%s %s", tc.method, tc.path)
	}
}

func TestClient_AuthorizationHeader(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]string{}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.Method+" "+r.URL.Path] = r.Header.Get("Authorization")
		mu.Unlock()
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeJSON(w, http.StatusOK, `{"items":[]}`)
	}, "tok123")

	ctx := context.Background()
	_, err := c.Do(ctx, http.MethodGet, "/api/v1/productos", nil)
	require.NoError(t, err)
	_, err = c.Do(ctx, http.MethodGet, "/api/v1/cart", nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "", seen["GET /api/v1/productos"])
	assert.Equal(t, "Bearer tok123", seen["GET /api/v1/cart"])
}

func TestClient_AnonymousSendsNoAuthorization(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `[]`)
	}, "")

	_, err := c.Do(context.Background(), http.MethodGet, "/api/v1/orders", nil)
	require.NoError(t, err)
}

func TestClient_HTTPErrorMessages(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		status  int
		message string
	}{
		{
			name: "json message",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusConflict, `{"message":"Stock insuficiente"}`)
			},
			status:  http.StatusConflict,
			message: "Stock insuficiente",
		},
		{
			name: "json without message",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusBadRequest, `{"detail":"x"}`)
			},
			status:  http.StatusBadRequest,
			message: "Error de API",
		},
		{
			name: "text body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				w.WriteHeader(http.StatusMethodNotAllowed)
				_, _ = w.Write([]byte("Request method 'PATCH' not supported"))
			},
			status:  http.StatusMethodNotAllowed,
			message: "Request method 'PATCH' not supported",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestClient(t, tc.handler, "tok")

			_, err := c.Do(context.Background(), http.MethodPatch, "/api/v1/orders/1", map[string]string{"status": "PAID"})

			re := AsError(err)
			require.NotNil(t, re)
			assert.Equal(t, CodeHTTP, re.Code)
			assert.Equal(t, tc.status, re.Status)
			assert.Equal(t, tc.message, re.Message)
			assert.Equal(t, tc.status, StatusOf(err))
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second}, staticToken("tok"), nil)

	res := Call[[]domain.Order](context.Background(), c, http.MethodGet, "/api/v1/orders", nil)

	assert.Equal(t, KindNetworkError, res.Kind)
	assert.Equal(t, CodeNetwork, res.Err.Code)
	assert.Equal(t, 0, res.Err.Status)
	assert.Equal(t, "Fallo de red o CORS", res.Err.Message)
}

func TestCall_ParseError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"content":[]}`)
	}, "")

	res := c.ListProducts(context.Background())

	assert.Equal(t, KindParseError, res.Kind)
	assert.Equal(t, CodeBadFormat, res.Err.Code)
	assert.Equal(t, http.StatusOK, res.Err.Status)
}

func TestCall_TextBodyIntoString(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	}, "")

	res := Call[string](context.Background(), c, http.MethodGet, "/api/v1/imagenes/ping", nil)

	require.True(t, res.OK())
	assert.Equal(t, "ok", res.Value)
}

func TestCall_EmptyBodyIsOK(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, "tok")

	err := c.RemoveCartItem(context.Background(), 5)

	assert.NoError(t, err)
}

func TestClient_CartMapping(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/cart", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"items":[
			{"productoId":1,"nombre":"Mouse","precioUnitario":9990,"cantidad":2,"imagen":"m.png"},
			{"productoId":2,"nombre":"Pad","precioUnitario":100,"cantidad":"0"}
		]}`)
	}, "tok")

	cart, err := c.GetCart(context.Background())

	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, domain.CartLine{ProductID: 1, Name: "Mouse", UnitPrice: 9990, Quantity: 2, ImageRef: "m.png"}, cart.Lines[0])
}

func TestClient_AddCartItemPayload(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		buf := new(strings.Builder)
		_, _ = io.Copy(buf, r.Body)
		assert.JSONEq(t, `{"productoId":7,"cantidad":3}`, buf.String())
		writeJSON(w, http.StatusCreated, `{}`)
	}, "tok")

	require.NoError(t, c.AddCartItem(context.Background(), 7, 3))
}

func TestClient_Upload(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "7", r.FormValue("productoId"))
		_, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "foto.png", hdr.Filename)
		writeJSON(w, http.StatusOK, `{"url":"/img/foto.png"}`)
	}, "tok")

	resp, err := c.Upload(context.Background(), http.MethodPost, "/api/v1/imagenes",
		map[string]string{"productoId": "7"},
		File{Field: "file", Name: "foto.png", Contents: strings.NewReader("png")})

	require.NoError(t, err)
	assert.True(t, resp.JSON)
}

func TestClient_BreakerFailsFast(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusBadGateway, `{"message":"upstream"}`)
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:         srv.URL,
		Timeout:         time.Second,
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	}, staticToken("tok"), nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.Do(ctx, http.MethodGet, "/api/v1/cart", nil)
		re := AsError(err)
		assert.Equal(t, CodeHTTP, re.Code)
		assert.Equal(t, http.StatusBadGateway, re.Status)
		assert.Equal(t, "upstream", re.Message)
	}

	_, err := c.Do(ctx, http.MethodGet, "/api/v1/cart", nil)
	re := AsError(err)
	assert.Equal(t, CodeNetwork, re.Code)
	assert.Equal(t, 0, re.Status)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusNotFound, `{"message":"no existe"}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, BreakerFailures: 1, BreakerCooldown: time.Minute}, staticToken("tok"), nil)

	for i := 0; i < 3; i++ {
		_, err := c.GetOrder(context.Background(), "9")
		assert.Equal(t, http.StatusNotFound, StatusOf(err))
	}
	assert.Equal(t, int32(3), hits.Load())
}
