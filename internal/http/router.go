// Package http exposes the storefront to local front ends as a small JSON
// API with a server-sent event stream.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/account"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Services struct {
	Cart     *cart.Reconciler
	Catalog  *catalog.Catalog
	Checkout *checkout.Service
	Orders   *orders.Service
	Account  *account.Service
	Session  *session.Session
}

type Options struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	Logger             *slog.Logger
}

func NewRouter(svc Services, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	cartHandler := NewCartHandler(svc.Cart)
	productHandler := NewProductHandler(svc.Catalog)
	checkoutHandler := NewCheckoutHandler(svc.Checkout)
	ordersHandler := NewOrdersHandler(svc.Orders, svc.Session)
	sessionHandler := NewSessionHandler(svc.Account, svc.Session)
	eventsHandler := NewEventsHandler(svc.Session.Bus(), svc.Cart)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(RequestIDHeader)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Long-lived stream, outside the timeout and compression group.
	r.Get("/api/events", eventsHandler.Stream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(opts.RequestTimeout))
		r.Use(middleware.Compress(5))
		r.Use(MaxBodySize(opts.MaxRequestBodySize))

		r.Route("/api", func(r chi.Router) {
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
				r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			})

			r.Get("/products", productHandler.ListProducts)
			r.Get("/products/{id}", productHandler.GetProduct)

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", checkoutHandler.GetCheckout)
				r.Delete("/", checkoutHandler.Abandon)
				r.Post("/start", checkoutHandler.Start)
				r.Post("/draft", checkoutHandler.SaveDraft)
				r.Post("/confirm", checkoutHandler.Confirm)
				r.Post("/retry", checkoutHandler.Retry)
			})

			r.Get("/orders", ordersHandler.ListOrders)
			r.Get("/orders/{id}", ordersHandler.GetOrder)

			r.Route("/session", func(r chi.Router) {
				r.Get("/", sessionHandler.GetSession)
				r.Post("/login", sessionHandler.Login)
				r.Post("/logout", sessionHandler.Logout)
				r.Post("/register", sessionHandler.Register)
				r.Get("/profile", sessionHandler.Profile)
				r.Patch("/profile", sessionHandler.UpdateProfile)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(ordersHandler.RequirePrivileged)
				r.Get("/orders", ordersHandler.ListAllOrders)
				r.Patch("/orders/{id}", ordersHandler.EditOrder)
				r.Put("/orders/{id}/status", ordersHandler.UpdateStatus)
				r.Post("/products", productHandler.CreateProduct)
				r.Put("/products/{id}", productHandler.UpdateProduct)
				r.Delete("/products/{id}", productHandler.DeleteProduct)
				r.Post("/images", productHandler.UploadImage)
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
