package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront/api/controllers"
	checkoutcontrollers "github.com/angelmondragon/storefront/api/controllers/checkout"
	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/internal/visitor"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/pricing"
	"github.com/angelmondragon/storefront/pkg/redis"
)

// VisitorResolver hands out the per-session service bundle.
type VisitorResolver interface {
	For(ctx context.Context, sessionID string) (*visitor.Visitor, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	checks map[string]controllers.Pinger,
	metricsHandler http.Handler,
	visitors VisitorResolver,
	sessions checkoutcontrollers.Sessions,
	window checkoutcontrollers.PaymentWindow,
	calc pricing.Calculator,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	// A nil *redis.Client must reach the middleware as a nil interface so
	// that throttling and replay switch themselves off.
	var idempotencyStore redis.IdempotencyStore
	loginLimit := func(next http.Handler) http.Handler { return next }
	if redisClient != nil {
		idempotencyStore = redisClient
		loginLimit = middleware.LoginThrottle(cfg.AuthRateLimit, redisClient, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, checks))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.GuestSession(cfg.Session, logg))
		r.Use(middleware.Prompts())
		r.Use(middleware.Visitor(visitors, logg))

		r.Get("/products", controllers.CatalogProducts(logg))
		r.Get("/products/{productId}", controllers.CatalogProduct(logg))
		r.Get("/categories", controllers.CatalogCategories(logg))

		r.Route("/guest-cart", func(r chi.Router) {
			r.Get("/", controllers.GuestCartFetch(calc, logg))
			r.Delete("/", controllers.GuestCartClear(calc, logg))
			r.Post("/items", controllers.GuestCartAdd(calc, logg))
			r.Delete("/items/{uniqueId}", controllers.GuestCartRemove(calc, logg))
		})

		r.Route("/auth", func(r chi.Router) {
			r.With(loginLimit).Post("/login", controllers.AuthLogin(logg))
			r.Post("/logout", controllers.AuthLogout(logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser(logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(logg))
				r.Delete("/", controllers.CartClear(logg))
				r.Post("/items", controllers.CartAddItem(logg))
				r.Patch("/items/{cartItemId}", controllers.CartChangeQuantity(logg))
				r.Delete("/items/{cartItemId}", controllers.CartRemoveItem(logg))
			})

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", controllers.AddressList(logg))
				r.Post("/", controllers.AddressCreate(logg))
				r.Put("/{addressId}", controllers.AddressUpdate(logg))
				r.Delete("/{addressId}", controllers.AddressDelete(logg))
			})

			r.Route("/checkout/sessions", func(r chi.Router) {
				r.Post("/", checkoutcontrollers.CheckoutStart(sessions, logg))
				r.Route("/{sessionId}", func(r chi.Router) {
					r.Get("/", checkoutcontrollers.CheckoutFetch(sessions, logg))
					r.Put("/address", checkoutcontrollers.CheckoutSelectAddress(sessions, logg))
					r.Put("/payment-method", checkoutcontrollers.CheckoutChoosePayment(sessions, logg))
					r.With(middleware.Idempotency(idempotencyStore, logg)).Post("/place", checkoutcontrollers.CheckoutPlace(sessions, window, logg))
					r.Post("/payment/callback", checkoutcontrollers.CheckoutPaymentCallback(sessions, window, logg))
				})
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.OrdersList(logg))
				r.With(middleware.Idempotency(idempotencyStore, logg)).Post("/{orderId}/cancel", controllers.OrderCancel(logg))
			})
		})
	})

	return r
}
