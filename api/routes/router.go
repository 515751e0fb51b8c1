package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/smartshop-backend/api/controllers"
	"github.com/angelmondragon/smartshop-backend/api/middleware"
	"github.com/angelmondragon/smartshop-backend/pkg/config"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/smartshop-backend/pkg/redis"
)

// rateLimitStore is the redis surface needed for idempotency replay and the
// checkout rate limit.
type rateLimitStore interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RouterParams carries everything the HTTP surface needs.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    rateLimitStore
	Gatherer prometheus.Gatherer

	Catalog  controllers.CatalogReader
	Cart     controllers.CartService
	Checkout controllers.CheckoutService
	Payments controllers.PaymentResolver
	Gateway  controllers.GatewayIntents
	Orders   controllers.OrderQueries
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(!cfg.App.IsProd(), cfg.App.CORSOrigins...),
	)

	var redisPinger controllers.Pinger
	if params.Redis != nil {
		if p, ok := params.Redis.(controllers.Pinger); ok {
			redisPinger = p
		}
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    params.DB,
			"redis": redisPinger,
		}))
	})

	gatherer := params.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.Checkout.RateLimitWindow,
		cfg.Checkout.RateLimit,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CartSession(logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(params.Catalog, logg))
			r.With(middleware.OptionalAuth(cfg.JWT, logg)).
				Get("/{slug}", controllers.ProductDetail(params.Catalog, logg))
			r.With(middleware.Auth(cfg.JWT, logg), middleware.Idempotency(params.Redis, logg)).
				Post("/{slug}/reviews", controllers.ProductReviewSubmit(params.Catalog, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Get("/cart", controllers.CartFetch(params.Cart, logg))
			r.Post("/cart/lines", controllers.CartAddLine(params.Cart, logg))
			r.Post("/cart/lines/{lineId}/decrement", controllers.CartDecrementLine(params.Cart, logg))
			r.Delete("/cart/lines/{lineId}", controllers.CartRemoveLine(params.Cart, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(params.Redis, logg))

			r.Post("/cart/merge", controllers.CartMerge(params.Cart, logg))

			r.Get("/checkout", controllers.CheckoutQuote(params.Checkout, logg))
			r.With(middleware.RateLimit(checkoutPolicy, params.Redis, logg)).
				Post("/checkout", controllers.CheckoutPlaceOrder(params.Checkout, logg))

			r.Route("/payments", func(r chi.Router) {
				r.Post("/cod", controllers.PaymentCOD(params.Payments, logg))
				r.Post("/online", controllers.PaymentOnline(params.Payments, logg))
				r.Post("/gateway/intents", controllers.PaymentGatewayIntent(params.Gateway, logg))
				r.Post("/gateway/callback", controllers.PaymentGatewayCallback(params.Payments, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.OrderList(params.Orders, logg))
				r.Get("/complete", controllers.OrderComplete(params.Orders, logg))
				r.Get("/invoice", controllers.OrderInvoice(params.Orders, logg))
				r.Get("/{orderNumber}", controllers.OrderDetail(params.Orders, logg))
			})
		})
	})

	return r
}
