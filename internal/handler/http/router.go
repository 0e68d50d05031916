package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

const serviceName = "storefront"

// RouterConfig carries everything the router mounts.
type RouterConfig struct {
	Orders   *service.OrderService
	Payments *service.PaymentService
	Carts    *service.CartService
	Reviews  *service.ReviewService
	Health   *health.Handler
	Tokens   middleware.TokenValidator
	Logger   *slog.Logger

	CORS       middleware.CORSConfig
	PprofCIDRs []string
	// PayRateLimitRPS and PayRateLimitBurst bound the payment callback per
	// client IP. Zero RPS disables the limit.
	PayRateLimitRPS   float64
	PayRateLimitBurst int
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	orderHandler := NewOrderHandler(cfg.Orders, cfg.Payments, logger)
	cartHandler := NewCartHandler(cfg.Carts, logger)
	productHandler := NewProductHandler(cfg.Reviews, logger)

	payLimit := func(next http.Handler) http.Handler { return next }
	if cfg.PayRateLimitRPS > 0 {
		payLimit = middleware.RateLimit(cfg.PayRateLimitRPS, cfg.PayRateLimitBurst, logger)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Public reads.
		r.Group(func(r chi.Router) {
			r.Use(middleware.CacheControl(300))
			r.Get("/config/paypal", orderHandler.PayPalClientID)
			r.Get("/products/{id}/paypal-client-id", orderHandler.PayPalClientID)
		})
		r.Get("/products/{id}", productHandler.GetProduct)
		r.Get("/products/{id}/reviews", productHandler.ListReviews)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Tokens))

			r.Post("/products/{id}/reviews", productHandler.CreateReview)

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", orderHandler.CreateOrder)
				r.Get("/mine", orderHandler.ListMyOrders)
				r.Get("/{id}", orderHandler.GetOrder)
				r.With(payLimit).Put("/{id}/pay", orderHandler.PayOrder)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(middleware.RoleAdmin))
					r.Get("/", orderHandler.ListOrders)
					r.Get("/summary", orderHandler.Summary)
					r.Get("/summary/sales-by-date", orderHandler.SalesByDate)
					r.Put("/{id}/deliver", orderHandler.DeliverOrder)
				})
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Post("/items", cartHandler.AddItem)
				r.Delete("/items/{productId}", cartHandler.RemoveItem)
				r.Put("/shipping", cartHandler.SetShipping)
				r.Put("/payment", cartHandler.SetPayment)
			})
		})
	})

	return r
}
