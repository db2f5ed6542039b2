package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openaid/aid-inventory/api/controllers"
	"github.com/openaid/aid-inventory/api/middleware"
	"github.com/openaid/aid-inventory/internal/auth"
	"github.com/openaid/aid-inventory/internal/items"
	"github.com/openaid/aid-inventory/internal/kits"
	"github.com/openaid/aid-inventory/internal/ledger"
	"github.com/openaid/aid-inventory/internal/recipients"
	"github.com/openaid/aid-inventory/internal/reports"
	"github.com/openaid/aid-inventory/internal/stock"
	"github.com/openaid/aid-inventory/pkg/auth/session"
	"github.com/openaid/aid-inventory/pkg/config"
	"github.com/openaid/aid-inventory/pkg/db/models"
	"github.com/openaid/aid-inventory/pkg/enums"
	"github.com/openaid/aid-inventory/pkg/logger"
	"github.com/openaid/aid-inventory/pkg/metrics"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// redisStore is what the auth rate limiter and idempotency middleware need.
type redisStore interface {
	middleware.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// StockEngine covers every stock write the API exposes.
type StockEngine interface {
	controllers.StockRecorder
	Adjust(ctx context.Context, actor ledger.Actor, input stock.AdjustInput) (*models.Item, error)
}

// Services bundles the domain services mounted under /api.
type Services struct {
	Auth       auth.Service
	Register   auth.RegisterService
	Sessions   sessionManager
	Items      items.Service
	Stock      StockEngine
	Kits       kits.Service
	Recipients recipients.Service
	Reports    *reports.Service
	Events     controllers.EventPager
}

// Infra carries the shared clients the middleware and health checks use.
type Infra struct {
	Redis       redisStore
	Ready       map[string]controllers.Pinger
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
}

func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(infra.HTTPMetrics),
		middleware.CORS(cfg.App.AllowedOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginUsernameLimit,
	)

	r.Route("/api", func(r chi.Router) {
		if cfg.FeatureFlags.MetricsEnabled && infra.Gatherer != nil {
			r.Handle("/metrics", promhttp.HandlerFor(infra.Gatherer, promhttp.HandlerOpts{}))
		}

		r.Route("/health", func(r chi.Router) {
			r.Get("/live", controllers.HealthLive(cfg))
			r.Get("/ready", controllers.HealthReady(cfg, infra.Ready, logg))
		})

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, infra.Redis, logg)).Post("/login", controllers.AuthLogin(svc.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(svc.Sessions, cfg.JWT, logg))
			r.Post("/logout", controllers.AuthLogout(svc.Sessions, cfg.JWT, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWT, svc.Sessions, logg))
				r.Get("/me", controllers.AuthMe(svc.Auth, logg))
				r.Post("/change-password", controllers.AuthChangePassword(svc.Auth, logg))

				r.With(middleware.RequireRole(logg, enums.UserRoleAdmin)).Post("/register", controllers.AuthRegister(svc.Register, logg))
				r.With(middleware.RequireRole(logg, enums.UserRoleAdmin)).Get("/users", controllers.AuthListUsers(svc.Auth, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, svc.Sessions, logg))
			r.Use(middleware.Idempotency(infra.Redis, cfg.Inventory.IdempotencyKeyTTL, logg))

			r.Route("/items", func(r chi.Router) {
				r.Get("/", controllers.ListItems(svc.Items, logg))
				r.Post("/", controllers.CreateItem(svc.Items, logg))
				r.Get("/{id}", controllers.GetItem(svc.Items, logg))
				r.Patch("/{id}", controllers.UpdateItem(svc.Items, logg))
				r.Delete("/{id}", controllers.DeleteItem(svc.Items, logg))
				r.Post("/{id}/adjust", controllers.AdjustItemStock(svc.Stock, logg))
			})

			r.Route("/quick", func(r chi.Router) {
				r.Post("/production", controllers.RecordProduction(svc.Stock, logg))
				r.Post("/purchase", controllers.RecordPurchase(svc.Stock, logg))
				r.Post("/distribution", controllers.RecordDistribution(svc.Stock, logg))
				r.Get("/dashboard/stats", controllers.DashboardStats(svc.Reports, logg))
			})

			r.Route("/kits", func(r chi.Router) {
				r.Get("/templates", controllers.ListKitTemplates(svc.Kits, logg))
				r.Post("/templates", controllers.CreateKitTemplate(svc.Kits, logg))
				r.Get("/templates/{id}", controllers.GetKitTemplate(svc.Kits, logg))
				r.Patch("/templates/{id}", controllers.UpdateKitTemplate(svc.Kits, logg))
				r.Post("/preview", controllers.PreviewAssembly(svc.Kits, logg))
				r.Post("/assemble", controllers.AssembleKit(svc.Kits, logg))
				r.Get("/assemblies", controllers.ListAssemblies(svc.Kits, logg))
			})

			r.Route("/recipients", func(r chi.Router) {
				r.Get("/", controllers.ListRecipients(svc.Recipients, logg))
				r.Post("/", controllers.CreateRecipient(svc.Recipients, logg))
				r.Patch("/{id}", controllers.UpdateRecipient(svc.Recipients, logg))
			})

			r.Get("/reports/activity", controllers.ActivityReport(svc.Reports, logg))
			r.Get("/reports/distributions", controllers.DistributionsReport(svc.Reports, logg))
			r.Get("/events", controllers.ListEvents(svc.Events, logg))
		})
	})

	return r
}
