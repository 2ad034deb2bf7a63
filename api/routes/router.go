package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campusdesk/campusdesk-backend/api/controllers"
	"github.com/campusdesk/campusdesk-backend/api/middleware"
	"github.com/campusdesk/campusdesk-backend/internal/auth"
	"github.com/campusdesk/campusdesk-backend/internal/carts"
	"github.com/campusdesk/campusdesk-backend/internal/catalog"
	"github.com/campusdesk/campusdesk-backend/internal/fulfillment"
	"github.com/campusdesk/campusdesk-backend/internal/notifications"
	"github.com/campusdesk/campusdesk-backend/internal/payments"
	"github.com/campusdesk/campusdesk-backend/internal/users"
	"github.com/campusdesk/campusdesk-backend/pkg/config"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
	"github.com/campusdesk/campusdesk-backend/pkg/permissions"
	"github.com/campusdesk/campusdesk-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           controllers.Pinger
	Redis        *redis.Client
	Grants       *permissions.Store
	Auth         auth.Service
	Carts        carts.Service
	Catalog      catalog.Service
	Payments     payments.Service
	Fulfillment  fulfillment.Service
	Notification notifications.Service
	Users        *users.Repository
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	loginPolicy := middleware.RateLimitPolicy{
		Name:   "login",
		Window: cfg.AuthLimit.LoginWindow,
		Limit:  cfg.AuthLimit.LoginLimit,
	}
	registerPolicy := middleware.RateLimitPolicy{
		Name:   "register",
		Window: cfg.AuthLimit.RegisterWindow,
		Limit:  cfg.AuthLimit.RegisterLimit,
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, d.DB, d.Redis, logg))
	})

	// the gateway posts the payer's browser here; no auth, reply is HTML
	r.Post("/api/v1/payments/gateway/callback", controllers.GatewayCallback(d.Payments, logg))

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, d.Redis, logg)).
			Post("/register", controllers.Register(d.Auth, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, d.Redis, logg)).
			Post("/login", controllers.Login(d.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(d.Redis, logg))

		r.Route("/catalog", func(r chi.Router) {
			r.Use(middleware.RequireGrant(d.Grants, permissions.GrantCatalogRead, logg))
			r.Get("/services", controllers.ListServices(d.Catalog, logg))
			r.Get("/services/{serviceId}", controllers.GetService(d.Catalog, logg))
			r.Get("/parameters", controllers.ListParameters(d.Catalog, logg))
			r.Get("/collection-types", controllers.ListCollectionTypes(d.Catalog, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireGrant(d.Grants, permissions.GrantCartOwn, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.GetCart(d.Carts, logg))
				r.Post("/orders", controllers.AddOrder(d.Carts, logg))
				r.Delete("/orders/{orderId}", controllers.RemoveOrder(d.Carts, logg))
				r.Put("/collection", controllers.SetCollection(d.Carts, logg))
				r.Post("/pay", controllers.PayCart(d.Payments, logg))
			})

			r.Route("/placed-carts", func(r chi.Router) {
				r.Get("/", controllers.ListPlacedCarts(d.Fulfillment, logg))
				r.Get("/{placedCartId}", controllers.GetPlacedCart(d.Fulfillment, logg))
			})
			r.Post("/placed-orders/{placedOrderId}/resume", controllers.ResumePlacedOrder(d.Fulfillment, logg))

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(d.Notification, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(d.Notification, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(d.Redis, logg))

		r.With(middleware.RequireGrant(d.Grants, permissions.GrantWildcard, logg)).
			Post("/auth/verify", controllers.VerifyMember(d.Auth, logg))

		r.Route("/catalog", func(r chi.Router) {
			r.Use(middleware.RequireGrant(d.Grants, permissions.GrantCatalogWrite, logg))
			r.Post("/services", controllers.CreateService(d.Catalog, logg))
			r.Put("/services/{serviceId}", controllers.UpdateService(d.Catalog, logg))
			r.Delete("/services/{serviceId}", controllers.DeleteService(d.Catalog, logg))
			r.Post("/parameters", controllers.CreateParameter(d.Catalog, logg))
			r.Put("/parameters/{parameterId}", controllers.UpdateParameter(d.Catalog, logg))
			r.Delete("/parameters/{parameterId}", controllers.DeleteParameter(d.Catalog, logg))
			r.Post("/collection-types", controllers.CreateCollectionType(d.Catalog, logg))
			r.Put("/collection-types/{collectionTypeId}", controllers.UpdateCollectionType(d.Catalog, logg))
			r.Delete("/collection-types/{collectionTypeId}", controllers.DeleteCollectionType(d.Catalog, logg))
		})

		r.With(middleware.RequireGrant(d.Grants, permissions.GrantPaymentsConfirm, logg)).
			Post("/payments/confirm/{paymentCode}", controllers.ConfirmOfflinePayment(d.Payments, logg))

		r.Route("/placed-carts", func(r chi.Router) {
			r.With(middleware.RequireGrant(d.Grants, permissions.GrantFulfillmentRead, logg)).
				Get("/", controllers.AdminListPlacedCarts(d.Fulfillment, logg))
			r.With(middleware.RequireGrant(d.Grants, permissions.GrantFulfillmentRead, logg)).
				Get("/{placedCartId}", controllers.AdminGetPlacedCart(d.Fulfillment, logg))
			r.With(middleware.RequireGrant(d.Grants, permissions.GrantFulfillmentRead, logg)).
				Get("/{placedCartId}/invoice", controllers.DownloadInvoice(d.Fulfillment, d.Users, logg))
			r.With(middleware.RequireGrant(d.Grants, permissions.GrantFulfillmentWrite, logg)).
				Post("/{placedCartId}/status", controllers.TransitionPlacedCart(d.Fulfillment, logg))
		})
		r.With(middleware.RequireGrant(d.Grants, permissions.GrantFulfillmentWrite, logg)).
			Post("/placed-orders/{placedOrderId}/status", controllers.TransitionPlacedOrder(d.Fulfillment, logg))
	})

	return r
}
