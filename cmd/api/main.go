package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/campusdesk/campusdesk-backend/api/routes"
	"github.com/campusdesk/campusdesk-backend/internal/auth"
	"github.com/campusdesk/campusdesk-backend/internal/carts"
	"github.com/campusdesk/campusdesk-backend/internal/catalog"
	"github.com/campusdesk/campusdesk-backend/internal/fulfillment"
	"github.com/campusdesk/campusdesk-backend/internal/notifications"
	"github.com/campusdesk/campusdesk-backend/internal/payments"
	"github.com/campusdesk/campusdesk-backend/internal/placement"
	"github.com/campusdesk/campusdesk-backend/internal/users"
	"github.com/campusdesk/campusdesk-backend/pkg/config"
	"github.com/campusdesk/campusdesk-backend/pkg/db"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
	"github.com/campusdesk/campusdesk-backend/pkg/migrate"
	"github.com/campusdesk/campusdesk-backend/pkg/outbox"
	"github.com/campusdesk/campusdesk-backend/pkg/permissions"
	"github.com/campusdesk/campusdesk-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	grants, err := permissions.Load(cfg.Permissions.GrantsPath)
	if err != nil {
		logg.Error(context.Background(), "failed to load grants table", err)
		os.Exit(1)
	}

	usersRepo := users.NewRepository(dbClient.DB())
	cartRepo := carts.NewRepository(dbClient.DB())
	catalogRepo := catalog.NewRepository(dbClient.DB())
	notifRepo := notifications.NewRepository(dbClient.DB())
	placementRepo := placement.NewRepository(dbClient.DB())
	placedRepo := fulfillment.NewRepository(dbClient.DB())
	callbackRepo := payments.NewCallbackRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	notifSvc, err := notifications.NewService(notifRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}
	cartsSvc, err := carts.NewService(cartRepo, catalogRepo, usersRepo, notifSvc, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}
	catalogSvc, err := catalog.NewService(catalogRepo, dbClient, cartsSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}
	placementSvc, err := placement.NewService(placementRepo, cartRepo, cartsSvc, catalogRepo, usersRepo, notifSvc, outboxSvc, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create placement service", err)
		os.Exit(1)
	}
	fulfillSvc, err := fulfillment.NewService(placedRepo, usersRepo, notifSvc, outboxSvc, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create fulfillment service", err)
		os.Exit(1)
	}
	gateway, err := payments.NewGateway(cfg.Gateway)
	if err != nil {
		logg.Error(context.Background(), "failed to configure payment gateway", err)
		os.Exit(1)
	}
	paySvc, err := payments.NewService(gateway, cartsSvc, cartRepo, placementSvc, placementRepo, fulfillSvc, usersRepo, notifSvc, outboxSvc, callbackRepo, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}
	authSvc, err := auth.NewService(auth.ServiceParams{
		DB:             dbClient,
		Users:          usersRepo,
		Carts:          cartsSvc,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:       cfg,
			Logger:       logg,
			DB:           dbClient,
			Redis:        redisClient,
			Grants:       grants,
			Auth:         authSvc,
			Carts:        cartsSvc,
			Catalog:      catalogSvc,
			Payments:     paySvc,
			Fulfillment:  fulfillSvc,
			Notification: notifSvc,
			Users:        usersRepo,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
